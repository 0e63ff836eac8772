package server

import "net/http"

func (s *Server) initRoutes() {
	// The callback is the only route outside the gatekeeper.
	s.RegisterRouteHandler("GET "+RouteCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.APIMiddleware()...))

	s.RegisterRouteHandler("GET "+RouteHome+"{$}", ChainMiddleware(s.HomeHandler(), s.APIMiddleware(s.Gatekeeper)...))
	s.RegisterRouteHandler("GET "+RouteIdentity, ChainMiddleware(s.IdentityHandler(), s.APIMiddleware(s.Gatekeeper)...))
	s.RegisterRouteHandler("GET "+RouteAPIMe, ChainMiddleware(s.CurrentUserRecordHandler(), s.APIMiddleware(s.Gatekeeper)...))
	s.RegisterRouteHandler("GET "+RouteRevoke, ChainMiddleware(s.RevokeHandler(), s.APIMiddleware(s.Gatekeeper)...))

	// CORS preflight is answered by the middleware itself.
	s.RegisterRouteHandler("OPTIONS /", ChainMiddleware(http.NotFound, s.APIMiddleware()...))
}
