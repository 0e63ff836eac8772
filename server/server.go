package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/crm-session-broker/auth"
	"github.com/jrsteele09/crm-session-broker/internal/config"
	"github.com/jrsteele09/crm-session-broker/server/authflowrepo"
	"github.com/jrsteele09/crm-session-broker/sessions"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	broker    *auth.Broker
	sessions  sessions.Repo
	authState authflowrepo.Repo
	cookies   *cookieSigner
}

func New(config config.Config, broker *auth.Broker, sessionRepo sessions.Repo, authStateRepo authflowrepo.Repo) (*Server, error) {
	if broker == nil {
		return nil, fmt.Errorf("[Server New] broker is required")
	}
	if sessionRepo == nil {
		return nil, fmt.Errorf("[Server New] session repo is required")
	}
	if authStateRepo == nil {
		return nil, fmt.Errorf("[Server New] auth state repo is required")
	}

	cookies, err := newCookieSigner(config.GetSessionSecret(), config.GetMaxSessionAge(), config.GetSecureCookies())
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create cookie signer: %w", err)
	}

	s := &Server{
		env:       config.GetEnv(),
		mux:       http.NewServeMux(),
		config:    config,
		broker:    broker,
		sessions:  sessionRepo,
		authState: authStateRepo,
		cookies:   cookies,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "", route
		}
		log.Debug().Str("method", method).Str("path", path).Msg("Route registered")
	}
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
