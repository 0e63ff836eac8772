package server

// Route path constants
const (
	RouteHome     = "/"
	RouteCallback = "/auth/callback"
	RouteRevoke   = "/auth/revoke"
	RouteIdentity = "/auth/identity"
	RouteAPIMe    = "/api/me"
)

// Request headers an upstream system uses to hand over an existing platform session.
const (
	HeaderSource       = "Source"
	HeaderSessionToken = "Session-Token"
	HeaderServerURL    = "Server-Url"

	SourceSession = "session"
)
