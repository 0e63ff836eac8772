package config

import "strings"

// OAuthConfig holds the connected-app settings used for the authorization code flow.
type OAuthConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetRedirectURI() string
	GetLoginURL() string
	GetScopes() []string
	GetOIDCDiscovery() bool
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetClientID() string {
	return GetEnv("CLIENT_ID", "")
}

func (OAuth) GetClientSecret() string {
	return GetEnv("CLIENT_SECRET", "")
}

func (OAuth) GetRedirectURI() string {
	return GetEnv("REDIRECT_URI", EnvVars{}.GetBaseURL()+"/auth/callback")
}

// GetLoginURL is the provider login host that serves the authorize, token and revoke endpoints.
func (OAuth) GetLoginURL() string {
	return strings.TrimSuffix(GetEnv("LOGIN_URL", "https://login.salesforce.com"), "/")
}

func (OAuth) GetScopes() []string {
	return strings.Fields(GetEnv("OAUTH_SCOPES", "api refresh_token"))
}

// GetOIDCDiscovery enables discovery of the login host endpoints and id_token verification.
func (OAuth) GetOIDCDiscovery() bool {
	return GetEnvBool("OIDC_DISCOVERY", false)
}
