package auth

import "github.com/jrsteele09/crm-session-broker/sessions"

// Input is the strategy-specific payload handed to Establish. The set of
// implementations is closed: TokenInput and CodeInput.
type Input interface {
	AuthType() sessions.AuthType
	sealed()
}

// TokenInput carries a session token already issued by an upstream system.
type TokenInput struct {
	Token     string
	ServerURL string // Any URL on the instance; only scheme and host are kept
}

func (TokenInput) AuthType() sessions.AuthType { return sessions.AuthTypeToken }
func (TokenInput) sealed()                     {}

// CodeInput carries the authorization code returned to the OAuth2 callback.
type CodeInput struct {
	Code string
}

func (CodeInput) AuthType() sessions.AuthType { return sessions.AuthTypeOAuth2 }
func (CodeInput) sealed()                     {}
