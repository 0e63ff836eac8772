package sessions

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// AuthType records which strategy produced a session. It is fixed at creation.
type AuthType string

const (
	AuthTypeToken  AuthType = "token"  // Session token handed over by an upstream system
	AuthTypeOAuth2 AuthType = "oauth2" // Authorization code exchange
)

func (a AuthType) Valid() bool {
	switch a {
	case AuthTypeToken, AuthTypeOAuth2:
		return true
	}
	return false
}

// Identity is the authenticated platform user. Immutable once set.
type Identity struct {
	ExternalID string `json:"externalId"` // Platform user ID
	Name       string `json:"name"`       // Display name
	Username   string `json:"username"`   // Login name
}

// Credentials are the only state needed to rebuild an API client.
// The access token is bearer material and must never be logged in full.
type Credentials struct {
	AccessToken string `json:"accessToken"`
	InstanceURL string `json:"instanceUrl"`
}

// Session is the unit persisted by the session store, keyed by an opaque session ID.
// A Session is either complete (Validate returns nil) or must not exist.
type Session struct {
	AuthType    AuthType    `json:"authType"`
	OpenedAt    time.Time   `json:"openedAt"`
	APIVersion  string      `json:"apiVersion"`
	Identity    Identity    `json:"identity"`
	Credentials Credentials `json:"credentials"`
}

// Validate reports the first missing or malformed field.
func (s Session) Validate() error {
	switch {
	case !s.AuthType.Valid():
		return fmt.Errorf("invalid auth type %q", s.AuthType)
	case s.OpenedAt.IsZero():
		return fmt.Errorf("missing openedAt")
	case s.APIVersion == "":
		return fmt.Errorf("missing apiVersion")
	case s.Identity.ExternalID == "":
		return fmt.Errorf("missing identity.externalId")
	case s.Identity.Name == "":
		return fmt.Errorf("missing identity.name")
	case s.Identity.Username == "":
		return fmt.Errorf("missing identity.username")
	}
	return s.Credentials.Validate()
}

func (c Credentials) Validate() error {
	if strings.TrimSpace(c.AccessToken) == "" {
		return fmt.Errorf("missing credentials.accessToken")
	}
	u, err := url.Parse(c.InstanceURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("invalid credentials.instanceUrl %q", c.InstanceURL)
	}
	return nil
}

// RedactedToken keeps a short prefix so log lines can be correlated without leaking the token.
func (c Credentials) RedactedToken() string {
	const visible = 6
	if len(c.AccessToken) <= visible {
		return strings.Repeat("*", len(c.AccessToken))
	}
	return c.AccessToken[:visible] + "..."
}

func (c Credentials) String() string {
	return fmt.Sprintf("{accessToken:%s instanceUrl:%s}", c.RedactedToken(), c.InstanceURL)
}

func (c Credentials) MarshalZerologObject(e *zerolog.Event) {
	e.Str("access_token", c.RedactedToken()).Str("instance_url", c.InstanceURL)
}

func (s Session) MarshalZerologObject(e *zerolog.Event) {
	e.Str("auth_type", string(s.AuthType)).
		Time("opened_at", s.OpenedAt).
		Str("api_version", s.APIVersion).
		Str("external_id", s.Identity.ExternalID).
		Str("username", s.Identity.Username).
		Object("credentials", s.Credentials)
}
