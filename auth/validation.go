package auth

import (
	"net/url"
	"strings"
)

// Validator holds the input checks applied before any provider call is made.
type Validator struct{}

// NewValidator creates a new Validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateTokenInput checks a handed-over session token and returns the instance
// URL derived from the server URL.
func (v *Validator) ValidateTokenInput(in TokenInput) (string, error) {
	if strings.TrimSpace(in.Token) == "" {
		return "", inputError("[Validator.ValidateTokenInput]", "session token is required")
	}
	instanceURL, err := v.InstanceURL(in.ServerURL)
	if err != nil {
		return "", err
	}
	return instanceURL, nil
}

// ValidateCode checks an authorization code from the OAuth2 callback.
func (v *Validator) ValidateCode(in CodeInput) error {
	if strings.TrimSpace(in.Code) == "" {
		return inputError("[Validator.ValidateCode]", "authorization code is required")
	}
	return nil
}

// InstanceURL reduces a server URL (for example a SOAP endpoint) to scheme://host.
func (v *Validator) InstanceURL(serverURL string) (string, error) {
	if strings.TrimSpace(serverURL) == "" {
		return "", inputError("[Validator.InstanceURL]", "server url is required")
	}
	u, err := url.Parse(strings.TrimSpace(serverURL))
	if err != nil {
		return "", inputError("[Validator.InstanceURL]", "invalid server url: %v", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", inputError("[Validator.InstanceURL]", "server url must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", inputError("[Validator.InstanceURL]", "server url has no host")
	}
	return u.Scheme + "://" + u.Host, nil
}
