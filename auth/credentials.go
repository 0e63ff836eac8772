package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/crm-session-broker/sessions"
	"golang.org/x/oauth2"
)

const (
	authorizePath = "/services/oauth2/authorize"
	tokenPath     = "/services/oauth2/token"
)

// OAuth2Settings is the immutable connected-app configuration. It is passed in at
// construction so several provider configurations can live in one process.
type OAuth2Settings struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	LoginURL     string // e.g. https://login.salesforce.com
	Scopes       []string

	// Endpoint overrides the endpoints derived from LoginURL, e.g. from OIDC discovery.
	Endpoint oauth2.Endpoint
}

func (s OAuth2Settings) config() *oauth2.Config {
	endpoint := s.Endpoint
	if endpoint.TokenURL == "" {
		login := strings.TrimSuffix(s.LoginURL, "/")
		endpoint = oauth2.Endpoint{
			AuthURL:   login + authorizePath,
			TokenURL:  login + tokenPath,
			AuthStyle: oauth2.AuthStyleInParams,
		}
	}
	return &oauth2.Config{
		ClientID:     s.ClientID,
		ClientSecret: s.ClientSecret,
		RedirectURL:  s.RedirectURI,
		Endpoint:     endpoint,
		Scopes:       s.Scopes,
	}
}

// Acquirer turns a strategy input into platform credentials.
type Acquirer struct {
	oauth      *oauth2.Config
	validator  *Validator
	httpClient *http.Client
	verifier   *oidc.IDTokenVerifier
}

// NewAcquirer builds an Acquirer. httpClient and verifier are optional.
func NewAcquirer(settings OAuth2Settings, httpClient *http.Client, verifier *oidc.IDTokenVerifier) *Acquirer {
	return &Acquirer{
		oauth:      settings.config(),
		validator:  NewValidator(),
		httpClient: httpClient,
		verifier:   verifier,
	}
}

// AuthCodeURL is where the user agent must be sent before a CodeInput can exist.
func (a *Acquirer) AuthCodeURL(state string) string {
	return a.oauth.AuthCodeURL(state)
}

// Acquire obtains credentials for in. Token inputs never touch the network.
func (a *Acquirer) Acquire(ctx context.Context, in Input) (sessions.Credentials, error) {
	switch in := in.(type) {
	case TokenInput:
		return a.fromToken(in)
	case CodeInput:
		return a.exchange(ctx, in)
	default:
		return sessions.Credentials{}, inputError("[Acquirer.Acquire]", "unsupported input %T", in)
	}
}

func (a *Acquirer) fromToken(in TokenInput) (sessions.Credentials, error) {
	instanceURL, err := a.validator.ValidateTokenInput(in)
	if err != nil {
		return sessions.Credentials{}, err
	}
	return sessions.Credentials{
		AccessToken: strings.TrimSpace(in.Token),
		InstanceURL: instanceURL,
	}, nil
}

func (a *Acquirer) exchange(ctx context.Context, in CodeInput) (sessions.Credentials, error) {
	if err := a.validator.ValidateCode(in); err != nil {
		return sessions.Credentials{}, err
	}
	if a.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	}

	token, err := a.oauth.Exchange(ctx, in.Code)
	if err != nil {
		return sessions.Credentials{}, newError(KindExchange, "[Acquirer.exchange]", err)
	}

	instanceURL, _ := token.Extra("instance_url").(string)
	creds := sessions.Credentials{
		AccessToken: token.AccessToken,
		InstanceURL: strings.TrimSuffix(instanceURL, "/"),
	}
	if err := creds.Validate(); err != nil {
		return sessions.Credentials{}, newError(KindExchange, "[Acquirer.exchange]", fmt.Errorf("token response: %w", err))
	}

	if a.verifier != nil {
		if rawIDToken, ok := token.Extra("id_token").(string); ok && rawIDToken != "" {
			if _, err := a.verifier.Verify(ctx, rawIDToken); err != nil {
				return sessions.Credentials{}, newError(KindExchange, "[Acquirer.exchange]", fmt.Errorf("id_token verification: %w", err))
			}
		}
	}
	return creds, nil
}
