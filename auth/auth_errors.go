package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jrsteele09/crm-session-broker/platform"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// Kind classifies an AuthError. Every failure of Establish or Revoke carries exactly one.
type Kind string

const (
	KindAuthInput  Kind = "auth_input" // Malformed or missing strategy input
	KindExchange   Kind = "exchange"   // OAuth2 code exchange failed
	KindIdentity   Kind = "identity"   // Identity endpoint error or no usable identifier
	KindLookup     Kind = "lookup"     // Profile or API version retrieval failed
	KindRevocation Kind = "revocation" // Provider side logout failed
)

// Reason refines KindIdentity so an endpoint failure is never confused with a
// response that simply lacked an identifier.
type Reason string

const (
	ReasonEndpointError Reason = "endpoint_error"
	ReasonNoIdentifier  Reason = "no_identifier"
)

// Sentinels for errors.Is. They match on Kind, and on Reason when the sentinel sets one.
var (
	ErrAuth             = &AuthError{}
	ErrAuthInput        = &AuthError{Kind: KindAuthInput}
	ErrExchange         = &AuthError{Kind: KindExchange}
	ErrIdentity         = &AuthError{Kind: KindIdentity}
	ErrIdentityEndpoint = &AuthError{Kind: KindIdentity, Reason: ReasonEndpointError}
	ErrNoIdentifier     = &AuthError{Kind: KindIdentity, Reason: ReasonNoIdentifier}
	ErrLookup           = &AuthError{Kind: KindLookup}
	ErrRevocation       = &AuthError{Kind: KindRevocation}
)

// AuthError is the single error type returned by the broker. Error() is meant for
// server side logs; SafeMessage() is what an untrusted client may see.
type AuthError struct {
	Kind      Kind
	Reason    Reason
	Op        string // Where it failed, e.g. "[Resolver.primary]"
	Retryable bool   // Timeouts, transport failures and provider 5xx/429

	ProviderCode        string
	ProviderDescription string

	Err error
}

func (e *AuthError) Error() string {
	msg := string(e.Kind) + " error"
	if e.Reason != "" {
		msg += " (" + string(e.Reason) + ")"
	}
	if e.Op != "" {
		msg = e.Op + " " + msg
	}
	if e.ProviderCode != "" {
		msg += ": " + e.ProviderCode
		if e.ProviderDescription != "" {
			msg += " - " + e.ProviderDescription
		}
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	if !ok {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// SafeMessage is a classified message free of provider internals.
func (e *AuthError) SafeMessage() string {
	var msg string
	switch e.Kind {
	case KindAuthInput:
		msg = "The authentication request was missing or malformed."
	case KindExchange:
		msg = "The authorization code could not be exchanged. Please sign in again."
	case KindIdentity:
		msg = "The signed-in user could not be identified."
	case KindLookup:
		msg = "The user profile could not be loaded."
	case KindRevocation:
		msg = "The session could not be revoked."
	default:
		msg = "Authentication failed."
	}
	if e.Retryable {
		msg += " Please try again."
	}
	return msg
}

// AsAuthError extracts the AuthError from err's chain.
func AsAuthError(err error) (*AuthError, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

func newError(kind Kind, op string, err error) *AuthError {
	authErr := &AuthError{
		Kind:      kind,
		Op:        op,
		Retryable: isRetryable(err),
		Err:       err,
	}

	var apiErr *platform.APIError
	var retrieveErr *oauth2.RetrieveError
	switch {
	case errors.As(err, &apiErr):
		authErr.ProviderCode = apiErr.Code
		authErr.ProviderDescription = apiErr.Message
	case errors.As(err, &retrieveErr):
		authErr.ProviderCode = retrieveErr.ErrorCode
		authErr.ProviderDescription = retrieveErr.ErrorDescription
	}
	return authErr
}

func newIdentityError(reason Reason, op string, err error) *AuthError {
	authErr := newError(KindIdentity, op, err)
	authErr.Reason = reason
	return authErr
}

func inputError(op, format string, args ...any) *AuthError {
	return &AuthError{Kind: KindAuthInput, Op: op, Err: fmt.Errorf(format, args...)}
}

func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *platform.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.StatusCode)
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return retrieveErr.Response != nil && retryableStatus(retrieveErr.Response.StatusCode)
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func retryableStatus(status int) bool {
	return status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
}
