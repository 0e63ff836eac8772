package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/crm-session-broker/platform"
	"github.com/jrsteele09/crm-session-broker/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const defaultRequestTimeout = 15 * time.Second

// Broker turns an authentication input into a complete Session, rebuilds API
// clients from stored sessions and revokes them. It holds no per-session state and
// is safe for concurrent use.
type Broker struct {
	settings     OAuth2Settings
	acquirer     *Acquirer
	resolver     Resolver
	profiles     ProfileFetcher
	versions     VersionNegotiator
	revokeURL    string
	apiVersion   string
	restBasePath string
	httpClient   *http.Client
	verifier     *oidc.IDTokenVerifier
	timeout      time.Duration
	nowTime      func() time.Time
}

// BrokerOption defines a function type to modify the Broker instance.
type BrokerOption func(*Broker)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) BrokerOption {
	return func(b *Broker) {
		b.nowTime = nowFunc
	}
}

// WithHTTPClient sets the transport used for the code exchange and all API calls.
func WithHTTPClient(hc *http.Client) BrokerOption {
	return func(b *Broker) {
		b.httpClient = hc
	}
}

// WithRequestTimeout bounds each provider call. A timeout surfaces as a retryable AuthError.
func WithRequestTimeout(timeout time.Duration) BrokerOption {
	return func(b *Broker) {
		b.timeout = timeout
	}
}

// WithVersionNegotiator replaces the default static API version negotiator.
func WithVersionNegotiator(negotiator VersionNegotiator) BrokerOption {
	return func(b *Broker) {
		b.versions = negotiator
	}
}

// WithIDTokenVerifier makes the code exchange verify any id_token it receives.
func WithIDTokenVerifier(verifier *oidc.IDTokenVerifier) BrokerOption {
	return func(b *Broker) {
		b.verifier = verifier
	}
}

// WithAPIVersion is the version used for calls made while establishing a session.
func WithAPIVersion(version string) BrokerOption {
	return func(b *Broker) {
		b.apiVersion = version
	}
}

// WithRESTBasePath sets the REST path prefix for clients the broker builds.
func WithRESTBasePath(path string) BrokerOption {
	return func(b *Broker) {
		b.restBasePath = path
	}
}

// NewBroker validates the OAuth2 settings and applies the options.
func NewBroker(settings OAuth2Settings, options ...BrokerOption) (*Broker, error) {
	if settings.ClientID == "" {
		return nil, errors.New("[NewBroker] ClientID is required")
	}
	if settings.RedirectURI == "" {
		return nil, errors.New("[NewBroker] RedirectURI is required")
	}
	if settings.LoginURL == "" {
		return nil, errors.New("[NewBroker] LoginURL is required")
	}

	b := &Broker{
		settings:     settings,
		revokeURL:    platform.RevokeURL(settings.LoginURL),
		apiVersion:   platform.DefaultAPIVersion,
		restBasePath: platform.DefaultRESTBasePath,
		timeout:      defaultRequestTimeout,
		nowTime:      time.Now,
	}

	// Apply optional configuration
	for _, opt := range options {
		opt(b)
	}
	if b.versions == nil {
		b.versions = StaticVersion(b.apiVersion)
	}
	b.acquirer = NewAcquirer(settings, b.httpClient, b.verifier)

	return b, nil
}

// AuthCodeURL is the authorization URL the gatekeeper redirects to for the oauth2 strategy.
func (b *Broker) AuthCodeURL(state string) string {
	return b.acquirer.AuthCodeURL(state)
}

// Establish acquires credentials, resolves the user, loads the profile and
// negotiates the API version, in that order. Any failure aborts the whole
// operation and no Session is returned. Nothing is cached between calls.
func (b *Broker) Establish(ctx context.Context, in Input) (sessions.Session, error) {
	session, path, err := b.establish(ctx, in)
	if err != nil {
		b.logFailure(err, in)
		return sessions.Session{}, err
	}
	log.Info().Object("session", session).Str("identity_path", string(path)).Msg("Session established")
	return session, nil
}

func (b *Broker) establish(ctx context.Context, in Input) (sessions.Session, Path, error) {
	creds, err := b.acquire(ctx, in)
	if err != nil {
		return sessions.Session{}, "", err
	}

	client := b.client(creds, b.apiVersion)

	resolution, err := b.resolver.Resolve(ctx, client)
	if err != nil {
		return sessions.Session{}, "", err
	}
	log.Debug().Str("external_id", resolution.ExternalID).Str("identity_path", string(resolution.Path)).Msg("Identity resolved")

	// The profile is fetched for the resolved ID and that same ID goes on the session.
	profile, err := b.profiles.Fetch(ctx, client, resolution.ExternalID)
	if err != nil {
		return sessions.Session{}, "", err
	}

	version, err := b.versions.Negotiate(ctx, client)
	if err != nil {
		return sessions.Session{}, "", newError(KindLookup, "[Broker.negotiateVersion]", err)
	}

	session := sessions.Session{
		AuthType:   in.AuthType(),
		OpenedAt:   b.nowTime(),
		APIVersion: strings.TrimPrefix(version, "v"),
		Identity: sessions.Identity{
			ExternalID: resolution.ExternalID,
			Name:       profile.Name,
			Username:   profile.Username,
		},
		Credentials: creds,
	}
	if err := session.Validate(); err != nil {
		return sessions.Session{}, "", newError(KindLookup, "[Broker.establish]", fmt.Errorf("assembled session: %w", err))
	}
	return session, resolution.Path, nil
}

func (b *Broker) acquire(ctx context.Context, in Input) (sessions.Credentials, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	return b.acquirer.Acquire(ctx, in)
}

// ReconstructClient rebuilds a live API client from a stored session. It performs
// no I/O and cannot fail; a session without credentials is a caller bug.
func (b *Broker) ReconstructClient(session sessions.Session) *platform.Client {
	return b.client(session.Credentials, session.APIVersion)
}

func (b *Broker) client(creds sessions.Credentials, version string) *platform.Client {
	return platform.NewClient(creds,
		platform.WithAPIVersion(version),
		platform.WithRESTBasePath(b.restBasePath),
		platform.WithHTTPClient(b.httpClient),
		platform.WithTimeout(b.timeout),
	)
}

// Revoke invalidates the session at the provider: OAuth2 sessions through token
// revocation, handed-over token sessions through the generic session logout.
// The caller must only forget the local session when Revoke returns nil.
func (b *Broker) Revoke(ctx context.Context, session sessions.Session) error {
	client := b.ReconstructClient(session)

	var err error
	switch session.AuthType {
	case sessions.AuthTypeOAuth2:
		err = client.RevokeToken(ctx, b.revokeURL)
	case sessions.AuthTypeToken:
		err = client.Logout(ctx)
	default:
		err = fmt.Errorf("unknown auth type %q", session.AuthType)
	}
	if err != nil {
		authErr := newError(KindRevocation, "[Broker.Revoke]", err)
		log.Warn().Err(authErr).Str("auth_type", string(session.AuthType)).Str("external_id", session.Identity.ExternalID).Msg("Revocation failed")
		return authErr
	}
	log.Info().Str("auth_type", string(session.AuthType)).Str("external_id", session.Identity.ExternalID).Msg("Session revoked")
	return nil
}

// RevokeStored revokes the stored session and deletes it only once the provider
// has confirmed. On failure the stored session is left intact so the call can be retried.
func (b *Broker) RevokeStored(ctx context.Context, repo sessions.Repo, sessionID string) error {
	session, err := repo.Get(ctx, sessionID)
	if err != nil {
		return errors.Wrap(err, "[Broker.RevokeStored] repo.Get")
	}
	if err := b.Revoke(ctx, session); err != nil {
		return err
	}
	if err := repo.Delete(ctx, sessionID); err != nil {
		return errors.Wrap(err, "[Broker.RevokeStored] repo.Delete")
	}
	return nil
}

func (b *Broker) logFailure(err error, in Input) {
	event := log.Warn().Err(err)
	if in != nil {
		event = event.Str("auth_type", string(in.AuthType()))
	}
	if authErr, ok := AsAuthError(err); ok {
		event = event.Str("kind", string(authErr.Kind)).
			Str("reason", string(authErr.Reason)).
			Bool("retryable", authErr.Retryable)
	}
	event.Msg("Session establish failed")
}
