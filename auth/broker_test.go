package auth_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/crm-session-broker/auth"
	"github.com/jrsteele09/crm-session-broker/internal/errors"
	"github.com/jrsteele09/crm-session-broker/internal/utils"
	"github.com/jrsteele09/crm-session-broker/platform/platformtest"
	"github.com/jrsteele09/crm-session-broker/sessions"
	"github.com/jrsteele09/crm-session-broker/sessions/repofakes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testClientID    = "3MVG9-test-client"
	testSecret      = "test-secret"
	testRedirectURI = "http://localhost:3000/auth/callback"
	testCode        = "aPrxValidCode"
	testAccessToken = "00Dxx!issued-by-exchange"
	testToken       = "T1"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type testFixture struct {
	server *platformtest.Server
	broker *auth.Broker
}

func defaultConfig() platformtest.Config {
	return platformtest.Config{
		ValidCode:      testCode,
		AccessToken:    testAccessToken,
		UserInfoUserID: utils.Ptr("005xx"),
		CurrentUserID:  "005xx",
		Users: map[string]platformtest.User{
			"005xx": {ID: "005xx", Name: "Ada Lovelace", Username: "ada@example.com"},
		},
		Versions: []string{"47.0", "52.0", "9.0"},
	}
}

func setupTestFixture(t *testing.T, cfg platformtest.Config, options ...auth.BrokerOption) *testFixture {
	t.Helper()

	server := platformtest.NewServer(cfg)
	t.Cleanup(server.Close)

	options = append([]auth.BrokerOption{
		auth.WithHTTPClient(server.Client()),
		auth.WithNowTime(func() time.Time { return testNow }),
	}, options...)

	broker, err := auth.NewBroker(auth.OAuth2Settings{
		ClientID:     testClientID,
		ClientSecret: testSecret,
		RedirectURI:  testRedirectURI,
		LoginURL:     server.URL,
	}, options...)
	require.NoError(t, err)

	return &testFixture{server: server, broker: broker}
}

func (f *testFixture) tokenInput() auth.TokenInput {
	return auth.TokenInput{Token: testToken, ServerURL: f.server.URL + "/services/Soap/u/48.0/00Dxx0000001gEF"}
}

func requireAuthError(t *testing.T, err error, target error) *auth.AuthError {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, target)
	authErr, ok := auth.AsAuthError(err)
	require.True(t, ok, "expected *auth.AuthError, got %T", err)
	return authErr
}

func TestNewBroker_RequiredSettings(t *testing.T) {
	valid := auth.OAuth2Settings{ClientID: testClientID, RedirectURI: testRedirectURI, LoginURL: "https://login.example.com"}

	_, err := auth.NewBroker(valid)
	require.NoError(t, err)

	missingID := valid
	missingID.ClientID = ""
	_, err = auth.NewBroker(missingID)
	require.ErrorContains(t, err, "ClientID is required")

	missingRedirect := valid
	missingRedirect.RedirectURI = ""
	_, err = auth.NewBroker(missingRedirect)
	require.ErrorContains(t, err, "RedirectURI is required")

	missingLogin := valid
	missingLogin.LoginURL = ""
	_, err = auth.NewBroker(missingLogin)
	require.ErrorContains(t, err, "LoginURL is required")
}

func TestBroker_AuthCodeURL(t *testing.T) {
	f := setupTestFixture(t, defaultConfig())

	authURL := f.broker.AuthCodeURL("state-123")
	require.Contains(t, authURL, f.server.URL+"/services/oauth2/authorize?")
	require.Contains(t, authURL, "client_id="+testClientID)
	require.Contains(t, authURL, "state=state-123")
	require.Contains(t, authURL, "response_type=code")
}

func TestBroker_EstablishToken(t *testing.T) {
	t.Run("identity endpoint returns an id", func(t *testing.T) {
		f := setupTestFixture(t, defaultConfig())

		session, err := f.broker.Establish(context.Background(), f.tokenInput())
		require.NoError(t, err)
		require.NoError(t, session.Validate())

		require.Equal(t, sessions.AuthTypeToken, session.AuthType)
		require.Equal(t, testNow, session.OpenedAt)
		require.Equal(t, "48.0", session.APIVersion)
		require.Equal(t, sessions.Credentials{AccessToken: testToken, InstanceURL: f.server.URL}, session.Credentials)
		require.Equal(t, sessions.Identity{ExternalID: "005xx", Name: "Ada Lovelace", Username: "ada@example.com"}, session.Identity)

		// The token is taken as is and the fallback is never needed.
		require.Zero(t, f.server.Calls(platformtest.EndpointToken))
		require.Zero(t, f.server.Calls(platformtest.EndpointCurrentUser))
		require.Equal(t, 1, f.server.Calls(platformtest.EndpointUserInfo))
		require.Equal(t, 1, f.server.Calls(platformtest.EndpointRecord))
		for _, bearer := range f.server.Bearers() {
			require.Equal(t, testToken, bearer)
		}
	})

	t.Run("token is trimmed", func(t *testing.T) {
		f := setupTestFixture(t, defaultConfig())
		in := f.tokenInput()
		in.Token = "  " + testToken + "\n"

		session, err := f.broker.Establish(context.Background(), in)
		require.NoError(t, err)
		require.Equal(t, testToken, session.Credentials.AccessToken)
	})

	t.Run("invalid inputs make no network call", func(t *testing.T) {
		f := setupTestFixture(t, defaultConfig())

		for name, in := range map[string]auth.TokenInput{
			"missing token":      {Token: "", ServerURL: f.server.URL},
			"blank token":        {Token: "   ", ServerURL: f.server.URL},
			"missing server url": {Token: testToken},
			"bad scheme":         {Token: testToken, ServerURL: "ftp://org.example.com"},
			"no host":            {Token: testToken, ServerURL: "https://"},
		} {
			t.Run(name, func(t *testing.T) {
				_, err := f.broker.Establish(context.Background(), in)
				authErr := requireAuthError(t, err, auth.ErrAuthInput)
				require.False(t, authErr.Retryable)
			})
		}
		require.Zero(t, f.server.TotalCalls())
	})
}

func TestBroker_EstablishOAuth2(t *testing.T) {
	t.Run("successful exchange", func(t *testing.T) {
		f := setupTestFixture(t, defaultConfig())

		session, err := f.broker.Establish(context.Background(), auth.CodeInput{Code: testCode})
		require.NoError(t, err)
		require.Equal(t, sessions.AuthTypeOAuth2, session.AuthType)
		require.Equal(t, testAccessToken, session.Credentials.AccessToken)
		require.Equal(t, f.server.URL, session.Credentials.InstanceURL)
		require.Equal(t, "005xx", session.Identity.ExternalID)
		require.Equal(t, 1, f.server.Calls(platformtest.EndpointToken))
	})

	t.Run("invalid grant", func(t *testing.T) {
		f := setupTestFixture(t, defaultConfig())

		session, err := f.broker.Establish(context.Background(), auth.CodeInput{Code: "expired-code"})
		authErr := requireAuthError(t, err, auth.ErrExchange)
		require.Equal(t, "invalid_grant", authErr.ProviderCode)
		require.Equal(t, "expired authorization code", authErr.ProviderDescription)
		require.False(t, authErr.Retryable)
		require.NotContains(t, authErr.SafeMessage(), "expired authorization code")
		require.Equal(t, sessions.Session{}, session)
		require.Zero(t, f.server.Calls(platformtest.EndpointUserInfo))
	})

	t.Run("missing code", func(t *testing.T) {
		f := setupTestFixture(t, defaultConfig())

		_, err := f.broker.Establish(context.Background(), auth.CodeInput{})
		requireAuthError(t, err, auth.ErrAuthInput)
		require.Zero(t, f.server.TotalCalls())
	})
}

func TestBroker_EstablishIdentity(t *testing.T) {
	t.Run("empty user_id falls back once", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.UserInfoUserID = utils.Ptr("")
		cfg.CurrentUserID = "005yy"
		cfg.Users = map[string]platformtest.User{
			"005yy": {ID: "005yy", Name: "Substitute User", Username: "su@example.com"},
		}
		f := setupTestFixture(t, cfg)

		session, err := f.broker.Establish(context.Background(), f.tokenInput())
		require.NoError(t, err)
		require.Equal(t, "005yy", session.Identity.ExternalID)
		require.Equal(t, "Substitute User", session.Identity.Name)
		require.Equal(t, 1, f.server.Calls(platformtest.EndpointCurrentUser))
	})

	t.Run("absent user_id falls back", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.UserInfoUserID = nil
		f := setupTestFixture(t, cfg)

		session, err := f.broker.Establish(context.Background(), f.tokenInput())
		require.NoError(t, err)
		require.Equal(t, "005xx", session.Identity.ExternalID)
		require.Equal(t, 1, f.server.Calls(platformtest.EndpointCurrentUser))
	})

	t.Run("no identifier on either path", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.UserInfoUserID = nil
		cfg.CurrentUserID = ""
		f := setupTestFixture(t, cfg)

		_, err := f.broker.Establish(context.Background(), f.tokenInput())
		authErr := requireAuthError(t, err, auth.ErrNoIdentifier)
		require.Equal(t, auth.KindIdentity, authErr.Kind)
		require.Equal(t, 1, f.server.Calls(platformtest.EndpointCurrentUser))
		require.Zero(t, f.server.Calls(platformtest.EndpointRecord))
	})

	t.Run("identity endpoint error skips the fallback", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.UserInfoStatus = http.StatusUnauthorized
		f := setupTestFixture(t, cfg)

		_, err := f.broker.Establish(context.Background(), f.tokenInput())
		authErr := requireAuthError(t, err, auth.ErrIdentityEndpoint)
		require.False(t, errors.Is(err, auth.ErrNoIdentifier))
		require.Equal(t, "invalid_token", authErr.ProviderCode)
		require.False(t, authErr.Retryable)
		require.Zero(t, f.server.Calls(platformtest.EndpointCurrentUser))
	})

	t.Run("fallback endpoint error", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.UserInfoUserID = utils.Ptr("")
		cfg.CurrentUserStatus = http.StatusServiceUnavailable
		f := setupTestFixture(t, cfg)

		_, err := f.broker.Establish(context.Background(), f.tokenInput())
		authErr := requireAuthError(t, err, auth.ErrIdentityEndpoint)
		require.True(t, authErr.Retryable)
	})
}

func TestBroker_EstablishLookup(t *testing.T) {
	t.Run("record access denied", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.RecordStatus = http.StatusForbidden
		f := setupTestFixture(t, cfg)

		_, err := f.broker.Establish(context.Background(), f.tokenInput())
		authErr := requireAuthError(t, err, auth.ErrLookup)
		require.Equal(t, "INSUFFICIENT_ACCESS", authErr.ProviderCode)
	})

	t.Run("record without username", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Users = map[string]platformtest.User{"005xx": {ID: "005xx", Name: "Ada Lovelace"}}
		f := setupTestFixture(t, cfg)

		_, err := f.broker.Establish(context.Background(), f.tokenInput())
		requireAuthError(t, err, auth.ErrLookup)
	})

	t.Run("profile is fetched for the resolved id", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.UserInfoUserID = utils.Ptr("")
		cfg.CurrentUserID = "005yy"
		// 005xx has a record but must not be used once the fallback resolved 005yy.
		cfg.Users["005yy"] = platformtest.User{ID: "005yy", Name: "Substitute User", Username: "su@example.com"}
		f := setupTestFixture(t, cfg)

		session, err := f.broker.Establish(context.Background(), f.tokenInput())
		require.NoError(t, err)
		require.Equal(t, "005yy", session.Identity.ExternalID)
		require.Equal(t, "su@example.com", session.Identity.Username)
	})
}

func TestBroker_EstablishVersion(t *testing.T) {
	t.Run("static version makes no call", func(t *testing.T) {
		f := setupTestFixture(t, defaultConfig(), auth.WithVersionNegotiator(auth.StaticVersion("v50.0")))

		session, err := f.broker.Establish(context.Background(), f.tokenInput())
		require.NoError(t, err)
		require.Equal(t, "50.0", session.APIVersion)
		require.Zero(t, f.server.Calls(platformtest.EndpointVersions))
	})

	t.Run("latest version", func(t *testing.T) {
		f := setupTestFixture(t, defaultConfig(), auth.WithVersionNegotiator(auth.LatestVersion{}))

		session, err := f.broker.Establish(context.Background(), f.tokenInput())
		require.NoError(t, err)
		require.Equal(t, "52.0", session.APIVersion)
		require.Equal(t, 1, f.server.Calls(platformtest.EndpointVersions))
	})

	t.Run("version lookup failure aborts", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.VersionsStatus = http.StatusServiceUnavailable
		f := setupTestFixture(t, cfg, auth.WithVersionNegotiator(auth.LatestVersion{}))

		session, err := f.broker.Establish(context.Background(), f.tokenInput())
		authErr := requireAuthError(t, err, auth.ErrLookup)
		require.True(t, authErr.Retryable)
		require.Equal(t, sessions.Session{}, session)
	})
}

func TestBroker_EstablishTimeout(t *testing.T) {
	cfg := defaultConfig()
	cfg.Delay = 500 * time.Millisecond
	f := setupTestFixture(t, cfg, auth.WithRequestTimeout(50*time.Millisecond))

	_, err := f.broker.Establish(context.Background(), f.tokenInput())
	authErr := requireAuthError(t, err, auth.ErrIdentityEndpoint)
	require.True(t, authErr.Retryable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBroker_EstablishCancelled(t *testing.T) {
	f := setupTestFixture(t, defaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session, err := f.broker.Establish(ctx, f.tokenInput())
	authErr := requireAuthError(t, err, auth.ErrIdentity)
	require.False(t, authErr.Retryable)
	require.Equal(t, sessions.Session{}, session)
}

func TestBroker_EstablishConcurrent(t *testing.T) {
	f := setupTestFixture(t, defaultConfig())
	repo := repofakes.NewFakeSessionRepo()

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session, err := f.broker.Establish(context.Background(), f.tokenInput())
			if assert.NoError(t, err) {
				assert.NoError(t, repo.Upsert(context.Background(), "shared-sid", session))
			}
		}()
	}
	wg.Wait()

	// Last write wins; either way the stored session is complete.
	stored, err := repo.Get(context.Background(), "shared-sid")
	require.NoError(t, err)
	require.NoError(t, stored.Validate())
	require.Equal(t, 2, f.server.Calls(platformtest.EndpointUserInfo))
}

func TestBroker_ReconstructClient(t *testing.T) {
	f := setupTestFixture(t, defaultConfig())

	session, err := f.broker.Establish(context.Background(), f.tokenInput())
	require.NoError(t, err)
	before := f.server.TotalCalls()

	first := f.broker.ReconstructClient(session)
	second := f.broker.ReconstructClient(session)
	require.Equal(t, session.Credentials, first.Credentials())
	require.Equal(t, first.Credentials(), second.Credentials())
	require.Equal(t, session.APIVersion, first.APIVersion())
	require.Equal(t, before, f.server.TotalCalls())

	// The rebuilt client is live and authenticates as the session's user.
	user, err := first.RetrieveUser(context.Background(), "005xx")
	require.NoError(t, err)
	require.Equal(t, "Ada Lovelace", user.Name)
	require.Equal(t, testToken, f.server.Bearers()[len(f.server.Bearers())-1])
}

func TestBroker_Revoke(t *testing.T) {
	t.Run("oauth2 session revokes the token", func(t *testing.T) {
		f := setupTestFixture(t, defaultConfig())
		session, err := f.broker.Establish(context.Background(), auth.CodeInput{Code: testCode})
		require.NoError(t, err)

		require.NoError(t, f.broker.Revoke(context.Background(), session))
		require.Equal(t, []string{testAccessToken}, f.server.Revoked())
		require.Zero(t, f.server.Calls(platformtest.EndpointSOAPLogout))
	})

	t.Run("token session logs out", func(t *testing.T) {
		f := setupTestFixture(t, defaultConfig())
		session, err := f.broker.Establish(context.Background(), f.tokenInput())
		require.NoError(t, err)

		require.NoError(t, f.broker.Revoke(context.Background(), session))
		require.Equal(t, []string{testToken}, f.server.LoggedOut())
		require.Zero(t, f.server.Calls(platformtest.EndpointRevoke))
	})

	t.Run("revocation rejected", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.RevokeStatus = http.StatusBadRequest
		f := setupTestFixture(t, cfg)
		session, err := f.broker.Establish(context.Background(), auth.CodeInput{Code: testCode})
		require.NoError(t, err)

		err = f.broker.Revoke(context.Background(), session)
		authErr := requireAuthError(t, err, auth.ErrRevocation)
		require.Equal(t, "unsupported_token_type", authErr.ProviderCode)
	})

	t.Run("logout fault", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.LogoutFault = true
		f := setupTestFixture(t, cfg)
		session, err := f.broker.Establish(context.Background(), f.tokenInput())
		require.NoError(t, err)

		err = f.broker.Revoke(context.Background(), session)
		authErr := requireAuthError(t, err, auth.ErrRevocation)
		require.Equal(t, "sf:INVALID_SESSION_ID", authErr.ProviderCode)
		require.True(t, authErr.Retryable)
	})
}

func TestBroker_RevokeStored(t *testing.T) {
	ctx := context.Background()

	t.Run("failure keeps the stored session", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.LogoutFault = true
		f := setupTestFixture(t, cfg)
		repo := repofakes.NewFakeSessionRepo()

		session, err := f.broker.Establish(ctx, f.tokenInput())
		require.NoError(t, err)
		require.NoError(t, repo.Upsert(ctx, "sid-1", session))

		err = f.broker.RevokeStored(ctx, repo, "sid-1")
		requireAuthError(t, err, auth.ErrRevocation)

		stored, err := repo.Get(ctx, "sid-1")
		require.NoError(t, err)
		require.Equal(t, session, stored)

		// A retry after the provider recovers completes the revocation.
		f.server.Update(func(c *platformtest.Config) { c.LogoutFault = false })
		require.NoError(t, f.broker.RevokeStored(ctx, repo, "sid-1"))
		_, err = repo.Get(ctx, "sid-1")
		require.ErrorIs(t, err, errors.ErrSessionNotFound)
	})

	t.Run("success deletes the stored session", func(t *testing.T) {
		f := setupTestFixture(t, defaultConfig())
		repo := repofakes.NewFakeSessionRepo()

		session, err := f.broker.Establish(ctx, auth.CodeInput{Code: testCode})
		require.NoError(t, err)
		require.NoError(t, repo.Upsert(ctx, "sid-2", session))

		require.NoError(t, f.broker.RevokeStored(ctx, repo, "sid-2"))
		_, err = repo.Get(ctx, "sid-2")
		require.ErrorIs(t, err, errors.ErrSessionNotFound)
	})

	t.Run("unknown session", func(t *testing.T) {
		f := setupTestFixture(t, defaultConfig())
		repo := repofakes.NewFakeSessionRepo()

		err := f.broker.RevokeStored(ctx, repo, "missing")
		require.ErrorIs(t, err, errors.ErrSessionNotFound)
		require.Zero(t, f.server.TotalCalls())
	})
}
