package sessions_test

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/jrsteele09/crm-session-broker/internal/errors"
	"github.com/jrsteele09/crm-session-broker/sessions"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func completeSession() sessions.Session {
	return sessions.Session{
		AuthType:   sessions.AuthTypeOAuth2,
		OpenedAt:   time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		APIVersion: "48.0",
		Identity: sessions.Identity{
			ExternalID: "005xx000001Sv6dAAC",
			Name:       "Ada Lovelace",
			Username:   "ada@example.com",
		},
		Credentials: sessions.Credentials{
			AccessToken: "00Dxx0000001gEF!AQ4AQFpJ",
			InstanceURL: "https://org.example.com",
		},
	}
}

func TestSession_Validate(t *testing.T) {
	require.NoError(t, completeSession().Validate())

	tests := []struct {
		name   string
		mutate func(*sessions.Session)
		want   string
	}{
		{"unknown auth type", func(s *sessions.Session) { s.AuthType = "session" }, "invalid auth type"},
		{"no opened at", func(s *sessions.Session) { s.OpenedAt = time.Time{} }, "openedAt"},
		{"no api version", func(s *sessions.Session) { s.APIVersion = "" }, "apiVersion"},
		{"no external id", func(s *sessions.Session) { s.Identity.ExternalID = "" }, "externalId"},
		{"no name", func(s *sessions.Session) { s.Identity.Name = "" }, "identity.name"},
		{"no username", func(s *sessions.Session) { s.Identity.Username = "" }, "identity.username"},
		{"no token", func(s *sessions.Session) { s.Credentials.AccessToken = " " }, "accessToken"},
		{"relative instance url", func(s *sessions.Session) { s.Credentials.InstanceURL = "/services" }, "instanceUrl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := completeSession()
			tt.mutate(&s)
			err := s.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCheckWritable(t *testing.T) {
	require.NoError(t, sessions.CheckWritable("sid", completeSession()))
	require.ErrorIs(t, sessions.CheckWritable("", completeSession()), errors.ErrInvalidSessionID)

	partial := completeSession()
	partial.Identity = sessions.Identity{}
	require.ErrorIs(t, sessions.CheckWritable("sid", partial), errors.ErrIncompleteSession)
}

func TestCredentials_NeverPrintsFullToken(t *testing.T) {
	s := completeSession()

	require.NotContains(t, s.Credentials.String(), s.Credentials.AccessToken)
	require.NotContains(t, fmt.Sprintf("%v", s), s.Credentials.AccessToken)
	require.Equal(t, "00Dxx0...", s.Credentials.RedactedToken())
	require.Equal(t, "***", sessions.Credentials{AccessToken: "abc"}.RedactedToken())

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	logger.Info().Object("session", s).Msg("established")
	require.NotContains(t, buf.String(), s.Credentials.AccessToken)
	require.Contains(t, buf.String(), `"external_id":"005xx000001Sv6dAAC"`)
	require.Contains(t, buf.String(), `"instance_url":"https://org.example.com"`)
}
