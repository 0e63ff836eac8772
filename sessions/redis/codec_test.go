package redis

import (
	"testing"
	"time"

	"github.com/jrsteele09/crm-session-broker/sessions"
	"github.com/stretchr/testify/require"
)

func TestCodec_PreservesSession(t *testing.T) {
	s := sessions.Session{
		AuthType:    sessions.AuthTypeToken,
		OpenedAt:    time.Date(2024, 3, 1, 10, 0, 0, 123456789, time.UTC),
		APIVersion:  "48.0",
		Identity:    sessions.Identity{ExternalID: "005yy", Name: "Grace", Username: "grace@example.com"},
		Credentials: sessions.Credentials{AccessToken: "T1", InstanceURL: "https://org.example.com"},
	}

	data, err := encode(s)
	require.NoError(t, err)

	got, err := decode(data)
	require.NoError(t, err)
	require.True(t, s.OpenedAt.Equal(got.OpenedAt))
	got.OpenedAt = s.OpenedAt
	require.Equal(t, s, got)
}

func TestCodec_RejectsGarbage(t *testing.T) {
	_, err := decode([]byte{0xff, 0x00, 0x13})
	require.Error(t, err)
	require.Contains(t, err.Error(), "error decoding session")
}

func TestRepo_KeyPrefix(t *testing.T) {
	r := NewRepo(nil, "crm-session:", time.Hour)
	require.Equal(t, "crm-session:abc", r.key("abc"))
}
