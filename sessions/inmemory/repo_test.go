package inmemory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/crm-session-broker/internal/errors"
	"github.com/jrsteele09/crm-session-broker/sessions"
	"github.com/jrsteele09/crm-session-broker/sessions/inmemory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession(externalID string) sessions.Session {
	return sessions.Session{
		AuthType:    sessions.AuthTypeToken,
		OpenedAt:    time.Now(),
		APIVersion:  "48.0",
		Identity:    sessions.Identity{ExternalID: externalID, Name: "Grace Hopper", Username: "grace@example.com"},
		Credentials: sessions.Credentials{AccessToken: "T1", InstanceURL: "https://org.example.com"},
	}
}

func TestRepo_GetUpsertDelete(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.New(10, time.Hour)

	_, err := repo.Get(ctx, "missing")
	require.ErrorIs(t, err, errors.ErrSessionNotFound)

	require.NoError(t, repo.Upsert(ctx, "sid-1", testSession("005xx")))
	got, err := repo.Get(ctx, "sid-1")
	require.NoError(t, err)
	require.Equal(t, "005xx", got.Identity.ExternalID)

	require.NoError(t, repo.Delete(ctx, "sid-1"))
	_, err = repo.Get(ctx, "sid-1")
	require.ErrorIs(t, err, errors.ErrSessionNotFound)

	// Deleting twice is fine
	require.NoError(t, repo.Delete(ctx, "sid-1"))
}

func TestRepo_RejectsIncompleteSession(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.New(10, time.Hour)

	partial := testSession("005xx")
	partial.Credentials.AccessToken = ""

	err := repo.Upsert(ctx, "sid-1", partial)
	require.ErrorIs(t, err, errors.ErrIncompleteSession)
	require.Equal(t, 0, repo.Len())
}

func TestRepo_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.New(10, time.Hour)

	var wg sync.WaitGroup
	for _, id := range []string{"005aa", "005bb", "005cc"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			assert.NoError(t, repo.Upsert(ctx, "shared", testSession(id)))
		}(id)
	}
	wg.Wait()

	got, err := repo.Get(ctx, "shared")
	require.NoError(t, err)
	require.Contains(t, []string{"005aa", "005bb", "005cc"}, got.Identity.ExternalID)
	require.Equal(t, 1, repo.Len())
}

func TestRepo_Expiry(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.New(10, 20*time.Millisecond)

	require.NoError(t, repo.Upsert(ctx, "sid-1", testSession("005xx")))
	require.Eventually(t, func() bool {
		_, err := repo.Get(ctx, "sid-1")
		return errors.Is(err, errors.ErrSessionNotFound)
	}, time.Second, 10*time.Millisecond)
}

func TestRepo_EvictsOldest(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.New(2, time.Hour)

	require.NoError(t, repo.Upsert(ctx, "a", testSession("005aa")))
	require.NoError(t, repo.Upsert(ctx, "b", testSession("005bb")))
	require.NoError(t, repo.Upsert(ctx, "c", testSession("005cc")))

	_, err := repo.Get(ctx, "a")
	require.ErrorIs(t, err, errors.ErrSessionNotFound)
	require.Equal(t, 2, repo.Len())
}
