package inmemory

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jrsteele09/crm-session-broker/internal/errors"
	"github.com/jrsteele09/crm-session-broker/sessions"
)

var _ sessions.Repo = (*Repo)(nil)

// Repo is a size and TTL bounded session store. Sessions expire ttl after their
// last write; the least recently used session is evicted when the store is full.
type Repo struct {
	cache *expirable.LRU[string, sessions.Session]
}

// New creates an in-memory store. A zero ttl disables expiry.
func New(size int, ttl time.Duration) *Repo {
	return &Repo{
		cache: expirable.NewLRU[string, sessions.Session](size, nil, ttl),
	}
}

func (r *Repo) Get(_ context.Context, sessionID string) (sessions.Session, error) {
	session, ok := r.cache.Get(sessionID)
	if !ok {
		return sessions.Session{}, errors.ErrSessionNotFound
	}
	return session, nil
}

func (r *Repo) Upsert(_ context.Context, sessionID string, session sessions.Session) error {
	if err := sessions.CheckWritable(sessionID, session); err != nil {
		return errors.Wrapf(err, "[inmemory.Upsert] %s", sessionID)
	}
	r.cache.Add(sessionID, session)
	return nil
}

func (r *Repo) Delete(_ context.Context, sessionID string) error {
	r.cache.Remove(sessionID)
	return nil
}

// Len is the number of live sessions.
func (r *Repo) Len() int {
	return r.cache.Len()
}
