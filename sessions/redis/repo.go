package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis"
	internalerrors "github.com/jrsteele09/crm-session-broker/internal/errors"
	"github.com/jrsteele09/crm-session-broker/sessions"
	"github.com/pkg/errors"
)

var _ sessions.Repo = (*Repo)(nil)

// Repo stores each session under prefix+sessionID with the store TTL as key expiry.
type Repo struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRepo(client *redis.Client, prefix string, ttl time.Duration) *Repo {
	return &Repo{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (r *Repo) key(sessionID string) string {
	return r.prefix + sessionID
}

func (r *Repo) Get(ctx context.Context, sessionID string) (sessions.Session, error) {
	data, err := r.client.WithContext(ctx).Get(r.key(sessionID)).Bytes()
	if err == redis.Nil {
		return sessions.Session{}, internalerrors.ErrSessionNotFound
	}
	if err != nil {
		return sessions.Session{}, errors.Wrapf(err, "error getting session %q", sessionID)
	}
	session, err := decode(data)
	if err != nil {
		return sessions.Session{}, errors.Wrapf(err, "session %q", sessionID)
	}
	return session, nil
}

func (r *Repo) Upsert(ctx context.Context, sessionID string, session sessions.Session) error {
	if err := sessions.CheckWritable(sessionID, session); err != nil {
		return errors.Wrapf(err, "error storing session %q", sessionID)
	}
	data, err := encode(session)
	if err != nil {
		return err
	}
	// SET replaces atomically, so concurrent establishes resolve as last write wins.
	if err := r.client.WithContext(ctx).Set(r.key(sessionID), data, r.ttl).Err(); err != nil {
		return errors.Wrapf(err, "error setting session %q", sessionID)
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.WithContext(ctx).Del(r.key(sessionID)).Err(); err != nil {
		return errors.Wrapf(err, "error deleting session %q", sessionID)
	}
	return nil
}
