package sessions

import (
	"context"

	"github.com/jrsteele09/crm-session-broker/internal/errors"
)

// Repo is the session store contract. Implementations own expiry and must never
// persist a session that fails Validate.
type Repo interface {
	// Get returns errors.ErrSessionNotFound when no session exists for the ID
	Get(ctx context.Context, sessionID string) (Session, error)

	// Upsert stores the session, replacing any previous value (last write wins)
	Upsert(ctx context.Context, sessionID string, session Session) error

	// Delete removes the session. Deleting an absent session is not an error
	Delete(ctx context.Context, sessionID string) error
}

// CheckWritable is the shared precondition of every Repo.Upsert.
func CheckWritable(sessionID string, session Session) error {
	if sessionID == "" {
		return errors.ErrInvalidSessionID
	}
	if err := session.Validate(); err != nil {
		return errors.Wrapf(errors.ErrIncompleteSession, "%s", err.Error())
	}
	return nil
}
