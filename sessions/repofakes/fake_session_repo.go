package repofakes

import (
	"context"
	"sync"

	"github.com/jrsteele09/crm-session-broker/internal/errors"
	"github.com/jrsteele09/crm-session-broker/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

// FakeSessionRepo is a map backed sessions.Repo with injectable failures.
type FakeSessionRepo struct {
	sessions map[string]sessions.Session
	lock     sync.RWMutex

	GetErr    error
	UpsertErr error
	DeleteErr error
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{
		sessions: make(map[string]sessions.Session),
	}
}

func (sr *FakeSessionRepo) Get(_ context.Context, sessionID string) (sessions.Session, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	if sr.GetErr != nil {
		return sessions.Session{}, sr.GetErr
	}
	session, ok := sr.sessions[sessionID]
	if !ok {
		return sessions.Session{}, errors.ErrSessionNotFound
	}
	return session, nil
}

func (sr *FakeSessionRepo) Upsert(_ context.Context, sessionID string, session sessions.Session) error {
	if err := sessions.CheckWritable(sessionID, session); err != nil {
		return err
	}

	sr.lock.Lock()
	defer sr.lock.Unlock()

	if sr.UpsertErr != nil {
		return sr.UpsertErr
	}
	sr.sessions[sessionID] = session
	return nil
}

func (sr *FakeSessionRepo) Delete(_ context.Context, sessionID string) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	if sr.DeleteErr != nil {
		return sr.DeleteErr
	}
	delete(sr.sessions, sessionID)
	return nil
}

// Len is the number of stored sessions.
func (sr *FakeSessionRepo) Len() int {
	sr.lock.RLock()
	defer sr.lock.RUnlock()
	return len(sr.sessions)
}
