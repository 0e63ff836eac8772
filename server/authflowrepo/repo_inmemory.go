package authflowrepo

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jrsteele09/crm-session-broker/internal/errors"
)

const (
	DefaultStateTTL  = 10 * time.Minute
	defaultStateSize = 4096
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is a bounded, thread-safe state store. States expire after the TTL
// and the oldest are evicted once the size is reached.
type InMemoryRepo struct {
	states *expirable.LRU[string, AuthFlowState]
}

// NewInMemoryRepo creates a new in-memory auth flow state repository
func NewInMemoryRepo(size int, ttl time.Duration) *InMemoryRepo {
	if size <= 0 {
		size = defaultStateSize
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &InMemoryRepo{
		states: expirable.NewLRU[string, AuthFlowState](size, nil, ttl),
	}
}

// Upsert stores or updates an auth flow state
func (r *InMemoryRepo) Upsert(state string, authState AuthFlowState) error {
	if state == "" {
		return errors.ErrStateNotFound
	}
	r.states.Add(state, authState)
	return nil
}

// Get retrieves an auth flow state by state parameter
func (r *InMemoryRepo) Get(state string) (AuthFlowState, error) {
	if state == "" {
		return AuthFlowState{}, errors.ErrStateNotFound
	}
	authState, ok := r.states.Get(state)
	if !ok {
		return AuthFlowState{}, errors.ErrStateNotFound
	}
	return authState, nil
}

// Delete removes an auth flow state
func (r *InMemoryRepo) Delete(state string) error {
	r.states.Remove(state)
	return nil
}
