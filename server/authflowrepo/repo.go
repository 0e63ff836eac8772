package authflowrepo

import "time"

// AuthFlowState is what the gatekeeper remembers between the redirect to the
// authorization endpoint and the callback.
type AuthFlowState struct {
	ReturnURL string
	CreatedAt time.Time
}

type Repo interface {
	Upsert(state string, authState AuthFlowState) error
	Get(state string) (AuthFlowState, error)
	Delete(state string) error
}
