package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/jrsteele09/crm-session-broker/internal/utils"
	"github.com/jrsteele09/crm-session-broker/platform"
	"github.com/pkg/errors"
)

// IdentitySource is the part of the platform client the resolver needs.
type IdentitySource interface {
	UserInfo(ctx context.Context) (*platform.UserInfo, error)
	CurrentUser(ctx context.Context) (*platform.CurrentUser, error)
}

var _ IdentitySource = (*platform.Client)(nil)

// Path records which lookup produced the identifier.
type Path string

const (
	PathPrimary  Path = "primary"  // Identity endpoint user_id
	PathFallback Path = "fallback" // Current-user lookup, for substitute-user sessions
)

// Resolution is the resolved platform user ID and the lookup that produced it.
type Resolution struct {
	ExternalID string
	Path       Path
}

// Resolver determines the stable platform user ID behind a set of credentials.
//
// The identity endpoint is always asked first. Only when it answers without a
// usable user_id is the current-user lookup tried, exactly once. An error from the
// identity endpoint is returned as is and never retried through the fallback.
type Resolver struct{}

// Resolve returns the user ID from the identity endpoint, or from the current-user lookup when the endpoint has none.
func (r Resolver) Resolve(ctx context.Context, src IdentitySource) (Resolution, error) {
	id, err := r.primary(ctx, src)
	if err == nil {
		return Resolution{ExternalID: id, Path: PathPrimary}, nil
	}
	if !errors.Is(err, ErrNoIdentifier) {
		return Resolution{}, err
	}

	id, err = r.fallback(ctx, src)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{ExternalID: id, Path: PathFallback}, nil
}

// primary returns ErrNoIdentifier when the endpoint answered without a user_id.
func (r Resolver) primary(ctx context.Context, src IdentitySource) (string, error) {
	info, err := src.UserInfo(ctx)
	if err != nil {
		return "", newIdentityError(ReasonEndpointError, "[Resolver.primary]", err)
	}
	if id := strings.TrimSpace(utils.Value(info.UserID)); id != "" {
		return id, nil
	}
	return "", newIdentityError(ReasonNoIdentifier, "[Resolver.primary]", fmt.Errorf("identity response has no user_id"))
}

func (r Resolver) fallback(ctx context.Context, src IdentitySource) (string, error) {
	user, err := src.CurrentUser(ctx)
	if err != nil {
		return "", newIdentityError(ReasonEndpointError, "[Resolver.fallback]", err)
	}
	if id := strings.TrimSpace(user.ID); id != "" {
		return id, nil
	}
	return "", newIdentityError(ReasonNoIdentifier, "[Resolver.fallback]", fmt.Errorf("current user response has no id"))
}
