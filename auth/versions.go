package auth

import (
	"context"

	"github.com/jrsteele09/crm-session-broker/platform"
)

// VersionNegotiator picks the API version recorded on a new session.
type VersionNegotiator interface {
	Negotiate(ctx context.Context, client *platform.Client) (string, error)
}

// StaticVersion always answers with the configured version and makes no call.
type StaticVersion string

func (v StaticVersion) Negotiate(context.Context, *platform.Client) (string, error) {
	return string(v), nil
}

// LatestVersion asks the instance for its versions and takes the highest.
type LatestVersion struct{}

func (LatestVersion) Negotiate(ctx context.Context, client *platform.Client) (string, error) {
	versions, err := client.Versions(ctx)
	if err != nil {
		return "", err
	}
	return platform.LatestVersion(versions)
}
