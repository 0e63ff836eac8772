package auth

import (
	"context"
	"fmt"

	"github.com/jrsteele09/crm-session-broker/platform"
)

// RecordSource is the part of the platform client the profile fetcher needs.
type RecordSource interface {
	RetrieveUser(ctx context.Context, id string) (*platform.UserRecord, error)
}

var _ RecordSource = (*platform.Client)(nil)

// Profile holds the user fields copied into a session.
type Profile struct {
	Name     string
	Username string
}

// ProfileFetcher reads display and login name from the user's record. It makes a
// single attempt; retries belong to the transport.
type ProfileFetcher struct{}

// Fetch reads the user record for externalID. Both name fields must be present.
func (ProfileFetcher) Fetch(ctx context.Context, src RecordSource, externalID string) (Profile, error) {
	record, err := src.RetrieveUser(ctx, externalID)
	if err != nil {
		return Profile{}, newError(KindLookup, "[ProfileFetcher.Fetch]", err)
	}
	if record.Name == "" || record.Username == "" {
		return Profile{}, newError(KindLookup, "[ProfileFetcher.Fetch]",
			fmt.Errorf("user record %s is missing Name or Username", externalID))
	}
	return Profile{Name: record.Name, Username: record.Username}, nil
}
