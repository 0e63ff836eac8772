package platform

import (
	"context"
	"net/http"
)

// UserInfo is the identity endpoint response. Fields are optional: substitute-user
// sessions are known to come back without user_id.
type UserInfo struct {
	UserID            *string `json:"user_id,omitempty"`
	OrganizationID    *string `json:"organization_id,omitempty"`
	PreferredUsername *string `json:"preferred_username,omitempty"`
	Name              *string `json:"name,omitempty"`
	Sub               *string `json:"sub,omitempty"` // Identity URL
}

// CurrentUser is the "current user" resource of the social/feeds API family.
type CurrentUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// UserInfo calls the identity endpoint for the token's user.
func (c *Client) UserInfo(ctx context.Context) (*UserInfo, error) {
	info := &UserInfo{}
	if err := c.Request(ctx, http.MethodGet, userInfoPath, nil, info); err != nil {
		return nil, err
	}
	return info, nil
}

// CurrentUser looks the token's user up through the feeds API instead of the identity service.
func (c *Client) CurrentUser(ctx context.Context) (*CurrentUser, error) {
	user := &CurrentUser{}
	if err := c.Request(ctx, http.MethodGet, c.RESTPath("chatter", "users", "me"), nil, user); err != nil {
		return nil, err
	}
	return user, nil
}
