package platform

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// UserRecord is the subset of the User sObject the broker needs.
type UserRecord struct {
	ID       string `json:"Id"`
	Name     string `json:"Name"`
	Username string `json:"Username"`
}

// Retrieve fetches one record through the generic sObject API. fields may be empty
// to let the platform return its default field set.
func (c *Client) Retrieve(ctx context.Context, sobject, id string, fields []string, out any) error {
	path := c.RESTPath("sobjects", url.PathEscape(sobject), url.PathEscape(id))
	if len(fields) > 0 {
		path += "?" + url.Values{"fields": {strings.Join(fields, ",")}}.Encode()
	}
	return c.Request(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) RetrieveUser(ctx context.Context, id string) (*UserRecord, error) {
	user := &UserRecord{}
	if err := c.Retrieve(ctx, "User", id, []string{"Id", "Name", "Username"}, user); err != nil {
		return nil, err
	}
	return user, nil
}
