package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/crm-session-broker/sessions"
	"golang.org/x/oauth2"
)

const (
	DefaultAPIVersion   = "48.0"
	DefaultRESTBasePath = "/services/data"

	userInfoPath = "/services/oauth2/userinfo"
	revokePath   = "/services/oauth2/revoke"
	soapPath     = "/services/Soap/u/"
)

// Client issues platform API calls as the user the credentials belong to.
// Building one performs no I/O; it is safe for concurrent use.
type Client struct {
	creds        sessions.Credentials
	apiVersion   string
	restBasePath string
	timeout      time.Duration
	baseClient   *http.Client
	httpClient   *http.Client
}

type Option func(*Client)

func WithAPIVersion(version string) Option {
	return func(c *Client) {
		if version != "" {
			c.apiVersion = strings.TrimPrefix(version, "v")
		}
	}
}

func WithRESTBasePath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.restBasePath = "/" + strings.Trim(path, "/")
		}
	}
}

// WithHTTPClient sets the transport the bearer token is layered on.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.baseClient = hc
	}
}

// WithTimeout bounds every call made by the client. Zero means no client side limit.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

func NewClient(creds sessions.Credentials, options ...Option) *Client {
	c := &Client{
		creds: sessions.Credentials{
			AccessToken: creds.AccessToken,
			InstanceURL: strings.TrimSuffix(creds.InstanceURL, "/"),
		},
		apiVersion:   DefaultAPIVersion,
		restBasePath: DefaultRESTBasePath,
	}
	for _, opt := range options {
		opt(c)
	}

	ctx := context.Background()
	if c.baseClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.baseClient)
	}
	c.httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: c.creds.AccessToken,
		TokenType:   "Bearer",
	}))
	return c
}

func (c *Client) Credentials() sessions.Credentials {
	return c.creds
}

func (c *Client) InstanceURL() string {
	return c.creds.InstanceURL
}

func (c *Client) APIVersion() string {
	return c.apiVersion
}

// RESTPath joins segments under the versioned REST root, e.g. /services/data/v48.0/sobjects.
func (c *Client) RESTPath(segments ...string) string {
	return c.restBasePath + "/v" + c.apiVersion + "/" + strings.Join(segments, "/")
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.creds.InstanceURL + path
}

// Request performs a JSON call. path is either absolute or relative to the instance URL.
// body and out may be nil. Non-2xx responses return *APIError.
func (c *Client) Request(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("[platform.Request] encode body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return fmt.Errorf("[platform.Request] build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	respBody, err := c.do(req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("[platform.Request] decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// do sends the request and returns the body of a 2xx response.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("[platform] %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("[platform] read %s: %w", req.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp.StatusCode, resp.Header.Get("Content-Type"), body)
	}
	return body, nil
}

const maxBodySize = 4 << 20
