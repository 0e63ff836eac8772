package server

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/crm-session-broker/platform"
	"github.com/jrsteele09/crm-session-broker/sessions"
	"golang.org/x/crypto/hkdf"
)

const (
	// sessionCookieName holds the signed session ID
	sessionCookieName = "crm_session"

	cookieKeyInfo  = "crm-session-broker session cookie"
	minSecretBytes = 16
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	ContextKeySessionID ContextKey = "session_id"
	ContextKeySession   ContextKey = "session"
	ContextKeyClient    ContextKey = "platform_client"
)

func withSession(ctx context.Context, sessionID string, session sessions.Session, client *platform.Client) context.Context {
	ctx = context.WithValue(ctx, ContextKeySessionID, sessionID)
	ctx = context.WithValue(ctx, ContextKeySession, session)
	return context.WithValue(ctx, ContextKeyClient, client)
}

// SessionFromContext returns the session the gatekeeper attached to the request.
func SessionFromContext(ctx context.Context) (string, sessions.Session, bool) {
	sessionID, _ := ctx.Value(ContextKeySessionID).(string)
	session, ok := ctx.Value(ContextKeySession).(sessions.Session)
	return sessionID, session, ok && sessionID != ""
}

// ClientFromContext returns the API client rebuilt for the request's session.
func ClientFromContext(ctx context.Context) (*platform.Client, bool) {
	client, ok := ctx.Value(ContextKeyClient).(*platform.Client)
	return client, ok && client != nil
}

// cookieSigner issues and checks the session cookie: an HS256 JWT whose jti is the
// session ID, signed with a key derived from the configured secret.
type cookieSigner struct {
	key     []byte
	maxAge  time.Duration
	secure  bool
	nowTime func() time.Time
}

func newCookieSigner(secret string, maxAge time.Duration, secure bool) (*cookieSigner, error) {
	if len(secret) < minSecretBytes {
		return nil, fmt.Errorf("session secret must be at least %d bytes", minSecretBytes)
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(cookieKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive cookie key: %w", err)
	}
	return &cookieSigner{key: key, maxAge: maxAge, secure: secure, nowTime: time.Now}, nil
}

func (c *cookieSigner) sign(sessionID string) (string, error) {
	now := c.nowTime()
	claims := jwt.RegisteredClaims{
		ID:        sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.maxAge)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
}

func (c *cookieSigner) verify(value string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(value, claims, func(*jwt.Token) (any, error) {
		return c.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.nowTime),
	)
	if err != nil {
		return "", err
	}
	if claims.ID == "" {
		return "", fmt.Errorf("session cookie has no session id")
	}
	return claims.ID, nil
}

func (s *Server) SetSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) error {
	value, err := s.cookies.sign(sessionID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cookies.secure || getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.cookies.maxAge.Seconds()),
	})
	return nil
}

func (s *Server) ClearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cookies.secure || getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// sessionIDFromCookie returns the verified session ID, or "" when there is none.
func (s *Server) sessionIDFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	sessionID, err := s.cookies.verify(cookie.Value)
	if err != nil {
		return ""
	}
	return sessionID
}

// safeReturnURL only accepts local paths so the callback cannot redirect off-site.
func safeReturnURL(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return RouteHome
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host != "" || u.Scheme != "" {
		return RouteHome
	}
	return raw
}
