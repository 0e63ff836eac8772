package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/crm-session-broker/auth"
	"github.com/jrsteele09/crm-session-broker/internal/errors"
	"github.com/jrsteele09/crm-session-broker/server/authflowrepo"
	"github.com/jrsteele09/crm-session-broker/sessions"
	"github.com/rs/zerolog/log"
)

// Gatekeeper makes sure every request it guards runs with a session.
//
// A request with a valid session cookie gets a client rebuilt from the stored
// session. A request without one that carries "Source: session" establishes a
// session from the handed-over token in its headers. Anything else is sent to the
// authorization endpoint and comes back through the callback.
func (s *Server) Gatekeeper(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sessionID := s.sessionIDFromCookie(r); sessionID != "" {
			session, err := s.sessions.Get(r.Context(), sessionID)
			switch {
			case err == nil:
				ctx := withSession(r.Context(), sessionID, session, s.broker.ReconstructClient(session))
				next(w, r.WithContext(ctx))
				return
			case !errors.Is(err, errors.ErrSessionNotFound):
				writeError(w, r, err)
				return
			}
			// Expired or revoked elsewhere: treat as no session.
		}

		if strings.EqualFold(r.Header.Get(HeaderSource), SourceSession) {
			in := auth.TokenInput{
				Token:     r.Header.Get(HeaderSessionToken),
				ServerURL: r.Header.Get(HeaderServerURL),
			}
			sessionID, session, err := s.establishAndStore(r.Context(), in)
			if err != nil {
				writeError(w, r, err)
				return
			}
			if err := s.SetSessionCookie(w, r, sessionID); err != nil {
				writeError(w, r, err)
				return
			}
			ctx := withSession(r.Context(), sessionID, session, s.broker.ReconstructClient(session))
			next(w, r.WithContext(ctx))
			return
		}

		s.redirectToAuthorize(w, r)
	}
}

// establishAndStore persists only complete sessions, each under a fresh ID.
// Concurrent establishes for the same user simply produce independent sessions.
func (s *Server) establishAndStore(ctx context.Context, in auth.Input) (string, sessions.Session, error) {
	session, err := s.broker.Establish(ctx, in)
	if err != nil {
		return "", sessions.Session{}, err
	}
	sessionID := uuid.NewString()
	if err := s.sessions.Upsert(ctx, sessionID, session); err != nil {
		return "", sessions.Session{}, errors.Wrapf(err, "[Server.establishAndStore] store session")
	}
	return sessionID, session, nil
}

func (s *Server) redirectToAuthorize(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	err := s.authState.Upsert(state, authflowrepo.AuthFlowState{
		ReturnURL: safeReturnURL(r.URL.RequestURI()),
		CreatedAt: time.Now(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.Debug().Str("path", r.URL.Path).Msg("No session, redirecting to authorize")
	http.Redirect(w, r, s.broker.AuthCodeURL(state), http.StatusFound)
}
