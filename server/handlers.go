package server

import (
	"net/http"
	"time"

	"github.com/jrsteele09/crm-session-broker/internal/errors"
	"github.com/rs/zerolog/log"
)

// HomeHandler reports the instance the session is connected to.
func (s *Server) HomeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client, ok := ClientFromContext(r.Context())
		if !ok {
			writeError(w, r, errors.ErrSessionNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"salesforce_instance": client.InstanceURL()})
	}
}

type identityResponse struct {
	ExternalID string    `json:"externalId"`
	Name       string    `json:"name"`
	Username   string    `json:"username"`
	AuthType   string    `json:"authType"`
	APIVersion string    `json:"apiVersion"`
	OpenedAt   time.Time `json:"openedAt"`
}

func (s *Server) IdentityHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, session, ok := SessionFromContext(r.Context())
		if !ok {
			writeError(w, r, errors.ErrSessionNotFound)
			return
		}
		writeJSON(w, http.StatusOK, identityResponse{
			ExternalID: session.Identity.ExternalID,
			Name:       session.Identity.Name,
			Username:   session.Identity.Username,
			AuthType:   string(session.AuthType),
			APIVersion: session.APIVersion,
			OpenedAt:   session.OpenedAt,
		})
	}
}

// CurrentUserRecordHandler reads the session user's record with the rebuilt client.
func (s *Server) CurrentUserRecordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, session, ok := SessionFromContext(r.Context())
		client, hasClient := ClientFromContext(r.Context())
		if !ok || !hasClient {
			writeError(w, r, errors.ErrSessionNotFound)
			return
		}

		var record map[string]any
		if err := client.Retrieve(r.Context(), "User", session.Identity.ExternalID, nil, &record); err != nil {
			log.Err(err).Str("external_id", session.Identity.ExternalID).Msg("User record request failed")
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: "platform", Message: "The platform request failed."})
			return
		}
		writeJSON(w, http.StatusOK, record)
	}
}

// RevokeHandler logs the session out at the provider. The local session and the
// cookie are only removed once the provider has confirmed.
func (s *Server) RevokeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, _, ok := SessionFromContext(r.Context())
		if !ok {
			writeError(w, r, errors.ErrSessionNotFound)
			return
		}
		if err := s.broker.RevokeStored(r.Context(), s.sessions, sessionID); err != nil {
			writeError(w, r, err)
			return
		}
		s.ClearSessionCookie(w, r)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful."})
	}
}
