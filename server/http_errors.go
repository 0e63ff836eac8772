package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/crm-session-broker/auth"
	"github.com/jrsteele09/crm-session-broker/internal/errors"
	"github.com/rs/zerolog/log"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("Failed to write response")
	}
}

// authErrorStatus maps an AuthError onto the response status.
func authErrorStatus(authErr *auth.AuthError) int {
	if authErr.Retryable {
		return http.StatusServiceUnavailable
	}
	switch authErr.Kind {
	case auth.KindAuthInput:
		return http.StatusBadRequest
	case auth.KindExchange, auth.KindIdentity:
		return http.StatusUnauthorized
	case auth.KindLookup, auth.KindRevocation:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err in full and sends the client only a classified message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if authErr, ok := auth.AsAuthError(err); ok {
		status := authErrorStatus(authErr)
		log.Warn().Err(err).Str("path", r.URL.Path).Str("kind", string(authErr.Kind)).Int("status", status).Msg("Authentication failed")
		writeJSON(w, status, errorResponse{Error: string(authErr.Kind), Message: authErr.SafeMessage()})
		return
	}

	if errors.Is(err, errors.ErrSessionNotFound) {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "session", Message: "No active session."})
		return
	}

	log.Err(err).Str("path", r.URL.Path).Msg("Request failed")
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal", Message: "Internal server error."})
}
