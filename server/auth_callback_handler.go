package server

import (
	"net/http"

	"github.com/jrsteele09/crm-session-broker/auth"
	"github.com/rs/zerolog/log"
)

func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := r.FormValue("state")
		code := r.FormValue("code")

		// Check for authorization errors
		if errorParam := r.FormValue("error"); errorParam != "" {
			log.Warn().Str("error", errorParam).Str("error_description", r.FormValue("error_description")).Msg("Authorization denied")
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "authorization", Message: "Authorization was not granted."})
			return
		}

		if code == "" || state == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: string(auth.KindAuthInput), Message: "Missing code or state parameter."})
			return
		}

		authState, err := s.authState.Get(state)
		if err != nil {
			log.Warn().Err(err).Msg("Unknown or expired oauth2 state")
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "state", Message: "Invalid state parameter."})
			return
		}

		// States are single use
		if err := s.authState.Delete(state); err != nil {
			writeError(w, r, err)
			return
		}

		sessionID, _, err := s.establishAndStore(r.Context(), auth.CodeInput{Code: code})
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := s.SetSessionCookie(w, r, sessionID); err != nil {
			writeError(w, r, err)
			return
		}

		http.Redirect(w, r, safeReturnURL(authState.ReturnURL), http.StatusSeeOther)
	}
}
