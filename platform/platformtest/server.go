// Package platformtest provides an in-process fake of the CRM platform endpoints
// the broker talks to, with per-endpoint call counters.
package platformtest

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// Endpoint names used with Calls.
const (
	EndpointToken       = "token"
	EndpointUserInfo    = "userinfo"
	EndpointCurrentUser = "current_user"
	EndpointRecord      = "record"
	EndpointVersions    = "versions"
	EndpointRevoke      = "revoke"
	EndpointSOAPLogout  = "soap_logout"
)

type User struct {
	ID       string
	Name     string
	Username string
}

// Config drives the fake responses. A zero status means 200.
type Config struct {
	ValidCode   string // Authorization code the token endpoint accepts
	AccessToken string // Token issued for ValidCode and expected as bearer
	IDToken     string // Optional id_token in the token response

	UserInfoUserID *string // nil omits user_id entirely
	UserInfoStatus int

	CurrentUserID     string
	CurrentUserStatus int

	Users        map[string]User
	RecordStatus int

	Versions       []string
	VersionsStatus int

	RevokeStatus int
	LogoutFault  bool

	Delay time.Duration // Applied to every response
}

type Server struct {
	*httptest.Server

	mu        sync.Mutex
	config    Config
	calls     map[string]int
	bearers   []string
	revoked   []string
	loggedOut []string
}

func NewServer(config Config) *Server {
	s := &Server{
		config: config,
		calls:  make(map[string]int),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /services/oauth2/token", s.token)
	mux.HandleFunc("POST /services/oauth2/revoke", s.revoke)
	mux.HandleFunc("GET /services/oauth2/userinfo", s.userInfo)
	mux.HandleFunc("GET /services/data/{$}", s.versions)
	mux.HandleFunc("GET /services/data/{version}/chatter/users/me", s.currentUser)
	mux.HandleFunc("GET /services/data/{version}/sobjects/User/{id}", s.record)
	mux.HandleFunc("POST /services/Soap/u/{version}", s.soapLogout)
	s.Server = httptest.NewServer(mux)
	return s
}

// Update changes the fake's behaviour between calls.
func (s *Server) Update(fn func(*Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.config)
}

func (s *Server) Calls(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[endpoint]
}

// TotalCalls counts every request the fake has served.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// Bearers lists the Authorization bearer tokens seen on API calls, in order.
func (s *Server) Bearers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.bearers...)
}

func (s *Server) Revoked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.revoked...)
}

func (s *Server) LoggedOut() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.loggedOut...)
}

// begin records the call and returns a snapshot of the config.
func (s *Server) begin(endpoint string, r *http.Request) Config {
	s.mu.Lock()
	s.calls[endpoint]++
	if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		s.bearers = append(s.bearers, bearer)
	}
	cfg := s.config
	s.mu.Unlock()

	if cfg.Delay > 0 {
		select {
		case <-time.After(cfg.Delay):
		case <-r.Context().Done():
		}
	}
	return cfg
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func restError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, []map[string]string{{"errorCode": code, "message": message}})
}

func statusOr(status int) int {
	if status == 0 {
		return http.StatusOK
	}
	return status
}

// TokenResponse is the token endpoint body: the standard OAuth2 fields plus the
// instance the token belongs to.
type TokenResponse struct {
	AccessToken string  `json:"access_token"`
	TokenType   string  `json:"token_type"`
	InstanceURL string  `json:"instance_url"`
	ID          string  `json:"id"` // Identity URL
	IDToken     *string `json:"id_token,omitempty"`
	Scope       string  `json:"scope,omitempty"`
}

// ErrorResponse is the OAuth2 error body of the token and revoke endpoints.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	cfg := s.begin(EndpointToken, r)
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_request"})
		return
	}
	if r.PostForm.Get("grant_type") != "authorization_code" || r.PostForm.Get("code") != cfg.ValidCode {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:            "invalid_grant",
			ErrorDescription: "expired authorization code",
		})
		return
	}
	resp := TokenResponse{
		AccessToken: cfg.AccessToken,
		TokenType:   "Bearer",
		InstanceURL: s.URL,
		ID:          s.URL + "/id/00Dxx0000001gEF/" + cfg.CurrentUserID,
		Scope:       "api refresh_token",
	}
	if cfg.IDToken != "" {
		resp.IDToken = &cfg.IDToken
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) revoke(w http.ResponseWriter, r *http.Request) {
	cfg := s.begin(EndpointRevoke, r)
	if cfg.RevokeStatus != 0 && cfg.RevokeStatus != http.StatusOK {
		writeJSON(w, cfg.RevokeStatus, ErrorResponse{
			Error:            "unsupported_token_type",
			ErrorDescription: "this token type is not supported",
		})
		return
	}
	_ = r.ParseForm()
	s.mu.Lock()
	s.revoked = append(s.revoked, r.PostForm.Get("token"))
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) userInfo(w http.ResponseWriter, r *http.Request) {
	cfg := s.begin(EndpointUserInfo, r)
	if status := statusOr(cfg.UserInfoStatus); status != http.StatusOK {
		writeJSON(w, status, ErrorResponse{Error: "invalid_token", ErrorDescription: "access token expired"})
		return
	}
	info := map[string]any{
		"organization_id":    "00Dxx0000001gEF",
		"preferred_username": "someone@example.com",
	}
	if cfg.UserInfoUserID != nil {
		info["user_id"] = *cfg.UserInfoUserID
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) {
	cfg := s.begin(EndpointCurrentUser, r)
	if status := statusOr(cfg.CurrentUserStatus); status != http.StatusOK {
		restError(w, status, "INVALID_SESSION_ID", "Session expired or invalid")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": cfg.CurrentUserID, "name": "Current User"})
}

func (s *Server) record(w http.ResponseWriter, r *http.Request) {
	cfg := s.begin(EndpointRecord, r)
	if status := statusOr(cfg.RecordStatus); status != http.StatusOK {
		restError(w, status, "INSUFFICIENT_ACCESS", "insufficient access rights on object id")
		return
	}
	user, ok := cfg.Users[r.PathValue("id")]
	if !ok {
		restError(w, http.StatusNotFound, "NOT_FOUND", "The requested resource does not exist")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"attributes": map[string]string{"type": "User"},
		"Id":         user.ID,
		"Name":       user.Name,
		"Username":   user.Username,
	})
}

func (s *Server) versions(w http.ResponseWriter, r *http.Request) {
	cfg := s.begin(EndpointVersions, r)
	if status := statusOr(cfg.VersionsStatus); status != http.StatusOK {
		restError(w, status, "SERVICE_UNAVAILABLE", "try again later")
		return
	}
	versions := make([]map[string]string, 0, len(cfg.Versions))
	for _, v := range cfg.Versions {
		versions = append(versions, map[string]string{
			"label":   "Release " + v,
			"url":     "/services/data/v" + v,
			"version": v,
		})
	}
	writeJSON(w, http.StatusOK, versions)
}

func (s *Server) soapLogout(w http.ResponseWriter, r *http.Request) {
	cfg := s.begin(EndpointSOAPLogout, r)
	var envelope struct {
		SessionID string `xml:"Header>SessionHeader>sessionId"`
	}
	if err := xml.NewDecoder(r.Body).Decode(&envelope); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	if cfg.LogoutFault {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/"><soapenv:Body><soapenv:Fault><faultcode>sf:INVALID_SESSION_ID</faultcode><faultstring>INVALID_SESSION_ID: Invalid Session ID found in SessionHeader</faultstring></soapenv:Fault></soapenv:Body></soapenv:Envelope>`)
		return
	}
	s.mu.Lock()
	s.loggedOut = append(s.loggedOut, envelope.SessionID)
	s.mu.Unlock()
	fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/"><soapenv:Body><logoutResponse/></soapenv:Body></soapenv:Envelope>`)
}
