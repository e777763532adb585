package mock

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenEndpointPath is the path of the token endpoint on the mock server.
const TokenEndpointPath = "/oauth/token"

// APIPath is the prefix of the protected API served by the mock server.
const APIPath = "/api/"

// TokenServerConfig configures the mock token endpoint.
type TokenServerConfig struct {
	// Users maps usernames to passwords accepted by the password grant.
	Users map[string]string

	// TokenLifetime is reported as expires_in. Defaults to one hour.
	TokenLifetime time.Duration

	// ClientID and ClientSecret, when set, are required on refresh grants.
	ClientID     string
	ClientSecret string

	// RotateRefreshTokens issues a new refresh token on every refresh grant.
	// When false the refresh response omits refresh_token.
	RotateRefreshTokens bool

	// SigningKey signs the JWT access tokens (HS256).
	SigningKey []byte
}

// TokenResponse is the JSON body returned by the token endpoint.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// TokenServer is a mock OAuth 2.0 token endpoint with a protected API,
// intended for tests only. It supports the password and refresh grants, DELETE
// revocation, failure injection and request counting.
type TokenServer struct {
	server *httptest.Server
	config TokenServerConfig

	mu            sync.Mutex
	accessTokens  map[string]string // access token -> username
	refreshTokens map[string]string // refresh token -> username
	queued        []TokenResponse
	failures      map[string]int // grant_type or "revoke" -> forced status
	counts        map[string]int
	lastForms     map[string]url.Values
	apiRequests   int
}

// NewTokenServer starts a mock token server. Call Close when done.
func NewTokenServer(config TokenServerConfig) *TokenServer {
	if config.TokenLifetime == 0 {
		config.TokenLifetime = time.Hour
	}
	if len(config.SigningKey) == 0 {
		config.SigningKey = []byte("tokensession-test-signing-key")
	}

	s := &TokenServer{
		config:        config,
		accessTokens:  make(map[string]string),
		refreshTokens: make(map[string]string),
		failures:      make(map[string]int),
		counts:        make(map[string]int),
		lastForms:     make(map[string]url.Values),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(TokenEndpointPath, s.handleToken)
	mux.HandleFunc(APIPath, s.handleAPI)
	s.server = httptest.NewServer(mux)
	return s
}

// URL returns the token endpoint URL.
func (s *TokenServer) URL() string {
	return s.server.URL + TokenEndpointPath
}

// APIURL returns the URL of a protected API resource.
func (s *TokenServer) APIURL(resource string) string {
	return s.server.URL + APIPath + strings.TrimPrefix(resource, "/")
}

// Client returns an HTTP client configured for the server.
func (s *TokenServer) Client() *http.Client {
	return s.server.Client()
}

// Close shuts the server down.
func (s *TokenServer) Close() {
	s.server.Close()
}

// QueueResponse makes the next successful grant return resp verbatim.
func (s *TokenServer) QueueResponse(resp TokenResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued = append(s.queued, resp)
	if resp.AccessToken != "" {
		s.accessTokens[resp.AccessToken] = ""
	}
}

// FailGrant forces every request with the given grant_type ("password",
// "refresh_token") or "revoke" to fail with status until ClearFailures.
func (s *TokenServer) FailGrant(grant string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[grant] = status
}

// ClearFailures removes all forced failures.
func (s *TokenServer) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]int)
}

// Count returns how many requests were received for a grant type or "revoke".
func (s *TokenServer) Count(grant string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[grant]
}

// APIRequests returns how many requests reached the protected API.
func (s *TokenServer) APIRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apiRequests
}

// LastForm returns the form of the last request for a grant type.
func (s *TokenServer) LastForm(grant string) url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastForms[grant]
}

// InvalidateAccessToken revokes an access token server-side, so the protected
// API answers 401 for it.
func (s *TokenServer) InvalidateAccessToken(accessToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accessTokens, accessToken)
}

func (s *TokenServer) handleToken(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleGrant(w, r)
	case http.MethodDelete:
		s.handleRevoke(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *TokenServer) handleGrant(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	grant := r.PostForm.Get("grant_type")

	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts[grant]++
	s.lastForms[grant] = r.PostForm

	if status, ok := s.failures[grant]; ok {
		writeOAuthError(w, status, "forced_failure")
		return
	}

	var username string
	switch grant {
	case "password":
		username = r.PostForm.Get("username")
		password, known := s.config.Users[username]
		if !known || password != r.PostForm.Get("password") {
			writeOAuthError(w, http.StatusUnauthorized, "invalid_grant")
			return
		}
	case "refresh_token":
		if s.config.ClientID != "" && (r.PostForm.Get("client_id") != s.config.ClientID || r.PostForm.Get("client_secret") != s.config.ClientSecret) {
			writeOAuthError(w, http.StatusUnauthorized, "invalid_client")
			return
		}
		var known bool
		username, known = s.refreshTokens[r.PostForm.Get("refresh_token")]
		if !known {
			writeOAuthError(w, http.StatusBadRequest, "invalid_grant")
			return
		}
	default:
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type")
		return
	}

	if len(s.queued) > 0 {
		resp := s.queued[0]
		s.queued = s.queued[1:]
		if resp.RefreshToken != "" {
			s.refreshTokens[resp.RefreshToken] = username
		}
		s.accessTokens[resp.AccessToken] = username
		writeJSON(w, http.StatusOK, resp)
		return
	}

	resp := TokenResponse{
		AccessToken: s.signAccessToken(username),
		TokenType:   "Bearer",
		ExpiresIn:   int(s.config.TokenLifetime / time.Second),
	}
	s.accessTokens[resp.AccessToken] = username

	if grant == "password" || s.config.RotateRefreshTokens {
		if grant == "refresh_token" {
			delete(s.refreshTokens, r.PostForm.Get("refresh_token"))
		}
		resp.RefreshToken = uuid.NewString()
		s.refreshTokens[resp.RefreshToken] = username
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *TokenServer) handleRevoke(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts["revoke"]++
	if status, ok := s.failures["revoke"]; ok {
		writeOAuthError(w, status, "forced_failure")
		return
	}

	token, ok := bearerToken(r)
	if !ok {
		writeOAuthError(w, http.StatusUnauthorized, "invalid_token")
		return
	}
	if _, known := s.accessTokens[token]; !known {
		writeOAuthError(w, http.StatusUnauthorized, "invalid_token")
		return
	}
	delete(s.accessTokens, token)
	w.WriteHeader(http.StatusNoContent)
}

func (s *TokenServer) handleAPI(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.apiRequests++
	token, ok := bearerToken(r)
	if !ok {
		writeOAuthError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	username, known := s.accessTokens[token]
	if !known {
		writeOAuthError(w, http.StatusUnauthorized, "invalid_token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"resource": strings.TrimPrefix(r.URL.Path, APIPath),
		"username": username,
	})
}

func (s *TokenServer) signAccessToken(username string) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":                s.server.URL,
		"sub":                username,
		"preferred_username": username,
		"iat":                now.Unix(),
		"exp":                now.Add(s.config.TokenLifetime).Unix(),
		"jti":                uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.SigningKey)
	if err != nil {
		// HS256 with a non-empty key cannot fail
		panic(err)
	}
	return signed
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}

func writeOAuthError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
