package mock

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postForm(t *testing.T, server *TokenServer, form url.Values) (*http.Response, TokenResponse) {
	t.Helper()
	resp, err := server.Client().Post(server.URL(), "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body TokenResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp, body
}

func TestTokenServer_PasswordGrant(t *testing.T) {
	server := NewTokenServer(TokenServerConfig{Users: map[string]string{"alice": "secret"}})
	defer server.Close()

	resp, body := postForm(t, server, url.Values{
		"grant_type": {"password"},
		"username":   {"alice"},
		"password":   {"secret"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body.AccessToken)
	assert.NotEmpty(t, body.RefreshToken)
	assert.Equal(t, 3600, body.ExpiresIn)
	assert.Equal(t, 1, server.Count("password"))

	resp, _ = postForm(t, server, url.Values{
		"grant_type": {"password"},
		"username":   {"alice"},
		"password":   {"nope"},
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 2, server.Count("password"))
}

func TestTokenServer_RefreshGrant(t *testing.T) {
	server := NewTokenServer(TokenServerConfig{
		Users:        map[string]string{"alice": "secret"},
		ClientID:     "client",
		ClientSecret: "shh",
	})
	defer server.Close()

	_, login := postForm(t, server, url.Values{
		"grant_type": {"password"},
		"username":   {"alice"},
		"password":   {"secret"},
	})

	resp, _ := postForm(t, server, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {login.RefreshToken},
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "client credentials are required")

	resp, refreshed := postForm(t, server, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {login.RefreshToken},
		"client_id":     {"client"},
		"client_secret": {"shh"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEqual(t, login.AccessToken, refreshed.AccessToken)
	assert.Empty(t, refreshed.RefreshToken, "refresh tokens are not rotated by default")
}

func TestTokenServer_FailuresAndQueue(t *testing.T) {
	server := NewTokenServer(TokenServerConfig{Users: map[string]string{"alice": "secret"}})
	defer server.Close()

	form := url.Values{"grant_type": {"password"}, "username": {"alice"}, "password": {"secret"}}

	server.FailGrant("password", http.StatusServiceUnavailable)
	resp, _ := postForm(t, server, form)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	server.ClearFailures()
	server.QueueResponse(TokenResponse{AccessToken: "T1", RefreshToken: "R1", ExpiresIn: 60})
	resp, body := postForm(t, server, form)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "T1", body.AccessToken)
	assert.Equal(t, "R1", body.RefreshToken)
}

func TestTokenServer_ProtectedAPIAndRevoke(t *testing.T) {
	server := NewTokenServer(TokenServerConfig{Users: map[string]string{"alice": "secret"}})
	defer server.Close()

	_, login := postForm(t, server, url.Values{"grant_type": {"password"}, "username": {"alice"}, "password": {"secret"}})

	call := func(method, target, token string) int {
		req, err := http.NewRequest(method, target, nil)
		require.NoError(t, err)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := server.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusUnauthorized, call(http.MethodGet, server.APIURL("me"), ""))
	assert.Equal(t, http.StatusOK, call(http.MethodGet, server.APIURL("me"), login.AccessToken))

	assert.Equal(t, http.StatusNoContent, call(http.MethodDelete, server.URL(), login.AccessToken))
	assert.Equal(t, 1, server.Count("revoke"))
	assert.Equal(t, http.StatusUnauthorized, call(http.MethodGet, server.APIURL("me"), login.AccessToken))
	assert.Equal(t, 3, server.APIRequests())
}
