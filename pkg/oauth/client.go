package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// DefaultHTTPTimeout is the default timeout for token endpoint requests.
const DefaultHTTPTimeout = 30 * time.Second

// Client performs the OAuth 2.0 protocol operations against a single token
// endpoint: resource-owner password grant, refresh grant and token revocation.
//
// The same endpoint URL serves all three operations. Password grants are sent
// without client credentials, refresh grants carry client_id and client_secret
// in the form body.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger

	clientID     string
	clientSecret string

	passwordConfig *oauth2.Config
	refreshConfig  *oauth2.Config
}

// ClientOption configures the OAuth client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClientCredentials sets the client_id and client_secret sent with
// refresh-grant requests.
func WithClientCredentials(clientID, clientSecret string) ClientOption {
	return func(c *Client) {
		c.clientID = clientID
		c.clientSecret = clientSecret
	}
}

// NewClient creates a new OAuth client for the given token endpoint.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:     NormalizeEndpoint(endpoint),
		httpClient:   &http.Client{Timeout: DefaultHTTPTimeout},
		logger:       slog.Default(),
		clientID:     DefaultRefreshClientID,
		clientSecret: DefaultRefreshClientSecret,
	}

	for _, opt := range opts {
		opt(c)
	}

	tokenEndpoint := oauth2.Endpoint{
		TokenURL:  c.endpoint,
		AuthStyle: oauth2.AuthStyleInParams,
	}
	c.passwordConfig = &oauth2.Config{Endpoint: tokenEndpoint}
	c.refreshConfig = &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Endpoint:     tokenEndpoint,
	}

	return c
}

// Endpoint returns the normalized token endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// PasswordGrant exchanges a username and password for tokens.
func (c *Client) PasswordGrant(ctx context.Context, username, password string) (*oauth2.Token, error) {
	token, err := c.passwordConfig.PasswordCredentialsToken(c.withHTTPClient(ctx), username, password)
	if err != nil {
		err = classify("password grant", err)
		c.logger.Debug("Password grant failed",
			"endpoint", c.endpoint,
			"username", username,
			"status", StatusCode(err),
		)
		return nil, err
	}
	return token, nil
}

// RefreshGrant obtains a new access token using a refresh token. When the
// server does not rotate the refresh token, the returned token carries the
// one that was presented.
func (c *Client) RefreshGrant(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, errors.New("refresh token is empty")
	}

	source := c.refreshConfig.TokenSource(c.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		err = classify("refresh grant", err)
		c.logger.Debug("Refresh grant failed",
			"endpoint", c.endpoint,
			"status", StatusCode(err),
		)
		return nil, err
	}
	return token, nil
}

// Revoke deletes the session on the token endpoint by sending a DELETE
// request authorized with the given access token.
func (c *Client) Revoke(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create revoke request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}).SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &GrantError{Op: "revoke", Err: err}
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &GrantError{
			Op:         "revoke",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}
	return nil
}
