package authn

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"tokensession/internal/session"
	"tokensession/internal/tokenstore"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestHostMatches(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{name: "same host", a: "https://api.example.com/orders", b: "https://api.example.com/oauth/token", want: true},
		{name: "case insensitive", a: "https://API.Example.com/orders", b: "https://api.example.com/token", want: true},
		{name: "ports ignored", a: "https://api.example.com:8443/orders", b: "https://api.example.com/token", want: true},
		{name: "relative request", a: "/orders", b: "https://api.example.com/token", want: true},
		{name: "other host", a: "https://cdn.example.com/logo.png", b: "https://api.example.com/token", want: false},
		{name: "subdomain is a different host", a: "https://eu.api.example.com/orders", b: "https://api.example.com/token", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HostMatches(mustParse(t, tt.a), mustParse(t, tt.b)))
		})
	}
	assert.True(t, HostMatches(nil, mustParse(t, "https://api.example.com")))
}

// newOfflineCoordinator returns a coordinator for api.example.com that holds
// token T1 and never needs the network.
func newOfflineCoordinator(t *testing.T) (*Coordinator, *tokenstore.MemoryStore, *testingclock.FakeClock) {
	t.Helper()
	clk := testingclock.NewFakeClock(startTime)
	store := tokenstore.NewMemoryStore()
	c, err := New("https://api.example.com/oauth/token",
		WithClock(clk),
		WithStore(store),
		WithLogger(discardLogger()),
	)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	require.NoError(t, c.SetBearerToken(context.Background(), tokenstore.Record{
		Username:          "alice",
		AccessToken:       "T1",
		AccessTokenExpiry: startTime.Add(time.Hour),
		RefreshToken:      "R1",
	}))
	require.True(t, c.LoggedIn())
	return c, store, clk
}

func TestAddBearerToken(t *testing.T) {
	t.Run("matching host gets the bearer token", func(t *testing.T) {
		c, _, _ := newOfflineCoordinator(t)
		req, err := http.NewRequest(http.MethodGet, "https://api.example.com/orders", nil)
		require.NoError(t, err)

		require.NoError(t, c.AddBearerToken(context.Background(), HTTPRequest(req)))
		assert.Equal(t, "Bearer T1", req.Header.Get("Authorization"))
	})

	t.Run("other hosts are untouched", func(t *testing.T) {
		c, _, _ := newOfflineCoordinator(t)
		req, err := http.NewRequest(http.MethodGet, "https://cdn.example.com/logo.png", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Basic abc")

		require.NoError(t, c.AddBearerToken(context.Background(), HTTPRequest(req)))
		assert.Equal(t, "Basic abc", req.Header.Get("Authorization"))
	})

	t.Run("stale header is removed without a token", func(t *testing.T) {
		c, err := New("https://api.example.com/oauth/token", WithLogger(discardLogger()))
		require.NoError(t, err)
		req, err := http.NewRequest(http.MethodGet, "https://api.example.com/orders", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer old")

		require.NoError(t, c.AddBearerToken(context.Background(), HTTPRequest(req)))
		assert.Empty(t, req.Header.Get("Authorization"))
	})
}

func TestAddBearerToken_OnDemandRefresh(t *testing.T) {
	t.Run("expired token is refreshed before the request", func(t *testing.T) {
		f := newFixture(t)
		expireWithoutTimers(t, f)

		req, err := http.NewRequest(http.MethodGet, f.server.APIURL("orders"), nil)
		require.NoError(t, err)
		require.NoError(t, f.c.AddBearerToken(context.Background(), HTTPRequest(req)))

		assert.Equal(t, 1, f.server.Count("refresh_token"))
		assert.Equal(t, "Bearer "+f.c.Token().AccessToken, req.Header.Get("Authorization"))
	})

	t.Run("failed refreshes are throttled and the request proceeds", func(t *testing.T) {
		f := newFixture(t)
		expireWithoutTimers(t, f)
		f.server.FailGrant("refresh_token", http.StatusServiceUnavailable)

		newReq := func() *http.Request {
			req, err := http.NewRequest(http.MethodGet, f.server.APIURL("orders"), nil)
			require.NoError(t, err)
			return req
		}

		req := newReq()
		err := f.c.AddBearerToken(context.Background(), HTTPRequest(req))
		require.Error(t, err)
		assert.Empty(t, req.Header.Get("Authorization"), "no usable token after a failed refresh")
		assert.Equal(t, 1, f.server.Count("refresh_token"))

		err = f.c.AddBearerToken(context.Background(), HTTPRequest(newReq()))
		assert.ErrorIs(t, err, ErrRefreshThrottled)
		assert.Equal(t, 1, f.server.Count("refresh_token"))

		f.clock.Step(DefaultOnDemandRefreshInterval)
		err = f.c.AddBearerToken(context.Background(), HTTPRequest(newReq()))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrRefreshThrottled)
		assert.Equal(t, 2, f.server.Count("refresh_token"))
	})

	t.Run("throttling can be disabled", func(t *testing.T) {
		f := newFixture(t, WithOnDemandRefreshInterval(0))
		expireWithoutTimers(t, f)
		f.server.FailGrant("refresh_token", http.StatusServiceUnavailable)

		for i := 0; i < 3; i++ {
			req, err := http.NewRequest(http.MethodGet, f.server.APIURL("orders"), nil)
			require.NoError(t, err)
			_ = f.c.AddBearerToken(context.Background(), HTTPRequest(req))
		}
		assert.Equal(t, 3, f.server.Count("refresh_token"))
	})
}

type fakeResponse struct {
	url    *url.URL
	status int
}

func (r fakeResponse) URL() *url.URL   { return r.url }
func (r fakeResponse) StatusCode() int { return r.status }

func TestValidateResponse(t *testing.T) {
	t.Run("401 from the API host ends the session", func(t *testing.T) {
		c, store, _ := newOfflineCoordinator(t)
		resp := fakeResponse{url: mustParse(t, "https://api.example.com/orders"), status: http.StatusUnauthorized}

		got := c.ValidateResponse(context.Background(), resp)
		assert.Equal(t, resp, got)
		assert.Equal(t, session.LoggedOut, c.State())
		assert.Nil(t, c.Token())

		_, ok := store.Raw(tokenstore.Key(c.Endpoint()))
		assert.False(t, ok, "persisted record is removed")
	})

	t.Run("401 from another host is ignored", func(t *testing.T) {
		c, store, _ := newOfflineCoordinator(t)
		c.ValidateResponse(context.Background(), fakeResponse{url: mustParse(t, "https://cdn.example.com/x"), status: http.StatusUnauthorized})

		assert.True(t, c.LoggedIn())
		_, ok := store.Raw(tokenstore.Key(c.Endpoint()))
		assert.True(t, ok)
	})

	t.Run("other statuses are ignored", func(t *testing.T) {
		c, _, _ := newOfflineCoordinator(t)
		for _, status := range []int{http.StatusOK, http.StatusForbidden, http.StatusInternalServerError} {
			c.ValidateResponse(context.Background(), fakeResponse{url: mustParse(t, "https://api.example.com/orders"), status: status})
		}
		assert.True(t, c.LoggedIn())
	})

	t.Run("no DELETE is sent on invalidation", func(t *testing.T) {
		f := newFixture(t)
		f.login(t)
		f.c.ValidateResponse(context.Background(), fakeResponse{url: mustParse(t, f.server.APIURL("x")), status: http.StatusUnauthorized})
		assert.Equal(t, 0, f.server.Count("revoke"))
		assert.Equal(t, session.LoggedOut, f.c.State())
	})
}

func TestTransport(t *testing.T) {
	t.Run("authenticated requests reach the API", func(t *testing.T) {
		f := newFixture(t)
		f.login(t)

		resp, err := f.c.HTTPClient().Get(f.server.APIURL("orders"))
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), `"username":"alice"`)
	})

	t.Run("server-side revocation logs the session out", func(t *testing.T) {
		f := newFixture(t)
		f.login(t)
		f.server.InvalidateAccessToken(f.c.Token().AccessToken)

		resp, err := f.c.HTTPClient().Get(f.server.APIURL("orders"))
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, session.LoggedOut, f.c.State())
		assert.Nil(t, f.persisted(t))
	})

	t.Run("caller's request is not modified", func(t *testing.T) {
		f := newFixture(t)
		f.login(t)

		req, err := http.NewRequest(http.MethodGet, f.server.APIURL("orders"), nil)
		require.NoError(t, err)
		resp, err := f.c.HTTPClient().Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Empty(t, req.Header.Get("Authorization"))
	})

	t.Run("transport errors are returned", func(t *testing.T) {
		f := newFixture(t)
		c := f.newCoordinator(t, WithBaseTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		})))

		_, err := c.HTTPClient().Get(f.server.APIURL("orders"))
		assert.Error(t, err)
	})
}

func TestTransport_UnauthorizedAfterCallerCancel(t *testing.T) {
	clk := testingclock.NewFakeClock(startTime)
	store := tokenstore.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := New("https://api.example.com/oauth/token",
		WithClock(clk),
		WithStore(store),
		WithLogger(discardLogger()),
		WithBaseTransport(roundTripFunc(func(req *http.Request) (*http.Response, error) {
			// The caller stops waiting while the server answers 401.
			cancel()
			return &http.Response{StatusCode: http.StatusUnauthorized, Body: http.NoBody, Request: req}, nil
		})),
	)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	require.NoError(t, c.SetBearerToken(context.Background(), tokenstore.Record{
		Username:          "alice",
		AccessToken:       "T1",
		AccessTokenExpiry: startTime.Add(time.Hour),
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.example.com/orders", nil)
	require.NoError(t, err)
	resp, err := c.Transport().RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, session.LoggedOut, c.State())
	_, ok := store.Raw(tokenstore.Key(c.Endpoint()))
	assert.False(t, ok, "persisted record is removed")
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }
