package authn

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokensession/internal/session"
	"tokensession/internal/testing/mock"
	"tokensession/pkg/oauth"
)

const eventually = 2 * time.Second
const tick = 5 * time.Millisecond

// expireWithoutTimers logs in, disarms the timers and moves the clock past
// the access token expiry.
func expireWithoutTimers(t *testing.T, f *fixture) {
	t.Helper()
	f.login(t)
	f.c.Close()
	f.clock.SetTime(startTime.Add(2 * time.Hour))
}

func TestValidateToken(t *testing.T) {
	t.Run("no record is a no-op", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.c.ValidateToken(context.Background()))
		assert.True(t, f.c.IsNewSession())
		assert.Equal(t, 0, f.server.Count("refresh_token"))
	})

	t.Run("valid token needs no network", func(t *testing.T) {
		f := newFixture(t)
		f.login(t)

		require.NoError(t, f.c.ValidateToken(context.Background()))
		assert.Equal(t, 0, f.server.Count("refresh_token"))
		assert.True(t, f.c.LoggedIn())
	})

	t.Run("expired token is refreshed exactly once", func(t *testing.T) {
		f := newFixture(t)
		expireWithoutTimers(t, f)
		before := f.c.Token()

		require.NoError(t, f.c.ValidateToken(context.Background()))
		assert.Equal(t, 1, f.server.Count("refresh_token"))
		assert.True(t, f.c.LoggedIn())

		after := f.c.Token()
		assert.NotEqual(t, before.AccessToken, after.AccessToken)
		assert.Equal(t, before.RefreshToken, after.RefreshToken, "refresh token kept when not rotated")
		assert.Equal(t, after.AccessToken, f.persisted(t)["accessToken"])
	})

	t.Run("concurrent validations share one refresh", func(t *testing.T) {
		f := newFixture(t)
		expireWithoutTimers(t, f)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, f.c.ValidateToken(context.Background()))
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, f.server.Count("refresh_token"))
	})

	t.Run("expired token without refresh token expires the session", func(t *testing.T) {
		f := newFixture(t)
		f.login(t, WithRememberMe(false))
		f.c.mu.Lock()
		f.c.record.RefreshToken = ""
		f.c.mu.Unlock()
		f.c.Close()
		f.clock.SetTime(startTime.Add(2 * time.Hour))

		require.NoError(t, f.c.ValidateToken(context.Background()))
		assert.Equal(t, session.LoggedOut, f.c.State())
		assert.Empty(t, f.c.Username())
		assert.Equal(t, 0, f.server.Count("refresh_token"))
	})
}

func TestRefresh(t *testing.T) {
	t.Run("unexpired token is replaced", func(t *testing.T) {
		f := newFixture(t)
		f.login(t)
		first := f.c.Token().AccessToken

		require.NoError(t, f.c.Refresh(context.Background()))
		assert.Equal(t, 1, f.server.Count("refresh_token"))
		assert.NotEqual(t, first, f.c.Token().AccessToken)
		assert.True(t, f.c.LoggedIn())
		assert.Equal(t, f.c.Token().AccessToken, f.persisted(t)["accessToken"])
	})

	t.Run("without refresh token", func(t *testing.T) {
		f := newFixture(t)
		err := f.c.Refresh(context.Background())
		assert.ErrorIs(t, err, ErrNoRefreshToken)
		assert.Equal(t, 0, f.server.Count("refresh_token"))
	})
}

func TestRefreshFailure(t *testing.T) {
	t.Run("rejected refresh clears the session without retry", func(t *testing.T) {
		f := newFixture(t)
		expireWithoutTimers(t, f)
		f.server.FailGrant("refresh_token", http.StatusUnauthorized)

		err := f.c.ValidateToken(context.Background())
		require.Error(t, err)
		assert.True(t, oauth.IsAuthRejected(err))

		assert.Equal(t, session.LoggedOut, f.c.State())
		assert.Nil(t, f.persisted(t))
		assert.False(t, f.c.Token().HasRefreshToken())
		assert.False(t, f.c.Token().HasAccessToken())
		assert.False(t, f.clock.HasWaiters(), "no retry is scheduled")

		f.clock.Step(DefaultRetryDelay * 2)
		f.settle(t)
		assert.Equal(t, 1, f.server.Count("refresh_token"))
	})

	t.Run("bad request is terminal too", func(t *testing.T) {
		f := newFixture(t)
		expireWithoutTimers(t, f)
		f.server.FailGrant("refresh_token", http.StatusBadRequest)

		err := f.c.ValidateToken(context.Background())
		assert.True(t, oauth.IsAuthRejected(err))
		assert.Nil(t, f.persisted(t))
	})

	t.Run("transient failure keeps the record and retries once", func(t *testing.T) {
		f := newFixture(t)
		expireWithoutTimers(t, f)
		f.server.FailGrant("refresh_token", http.StatusServiceUnavailable)

		err := f.c.ValidateToken(context.Background())
		require.Error(t, err)
		assert.True(t, oauth.IsTransient(err))

		assert.Equal(t, session.LoggedOut, f.c.State())
		assert.NotNil(t, f.persisted(t), "persisted record is untouched")
		assert.True(t, f.c.Token().HasRefreshToken())
		assert.Equal(t, 1, f.server.Count("refresh_token"))

		f.server.ClearFailures()
		f.clock.Step(DefaultRetryDelay - time.Second)
		f.settle(t)
		assert.Equal(t, 1, f.server.Count("refresh_token"), "retry waits for the retry delay")

		f.clock.Step(time.Second)
		assert.Eventually(t, func() bool { return f.server.Count("refresh_token") == 2 }, eventually, tick)
		f.settle(t)
		assert.True(t, f.c.LoggedIn())
		assert.Equal(t, "alice", f.c.Username())
	})

	t.Run("each transient failure arms a single retry", func(t *testing.T) {
		f := newFixture(t, WithRetryDelay(time.Minute))
		expireWithoutTimers(t, f)
		f.server.FailGrant("refresh_token", http.StatusBadGateway)

		require.Error(t, f.c.ValidateToken(context.Background()))
		f.clock.Step(time.Minute)
		assert.Eventually(t, func() bool { return f.server.Count("refresh_token") == 2 }, eventually, tick)
		f.settle(t)

		f.clock.Step(time.Minute)
		assert.Eventually(t, func() bool { return f.server.Count("refresh_token") == 3 }, eventually, tick)
		f.settle(t)
		assert.Equal(t, session.LoggedOut, f.c.State())
	})
}

func TestScheduledRefresh(t *testing.T) {
	t.Run("refreshes ahead of expiry", func(t *testing.T) {
		f := newFixture(t)
		f.login(t)
		first := f.c.Token().AccessToken

		f.clock.Step(35*time.Minute - time.Second)
		f.settle(t)
		assert.Equal(t, 0, f.server.Count("refresh_token"))

		f.clock.Step(time.Second)
		assert.Eventually(t, func() bool { return f.server.Count("refresh_token") == 1 }, eventually, tick)
		f.settle(t)

		assert.True(t, f.c.LoggedIn())
		rec := f.c.Token()
		assert.NotEqual(t, first, rec.AccessToken)
		assert.True(t, rec.AccessTokenExpiry.Equal(startTime.Add(35*time.Minute+time.Hour)))

		// The schedule is re-armed for the new token.
		f.clock.Step(35 * time.Minute)
		assert.Eventually(t, func() bool { return f.server.Count("refresh_token") == 2 }, eventually, tick)
	})

	t.Run("short-lived tokens refresh at half their lifetime", func(t *testing.T) {
		f := newFixture(t)
		f.server.QueueResponse(mockShortToken())
		f.login(t)

		f.clock.Step(5*time.Minute - time.Second)
		f.settle(t)
		assert.Equal(t, 0, f.server.Count("refresh_token"))

		f.clock.Step(time.Second)
		assert.Eventually(t, func() bool { return f.server.Count("refresh_token") == 1 }, eventually, tick)
	})

	t.Run("hard expiry drops the access token", func(t *testing.T) {
		f := newFixture(t, WithRefreshLead(0))
		f.login(t)
		f.resetEmitted()

		f.clock.Step(time.Hour - DefaultHardExpiryMargin)
		assert.Eventually(t, func() bool { return f.c.State() == session.LoggedOut }, eventually, tick)
		f.settle(t)

		rec := f.c.Token()
		assert.False(t, rec.HasAccessToken())
		assert.True(t, rec.HasRefreshToken(), "refresh credential survives expiry")
		assert.Empty(t, f.c.Username())
		assert.Equal(t, []session.State{session.LoggedOut}, f.emitted())
		assert.NotNil(t, f.persisted(t))
	})

	t.Run("stale timer work is ignored after logout", func(t *testing.T) {
		f := newFixture(t)
		f.login(t)
		require.NoError(t, f.c.Logout(context.Background()))

		f.clock.Step(2 * time.Hour)
		f.settle(t)
		assert.Equal(t, 0, f.server.Count("refresh_token"))
		assert.Equal(t, session.LoggedOut, f.c.State())
	})

	t.Run("background failure is retried", func(t *testing.T) {
		f := newFixture(t)
		f.login(t)
		f.server.FailGrant("refresh_token", http.StatusServiceUnavailable)

		f.clock.Step(35 * time.Minute)
		assert.Eventually(t, func() bool { return f.server.Count("refresh_token") == 1 }, eventually, tick)
		f.settle(t)
		assert.Equal(t, session.LoggedOut, f.c.State())

		f.server.ClearFailures()
		f.clock.Step(DefaultRetryDelay)
		assert.Eventually(t, func() bool { return f.server.Count("refresh_token") == 2 }, eventually, tick)
		f.settle(t)
		assert.True(t, f.c.LoggedIn())
	})
}

func mockShortToken() mock.TokenResponse {
	return mock.TokenResponse{AccessToken: "S1", TokenType: "Bearer", ExpiresIn: 600, RefreshToken: "RS1"}
}
