package authn

import (
	"context"
	"fmt"

	"tokensession/internal/session"
	"tokensession/internal/tokenstore"
)

type loginOptions struct {
	rememberMe bool
}

// LoginOption configures Login.
type LoginOption func(*loginOptions)

// WithRememberMe controls whether the refresh token is persisted. Sessions
// are remembered unless this is set to false.
func WithRememberMe(remember bool) LoginOption {
	return func(o *loginOptions) {
		o.rememberMe = remember
	}
}

// Login authenticates with a username and password. On success the session
// is LoggedIn, timers are armed and the record is persisted. On failure the
// session is invalidated and the classified error is returned.
func (c *Coordinator) Login(ctx context.Context, username, password string, opts ...LoginOption) error {
	options := loginOptions{rememberMe: true}
	for _, opt := range opts {
		opt(&options)
	}

	return c.jobs.Do(ctx, "login", func(ctx context.Context) error {
		c.machine.Fire(session.UseCredentials)

		token, err := c.client.PasswordGrant(ctx, username, password)
		if err != nil {
			c.machine.Fire(session.TokenInvalidated)
			c.logger.Info("SECURITY_AUDIT: Login failed",
				"event", "login_failed",
				"endpoint", c.endpoint,
				"username", username,
				"error", err.Error(),
			)
			return fmt.Errorf("login failed: %w", err)
		}

		rec := c.recordFromToken(username, options.rememberMe, token, "")
		c.setRecord(rec)
		c.machine.Fire(session.TokenValid)
		c.armTimers(rec.AccessTokenExpiry)
		c.persist(ctx, rec)

		c.logger.Info("SECURITY_AUDIT: Login succeeded",
			"event", "login",
			"endpoint", c.endpoint,
			"username", username,
			"remember_me", options.rememberMe,
		)
		return nil
	})
}

// Logout revokes the access token on the server and clears the session. The
// local session and the persisted record are cleared even when revocation
// fails; in that case an error wrapping ErrRevokeFailed is returned.
func (c *Coordinator) Logout(ctx context.Context) error {
	return c.jobs.Do(ctx, "logout", func(ctx context.Context) error {
		c.scheduler.Cancel()

		rec := c.snapshot()
		var revokeErr error
		if rec.HasAccessToken() {
			revokeErr = c.client.Revoke(ctx, rec.AccessToken)
		}

		c.machine.Fire(session.TokenInvalidated)
		c.removePersisted(ctx)

		c.logger.Info("SECURITY_AUDIT: Logged out",
			"event", "logout",
			"endpoint", c.endpoint,
			"revoked", rec.HasAccessToken() && revokeErr == nil,
		)

		if revokeErr != nil {
			return fmt.Errorf("%w: %w", ErrRevokeFailed, revokeErr)
		}
		return nil
	})
}

// UseLocalToken resumes the persisted session, if any. An unexpired token is
// adopted directly; an expired one is refreshed when a refresh token was
// remembered. Without a persisted access token the state does not change.
func (c *Coordinator) UseLocalToken(ctx context.Context) error {
	return c.jobs.Do(ctx, "useLocalToken", func(ctx context.Context) error {
		rec := c.loadPersisted(ctx)
		if !rec.HasAccessToken() {
			c.logger.Debug("No persisted token to resume", "endpoint", c.endpoint)
			return nil
		}
		return c.adoptLocked(ctx, rec)
	})
}

// SetBearerToken adopts a token obtained elsewhere. It is persisted like a
// login result; an unexpired token makes the session LoggedIn. The record's
// RememberMe field is ignored: like Login, the refresh token is remembered
// unless WithRememberMe(false) is given.
func (c *Coordinator) SetBearerToken(ctx context.Context, rec tokenstore.Record, opts ...LoginOption) error {
	options := loginOptions{rememberMe: true}
	for _, opt := range opts {
		opt(&options)
	}
	rec.RememberMe = options.rememberMe

	return c.jobs.Do(ctx, "setBearerToken", func(ctx context.Context) error {
		c.persist(ctx, &rec)
		return c.adoptLocked(ctx, &rec)
	})
}

func (c *Coordinator) adoptLocked(ctx context.Context, rec *tokenstore.Record) error {
	c.machine.Fire(session.UseToken)
	c.setRecord(rec)

	if !rec.Expired(c.clock.Now()) {
		c.confirm(rec)
		return nil
	}
	if rec.HasRefreshToken() {
		return c.refreshLocked(ctx)
	}
	c.machine.Fire(session.TokenExpired)
	return nil
}
