package authn

import (
	"context"
	"fmt"
	"time"

	"tokensession/internal/session"
	"tokensession/pkg/oauth"
)

// ValidateToken makes sure the session holds a usable access token. A token
// that has not expired is accepted without any network traffic. An expired
// token is refreshed when a refresh token is held, otherwise the session is
// marked expired. Without any record it does nothing.
func (c *Coordinator) ValidateToken(ctx context.Context) error {
	return c.jobs.Do(ctx, "validateToken", func(ctx context.Context) error {
		return c.validateLocked(ctx, false)
	})
}

// Refresh exchanges the refresh token for a new access token now, whether or
// not the current access token has expired.
func (c *Coordinator) Refresh(ctx context.Context) error {
	return c.jobs.Do(ctx, "refresh", func(ctx context.Context) error {
		if !c.snapshot().HasRefreshToken() {
			return ErrNoRefreshToken
		}
		return c.refreshLocked(ctx)
	})
}

// validateLocked must run inside a job. With throttled set, a needed refresh
// is subject to the on-demand rate limit.
func (c *Coordinator) validateLocked(ctx context.Context, throttled bool) error {
	rec := c.snapshot()
	if rec == nil {
		return nil
	}
	if !rec.Expired(c.clock.Now()) {
		return nil
	}
	if !rec.HasRefreshToken() {
		c.machine.Fire(session.TokenExpired)
		return nil
	}
	if throttled && !c.limiter.AllowN(c.clock.Now(), 1) {
		return ErrRefreshThrottled
	}
	return c.refreshLocked(ctx)
}

// refreshLocked exchanges the refresh token for a new access token. It must
// run inside a job.
func (c *Coordinator) refreshLocked(ctx context.Context) error {
	rec := c.snapshot()
	if !rec.HasRefreshToken() {
		c.logger.Debug("No refresh token available, skipping refresh", "endpoint", c.endpoint)
		return nil
	}

	token, err := c.client.RefreshGrant(ctx, rec.RefreshToken)
	if err != nil {
		return c.refreshFailed(ctx, err)
	}

	next := c.recordFromToken(rec.Username, rec.RememberMe, token, rec.RefreshToken)
	c.setRecord(next)
	c.persist(ctx, next)
	c.confirm(next)

	c.logger.Debug("Access token refreshed",
		"endpoint", c.endpoint,
		"username", next.Username,
		"expiry", next.AccessTokenExpiry.Format(time.RFC3339),
	)
	return nil
}

func (c *Coordinator) refreshFailed(ctx context.Context, err error) error {
	c.machine.Fire(session.TokenExpired)

	if oauth.IsAuthRejected(err) {
		c.scheduler.Cancel()
		c.removePersisted(ctx)
		c.mu.Lock()
		if c.record != nil {
			c.record.RefreshToken = ""
		}
		c.mu.Unlock()

		c.logger.Info("SECURITY_AUDIT: Refresh token rejected, session cleared",
			"event", "refresh_rejected",
			"endpoint", c.endpoint,
			"status", oauth.StatusCode(err),
		)
		return fmt.Errorf("token refresh rejected: %w", err)
	}

	c.scheduler.Retry(c.retryDelay, c.runRetry)
	c.logger.Warn("Token refresh failed, will retry",
		"endpoint", c.endpoint,
		"retry_in", c.retryDelay,
		"status", oauth.StatusCode(err),
		"error", err,
	)
	return fmt.Errorf("token refresh failed: %w", err)
}

func (c *Coordinator) armTimers(expiry time.Time) {
	c.scheduler.Arm(expiry, c.refreshLead, c.hardExpiryMargin, c.runScheduledRefresh, c.runHardExpiry)
}

func (c *Coordinator) runScheduledRefresh(generation uint64) {
	c.runTimerJob("scheduledRefresh", generation, c.refreshLocked)
}

func (c *Coordinator) runRetry(generation uint64) {
	c.runTimerJob("retryRefresh", generation, c.refreshLocked)
}

func (c *Coordinator) runHardExpiry(generation uint64) {
	c.runTimerJob("hardExpiry", generation, func(context.Context) error {
		c.machine.Fire(session.TokenExpired)
		return nil
	})
}

func (c *Coordinator) runTimerJob(name string, generation uint64, fn func(ctx context.Context) error) {
	err := c.jobs.Do(context.Background(), name, func(ctx context.Context) error {
		if !c.scheduler.Current(generation) {
			c.logger.Debug("Skipping stale timer job", "job", name)
			return nil
		}
		return fn(ctx)
	})
	if err != nil {
		c.logger.Warn("Background token job failed", "job", name, "error", err)
	}
}
