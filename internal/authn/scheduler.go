package authn

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// ScheduledRefresh owns the timers of one session: proactive refresh, hard
// expiry and a single pending retry.
//
// Every Arm or Cancel bumps a generation counter. Timer work receives the
// generation it was armed with and must check Current before acting, so work
// that was already queued when the schedule changed becomes a no-op.
//
// Callbacks are started on their own goroutine and must not call back into
// the clock synchronously.
type ScheduledRefresh struct {
	clock clock.WithDelayedExecution

	mu           sync.Mutex
	generation   uint64
	refreshTimer clock.Timer
	expiryTimer  clock.Timer
	retryTimer   clock.Timer
}

// NewScheduledRefresh creates an idle schedule on clk.
func NewScheduledRefresh(clk clock.WithDelayedExecution) *ScheduledRefresh {
	return &ScheduledRefresh{clock: clk}
}

// RefreshDelay returns how long to wait before proactively refreshing a token
// that expires at expiry. When the lead time has already passed, the refresh
// happens at half of the remaining lifetime.
func RefreshDelay(now, expiry time.Time, lead time.Duration) time.Duration {
	delay := expiry.Add(-lead).Sub(now)
	if delay >= 0 {
		return delay
	}
	remaining := expiry.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return remaining / 2
}

// ExpiryDelay returns how long to wait before treating a token that expires
// at expiry as expired, margin early.
func ExpiryDelay(now, expiry time.Time, margin time.Duration) time.Duration {
	delay := expiry.Sub(now) - margin
	if delay < 0 {
		return 0
	}
	return delay
}

// Arm cancels all timers and arms the proactive-refresh and hard-expiry
// timers for a token expiring at expiry. It returns the new generation.
func (s *ScheduledRefresh) Arm(expiry time.Time, lead, margin time.Duration, onRefresh, onExpire func(generation uint64)) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.generation++
	gen := s.generation

	now := s.clock.Now()
	s.refreshTimer = s.clock.AfterFunc(RefreshDelay(now, expiry, lead), func() { go onRefresh(gen) })
	s.expiryTimer = s.clock.AfterFunc(ExpiryDelay(now, expiry, margin), func() { go onExpire(gen) })
	return gen
}

// Retry arms the retry timer, replacing a pending retry. The other timers are
// left untouched and the generation does not change.
func (s *ScheduledRefresh) Retry(delay time.Duration, fn func(generation uint64)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.retryTimer != nil {
		s.retryTimer.Stop()
	}
	gen := s.generation
	s.retryTimer = s.clock.AfterFunc(delay, func() { go fn(gen) })
}

// Cancel stops all timers and invalidates queued timer work. It is safe to
// call repeatedly.
func (s *ScheduledRefresh) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.generation++
}

// Current reports whether generation is still the active schedule.
func (s *ScheduledRefresh) Current(generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == generation
}

// Armed reports whether timers were armed since the last Cancel.
func (s *ScheduledRefresh) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshTimer != nil || s.expiryTimer != nil || s.retryTimer != nil
}

func (s *ScheduledRefresh) stopLocked() {
	for _, t := range []*clock.Timer{&s.refreshTimer, &s.expiryTimer, &s.retryTimer} {
		if *t != nil {
			(*t).Stop()
			*t = nil
		}
	}
}
