package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Serializer runs jobs one at a time in the order they were submitted.
//
// A job's outcome never affects later jobs: errors are returned to the
// submitter only, and panics are recovered and converted to errors.
type Serializer struct {
	sem    *semaphore.Weighted
	logger *slog.Logger
}

// PanicError is returned when a job panics.
type PanicError struct {
	Job   string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("job %s panicked: %v", e.Job, e.Value)
}

// New creates a serializer. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Serializer {
	if logger == nil {
		logger = slog.Default()
	}
	// Weighted semaphore waiters are served in FIFO order.
	return &Serializer{sem: semaphore.NewWeighted(1), logger: logger}
}

// Do waits for all previously submitted jobs to settle, then runs fn. If ctx
// ends while waiting, fn never runs and ctx.Err() is returned.
func (s *Serializer) Do(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	id := uuid.NewString()
	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.logger.Debug("Job abandoned before start", "job", name, "job_id", id, "error", err)
		return err
	}
	defer s.sem.Release(1)

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Job: name, Value: r}
			s.logger.Error("Job panicked", "job", name, "job_id", id, "panic", r)
		}
		s.logger.Debug("Job finished",
			"job", name,
			"job_id", id,
			"duration", time.Since(start),
			"failed", err != nil,
		)
	}()

	s.logger.Debug("Job started", "job", name, "job_id", id)
	return fn(ctx)
}

// Run is Do for jobs that produce a value.
func Run[T any](ctx context.Context, s *Serializer, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := s.Do(ctx, name, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	return result, err
}
