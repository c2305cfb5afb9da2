// Package sweeper periodically expires overdue invitations. The invitation
// service owns no timers; this runner is the external schedule.
package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"healthtrack/pkg/requestcontext"
)

// ActorID identifies sweeps in audit records.
const ActorID = "invitation-sweeper"

// Expirer is the invitation operation the runner schedules.
type Expirer interface {
	SweepExpired(ctx context.Context) (int, error)
}

// Runner calls SweepExpired on a fixed interval.
type Runner struct {
	expirer  Expirer
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Runner)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithClock sets the time each sweep runs as.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

func New(expirer Expirer, interval time.Duration, opts ...Option) (*Runner, error) {
	if expirer == nil {
		return nil, errors.New("expirer is required")
	}
	if interval <= 0 {
		return nil, errors.New("sweep interval must be positive")
	}
	r := &Runner{
		expirer:  expirer,
		interval: interval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run sweeps once immediately and then every interval until ctx is
// cancelled. A failed sweep is logged and retried on the next tick.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	_, _ = r.RunOnce(ctx)
	for {
		select {
		case <-ticker.C:
			_, _ = r.RunOnce(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs a single sweep with one consistent "now" and its own
// request ID.
func (r *Runner) RunOnce(ctx context.Context) (int, error) {
	ctx = requestcontext.WithTime(ctx, r.now())
	ctx = requestcontext.WithRequestID(ctx, uuid.NewString())
	ctx = requestcontext.WithActorID(ctx, ActorID)

	n, err := r.expirer.SweepExpired(ctx)
	if err != nil {
		if r.logger != nil && ctx.Err() == nil {
			r.logger.ErrorContext(ctx, "invitation sweep failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err)
		}
		return 0, err
	}
	if n > 0 && r.logger != nil {
		r.logger.InfoContext(ctx, "invitation sweep completed",
			"request_id", requestcontext.RequestID(ctx),
			"expired", n)
	}
	return n, nil
}
