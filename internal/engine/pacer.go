package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/IshaanNene/dealstalk/internal/config"
	"github.com/IshaanNene/dealstalk/internal/observability"
	"github.com/IshaanNene/dealstalk/internal/types"
)

const maxBackoff = 2 * time.Minute

// Pacer spaces out navigations and backs off when the site rate-limits.
type Pacer struct {
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	metrics    *observability.Metrics
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a Pacer. A rate of 0 disables spacing.
func NewPacer(cfg config.PacingConfig, metrics *observability.Metrics, logger *slog.Logger) *Pacer {
	p := &Pacer{
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		metrics:    metrics,
		logger:     logger.With("component", "pacer"),
		sleep:      sleepContext,
	}
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}
	return p
}

// Once runs op after waiting for a navigation slot. It never retries.
func (p *Pacer) Once(ctx context.Context, op func(context.Context) error) error {
	if err := p.wait(ctx); err != nil {
		return err
	}
	return op(ctx)
}

// Do runs op after waiting for a navigation slot, retrying while op fails
// with a retryable rate-limit FetchError, up to max_retries times.
func (p *Pacer) Do(ctx context.Context, what string, op func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		if err := p.wait(ctx); err != nil {
			return err
		}
		err := op(ctx)
		if err == nil {
			return nil
		}

		var fe *types.FetchError
		if !errors.As(err, &fe) || !fe.IsRetryable() || !errors.Is(err, types.ErrRateLimited) {
			return err
		}
		if attempt >= p.maxRetries {
			return err
		}

		delay := fe.RetryAfter
		if delay <= 0 {
			delay = p.backoffFor(attempt)
		}
		p.metrics.RateLimitBackoffs.Add(1)
		p.logger.Warn("rate limited, backing off",
			"what", what,
			"url", fe.URL,
			"status", fe.StatusCode,
			"attempt", attempt+1,
			"delay", delay,
		)
		if err := p.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func (p *Pacer) wait(ctx context.Context) error {
	if p.limiter == nil {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}

// backoffFor doubles the base delay per attempt, capped at two minutes.
func (p *Pacer) backoffFor(attempt int) time.Duration {
	d := p.backoff
	if d <= 0 {
		d = time.Second
	}
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
