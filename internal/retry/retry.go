// Package retry wraps external calls with exponential backoff. Only
// rate-limit failures are retried; everything else propagates to the
// caller on the first attempt.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// RateLimitedError marks a provider failure as quota/rate-limit class.
// Adapters that talk to providers wrap their errors in this type so the
// rest of the system never matches on error message text.
type RateLimitedError struct {
	Err error
}

func (e *RateLimitedError) Error() string {
	if e.Err == nil {
		return "rate limited"
	}
	return "rate limited: " + e.Err.Error()
}

func (e *RateLimitedError) Unwrap() error {
	return e.Err
}

func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

type Options struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Factor       float64
	MaxJitter    time.Duration
	Logger       *zap.Logger
}

func DefaultOptions() Options {
	return Options{
		Attempts:     5,
		InitialDelay: 10 * time.Second,
		MaxDelay:     60 * time.Second,
		Factor:       2.5,
		MaxJitter:    2 * time.Second,
	}
}

func (o Options) normalized() Options {
	if o.Attempts < 1 {
		o.Attempts = 1
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = 10 * time.Second
	}
	if o.Factor < 1 {
		o.Factor = 2.5
	}
	if o.MaxDelay > 0 && o.MaxDelay < o.InitialDelay {
		o.MaxDelay = o.InitialDelay
	}
	return o
}

// Do executes fn up to opts.Attempts times. After a rate-limited failure
// it sleeps currentDelay + uniform jitter, then grows the delay by
// opts.Factor, capped at opts.MaxDelay. Non-rate-limit errors and budget
// exhaustion return immediately with the last error. The backoff sleep is
// cut short when ctx is cancelled.
func Do(ctx context.Context, op string, opts Options, fn func(ctx context.Context) error) error {
	opts = opts.normalized()
	delay := opts.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsRateLimited(lastErr) {
			return lastErr
		}
		if attempt == opts.Attempts {
			break
		}

		wait := delay
		if opts.MaxJitter > 0 {
			wait += time.Duration(rand.Int63n(int64(opts.MaxJitter)))
		}
		if opts.Logger != nil {
			opts.Logger.Warn("rate limited, backing off",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Int("budget", opts.Attempts),
				zap.Duration("wait", wait),
			)
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}

		delay = time.Duration(float64(delay) * opts.Factor)
		if opts.MaxDelay > 0 && delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
	}
	return lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
