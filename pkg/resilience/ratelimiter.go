package resilience

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/vrtlab/revmine/pkg/fn"
)

var ErrRateLimited = errors.New("rate limited")

// LimiterOpts configures the token bucket rate limiter.
type LimiterOpts struct {
	// Rate is the number of tokens added per second.
	Rate float64
	// Burst is the maximum number of tokens (bucket capacity).
	Burst int
}

// Limiter paces calls with a token bucket. It is a thin wrapper around
// golang.org/x/time/rate that adds the non-blocking Call form and the
// pipeline stage adapter.
type Limiter struct {
	bucket *rate.Limiter
}

// NewLimiter creates a token bucket rate limiter.
func NewLimiter(opts LimiterOpts) *Limiter {
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	return &Limiter{bucket: rate.NewLimiter(rate.Limit(opts.Rate), opts.Burst)}
}

// Allow reports whether a token is available now, consuming one if so.
func (l *Limiter) Allow() bool {
	return l.bucket.Allow()
}

// Wait blocks until a token is available or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.bucket.Wait(ctx)
}

// Call executes f if a token is available, otherwise returns ErrRateLimited.
func (l *Limiter) Call(ctx context.Context, f func(context.Context) error) error {
	if !l.Allow() {
		return ErrRateLimited
	}
	return f(ctx)
}

// CallWait waits for a token then executes f.
func (l *Limiter) CallWait(ctx context.Context, f func(context.Context) error) error {
	if err := l.Wait(ctx); err != nil {
		return err
	}
	return f(ctx)
}

// LimiterStageWait wraps an fn.Stage so each invocation waits for a token.
func LimiterStageWait[In, Out any](l *Limiter, stage fn.Stage[In, Out]) fn.Stage[In, Out] {
	return func(ctx context.Context, in In) fn.Result[Out] {
		if err := l.Wait(ctx); err != nil {
			return fn.Err[Out](err)
		}
		return stage(ctx, in)
	}
}
