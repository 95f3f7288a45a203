// Package resilience provides circuit breaker and rate limiter primitives.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vrtlab/revmine/pkg/fn"
)

// Circuit breaker states.
type State int

const (
	StateClosed   State = iota // normal operation
	StateOpen                  // tripping, reject calls
	StateHalfOpen              // allowing a probe call
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerOpts configures the circuit breaker.
type BreakerOpts struct {
	// FailThreshold is how many consecutive failures trip the breaker.
	FailThreshold int
	// Timeout is how long the breaker stays open before entering half-open.
	Timeout time.Duration
	// HalfOpenMax is the number of probe calls allowed in half-open state.
	HalfOpenMax int
	// OnStateChange, if set, is called outside the breaker lock after each
	// state transition.
	OnStateChange func(from, to State)
}

// DefaultBreakerOpts is tuned for review-site crawling: the sites throttle
// aggressively once they notice a scraper, so trip after three consecutive
// failures and stay away a full minute before probing again.
var DefaultBreakerOpts = BreakerOpts{
	FailThreshold: 3,
	Timeout:       time.Minute,
	HalfOpenMax:   1,
}

// Breaker implements a circuit breaker with closed/open/half-open states.
type Breaker struct {
	mu            sync.Mutex
	opts          BreakerOpts
	state         State
	failures      int
	openedAt      time.Time
	halfOpenCount int
	now           func() time.Time // for testing
}

// NewBreaker creates a circuit breaker with the given options.
func NewBreaker(opts BreakerOpts) *Breaker {
	if opts.FailThreshold <= 0 {
		opts.FailThreshold = DefaultBreakerOpts.FailThreshold
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultBreakerOpts.Timeout
	}
	if opts.HalfOpenMax <= 0 {
		opts.HalfOpenMax = DefaultBreakerOpts.HalfOpenMax
	}
	return &Breaker{opts: opts, now: time.Now}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	st, notify := b.currentState()
	b.mu.Unlock()
	notify()
	return st
}

// currentState returns state, transitioning open to half-open once the
// timeout has elapsed. Must hold mu; the returned func runs any state-change
// callback and must be called after unlocking.
func (b *Breaker) currentState() (State, func()) {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.opts.Timeout {
		b.state = StateHalfOpen
		b.halfOpenCount = 0
		return b.state, b.notify(StateOpen, StateHalfOpen)
	}
	return b.state, func() {}
}

func (b *Breaker) notify(from, to State) func() {
	if b.opts.OnStateChange == nil || from == to {
		return func() {}
	}
	cb := b.opts.OnStateChange
	return func() { cb(from, to) }
}

// admit decides whether a call may proceed.
func (b *Breaker) admit() error {
	b.mu.Lock()
	st, notify := b.currentState()
	var err error
	switch st {
	case StateOpen:
		err = ErrCircuitOpen
	case StateHalfOpen:
		if b.halfOpenCount >= b.opts.HalfOpenMax {
			err = ErrCircuitOpen
		} else {
			b.halfOpenCount++
		}
	}
	b.mu.Unlock()
	notify()
	return err
}

// record folds one call outcome into the breaker state.
func (b *Breaker) record(failed bool) {
	b.mu.Lock()
	from := b.state
	if failed {
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.opts.FailThreshold {
			b.state = StateOpen
			b.openedAt = b.now()
			b.failures = 0
			b.halfOpenCount = 0
		}
	} else {
		if b.state == StateHalfOpen {
			b.state = StateClosed
		}
		b.failures = 0
	}
	notify := b.notify(from, b.state)
	b.mu.Unlock()
	notify()
}

// Call executes f through the circuit breaker.
func (b *Breaker) Call(ctx context.Context, f func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := f(ctx)
	b.record(err != nil)
	return err
}

// CallResult is a generic version of Call that works with fn.Result.
func CallResult[T any](b *Breaker, ctx context.Context, f func(context.Context) fn.Result[T]) fn.Result[T] {
	if err := b.admit(); err != nil {
		return fn.Err[T](err)
	}
	result := f(ctx)
	b.record(result.IsErr())
	return result
}

// BreakerStage wraps an fn.Stage with circuit breaker protection.
func BreakerStage[In, Out any](b *Breaker, stage fn.Stage[In, Out]) fn.Stage[In, Out] {
	return func(ctx context.Context, in In) fn.Result[Out] {
		return CallResult(b, ctx, func(ctx context.Context) fn.Result[Out] {
			return stage(ctx, in)
		})
	}
}
