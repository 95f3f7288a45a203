package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBreakerTripsAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 2, Timeout: time.Minute})
	boom := errors.New("boom")
	fail := func(context.Context) error { return boom }

	ctx := context.Background()
	if err := b.Call(ctx, fail); !errors.Is(err, boom) {
		t.Fatalf("first failure err = %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("state after 1 failure = %v, want closed", b.State())
	}
	if err := b.Call(ctx, fail); !errors.Is(err, boom) {
		t.Fatalf("second failure err = %v", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("state after 2 failures = %v, want open", b.State())
	}
	if err := b.Call(ctx, fail); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("open breaker err = %v, want ErrCircuitOpen", err)
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 1, Timeout: 10 * time.Millisecond})
	ctx := context.Background()

	b.Call(ctx, func(context.Context) error { return errors.New("trip") })
	if b.State() != StateOpen {
		t.Fatal("breaker should be open")
	}

	clock := time.Now().Add(time.Second)
	b.now = func() time.Time { return clock }

	if err := b.Call(ctx, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("probe call err = %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("state after successful probe = %v, want closed", b.State())
	}
}

func TestBreakerReportsStateChanges(t *testing.T) {
	var transitions []string
	opts := BreakerOpts{FailThreshold: 1, Timeout: 10 * time.Millisecond}
	opts.OnStateChange = func(from, to State) {
		transitions = append(transitions, from.String()+">"+to.String())
	}
	b := NewBreaker(opts)
	ctx := context.Background()

	b.Call(ctx, func(context.Context) error { return errors.New("trip") })

	clock := time.Now().Add(time.Second)
	b.now = func() time.Time { return clock }
	b.Call(ctx, func(context.Context) error { return nil })

	want := []string{"closed>open", "open>half-open", "half-open>closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", transitions, want)
		}
	}
}

func TestLimiterAllow(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 1, Burst: 2})
	if !l.Allow() || !l.Allow() {
		t.Fatal("burst tokens should admit two calls")
	}
	if l.Allow() {
		t.Fatal("third immediate call should be limited")
	}
}

func TestLimiterWaitRefills(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 1000, Burst: 1})
	l.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("Wait err = %v", err)
	}
}

func TestLimiterWaitCancelled(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 0.001, Burst: 1})
	l.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Error("Wait on an empty bucket should fail before the deadline allows a token")
	}
}
