package fn

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestResultBasics(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Fatal("Ok result misreports state")
	}
	v, err := r.Unwrap()
	if v != 42 || err != nil {
		t.Fatalf("Unwrap = (%d, %v)", v, err)
	}

	boom := errors.New("boom")
	e := Err[int](boom)
	if e.IsOk() {
		t.Fatal("Err result reports ok")
	}
	if got := e.UnwrapOr(7); got != 7 {
		t.Errorf("UnwrapOr = %d, want 7", got)
	}
}

func TestFromPair(t *testing.T) {
	if r := FromPair("x", nil); r.IsErr() {
		t.Error("FromPair with nil error should be ok")
	}
	if r := FromPair("", errors.New("no")); r.IsOk() {
		t.Error("FromPair with error should be err")
	}
}

func TestCollect(t *testing.T) {
	ok := Collect([]Result[int]{Ok(1), Ok(2)})
	vals, err := ok.Unwrap()
	if err != nil || len(vals) != 2 {
		t.Fatalf("Collect ok = (%v, %v)", vals, err)
	}

	bad := Collect([]Result[int]{Ok(1), Err[int](errors.New("mid")), Ok(3)})
	if bad.IsOk() {
		t.Fatal("Collect should surface the first error")
	}
}

func TestThenShortCircuits(t *testing.T) {
	calls := 0
	double := Stage[int, int](func(_ context.Context, n int) Result[int] {
		calls++
		return Ok(n * 2)
	})
	fail := Stage[int, int](func(_ context.Context, n int) Result[int] {
		return Errf[int]("reject %d", n)
	})

	r := Then(fail, double)(context.Background(), 3)
	if r.IsOk() || calls != 0 {
		t.Fatalf("second stage ran after failure (calls=%d)", calls)
	}

	r = Then(double, double)(context.Background(), 3)
	if v, _ := r.Unwrap(); v != 12 {
		t.Errorf("Then result = %d, want 12", v)
	}
}

func TestRetryEventualSuccess(t *testing.T) {
	attempts := 0
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond}, func(context.Context) Result[string] {
		attempts++
		if attempts < 3 {
			return Errf[string]("attempt %d", attempts)
		}
		return Ok("done")
	})
	v, err := r.Unwrap()
	if err != nil || v != "done" {
		t.Fatalf("Retry = (%q, %v)", v, err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryExhausted(t *testing.T) {
	attempts := 0
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond}, func(context.Context) Result[int] {
		attempts++
		return Err[int](errors.New("always"))
	})
	if r.IsOk() || attempts != 2 {
		t.Fatalf("Retry ok=%v attempts=%d", r.IsOk(), attempts)
	}
}
