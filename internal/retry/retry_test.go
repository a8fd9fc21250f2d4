package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:    attempts,
		BaseDelay:      time.Millisecond,
		RateLimitDelay: 2 * time.Millisecond,
		MaxDelay:       10 * time.Millisecond,
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := fastPolicy(4).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := fastPolicy(3).Do(context.Background(), func(context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", calls)
	}
}

func TestDoPermanentStopsImmediately(t *testing.T) {
	calls := 0
	bad := errors.New("bad request")
	err := fastPolicy(5).Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(bad)
	})
	if !errors.Is(err, bad) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("permanent error must not retry, got %d calls", calls)
	}
}

func TestDoContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := fastPolicy(3).Do(ctx, func(context.Context) error {
		calls++
		return errors.New("should not matter")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Errorf("expected no calls on dead context, got %d", calls)
	}
}

func TestDoCancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 3, BaseDelay: time.Minute}
	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, func(context.Context) error {
			return errors.New("transient")
		})
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestDoAttemptTimeoutRetries(t *testing.T) {
	// A per-attempt deadline error must retry while the outer context
	// is still alive.
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 2 {
			return context.DeadlineExceeded
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestDelayGrowsExponentially(t *testing.T) {
	p := Policy{BaseDelay: 10 * time.Millisecond, MaxDelay: time.Second}
	transient := errors.New("transient")
	if d := p.delay(0, transient); d != 10*time.Millisecond {
		t.Errorf("attempt 0: expected 10ms, got %v", d)
	}
	if d := p.delay(2, transient); d != 40*time.Millisecond {
		t.Errorf("attempt 2: expected 40ms, got %v", d)
	}
	if d := p.delay(10, transient); d != time.Second {
		t.Errorf("attempt 10: expected cap at 1s, got %v", d)
	}
}

func TestDelayRateLimitTrack(t *testing.T) {
	p := Policy{
		BaseDelay:      10 * time.Millisecond,
		RateLimitDelay: 80 * time.Millisecond,
		MaxDelay:       time.Second,
	}
	limited := &RateLimitError{Err: errors.New("429")}
	if d := p.delay(0, limited); d != 80*time.Millisecond {
		t.Errorf("rate-limited attempt 0: expected 80ms, got %v", d)
	}
	if transient := p.delay(0, errors.New("x")); transient >= p.delay(0, limited) {
		t.Error("rate-limited delay must start longer than transient delay")
	}
}

func TestDelayHonorsRetryAfter(t *testing.T) {
	p := Policy{
		BaseDelay:      10 * time.Millisecond,
		RateLimitDelay: 20 * time.Millisecond,
		MaxDelay:       time.Second,
	}
	limited := &RateLimitError{Err: errors.New("429"), RetryAfter: 300 * time.Millisecond}
	if d := p.delay(0, limited); d != 300*time.Millisecond {
		t.Errorf("expected retry-after to win, got %v", d)
	}
}

func TestOnRetryObservesAttempts(t *testing.T) {
	var seen []int
	p := fastPolicy(3)
	p.OnRetry = func(attempt int, err error) {
		seen = append(seen, attempt)
	}
	_ = p.Do(context.Background(), func(context.Context) error {
		return errors.New("always")
	})
	if len(seen) != 2 {
		t.Fatalf("expected 2 retries observed, got %v", seen)
	}
	if seen[0] != 1 || seen[1] != 2 {
		t.Errorf("unexpected attempt numbers: %v", seen)
	}
}
