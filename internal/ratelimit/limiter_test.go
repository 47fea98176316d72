package ratelimit

import (
	"testing"
	"time"
)

func newTestLimiter(start time.Time) (*Limiter, *time.Time) {
	clock := start
	l := New(10, time.Minute, 5*time.Minute)
	l.now = func() time.Time { return clock }
	return l, &clock
}

func TestLimiter_CeilingWithinWindow(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	l, clock := newTestLimiter(start)

	for i := 1; i <= 10; i++ {
		if res := l.Check("203.0.113.7"); !res.Allowed {
			t.Fatalf("request %d unexpectedly rejected", i)
		}
	}

	*clock = start.Add(20 * time.Second)
	res := l.Check("203.0.113.7")
	if res.Allowed {
		t.Fatal("expected 11th request to be rejected")
	}
	if res.RetryAfter != 40*time.Second {
		t.Fatalf("expected retry_after 40s, got %s", res.RetryAfter)
	}
	if res.RetryAfter > l.Window() {
		t.Fatalf("retry_after %s exceeds window", res.RetryAfter)
	}
	if res.RetryAfterSeconds() != 40 {
		t.Fatalf("expected 40 seconds, got %d", res.RetryAfterSeconds())
	}
}

func TestLimiter_ResetsAfterWindow(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	l, clock := newTestLimiter(start)
	for i := 0; i < 11; i++ {
		l.Check("a")
	}

	// The window is inclusive of its end; the reset happens strictly after it.
	*clock = start.Add(time.Minute)
	if l.Check("a").Allowed {
		t.Fatal("expected request at window boundary to still be limited")
	}

	*clock = start.Add(time.Minute + time.Millisecond)
	res := l.Check("a")
	if !res.Allowed {
		t.Fatal("expected request after window to be allowed")
	}
	if res.Remaining != 9 {
		t.Fatalf("expected 9 remaining, got %d", res.Remaining)
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(time.Now())
	for i := 0; i < 10; i++ {
		l.Check("a")
	}
	if l.Check("a").Allowed {
		t.Fatal("expected a to be limited")
	}
	if !l.Check("b").Allowed {
		t.Fatal("expected b to be allowed")
	}
}

func TestLimiter_SweepDropsStaleBuckets(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	l, clock := newTestLimiter(start)
	l.Check("stale")

	*clock = start.Add(4 * time.Minute)
	l.Check("fresh")
	if l.Len() != 2 {
		t.Fatalf("expected 2 buckets before sweep, got %d", l.Len())
	}

	*clock = start.Add(5 * time.Minute)
	l.Check("trigger")
	if l.Len() != 2 {
		t.Fatalf("expected stale bucket to be swept, got %d buckets", l.Len())
	}
}

func TestResult_RetryAfterSecondsRoundsUp(t *testing.T) {
	r := Result{RetryAfter: 1500 * time.Millisecond}
	if r.RetryAfterSeconds() != 2 {
		t.Fatalf("expected 2, got %d", r.RetryAfterSeconds())
	}
	if (Result{}).RetryAfterSeconds() != 1 {
		t.Fatal("expected minimum of 1 second for rejected result")
	}
	if (Result{Allowed: true}).RetryAfterSeconds() != 0 {
		t.Fatal("expected 0 for allowed result")
	}
}
