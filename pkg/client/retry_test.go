package client

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	tests := []struct {
		name    string
		factor  float64
		attempt int
		want    time.Duration
	}{
		{name: "first attempt waits factor^0", factor: 2, attempt: 1, want: 1 * time.Second},
		{name: "second attempt waits factor^1", factor: 2, attempt: 2, want: 2 * time.Second},
		{name: "third attempt waits factor^2", factor: 2, attempt: 3, want: 4 * time.Second},
		{name: "fractional factor", factor: 1.5, attempt: 3, want: 2250 * time.Millisecond},
		{name: "factor three", factor: 3, attempt: 4, want: 27 * time.Second},
		{name: "attempt below one clamps", factor: 2, attempt: 0, want: 1 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Backoff(tt.factor, tt.attempt); got != tt.want {
				t.Errorf("Backoff(%v, %d) = %v, want %v", tt.factor, tt.attempt, got, tt.want)
			}
		})
	}
}

func TestBackoff_Overflow(t *testing.T) {
	got := Backoff(10, 100)
	if got <= 0 {
		t.Errorf("Backoff overflowed to %v", got)
	}
}

func TestRateLimitWait(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	if got := RateLimitWait(now.Add(45*time.Second), now); got != 45*time.Second {
		t.Errorf("RateLimitWait(+45s) = %v, want 45s", got)
	}
	if got := RateLimitWait(now.Add(-time.Hour), now); got != time.Second {
		t.Errorf("RateLimitWait(past) = %v, want 1s", got)
	}
}

func TestSleep_Completes(t *testing.T) {
	start := time.Now()
	if err := Sleep(context.Background(), 50*time.Millisecond); err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Sleep() returned after %v, want >= 50ms", elapsed)
	}
}

func TestSleep_ZeroDuration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, 0); err != nil {
		t.Errorf("Sleep(0) error = %v, want nil", err)
	}
}

func TestSleep_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Sleep(ctx, 5*time.Second)
	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("Sleep() error = %v, want ErrContextCancelled", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Sleep() did not stop on cancellation (took %v)", elapsed)
	}
}
