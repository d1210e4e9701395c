package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), "connect", RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
	}, func() error {
		attempts++
		if attempts < 3 {
			return errDependencyDown
		}
		return nil
	})
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), "connect", RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
	}, func() error {
		attempts++
		return errDependencyDown
	})
	if !errors.Is(err, errDependencyDown) {
		t.Errorf("err = %v, want the last underlying error wrapped", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryAbortsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(10*time.Millisecond, cancel)
	defer timer.Stop()

	attempts := 0
	err := Retry(ctx, "connect", RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 500 * time.Millisecond,
	}, func() error {
		attempts++
		return errDependencyDown
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want the cancel to land during the first backoff", attempts)
	}
}

func TestRetryDelayStaysWithinJitterBounds(t *testing.T) {
	cfg := RetryConfig{
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       time.Second,
		Multiplier:     2,
		JitterFraction: 0.1,
	}.normalized()

	for attempt := 1; attempt <= 3; attempt++ {
		base := float64(cfg.InitialDelay)
		for i := 1; i < attempt; i++ {
			base *= cfg.Multiplier
		}
		lo := time.Duration(base * 0.89)
		hi := time.Duration(base * 1.11)
		for i := 0; i < 50; i++ {
			d := cfg.delay(attempt)
			if d < lo || d > hi {
				t.Fatalf("attempt %d: delay %v outside [%v, %v]", attempt, d, lo, hi)
			}
		}
	}

	// Far past the growth curve the delay pins to MaxDelay.
	if d := cfg.delay(30); d != cfg.MaxDelay {
		t.Errorf("delay(30) = %v, want the %v cap", d, cfg.MaxDelay)
	}
}
