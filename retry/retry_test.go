package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig(retries int) Config {
	return Config{
		MaxRetries:     retries,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	var attempts []int
	var retried int
	cfg := fastConfig(3)
	cfg.OnRetry = func(int, error) { retried++ }

	err := Retry(context.Background(), func(_ context.Context, attempt int) error {
		attempts = append(attempts, attempt)
		if attempt < 2 {
			return errors.New("flaky")
		}
		return nil
	}, cfg)
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if len(attempts) != 3 || attempts[2] != 2 {
		t.Errorf("attempts = %v, want [0 1 2]", attempts)
	}
	if retried != 2 {
		t.Errorf("OnRetry called %d times, want 2", retried)
	}
}

func TestRetryGivesUp(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Retry(context.Background(), func(context.Context, int) error {
		calls++
		return boom
	}, fastConfig(2))
	if !errors.Is(err, boom) {
		t.Errorf("Retry() error = %v, want wrapped boom", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryStopsOnPermanent(t *testing.T) {
	bad := errors.New("bad config")
	calls := 0
	err := Retry(context.Background(), func(context.Context, int) error {
		calls++
		return Permanent(bad)
	}, fastConfig(5))
	if calls != 1 || !errors.Is(err, bad) || !IsPermanent(err) {
		t.Errorf("calls = %d, err = %v", calls, err)
	}
}

func TestRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, func(context.Context, int) error { return nil }, fastConfig(1))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry() error = %v, want context.Canceled", err)
	}
}
