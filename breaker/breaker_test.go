package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/wyfcoding/bayes/config"
)

func TestDisabledBreakerPassesThrough(t *testing.T) {
	b := NewBreaker(Settings{Name: "off"}, nil)
	got, err := Execute(b, func() (int, error) { return 7, nil })
	if err != nil || got != 7 {
		t.Errorf("Execute() = %d, %v", got, err)
	}
	if b.State() != gobreaker.StateClosed {
		t.Errorf("State() = %v", b.State())
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	miss := errors.New("miss")
	b := NewBreaker(Settings{
		Name:         "redis",
		Config:       config.CircuitBreakerConfig{Enabled: true, Timeout: time.Minute},
		MinRequests:  3,
		FailureRatio: 0.5,
		IsSuccessful: func(err error) bool { return err == nil || errors.Is(err, miss) },
	}, nil)

	for range 5 {
		if _, err := Execute(b, func() (int, error) { return 0, miss }); !errors.Is(err, miss) {
			t.Fatalf("Execute() error = %v, want miss", err)
		}
	}
	if b.State() != gobreaker.StateClosed {
		t.Fatalf("breaker opened on successful misses")
	}

	down := errors.New("connection refused")
	for range 5 {
		_, _ = Execute(b, func() (int, error) { return 0, down })
	}
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("State() = %v, want open", b.State())
	}
	if _, err := Execute(b, func() (int, error) { return 1, nil }); !errors.Is(err, ErrServiceUnavailable) {
		t.Errorf("Execute() on open breaker error = %v, want ErrServiceUnavailable", err)
	}
}
