package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	p := Policy{Attempts: 5, Base: time.Millisecond, Max: 10 * time.Millisecond, IsRetryable: func(error) bool { return true }}

	err := p.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	attempts := 0
	sentinel := errors.New("permanent")
	p := Policy{Attempts: 7, Base: time.Millisecond, Max: 10 * time.Millisecond, IsRetryable: func(err error) bool { return !errors.Is(err, sentinel) }}

	err := p.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on non-retryable error)", attempts)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	attempts := 0
	p := Policy{Attempts: 3, Base: time.Millisecond, Max: 10 * time.Millisecond, IsRetryable: func(error) bool { return true }}

	err := p.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("always fails")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDoRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := Policy{Attempts: 5, Base: time.Millisecond, Max: 10 * time.Millisecond, IsRetryable: func(error) bool { return true }}
	err := p.Do(ctx, func(ctx context.Context) error {
		return errors.New("transient")
	})
	if err == nil {
		t.Fatal("expected error when context is already cancelled")
	}
}

func TestDefaultPolicyBackoffSchedule(t *testing.T) {
	p := DefaultPolicy(nil)
	if p.Attempts != 7 {
		t.Errorf("Attempts = %d, want 7", p.Attempts)
	}
	if p.Base != time.Second {
		t.Errorf("Base = %v, want 1s", p.Base)
	}
	if p.Max != 300*time.Second {
		t.Errorf("Max = %v, want 300s", p.Max)
	}
	if got := p.backoff(0); got != time.Second {
		t.Errorf("backoff(0) = %v, want 1s", got)
	}
	if got := p.backoff(9); got != p.Max {
		t.Errorf("backoff(9) = %v, want capped at %v", got, p.Max)
	}
}
