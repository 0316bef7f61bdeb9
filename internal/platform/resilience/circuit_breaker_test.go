package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_BasicTransitions(t *testing.T) {
	b := NewCircuitBreaker(2, 5*time.Second, 1)

	now := time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	if err := b.Allow(); err != nil {
		t.Fatalf("expected allow in closed state: %v", err)
	}

	b.RecordFailure()
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("expected closed after first failure, got %s", state)
	}

	b.RecordFailure()
	if state := b.State(); state != CircuitStateOpen {
		t.Fatalf("expected open after threshold failures, got %s", state)
	}

	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected circuit open error, got %v", err)
	}

	now = now.Add(6 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("expected half-open probe to pass, got %v", err)
	}
	if state := b.State(); state != CircuitStateHalfOpen {
		t.Fatalf("expected half-open state, got %s", state)
	}

	b.RecordSuccess()
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("expected closed after successful half-open probe, got %s", state)
	}
}

func TestCircuitBreaker_ExecuteClassifiesFailures(t *testing.T) {
	b := NewCircuitBreaker(1, time.Minute, 1)
	now := time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	var transitions []CircuitState
	b.OnStateChange(func(_, to CircuitState) { transitions = append(transitions, to) })

	ignored := errors.New("validation")
	tripping := errors.New("connection refused")
	countsAsFailure := func(err error) bool { return errors.Is(err, tripping) }

	if err := b.Execute(func() error { return ignored }, countsAsFailure); !errors.Is(err, ignored) {
		t.Fatalf("expected passthrough error, got %v", err)
	}
	if b.State() != CircuitStateClosed {
		t.Fatalf("non-failure errors must not trip the breaker")
	}

	if err := b.Execute(func() error { return tripping }, countsAsFailure); !errors.Is(err, tripping) {
		t.Fatalf("expected tripping error, got %v", err)
	}
	if b.State() != CircuitStateOpen {
		t.Fatalf("expected open breaker")
	}

	called := false
	err := b.Execute(func() error { called = true; return nil }, countsAsFailure)
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Fatalf("open breaker must reject without calling fn, err=%v called=%v", err, called)
	}

	if len(transitions) != 1 || transitions[0] != CircuitStateOpen {
		t.Fatalf("unexpected transitions: %v", transitions)
	}
}

func TestCircuitBreaker_NilAllowsEverything(t *testing.T) {
	var b *CircuitBreaker
	if err := b.Execute(func() error { return nil }, nil); err != nil {
		t.Fatalf("nil breaker must run fn: %v", err)
	}
	if b.State() != CircuitStateClosed {
		t.Fatalf("nil breaker reports closed")
	}
	if cfg := (CircuitBreakerConfig{Enabled: false}); cfg.Build() != nil {
		t.Fatalf("disabled config must build nil breaker")
	}
}
