package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBackend = errors.New("backend down")

func fail(ctx context.Context) error    { return errBackend }
func succeed(ctx context.Context) error { return nil }

func TestBreakerOpensAfterThreshold(t *testing.T) {
	var transitions []State
	b := New("llm", Settings{
		FailureThreshold: 3,
		Cooldown:         time.Minute,
		OnStateChange:    func(_ string, _, to State) { transitions = append(transitions, to) },
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := b.Execute(ctx, fail); !errors.Is(err, errBackend) {
			t.Fatalf("call %d: expected backend error, got %v", i, err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	called := false
	err := b.Execute(ctx, func(ctx context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Fatalf("expected rejected call, got err=%v called=%v", err, called)
	}
	if len(transitions) != 1 || transitions[0] != StateOpen {
		t.Fatalf("unexpected transitions %v", transitions)
	}
	if got := b.Stats().Rejected; got != 1 {
		t.Fatalf("expected 1 rejected call, got %d", got)
	}
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := New("llm", Settings{FailureThreshold: 1, Cooldown: 10 * time.Second})
	b.now = func() time.Time { return now }
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	now = now.Add(11 * time.Second)
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open after cooldown, got %s", b.State())
	}

	if err := b.Execute(ctx, succeed); err != nil {
		t.Fatalf("probe should pass, got %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("expected closed after successful probe, got %s", b.State())
	}
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := New("llm", Settings{FailureThreshold: 2, Cooldown: time.Second})
	b.now = func() time.Time { return now }
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	_ = b.Execute(ctx, fail)
	now = now.Add(2 * time.Second)

	_ = b.Execute(ctx, fail)
	if b.State() != StateOpen {
		t.Fatalf("expected open after failed probe, got %s", b.State())
	}
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	b := New("llm", Settings{FailureThreshold: 1})
	_ = b.Execute(context.Background(), func(ctx context.Context) error { return context.Canceled })
	if b.State() != StateClosed {
		t.Fatalf("cancellation should not open the breaker, got %s", b.State())
	}
}
