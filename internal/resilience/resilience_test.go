package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	var transitions []CircuitState
	cb := NewCircuitBreaker("insights", CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
		OnStateChange: func(_ string, _, to CircuitState) {
			transitions = append(transitions, to)
		},
	})
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return now }
	ctx := context.Background()

	fail := func(context.Context) error { return errBoom }
	ok := func(context.Context) error { return nil }

	for i := 0; i < 2; i++ {
		if err := cb.Execute(ctx, fail); !errors.Is(err, errBoom) {
			t.Fatalf("expected boom, got %v", err)
		}
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open after threshold, got %s", cb.State())
	}

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Fatalf("expected rejection without calling fn, got %v (called=%v)", err, called)
	}

	now = now.Add(2 * time.Minute)
	if err := cb.Execute(ctx, ok); err != nil {
		t.Fatalf("expected half-open probe to pass, got %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Fatalf("expected closed after successful probe, got %s", cb.State())
	}

	want := []CircuitState{CircuitOpen, CircuitHalfOpen, CircuitClosed}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, transitions[i], want[i])
		}
	}

	stats := cb.Stats()
	if stats.TotalRejected != 1 || stats.TotalFailures != 2 || stats.TotalSuccesses != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestCircuitBreakerIgnoresCancellation(t *testing.T) {
	cb := NewCircuitBreaker("chat", CircuitBreakerConfig{FailureThreshold: 1, Timeout: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ExecuteWithResult(cb, ctx, func(ctx context.Context) (string, error) {
		return "", ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("cancellation must not open the circuit, got %s", cb.State())
	}

	v, err := ExecuteWithResult(cb, context.Background(), func(context.Context) (int, error) { return 42, nil })
	if err != nil || v != 42 {
		t.Errorf("unexpected result %d %v", v, err)
	}
}

func TestHealthChecker(t *testing.T) {
	h := NewHealthChecker()
	h.Register("database", DatabaseHealthCheck(func(context.Context) error { return nil }))

	cb := NewCircuitBreaker("insights", CircuitBreakerConfig{FailureThreshold: 1, Timeout: time.Minute})
	h.Register("insights", CircuitHealthCheck(cb))

	if got := h.Check(context.Background()); got.Status != HealthStatusHealthy || len(got.Components) != 2 {
		t.Fatalf("unexpected health %+v", got)
	}

	cb.Execute(context.Background(), func(context.Context) error { return errBoom })
	if got := h.Check(context.Background()); got.Status != HealthStatusDegraded {
		t.Errorf("expected degraded with open circuit, got %s", got.Status)
	}

	h.Register("database", DatabaseHealthCheck(func(context.Context) error { return errBoom }))
	got := h.Check(context.Background())
	if got.Status != HealthStatusUnhealthy {
		t.Errorf("expected unhealthy with failing database, got %s", got.Status)
	}
	if got.Components[0].Name != "database" {
		t.Errorf("components should be sorted by name, got %s first", got.Components[0].Name)
	}
}
