package resilience

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "HEALTHY"
	HealthStatusDegraded  HealthStatus = "DEGRADED"
	HealthStatusUnhealthy HealthStatus = "UNHEALTHY"
)

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Name      string        `json:"name"`
	Status    HealthStatus  `json:"status"`
	Message   string        `json:"message,omitempty"`
	LastCheck time.Time     `json:"last_check"`
	Latency   time.Duration `json:"latency_ns"`
}

// HealthCheck represents a health check function.
type HealthCheck func(ctx context.Context) ComponentHealth

// SystemHealth represents overall system health.
type SystemHealth struct {
	Status     HealthStatus      `json:"status"`
	Uptime     string            `json:"uptime"`
	StartTime  time.Time         `json:"start_time"`
	Components []ComponentHealth `json:"components"`
	Goroutines int               `json:"goroutines"`
}

// HealthChecker runs registered component checks on demand.
type HealthChecker struct {
	mu        sync.RWMutex
	checks    map[string]HealthCheck
	startTime time.Time
}

// NewHealthChecker creates an empty checker.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks:    make(map[string]HealthCheck),
		startTime: time.Now(),
	}
}

// Register adds or replaces the check for name.
func (h *HealthChecker) Register(name string, check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Check runs every component check. The overall status is the worst
// component status; a degraded component leaves the system degraded.
func (h *HealthChecker) Check(ctx context.Context) SystemHealth {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	checks := make(map[string]HealthCheck, len(h.checks))
	for name, c := range h.checks {
		checks[name] = c
	}
	h.mu.RUnlock()
	sort.Strings(names)

	result := SystemHealth{
		Status:     HealthStatusHealthy,
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		StartTime:  h.startTime,
		Components: make([]ComponentHealth, 0, len(names)),
		Goroutines: runtime.NumGoroutine(),
	}
	for _, name := range names {
		c := checks[name](ctx)
		c.Name = name
		result.Components = append(result.Components, c)
		switch {
		case c.Status == HealthStatusUnhealthy:
			result.Status = HealthStatusUnhealthy
		case c.Status == HealthStatusDegraded && result.Status == HealthStatusHealthy:
			result.Status = HealthStatusDegraded
		}
	}
	return result
}

// DatabaseHealthCheck creates a health check for database connections.
func DatabaseHealthCheck(ping func(ctx context.Context) error) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		health := ComponentHealth{
			Name:      "database",
			LastCheck: time.Now(),
		}

		start := time.Now()
		err := ping(ctx)
		health.Latency = time.Since(start)

		if err != nil {
			health.Status = HealthStatusUnhealthy
			health.Message = fmt.Sprintf("Database ping failed: %v", err)
			return health
		}

		if health.Latency > 100*time.Millisecond {
			health.Status = HealthStatusDegraded
			health.Message = fmt.Sprintf("Database slow: %v", health.Latency)
			return health
		}

		health.Status = HealthStatusHealthy
		return health
	}
}

// CircuitHealthCheck reports an open breaker as degraded: the guarded
// dependency is unavailable but the rest of the system still serves.
func CircuitHealthCheck(cb *CircuitBreaker) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		stats := cb.Stats()
		health := ComponentHealth{
			Name:      cb.Name(),
			Status:    HealthStatusHealthy,
			LastCheck: time.Now(),
		}
		if stats.State != CircuitClosed {
			health.Status = HealthStatusDegraded
			health.Message = fmt.Sprintf("circuit %s after %d failures", stats.State, stats.TotalFailures)
		}
		return health
	}
}
