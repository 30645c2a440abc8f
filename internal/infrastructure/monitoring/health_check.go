package monitoring

import (
	"context"
	"sync"
	"time"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// CheckFunc reports whether one dependency is usable. A false result with a
// nil error is reported as "check failed".
type CheckFunc func(ctx context.Context) (bool, error)

// HealthChecker runs named dependency checks for the readiness endpoint.
type HealthChecker struct {
	mu     sync.RWMutex
	checks []namedCheck
}

type namedCheck struct {
	name    string
	fn      CheckFunc
	timeout time.Duration
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{}
}

func (h *HealthChecker) AddCheck(name string, fn CheckFunc, timeout time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, namedCheck{name: name, fn: fn, timeout: timeout})
}

// CheckAll runs every check concurrently, each under its own timeout, so one
// slow dependency cannot hide the state of the others.
func (h *HealthChecker) CheckAll(ctx context.Context) HealthStatus {
	h.mu.RLock()
	checks := append([]namedCheck(nil), h.checks...)
	h.mu.RUnlock()

	results := make([]string, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, check namedCheck) {
			defer wg.Done()
			results[i] = check.run(ctx)
		}(i, check)
	}
	wg.Wait()

	status := HealthStatus{
		Status:    statusHealthy,
		Timestamp: time.Now(),
		Checks:    make(map[string]string, len(checks)),
	}
	for i, check := range checks {
		status.Checks[check.name] = results[i]
		if results[i] != statusHealthy {
			status.Status = statusUnhealthy
		}
	}
	return status
}

func (h *HealthChecker) IsReady(ctx context.Context) bool {
	return h.CheckAll(ctx).Status == statusHealthy
}

func (c namedCheck) run(ctx context.Context) string {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	ok, err := c.fn(ctx)
	switch {
	case err != nil:
		return err.Error()
	case !ok:
		return "check failed"
	default:
		return statusHealthy
	}
}
