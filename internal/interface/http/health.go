package http

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alem-hub/strategic-analytics/pkg/circuitbreaker"
)

// CheckFunc probes one dependency. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

// HealthStatus is the body of /readyz.
type HealthStatus struct {
	Healthy   bool                   `json:"healthy"`
	Message   string                 `json:"message,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// CheckResult is the outcome of one probe.
type CheckResult struct {
	Healthy bool `json:"healthy"`
	// Optional checks are reported but do not fail readiness.
	Optional bool   `json:"optional,omitempty"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

type check struct {
	fn       CheckFunc
	optional bool
}

// HealthChecker runs named probes concurrently, each under its own timeout.
type HealthChecker struct {
	mu        sync.RWMutex
	checks    map[string]check
	startedAt time.Time
	version   string
	timeout   time.Duration
	now       func() time.Time
}

// NewHealthChecker creates a checker reporting the given version.
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{
		checks:    make(map[string]check),
		startedAt: time.Now(),
		version:   version,
		timeout:   3 * time.Second,
		now:       time.Now,
	}
}

// SetTimeout sets the per-probe timeout.
func (h *HealthChecker) SetTimeout(d time.Duration) {
	if d > 0 {
		h.timeout = d
	}
}

// AddCheck registers a probe whose failure makes the service unready.
func (h *HealthChecker) AddCheck(name string, fn CheckFunc) {
	h.add(name, fn, false)
}

// AddOptionalCheck registers a probe for a dependency the service can run
// without, such as the report cache.
func (h *HealthChecker) AddOptionalCheck(name string, fn CheckFunc) {
	h.add(name, fn, true)
}

func (h *HealthChecker) add(name string, fn CheckFunc, optional bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check{fn: fn, optional: optional}
}

// Check runs every probe and aggregates the results.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	h.mu.RLock()
	checks := make(map[string]check, len(h.checks))
	for name, c := range h.checks {
		checks[name] = c
	}
	h.mu.RUnlock()

	status := HealthStatus{
		Healthy:   true,
		Checks:    make(map[string]CheckResult, len(checks)),
		Uptime:    h.now().Sub(h.startedAt).Round(time.Second).String(),
		Version:   h.version,
		Timestamp: h.now().UTC(),
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for name, c := range checks {
		name, c := name, c
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()

			start := time.Now()
			err := c.fn(checkCtx)
			res := CheckResult{
				Healthy:  err == nil,
				Optional: c.optional,
				Message:  "ok",
				Duration: time.Since(start).Round(time.Millisecond).String(),
			}
			if err != nil {
				res.Message = err.Error()
			}

			mu.Lock()
			status.Checks[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	var failed []string
	for name, res := range status.Checks {
		if !res.Healthy && !res.Optional {
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)
	if len(failed) > 0 {
		status.Healthy = false
		status.Message = "failing checks: " + strings.Join(failed, ", ")
	}
	return status
}

// Pinger is satisfied by the database connection and the Redis cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck probes a dependency with Ping.
func PingCheck(p Pinger) CheckFunc {
	return p.Ping
}

// BreakerCheck fails while b is open so readiness reflects a dependency
// the breaker has already given up on.
func BreakerCheck(b *circuitbreaker.Breaker) CheckFunc {
	return func(context.Context) error {
		if b.State() == circuitbreaker.StateOpen {
			return circuitbreaker.ErrOpen
		}
		return nil
	}
}
