// Package healthz provides the liveness/readiness surface shared by every
// component binary, grounded on the teacher's pkg/api health handler: a
// status struct with one entry per checked dependency, never failing the
// process on a transient dependency hiccup (readiness degrades, liveness
// doesn't).
package healthz

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/waddlebot/core/pkg/version"
)

// Status is one dependency's health result.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// Check is a named dependency probe (DB ping, Redis ping, an upstream
// reachability check). It must return quickly; Checker applies its own
// per-check timeout.
type Check func(ctx context.Context) error

// Checker runs a fixed set of named Checks and reports aggregate health.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]Check
	timeout time.Duration
}

// NewChecker builds a Checker. timeout <= 0 uses a 2s default per check.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{checks: make(map[string]Check), timeout: timeout}
}

// Register adds a named check, e.g. Register("postgres", pingDB).
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Dependency is one check's reported result.
type Dependency struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Report is the aggregate health payload.
type Report struct {
	Status       Status       `json:"status"`
	Version      string       `json:"version"`
	Dependencies []Dependency `json:"dependencies"`
}

// Run executes every registered check concurrently and aggregates the
// result. The overall status is down if any dependency is down, degraded
// if any is degraded, ok otherwise.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	checks := make(map[string]Check, len(c.checks))
	for name, check := range c.checks {
		names = append(names, name)
		checks[name] = check
	}
	c.mu.RUnlock()

	deps := make([]Dependency, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string, check Check) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			if err := check(cctx); err != nil {
				deps[i] = Dependency{Name: name, Status: StatusDown, Error: err.Error()}
				return
			}
			deps[i] = Dependency{Name: name, Status: StatusOK}
		}(i, name, checks[name])
	}
	wg.Wait()

	report := Report{Status: StatusOK, Version: version.Full(), Dependencies: deps}
	for _, d := range deps {
		if d.Status == StatusDown {
			report.Status = StatusDown
		}
	}
	return report
}

// LivenessHandler always reports the process is up; it never runs Checks,
// so a dependency outage never fails a liveness probe into a restart loop.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

// ReadinessHandler runs every registered check and responds 200 when the
// aggregate status is ok, 503 otherwise.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if report.Status == StatusDown {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	}
}
