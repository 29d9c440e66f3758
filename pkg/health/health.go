// Package health runs component probes and serves the liveness and readiness
// endpoints of the search service.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status is the health of a component or of the whole service.
type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// Check probes one component. nil means up, an error built by Degraded means
// degraded, and any other error means down.
type Check func(ctx context.Context) error

type degradedError struct{ msg string }

func (d *degradedError) Error() string { return d.msg }

// Degraded reports a component that works but cannot serve yet, such as an
// index that has never been built.
func Degraded(format string, args ...any) error {
	return &degradedError{msg: fmt.Sprintf(format, args...)}
}

// ComponentHealth is the outcome of one registered check.
type ComponentHealth struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency"`
}

// Report aggregates every component. Its Status is the worst component
// status.
type Report struct {
	Status     Status            `json:"status"`
	Components []ComponentHealth `json:"components"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Component returns the named entry, if present.
func (r Report) Component(name string) (ComponentHealth, bool) {
	for _, c := range r.Components {
		if c.Name == name {
			return c, true
		}
	}
	return ComponentHealth{}, false
}

type Checker struct {
	timeout time.Duration
	mu      sync.RWMutex
	checks  map[string]Check
}

// NewChecker bounds each probe by timeout (5s when non-positive).
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{timeout: timeout, checks: make(map[string]Check)}
}

// Register adds or replaces the check stored under name.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Run probes every component concurrently. Components are reported in name
// order and the overall status is the worst of them.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	checks := make([]Check, len(names))
	sort.Strings(names)
	for i, name := range names {
		checks[i] = c.checks[name]
	}
	c.mu.RUnlock()

	results := make([]ComponentHealth, len(names))
	var g errgroup.Group
	for i := range names {
		g.Go(func() error {
			results[i] = c.probe(ctx, names[i], checks[i])
			return nil
		})
	}
	g.Wait()

	report := Report{Status: StatusUp, Components: results, Timestamp: time.Now().UTC()}
	for _, r := range results {
		if rank(r.Status) > rank(report.Status) {
			report.Status = r.Status
		}
	}
	return report
}

func (c *Checker) probe(ctx context.Context, name string, check Check) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	start := time.Now()
	err := check(ctx)
	h := ComponentHealth{Name: name, Status: StatusUp, Latency: time.Since(start).Round(time.Microsecond).String()}
	var degraded *degradedError
	switch {
	case err == nil:
	case errors.As(err, &degraded):
		h.Status, h.Message = StatusDegraded, degraded.msg
	default:
		h.Status, h.Message = StatusDown, err.Error()
	}
	return h
}

func rank(s Status) int {
	switch s {
	case StatusDown:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

// DirCheck reports down unless path is an existing directory.
func DirCheck(path string) Check {
	return func(ctx context.Context) error {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", path)
		}
		return nil
	}
}

// LiveHandler always answers 200; it only shows the process is serving.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers 200 only when every component is up.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		status := http.StatusOK
		if report.Status != StatusUp {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
