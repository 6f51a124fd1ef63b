// Package health runs registered dependency checks concurrently and serves
// the aggregate as liveness and readiness endpoints.
//
// A degraded component (an optional dependency such as the result cache)
// keeps the service ready; only a down component fails readiness.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the health state of a component or the system overall.
type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

func (s Status) severity() int {
	switch s {
	case StatusUp:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// DefaultCheckTimeout bounds a single check when Register is used.
const DefaultCheckTimeout = 2 * time.Second

// Check probes a single dependency.
type Check func(ctx context.Context) ComponentHealth

// ComponentHealth holds the result of a single component check.
type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Report is the aggregated result of all component checks.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Uptime     string                     `json:"uptime"`
	Timestamp  string                     `json:"timestamp"`
}

type registered struct {
	name    string
	check   Check
	timeout time.Duration
}

// Checker holds the registered checks of one process.
type Checker struct {
	mu      sync.RWMutex
	checks  []registered
	started time.Time
	logger  *slog.Logger
}

// NewChecker creates an empty Checker. Uptime is measured from this call.
func NewChecker() *Checker {
	return &Checker{
		started: time.Now(),
		logger:  slog.Default().With("component", "health"),
	}
}

// Register adds a check bounded by DefaultCheckTimeout. Registering a name
// twice replaces the earlier check.
func (c *Checker) Register(name string, check Check) {
	c.RegisterWithTimeout(name, check, DefaultCheckTimeout)
}

// RegisterWithTimeout adds a check bounded by timeout. A check that overruns
// is reported down.
func (c *Checker) RegisterWithTimeout(name string, check Check, timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.checks {
		if c.checks[i].name == name {
			c.checks[i] = registered{name, check, timeout}
			return
		}
	}
	c.checks = append(c.checks, registered{name, check, timeout})
	sort.Slice(c.checks, func(i, j int) bool { return c.checks[i].name < c.checks[j].name })
}

// Run executes every check concurrently. The overall status is the worst
// component status.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := append([]registered(nil), c.checks...)
	c.mu.RUnlock()

	results := make([]ComponentHealth, len(checks))
	var g errgroup.Group
	for i, rc := range checks {
		g.Go(func() error {
			results[i] = c.runOne(ctx, rc)
			return nil
		})
	}
	g.Wait()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(checks)),
		Uptime:     time.Since(c.started).Round(time.Second).String(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	for i, rc := range checks {
		res := results[i]
		report.Components[rc.name] = res
		if res.Status.severity() > report.Status.severity() {
			report.Status = res.Status
		}
	}
	return report
}

func (c *Checker) runOne(ctx context.Context, rc registered) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, rc.timeout)
	defer cancel()
	start := time.Now()

	done := make(chan ComponentHealth, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				c.logger.Error("health check panicked", "check", rc.name, "panic", p)
				done <- ComponentHealth{Status: StatusDown, Message: fmt.Sprintf("check panicked: %v", p)}
			}
		}()
		done <- rc.check(ctx)
	}()

	var res ComponentHealth
	select {
	case res = <-done:
	case <-ctx.Done():
		res = ComponentHealth{Status: StatusDown, Message: "check timed out after " + rc.timeout.String()}
	}
	if res.Status == "" {
		res.Status = StatusUp
	}
	if res.Status != StatusUp {
		c.logger.Warn("health check failing", "check", rc.name, "status", res.Status, "message", res.Message)
	}
	res.Latency = time.Since(start).Round(time.Millisecond).String()
	return res
}

// PingCheck adapts a ping function. A failing ping marks the component down
// when critical is set, degraded otherwise.
func PingCheck(ping func(ctx context.Context) error, critical bool) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			status := StatusDegraded
			if critical {
				status = StatusDown
			}
			return ComponentHealth{Status: status, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// LiveHandler answers liveness probes without running any check.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "alive",
			"uptime": time.Since(c.started).Round(time.Second).String(),
		})
	}
}

// ReadyHandler runs all checks and answers 503 when any is down.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		code := http.StatusOK
		if report.Status == StatusDown {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, report)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
