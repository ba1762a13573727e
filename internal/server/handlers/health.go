// Package handlers holds the HTTP handlers of the API server.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	apperrors "github.com/3leaps/bucketnav/internal/errors"
)

// Status values reported by health endpoints.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusTimeout   = "timeout"
)

// DefaultCheckTimeout bounds each registered check.
const DefaultCheckTimeout = 5 * time.Second

// HealthChecker is a dependency probed by readiness checks.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// HealthCheckerFunc adapts a function to HealthChecker.
type HealthCheckerFunc func(ctx context.Context) error

func (f HealthCheckerFunc) CheckHealth(ctx context.Context) error { return f(ctx) }

// HealthResponse is the body of a successful health probe.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthManager runs registered checks on demand.
type HealthManager struct {
	version string
	started time.Time
	timeout time.Duration

	mu       sync.RWMutex
	checkers map[string]HealthChecker
}

// NewHealthManager returns a manager with no checks.
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		version:  version,
		started:  time.Now(),
		timeout:  DefaultCheckTimeout,
		checkers: map[string]HealthChecker{},
	}
}

// RegisterChecker adds or replaces the check called name.
func (m *HealthManager) RegisterChecker(name string, c HealthChecker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[name] = c
}

func (m *HealthManager) runChecks(ctx context.Context) map[string]string {
	m.mu.RLock()
	names := make([]string, 0, len(m.checkers))
	for name := range m.checkers {
		names = append(names, name)
	}
	checkers := make(map[string]HealthChecker, len(m.checkers))
	for k, v := range m.checkers {
		checkers[k] = v
	}
	m.mu.RUnlock()
	sort.Strings(names)

	results := make(map[string]string, len(names))
	for _, name := range names {
		cctx, cancel := context.WithTimeout(ctx, m.timeout)
		err := checkers[name].CheckHealth(cctx)
		cancel()
		switch {
		case err == nil:
			results[name] = StatusHealthy
		case errors.Is(err, context.DeadlineExceeded):
			results[name] = StatusTimeout
		default:
			results[name] = StatusUnhealthy
		}
	}
	return results
}

// determineOverallStatus: any failure is unhealthy, a timeout alone is degraded.
func (m *HealthManager) determineOverallStatus(checks map[string]string) string {
	status := StatusHealthy
	for _, s := range checks {
		switch s {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusTimeout:
			status = StatusDegraded
		}
	}
	return status
}

func (m *HealthManager) respond(w http.ResponseWriter, r *http.Request, checks map[string]string) {
	status := m.determineOverallStatus(checks)
	if status == StatusUnhealthy {
		details := make(map[string]any, len(checks))
		for k, v := range checks {
			details[k] = v
		}
		apperrors.Write(w, http.StatusServiceUnavailable, apperrors.HTTPErrorBody{
			Code:      apperrors.CodeUnavailable,
			Message:   "service is unhealthy",
			RequestID: apperrors.RequestIDFrom(r.Context()),
			Details:   map[string]any{"checks": details},
		})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    status,
		Version:   m.version,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(m.started).Round(time.Second).String(),
		Checks:    checks,
	})
}

// HealthHandler runs every check.
func (m *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	m.respond(w, r, m.runChecks(r.Context()))
}

// LivenessHandler reports that the process is serving.
func (m *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	m.respond(w, r, nil)
}

// ReadinessHandler runs every check.
func (m *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	m.respond(w, r, m.runChecks(r.Context()))
}

// StartupHandler reports that startup finished.
func (m *HealthManager) StartupHandler(w http.ResponseWriter, r *http.Request) {
	m.respond(w, r, nil)
}

var globalHealthManager *HealthManager

// InitHealthManager installs the process-wide manager.
func InitHealthManager(version string) {
	globalHealthManager = NewHealthManager(version)
}

// GetHealthManager returns the process-wide manager, or nil.
func GetHealthManager() *HealthManager {
	return globalHealthManager
}

func withGlobal(fn func(*HealthManager, http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m := globalHealthManager
		if m == nil {
			apperrors.Write(w, http.StatusServiceUnavailable, apperrors.HTTPErrorBody{
				Code:      apperrors.CodeUnavailable,
				Message:   "health manager not initialized",
				RequestID: apperrors.RequestIDFrom(r.Context()),
			})
			return
		}
		fn(m, w, r)
	}
}

var (
	HealthHandler    = withGlobal((*HealthManager).HealthHandler)
	LivenessHandler  = withGlobal((*HealthManager).LivenessHandler)
	ReadinessHandler = withGlobal((*HealthManager).ReadinessHandler)
	StartupHandler   = withGlobal((*HealthManager).StartupHandler)
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
