package handler

import (
	"context"
	"net/http"
	"time"
)

// DefaultReadinessTimeout bounds all dependency checks of one /readyz call.
const DefaultReadinessTimeout = 5 * time.Second

// HealthChecker defines an interface for checking service health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type namedCheck struct {
	name     string
	checker  HealthChecker
	optional bool
}

// HealthHandler manages health check endpoints.
type HealthHandler struct {
	checks  []namedCheck
	timeout time.Duration
}

// NewHealthHandler creates a HealthHandler. The database is required;
// queue may be nil when invitations are sent directly.
func NewHealthHandler(db, queue HealthChecker) *HealthHandler {
	h := &HealthHandler{timeout: DefaultReadinessTimeout}
	h.checks = append(h.checks, namedCheck{name: "postgres", checker: db})
	h.checks = append(h.checks, namedCheck{name: "redis", checker: queue, optional: true})
	return h
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz is the liveness probe. It never touches dependencies.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readyz is the readiness probe. It returns 503 when a configured
// dependency fails or the required database is missing.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := make(map[string]string, len(h.checks))
	healthy := true

	for _, c := range h.checks {
		switch {
		case c.checker == nil && c.optional:
			checks[c.name] = "disabled"
		case c.checker == nil:
			checks[c.name] = "not configured"
			healthy = false
		default:
			if err := c.checker.Ping(ctx); err != nil {
				checks[c.name] = "error: " + err.Error()
				healthy = false
			} else {
				checks[c.name] = "ok"
			}
		}
	}

	response := HealthResponse{Status: "ok", Checks: checks}
	statusCode := http.StatusOK
	if !healthy {
		response.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, response)
}
