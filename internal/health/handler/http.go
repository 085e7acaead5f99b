// Package handler serves readiness and liveness checks.
package handler

import (
	"context"
	"net/http"
	"time"

	"course-marketplace/backend/internal/server/httpx"
)

// Pinger reports database reachability (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker reports that the policy engine can compile and evaluate.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler serves /healthz. db and policy may be nil; then the corresponding
// check is skipped.
type Handler struct {
	db     Pinger
	policy PolicyChecker
}

// New returns a health Handler.
func New(db Pinger, policy PolicyChecker) *Handler {
	return &Handler{db: db, policy: policy}
}

// ServeHTTP answers 200 when every configured dependency is healthy, 503
// otherwise.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true
	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			checks["database"] = err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}
	if h.policy != nil {
		if err := h.policy.HealthCheck(ctx); err != nil {
			checks["policy"] = err.Error()
			healthy = false
		} else {
			checks["policy"] = "ok"
		}
	}
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, status, map[string]any{"healthy": healthy, "checks": checks})
}
