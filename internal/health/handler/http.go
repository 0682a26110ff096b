// Package handler serves liveness and readiness probes.
package handler

import (
	"context"
	"net/http"
	"time"

	"sessionkeeper/backend/internal/server/response"
)

// readyTimeout bounds each dependency check.
const readyTimeout = 2 * time.Second

// Pinger checks database connectivity (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks the drift policy engine (e.g. *engine.OPAEvaluator).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler serves /healthz and /readyz. A nil pinger or policy checker is skipped.
type Handler struct {
	pinger Pinger
	policy PolicyChecker
}

// NewHandler returns a health Handler.
func NewHandler(pinger Pinger, policy PolicyChecker) *Handler {
	return &Handler{pinger: pinger, policy: policy}
}

// Live always reports ok while the process serves requests.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	response.OK(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports 503 when the database or policy engine is unavailable.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	ready := true
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		err := h.pinger.PingContext(ctx)
		cancel()
		checks["database"] = status(err)
		ready = ready && err == nil
	}
	if h.policy != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		err := h.policy.HealthCheck(ctx)
		cancel()
		checks["policy"] = status(err)
		ready = ready && err == nil
	}
	if !ready {
		response.JSON(w, http.StatusServiceUnavailable, response.Envelope{Success: false, Data: checks})
		return
	}
	response.OK(w, http.StatusOK, checks)
}

func status(err error) string {
	if err != nil {
		return "unavailable"
	}
	return "ok"
}
