package handlers

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	domain "github.com/noirthread/storefront-api/internal/domain"
	"github.com/noirthread/storefront-api/internal/platform/httpx"
	"github.com/noirthread/storefront-api/internal/platform/requestctx"
	"github.com/noirthread/storefront-api/internal/repositories"
)

// HealthHandlerDeps bundles collaborators for the health endpoints.
type HealthHandlerDeps struct {
	Health repositories.HealthRepository
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	health repositories.HealthRepository
}

// NewHealthHandler constructs the health endpoint handler.
func NewHealthHandler(deps HealthHandlerDeps) (*HealthHandler, error) {
	if deps.Health == nil {
		return nil, errors.New("health handler: health repository is required")
	}
	return &HealthHandler{health: deps.Health}, nil
}

// Live serves GET /healthz. The process is alive if it can answer at all.
func (h *HealthHandler) Live(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": domain.HealthStatusOK})
}

type healthCheckJSON struct {
	Status    string    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	Error     string    `json:"error,omitempty"`
	LatencyMS int64     `json:"latencyMs"`
	CheckedAt time.Time `json:"checkedAt"`
}

// Ready serves GET /readyz, probing downstream dependencies.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report, err := h.health.Collect(ctx)
	if err != nil {
		requestctx.Logger(ctx).Error("health collection failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("health_unavailable", "health collection failed", http.StatusServiceUnavailable))
		return
	}

	checks := make(map[string]healthCheckJSON, len(report.Checks))
	for name, check := range report.Checks {
		checks[name] = healthCheckJSON{
			Status:    check.Status,
			Detail:    check.Detail,
			Error:     check.Error,
			LatencyMS: check.Latency.Milliseconds(),
			CheckedAt: check.CheckedAt,
		}
	}

	status := http.StatusOK
	if report.Status == domain.HealthStatusError {
		status = http.StatusServiceUnavailable
	}

	httpx.WriteJSON(w, status, map[string]any{
		"status":      report.Status,
		"version":     report.Version,
		"environment": report.Environment,
		"generatedAt": report.GeneratedAt,
		"checks":      checks,
	})
}
