package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vastrakart/api/internal/platform/httpx"
	"github.com/vastrakart/api/internal/services"
)

// SystemHandlers exposes operational endpoints for trusted internal callers.
type SystemHandlers struct {
	system services.SystemService
}

// NewSystemHandlers constructs the internal system handler group.
func NewSystemHandlers(system services.SystemService) (*SystemHandlers, error) {
	if system == nil {
		return nil, errors.New("system handlers: system service is required")
	}
	return &SystemHandlers{system: system}, nil
}

// Routes registers internal endpoints on the provided router.
func (h *SystemHandlers) Routes(r chi.Router) {
	r.Get("/system/health", h.healthReport)
	r.Post("/system/counters/{scope}/{name}:next", h.nextCounterValue)
}

type counterRequest struct {
	Step int64 `json:"step"`
}

type counterValuePayload struct {
	CounterID string `json:"counter_id"`
	Value     int64  `json:"value"`
}

func (h *SystemHandlers) healthReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	report, err := h.system.HealthReport(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("health_report_failed", "failed to collect health report", http.StatusInternalServerError))
		return
	}
	writeJSONResponse(w, http.StatusOK, buildHealthReportPayload(report))
}

func (h *SystemHandlers) nextCounterValue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope := strings.TrimSpace(chi.URLParam(r, "scope"))
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if scope == "" || name == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "counter scope and name are required", http.StatusBadRequest))
		return
	}
	counterID := scope + ":" + name

	var req counterRequest
	if err := decodeJSONBody(r, defaultBodyLimit, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeBodyError(ctx, w, err)
		return
	}

	value, err := h.system.NextCounterValue(ctx, services.CounterCommand{
		CounterID: counterID,
		Step:      req.Step,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCounterInvalidInput):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		case errors.Is(err, services.ErrCounterExhausted):
			httpx.WriteError(ctx, w, httpx.NewError("counter_exhausted", "counter has reached its upper bound", http.StatusConflict))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("counter_error", "failed to advance counter", http.StatusInternalServerError))
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, counterValuePayload{CounterID: counterID, Value: value})
}

func buildHealthReportPayload(report services.SystemHealth) healthPayload {
	payload := healthPayload{
		Status:      report.Status,
		Version:     report.Version,
		CommitSHA:   report.CommitSHA,
		Environment: report.Environment,
		Uptime:      report.Uptime.String(),
		Timestamp:   formatTime(report.GeneratedAt),
		Checks:      make(map[string]healthCheckPayload, len(report.Checks)),
	}
	for name, check := range report.Checks {
		payload.Checks[name] = healthCheckPayload{
			Status:    check.Status,
			LatencyMs: check.Latency.Milliseconds(),
			Error:     check.Error,
			CheckedAt: formatTime(check.CheckedAt),
		}
	}
	return payload
}
