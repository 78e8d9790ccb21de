package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vastrakart/api/internal/domain"
	"github.com/vastrakart/api/internal/services"
)

type stubInternalSystemService struct {
	healthFn  func(context.Context) (services.SystemHealth, error)
	counterFn func(context.Context, services.CounterCommand) (int64, error)
}

func (s *stubInternalSystemService) HealthReport(ctx context.Context) (services.SystemHealth, error) {
	if s.healthFn != nil {
		return s.healthFn(ctx)
	}
	return services.SystemHealth{}, errors.New("not implemented")
}

func (s *stubInternalSystemService) NextCounterValue(ctx context.Context, cmd services.CounterCommand) (int64, error) {
	if s.counterFn != nil {
		return s.counterFn(ctx, cmd)
	}
	return 0, errors.New("not implemented")
}

func systemRouter(t *testing.T, system services.SystemService) chi.Router {
	t.Helper()
	handler, err := NewSystemHandlers(system)
	if err != nil {
		t.Fatalf("failed to build system handlers: %v", err)
	}
	router := chi.NewRouter()
	router.Route("/internal", handler.Routes)
	return router
}

func TestSystemHandlersHealthReport(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	service := &stubInternalSystemService{
		healthFn: func(context.Context) (services.SystemHealth, error) {
			return services.SystemHealth{
				Status:      domain.HealthStatusDegraded,
				Version:     "1.4.0",
				CommitSHA:   "abc123",
				Environment: "prod",
				Uptime:      90 * time.Minute,
				GeneratedAt: now,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusOK, Latency: 12 * time.Millisecond, CheckedAt: now},
					"pubsub":    {Status: domain.HealthStatusDegraded, Error: "publish timeout", CheckedAt: now},
				},
			}, nil
		},
	}

	rr := httptest.NewRecorder()
	systemRouter(t, service).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/internal/system/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp healthPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != domain.HealthStatusDegraded || resp.Version != "1.4.0" {
		t.Fatalf("unexpected report payload %#v", resp)
	}
	if resp.Uptime != "1h30m0s" {
		t.Fatalf("unexpected uptime %s", resp.Uptime)
	}
	if resp.Checks["pubsub"].Error != "publish timeout" {
		t.Fatalf("unexpected pubsub check %#v", resp.Checks["pubsub"])
	}
	if resp.Checks["firestore"].LatencyMs != 12 {
		t.Fatalf("unexpected firestore latency %d", resp.Checks["firestore"].LatencyMs)
	}
}

func TestSystemHandlersHealthReportFailure(t *testing.T) {
	service := &stubInternalSystemService{
		healthFn: func(context.Context) (services.SystemHealth, error) {
			return services.SystemHealth{}, errors.New("probe failed")
		},
	}

	rr := httptest.NewRecorder()
	systemRouter(t, service).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/internal/system/health", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}

func TestSystemHandlersNextCounterValue(t *testing.T) {
	var captured services.CounterCommand
	service := &stubInternalSystemService{
		counterFn: func(_ context.Context, cmd services.CounterCommand) (int64, error) {
			captured = cmd
			return 42, nil
		},
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/system/counters/invoices/monthly:next", strings.NewReader(`{"step":3}`))
	systemRouter(t, service).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.CounterID != "invoices:monthly" || captured.Step != 3 {
		t.Fatalf("unexpected command %#v", captured)
	}

	var resp counterValuePayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.CounterID != "invoices:monthly" || resp.Value != 42 {
		t.Fatalf("unexpected counter payload %#v", resp)
	}
}

func TestSystemHandlersNextCounterValueWithoutBody(t *testing.T) {
	service := &stubInternalSystemService{
		counterFn: func(_ context.Context, cmd services.CounterCommand) (int64, error) {
			if cmd.Step != 0 {
				t.Fatalf("expected default step, got %d", cmd.Step)
			}
			return 7, nil
		},
	}

	rr := httptest.NewRecorder()
	systemRouter(t, service).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/internal/system/counters/exports/daily:next", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestSystemHandlersNextCounterValueErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "invalid input", err: services.ErrCounterInvalidInput, wantStatus: http.StatusBadRequest},
		{name: "exhausted", err: services.ErrCounterExhausted, wantStatus: http.StatusConflict},
		{name: "storage failure", err: errors.New("firestore unavailable"), wantStatus: http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			service := &stubInternalSystemService{
				counterFn: func(context.Context, services.CounterCommand) (int64, error) {
					return 0, tc.err
				},
			}

			rr := httptest.NewRecorder()
			systemRouter(t, service).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/internal/system/counters/exports/daily:next", nil))

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rr.Code)
			}
		})
	}
}
