package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/vastrakart/api/internal/domain"
)

type stubHealthRepo struct {
	collectFn func(context.Context) (domain.SystemHealthReport, error)
}

func (s *stubHealthRepo) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	if s.collectFn != nil {
		return s.collectFn(ctx)
	}
	return domain.SystemHealthReport{}, nil
}

type stubCounters struct {
	nextFn func(ctx context.Context, scope, name string, opts CounterGenerationOptions) (CounterValue, error)
}

func (s *stubCounters) Next(ctx context.Context, scope, name string, opts CounterGenerationOptions) (CounterValue, error) {
	return s.nextFn(ctx, scope, name, opts)
}

func (s *stubCounters) NextInvoiceNumber(context.Context) (string, error) {
	return "", errors.New("not implemented")
}

func TestSystemServiceHealthReportFillsDefaults(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	started := now.Add(-90 * time.Minute)

	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: &stubHealthRepo{
			collectFn: func(context.Context) (domain.SystemHealthReport, error) {
				return domain.SystemHealthReport{
					Checks: map[string]domain.SystemHealthCheck{
						"firestore": {Status: domain.HealthStatusOK},
					},
				}, nil
			},
		},
		Clock: func() time.Time { return now },
		Build: BuildInfo{Version: "1.4.0", CommitSHA: "abc123", Environment: "test", StartedAt: started},
	})
	if err != nil {
		t.Fatalf("new system service: %v", err)
	}

	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("health report: %v", err)
	}
	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected status ok got %q", report.Status)
	}
	if report.Version != "1.4.0" || report.CommitSHA != "abc123" || report.Environment != "test" {
		t.Fatalf("expected build metadata filled got %#v", report)
	}
	if !report.GeneratedAt.Equal(now) {
		t.Fatalf("expected generatedAt %v got %v", now, report.GeneratedAt)
	}
	if report.Uptime != 90*time.Minute {
		t.Fatalf("expected uptime 90m got %v", report.Uptime)
	}
}

func TestSystemServiceHealthReportDerivesStatus(t *testing.T) {
	cases := []struct {
		name   string
		checks map[string]domain.SystemHealthCheck
		want   string
	}{
		{name: "no checks", checks: nil, want: domain.HealthStatusOK},
		{
			name: "degraded dependency",
			checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusOK},
				"pubsub":    {Status: domain.HealthStatusDegraded},
			},
			want: domain.HealthStatusDegraded,
		},
		{
			name: "failing dependency wins",
			checks: map[string]domain.SystemHealthCheck{
				"pubsub":    {Status: domain.HealthStatusDegraded},
				"firestore": {Status: domain.HealthStatusError, Error: "deadline exceeded"},
			},
			want: domain.HealthStatusError,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, err := NewSystemService(SystemServiceDeps{
				HealthRepository: &stubHealthRepo{
					collectFn: func(context.Context) (domain.SystemHealthReport, error) {
						return domain.SystemHealthReport{Checks: tc.checks}, nil
					},
				},
				Clock: func() time.Time { return time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC) },
			})
			if err != nil {
				t.Fatalf("new system service: %v", err)
			}
			report, err := svc.HealthReport(context.Background())
			if err != nil {
				t.Fatalf("health report: %v", err)
			}
			if report.Status != tc.want {
				t.Fatalf("expected status %q got %q", tc.want, report.Status)
			}
		})
	}
}

func TestSystemServiceHealthReportPropagatesError(t *testing.T) {
	probeErr := errors.New("firestore unreachable")
	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: &stubHealthRepo{
			collectFn: func(context.Context) (domain.SystemHealthReport, error) {
				return domain.SystemHealthReport{}, probeErr
			},
		},
	})
	if err != nil {
		t.Fatalf("new system service: %v", err)
	}
	if _, err := svc.HealthReport(context.Background()); !errors.Is(err, probeErr) {
		t.Fatalf("expected probe error got %v", err)
	}
}

func TestSystemServiceNextCounterValue(t *testing.T) {
	var gotScope, gotName string
	var gotStep int64
	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: &stubHealthRepo{},
		Counters: &stubCounters{
			nextFn: func(_ context.Context, scope, name string, opts CounterGenerationOptions) (CounterValue, error) {
				gotScope, gotName, gotStep = scope, name, opts.Step
				return CounterValue{Value: 42}, nil
			},
		},
	})
	if err != nil {
		t.Fatalf("new system service: %v", err)
	}

	value, err := svc.NextCounterValue(context.Background(), CounterCommand{CounterID: " exports:daily ", Step: 3})
	if err != nil {
		t.Fatalf("next counter value: %v", err)
	}
	if value != 42 {
		t.Fatalf("expected 42 got %d", value)
	}
	if gotScope != "exports" || gotName != "daily" || gotStep != 3 {
		t.Fatalf("expected scope/name/step propagated got %s %s %d", gotScope, gotName, gotStep)
	}

	if _, err := svc.NextCounterValue(context.Background(), CounterCommand{CounterID: "exports"}); err == nil {
		t.Fatal("expected error for counter id without scope separator")
	}
	if _, err := svc.NextCounterValue(context.Background(), CounterCommand{}); err == nil {
		t.Fatal("expected error for empty counter id")
	}
}
