package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/fieldline/customer-api/internal/domain"
)

type stubHealthRepository struct {
	report domain.HealthReport
	err    error
	calls  int
}

func (s *stubHealthRepository) Collect(context.Context) (domain.HealthReport, error) {
	s.calls++
	return s.report, s.err
}

func TestSystemServiceHealthReportEnrichesMetadata(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(5 * time.Minute)
	repo := &stubHealthRepository{
		report: domain.HealthReport{
			Dependencies: map[string]domain.DependencyStatus{
				"firestore":    {Status: domain.HealthStatusOK},
				"fieldservice": {Status: domain.HealthStatusOK},
			},
		},
	}

	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: repo,
		Clock:            func() time.Time { return now },
		Build: BuildInfo{
			Version:     "1.2.3",
			CommitSHA:   "abc123",
			Environment: "staging",
			StartedAt:   start,
		},
	})
	if err != nil {
		t.Fatalf("new system service: %v", err)
	}

	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Version != "1.2.3" || report.CommitSHA != "abc123" || report.Environment != "staging" {
		t.Fatalf("expected build metadata, got %#v", report)
	}
	if report.Uptime != 5*time.Minute {
		t.Fatalf("expected 5m uptime, got %s", report.Uptime)
	}
	if !report.GeneratedAt.Equal(now) {
		t.Fatalf("expected generated at %s, got %s", now, report.GeneratedAt)
	}
	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected ok status, got %s", report.Status)
	}
}

func TestSystemServiceDerivesStatusFromDependencies(t *testing.T) {
	tests := []struct {
		name string
		deps map[string]domain.DependencyStatus
		want string
	}{
		{name: "none", want: domain.HealthStatusOK},
		{name: "degraded", deps: map[string]domain.DependencyStatus{"redis": {Status: domain.HealthStatusDegraded}}, want: domain.HealthStatusDegraded},
		{name: "error wins", deps: map[string]domain.DependencyStatus{
			"redis":     {Status: domain.HealthStatusDegraded},
			"firestore": {Status: domain.HealthStatusError},
		}, want: domain.HealthStatusError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, err := NewSystemService(SystemServiceDeps{HealthRepository: &stubHealthRepository{report: domain.HealthReport{Dependencies: tc.deps}}})
			if err != nil {
				t.Fatalf("new system service: %v", err)
			}
			report, err := svc.HealthReport(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if report.Status != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, report.Status)
			}
		})
	}
}

func TestSystemServicePropagatesCollectError(t *testing.T) {
	want := errors.New("collect failed")
	svc, err := NewSystemService(SystemServiceDeps{HealthRepository: &stubHealthRepository{err: want}})
	if err != nil {
		t.Fatalf("new system service: %v", err)
	}
	if _, err := svc.HealthReport(context.Background()); !errors.Is(err, want) {
		t.Fatalf("expected collect error, got %v", err)
	}
}

func TestNewSystemServiceRequiresRepository(t *testing.T) {
	if _, err := NewSystemService(SystemServiceDeps{}); err == nil {
		t.Fatalf("expected error without health repository")
	}
}
