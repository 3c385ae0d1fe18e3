package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/fieldline/customer-api/internal/domain"
)

func TestDependencyHealthRepositoryCollectSuccess(t *testing.T) {
	checks := []DependencyCheck{
		{
			Name: "firestore",
			Check: func(ctx context.Context) error {
				select {
				case <-time.After(10 * time.Millisecond):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
		},
		{
			Name:  "fieldservice",
			Check: func(context.Context) error { return nil },
		},
	}

	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	repo, err := NewDependencyHealthRepository(checks,
		WithDependencyClock(func() time.Time { return now }),
	)
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected status ok, got %s", report.Status)
	}
	if len(report.Dependencies) != 2 {
		t.Fatalf("expected 2 dependencies, got %d", len(report.Dependencies))
	}
	for name, dep := range report.Dependencies {
		if dep.Status != domain.HealthStatusOK {
			t.Fatalf("expected %s to be ok, got %s", name, dep.Status)
		}
		if dep.CheckedAt != now {
			t.Fatalf("expected %s checkedAt %s, got %s", name, now, dep.CheckedAt)
		}
	}
	if report.GeneratedAt != now {
		t.Fatalf("expected generatedAt %s, got %s", now, report.GeneratedAt)
	}
}

func TestDependencyHealthRepositoryCollectFailure(t *testing.T) {
	expectedErr := errors.New("boom")
	checks := []DependencyCheck{
		{Name: "firestore", Check: func(context.Context) error { return expectedErr }},
		{Name: "redis", Check: func(context.Context) error { return nil }},
	}

	repo, err := NewDependencyHealthRepository(checks)
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusError {
		t.Fatalf("expected status error, got %s", report.Status)
	}
	dep := report.Dependencies["firestore"]
	if dep.Status != domain.HealthStatusError {
		t.Fatalf("expected firestore status error, got %s", dep.Status)
	}
	if dep.Detail != expectedErr.Error() {
		t.Fatalf("expected detail %q, got %q", expectedErr.Error(), dep.Detail)
	}
}

func TestDependencyHealthRepositoryOptionalFailureDegrades(t *testing.T) {
	checks := []DependencyCheck{
		{Name: "firestore", Check: func(context.Context) error { return nil }},
		{Name: "redis", Optional: true, Check: func(context.Context) error { return errors.New("connection refused") }},
	}

	repo, err := NewDependencyHealthRepository(checks)
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}
	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected status degraded, got %s", report.Status)
	}
}

func TestDependencyHealthRepositoryCollectTimeout(t *testing.T) {
	checks := []DependencyCheck{
		{
			Name:    "fieldservice",
			Timeout: 5 * time.Millisecond,
			Check: func(ctx context.Context) error {
				select {
				case <-time.After(200 * time.Millisecond):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
		},
	}

	repo, err := NewDependencyHealthRepository(checks)
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusError {
		t.Fatalf("expected status error, got %s", report.Status)
	}
	if dep := report.Dependencies["fieldservice"]; dep.Detail != "timeout" {
		t.Fatalf("expected detail timeout, got %s", dep.Detail)
	}
}

func TestNewDependencyHealthRepositoryRejectsInvalidChecks(t *testing.T) {
	if _, err := NewDependencyHealthRepository(nil); err == nil {
		t.Fatal("expected error for empty check set")
	}
	if _, err := NewDependencyHealthRepository([]DependencyCheck{{Name: "firestore"}}); err == nil {
		t.Fatal("expected error for missing check function")
	}
	if _, err := NewDependencyHealthRepository([]DependencyCheck{{Check: func(context.Context) error { return nil }}}); err == nil {
		t.Fatal("expected error for missing name")
	}
}
