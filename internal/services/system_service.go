package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/fieldline/customer-api/internal/domain"
	"github.com/fieldline/customer-api/internal/repositories"
)

// BuildInfo is stamped onto every health report.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

type SystemServiceDeps struct {
	HealthRepository repositories.HealthRepository
	Clock            func() time.Time
	Build            BuildInfo
}

type systemService struct {
	probes repositories.HealthRepository
	now    func() time.Time
	build  BuildInfo
}

var _ SystemService = (*systemService)(nil)

func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.HealthRepository == nil {
		return nil, errors.New("system service: health repository is required")
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	svc := &systemService{
		probes: deps.HealthRepository,
		now:    func() time.Time { return now().UTC() },
		build:  deps.Build,
	}
	if svc.build.StartedAt.IsZero() {
		svc.build.StartedAt = svc.now()
	}
	return svc, nil
}

// HealthReport runs the dependency probes and fills in whatever the probes left blank:
// build metadata, uptime, generation time and the overall status.
func (s *systemService) HealthReport(ctx context.Context) (HealthReport, error) {
	report, err := s.probes.Collect(ctx)
	if err != nil {
		return HealthReport{}, err
	}
	now := s.now()

	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = now
	} else {
		report.GeneratedAt = report.GeneratedAt.UTC()
	}
	fillBlank(&report.Version, s.build.Version)
	fillBlank(&report.CommitSHA, s.build.CommitSHA)
	fillBlank(&report.Environment, s.build.Environment)
	if report.Uptime <= 0 {
		report.Uptime = now.Sub(s.build.StartedAt)
	}
	if report.Dependencies == nil {
		report.Dependencies = map[string]domain.DependencyStatus{}
	}
	if report.Status == "" {
		report.Status = worstStatus(report.Dependencies)
	}
	return report, nil
}

func fillBlank(dst *string, value string) {
	if *dst == "" {
		*dst = value
	}
}

var statusRank = map[string]int{
	"":                          0,
	domain.HealthStatusOK:       0,
	domain.HealthStatusDegraded: 1,
	domain.HealthStatusError:    2,
}

// worstStatus treats unknown statuses as degraded.
func worstStatus(deps map[string]domain.DependencyStatus) string {
	worst := domain.HealthStatusOK
	for _, dep := range deps {
		rank, known := statusRank[dep.Status]
		if !known {
			rank = statusRank[domain.HealthStatusDegraded]
		}
		if rank > statusRank[worst] {
			if rank == statusRank[domain.HealthStatusError] {
				return domain.HealthStatusError
			}
			worst = domain.HealthStatusDegraded
		}
	}
	return worst
}
