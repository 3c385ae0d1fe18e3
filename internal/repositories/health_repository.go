package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	domain "github.com/fieldline/customer-api/internal/domain"
)

const defaultDependencyTimeout = 1500 * time.Millisecond

// DependencyCheck is one readiness probe. A failing Optional check degrades the report
// instead of failing it.
type DependencyCheck struct {
	Name     string
	Timeout  time.Duration
	Optional bool
	Check    func(context.Context) error
}

type DependencyHealthOption func(*dependencyHealthRepository)

// WithDependencyTimeout applies to checks that leave Timeout unset.
func WithDependencyTimeout(timeout time.Duration) DependencyHealthOption {
	return func(repo *dependencyHealthRepository) {
		if timeout > 0 {
			repo.defaultTimeout = timeout
		}
	}
}

func WithDependencyClock(clock func() time.Time) DependencyHealthOption {
	return func(repo *dependencyHealthRepository) {
		if clock != nil {
			repo.now = clock
		}
	}
}

type dependencyHealthRepository struct {
	checks         []DependencyCheck
	defaultTimeout time.Duration
	now            func() time.Time
}

var _ HealthRepository = (*dependencyHealthRepository)(nil)

// NewDependencyHealthRepository probes every check concurrently on each Collect.
func NewDependencyHealthRepository(checks []DependencyCheck, opts ...DependencyHealthOption) (HealthRepository, error) {
	if len(checks) == 0 {
		return nil, errors.New("health repository: at least one dependency check is required")
	}
	for i, check := range checks {
		switch {
		case strings.TrimSpace(check.Name) == "":
			return nil, fmt.Errorf("health repository: check %d has no name", i)
		case check.Check == nil:
			return nil, fmt.Errorf("health repository: check %s has no function", check.Name)
		}
	}

	repo := &dependencyHealthRepository{
		checks:         append([]DependencyCheck(nil), checks...),
		defaultTimeout: defaultDependencyTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo, nil
}

func (r *dependencyHealthRepository) Collect(ctx context.Context) (domain.HealthReport, error) {
	if ctx == nil {
		return domain.HealthReport{}, errors.New("health repository: context is required")
	}

	// each goroutine owns one slot, so no lock is needed
	results := make([]domain.DependencyStatus, len(r.checks))
	var group errgroup.Group
	for i := range r.checks {
		group.Go(func() error {
			results[i] = r.probe(ctx, r.checks[i])
			return nil
		})
	}
	_ = group.Wait()

	report := domain.HealthReport{
		Status:       domain.HealthStatusOK,
		Dependencies: make(map[string]domain.DependencyStatus, len(results)),
		GeneratedAt:  r.now(),
	}
	for i, result := range results {
		report.Dependencies[r.checks[i].Name] = result
		if result.Status == domain.HealthStatusOK {
			continue
		}
		if !r.checks[i].Optional {
			report.Status = domain.HealthStatusError
		} else if report.Status == domain.HealthStatusOK {
			report.Status = domain.HealthStatusDegraded
		}
	}
	return report, nil
}

func (r *dependencyHealthRepository) probe(ctx context.Context, check DependencyCheck) domain.DependencyStatus {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := r.now()
	err := check.Check(probeCtx)
	if err == nil {
		err = probeCtx.Err()
	}
	finished := r.now()

	status, detail := classifyProbe(err)
	return domain.DependencyStatus{
		Status:    status,
		Detail:    detail,
		Latency:   finished.Sub(started),
		CheckedAt: finished,
	}
}

func classifyProbe(err error) (status, detail string) {
	switch {
	case err == nil:
		return domain.HealthStatusOK, "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return domain.HealthStatusError, "timeout"
	case errors.Is(err, context.Canceled):
		return domain.HealthStatusError, "cancelled"
	default:
		return domain.HealthStatusError, err.Error()
	}
}
