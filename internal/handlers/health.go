package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	domain "github.com/fieldline/customer-api/internal/domain"
	"github.com/fieldline/customer-api/internal/platform/requestctx"
	"github.com/fieldline/customer-api/internal/services"
)

// HealthHandlers serves the liveness and readiness probes.
type HealthHandlers struct {
	build  services.BuildInfo
	system services.SystemService
	clock  func() time.Time
}

// HealthOption customises HealthHandlers.
type HealthOption func(*HealthHandlers)

// WithHealthBuildInfo sets the build metadata echoed by /healthz.
func WithHealthBuildInfo(info services.BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = info
	}
}

// WithHealthSystemService sets the service probed by /readyz.
func WithHealthSystemService(svc services.SystemService) HealthOption {
	return func(h *HealthHandlers) {
		h.system = svc
	}
}

// WithHealthClock overrides the clock used for uptime and timestamps.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHealthHandlers constructs the probe handlers.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.build.StartedAt.IsZero() {
		h.build.StartedAt = h.clock()
	}
	return h
}

// Healthz reports liveness only. It never touches dependencies.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	now := h.clock().UTC()
	writeProbe(w, http.StatusOK, map[string]any{
		"status":      domain.HealthStatusOK,
		"version":     h.build.Version,
		"commitSha":   h.build.CommitSHA,
		"environment": h.build.Environment,
		"uptime":      now.Sub(h.build.StartedAt).Round(time.Second).String(),
		"timestamp":   now.Format(time.RFC3339),
	})
}

// Readyz probes dependencies. A degraded report stays ready; only an error status is 503.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.system == nil {
		h.Healthz(w, r)
		return
	}

	report, err := h.system.HealthReport(r.Context())
	if err != nil {
		requestctx.Logger(r.Context()).Error("readiness check failed", zap.Error(err))
		writeProbe(w, http.StatusServiceUnavailable, map[string]any{
			"status":    domain.HealthStatusError,
			"details":   []string{"health: " + err.Error()},
			"timestamp": h.clock().UTC().Format(time.RFC3339),
		})
		return
	}

	checks := make(map[string]any, len(report.Dependencies))
	details := make([]string, 0)
	names := make([]string, 0, len(report.Dependencies))
	for name := range report.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		dep := report.Dependencies[name]
		check := map[string]any{
			"status":    dep.Status,
			"latencyMs": dep.Latency.Milliseconds(),
		}
		if !dep.CheckedAt.IsZero() {
			check["checkedAt"] = dep.CheckedAt.UTC().Format(time.RFC3339)
		}
		if dep.Detail != "" {
			check["detail"] = dep.Detail
			details = append(details, name+": "+dep.Detail)
		}
		checks[name] = check
	}

	status := http.StatusOK
	if report.Status == domain.HealthStatusError {
		status = http.StatusServiceUnavailable
	}
	writeProbe(w, status, map[string]any{
		"status":      report.Status,
		"version":     report.Version,
		"commitSha":   report.CommitSHA,
		"environment": report.Environment,
		"uptime":      report.Uptime.Round(time.Second).String(),
		"checks":      checks,
		"details":     details,
		"timestamp":   report.GeneratedAt.UTC().Format(time.RFC3339),
	})
}

func writeProbe(w http.ResponseWriter, status int, payload map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
