package domain

import "time"

// Health statuses reported by readiness checks.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// DependencyStatus is the outcome of one dependency probe.
type DependencyStatus struct {
	Status    string
	Detail    string
	Latency   time.Duration
	CheckedAt time.Time
}

// HealthReport aggregates dependency probes with build metadata.
type HealthReport struct {
	Status       string
	Dependencies map[string]DependencyStatus
	Version      string
	CommitSHA    string
	Environment  string
	Uptime       time.Duration
	GeneratedAt  time.Time
}
