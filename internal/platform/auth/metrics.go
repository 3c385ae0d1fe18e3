package auth

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/fieldline/customer-api/internal/platform/auth"

// verificationMetrics counts verification outcomes per credential kind.
type verificationMetrics struct {
	counter metric.Int64Counter
}

func newVerificationMetrics() *verificationMetrics {
	counter, err := otel.Meter(meterName).Int64Counter("auth.verifications",
		metric.WithDescription("Credential verification attempts by kind and outcome"))
	if err != nil {
		return &verificationMetrics{}
	}
	return &verificationMetrics{counter: counter}
}

func (m *verificationMetrics) record(ctx context.Context, kind, reason string) {
	if m == nil || m.counter == nil {
		return
	}
	m.counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("reason", reason),
		attribute.Bool("success", reason == "ok"),
	))
}
