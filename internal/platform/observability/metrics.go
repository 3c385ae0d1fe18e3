package observability

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type durationHistogram struct {
	histogram metric.Float64Histogram
}

var requestDuration = newDurationHistogram()

func newDurationHistogram() durationHistogram {
	histogram, err := otel.Meter("github.com/fieldline/customer-api/internal/platform/observability").
		Float64Histogram("http.server.request.duration",
			metric.WithUnit("s"),
			metric.WithDescription("Inbound request latency by route and status"))
	if err != nil {
		return durationHistogram{}
	}
	return durationHistogram{histogram: histogram}
}

func (d durationHistogram) record(ctx context.Context, method, route string, status int, latency time.Duration) {
	if d.histogram == nil {
		return
	}
	d.histogram.Record(ctx, latency.Seconds(), metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("http.route", route),
		attribute.String("http.response.status_code", strconv.Itoa(status)),
	))
}
