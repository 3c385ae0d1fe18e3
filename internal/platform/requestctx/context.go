// Package requestctx carries per-request values between middleware, handlers and services.
package requestctx

import (
	"context"

	"go.uber.org/zap"

	domain "github.com/fieldline/customer-api/internal/domain"
)

type (
	loggerKey  struct{}
	traceKey   struct{}
	accountKey struct{}
)

var noopLogger = zap.NewNop()

// TraceInfo identifies the request's span for log correlation.
type TraceInfo struct {
	TraceID   string
	SpanID    string
	Sampled   bool
	ProjectID string
}

func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if logger == nil {
		logger = noopLogger
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Logger returns the request logger, or NoopLogger when none was injected.
func Logger(ctx context.Context) *zap.Logger {
	if logger, ok := value[*zap.Logger](ctx, loggerKey{}); ok && logger != nil {
		return logger
	}
	return noopLogger
}

// NoopLogger is the shared fallback returned by Logger; compare against it to detect absence.
func NoopLogger() *zap.Logger { return noopLogger }

func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	return context.WithValue(ctx, traceKey{}, info)
}

func Trace(ctx context.Context) (TraceInfo, bool) {
	return value[TraceInfo](ctx, traceKey{})
}

// TraceID is empty outside a traced request.
func TraceID(ctx context.Context) string {
	info, _ := Trace(ctx)
	return info.TraceID
}

// WithAccount stores the customer account linked to the caller.
func WithAccount(ctx context.Context, account domain.Account) context.Context {
	return context.WithValue(ctx, accountKey{}, account)
}

// Account reports false until account resolution has run for the request.
func Account(ctx context.Context) (domain.Account, bool) {
	return value[domain.Account](ctx, accountKey{})
}

func value[T any](ctx context.Context, key any) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(key).(T)
	return v, ok
}
