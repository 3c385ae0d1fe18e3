package observability

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fieldline/customer-api/internal/platform/requestctx"
)

// NewLogger builds the process logger. Output is Cloud Logging shaped JSON unless
// LOG_FORMAT=console; LOG_LEVEL picks the minimum level and defaults to info.
func NewLogger() (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if raw := strings.TrimSpace(os.Getenv("LOG_LEVEL")); raw != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(raw))); err != nil {
			return nil, err
		}
	}

	encoder := zap.NewProductionEncoderConfig()
	encoder.MessageKey = "message"
	encoder.TimeKey = "timestamp"
	encoder.LevelKey = "severity"
	encoder.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	encoder.EncodeLevel = zapcore.CapitalLevelEncoder

	cfg := zap.Config{
		Level:             level,
		Encoding:          "json",
		EncoderConfig:     encoder,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: true,
	}
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "console") {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return cfg.Build()
}

// WithLogger injects the logger into ctx.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return requestctx.WithLogger(ctx, logger)
}

// PrintfAdapter satisfies the Printf-only Logger interfaces of the auth and idempotency packages.
type PrintfAdapter struct {
	logger *zap.SugaredLogger
}

func NewPrintfAdapter(logger *zap.Logger) PrintfAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return PrintfAdapter{logger: logger.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (a PrintfAdapter) Printf(format string, args ...any) {
	a.logger.Infof(format, args...)
}

// EventLogger adapts zap to the func(ctx, event, fields) loggers taken by services. The
// request-scoped logger is preferred so entries carry request and trace ids. An error
// valued field raises the entry to warn.
func EventLogger(base *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	if base == nil {
		base = zap.NewNop()
	}
	return func(ctx context.Context, event string, fields map[string]any) {
		logger := requestctx.Logger(ctx)
		if logger == requestctx.NoopLogger() {
			logger = base
		}
		zapFields := make([]zap.Field, 0, len(fields)+1)
		zapFields = append(zapFields, zap.String("event", event))
		level := zapcore.InfoLevel
		for key, value := range fields {
			if err, ok := value.(error); ok {
				level = zapcore.WarnLevel
				zapFields = append(zapFields, zap.NamedError(key, err))
				continue
			}
			zapFields = append(zapFields, zap.Any(key, value))
		}
		if ce := logger.Check(level, event); ce != nil {
			ce.Write(zapFields...)
		}
	}
}
