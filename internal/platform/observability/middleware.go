package observability

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fieldline/customer-api/internal/platform/httpx"
	"github.com/fieldline/customer-api/internal/platform/requestctx"
)

// Log field limits. Values come from the request line and must not forge log entries.
const (
	maxRouteLen  = 180
	maxMethodLen = 10
	maxUIDLen    = 64
	maxIPLen     = 64
)

// InjectLoggerMiddleware makes logger the request-scoped logger.
func InjectLoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestctx.WithLogger(r.Context(), logger)))
		})
	}
}

// RequestLoggerMiddleware writes one completion entry per request, correlated with Cloud Trace.
// The caller's uid and account number are added when AnnotateSubject was called downstream.
func RequestLoggerMiddleware(projectID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			info, _ := requestctx.Trace(ctx)
			if info.ProjectID == "" {
				info.ProjectID = projectID
			}
			method := clean(r.Method, maxMethodLen)

			logger := requestctx.Logger(ctx).With(
				zap.String("request_id", middleware.GetReqID(ctx)),
				zap.String("method", method),
				zap.String("trace_id", info.TraceID),
			)
			if resource := traceResource(info); resource != "" {
				logger = logger.With(zap.String("logging.googleapis.com/trace", resource))
			}
			if ip := remoteIP(r); ip != "" {
				logger = logger.With(zap.String("remote_ip", ip))
			}

			rec := newResponseRecorder(w)
			ctx = requestctx.WithLogger(ctx, logger)
			ctx = context.WithValue(ctx, subjectContextKey{}, rec.subject)
			r = r.WithContext(ctx)

			start := time.Now()
			completed := false
			defer func() {
				status := rec.Status()
				if !completed && status < http.StatusInternalServerError {
					// panicking; RecoveryMiddleware answers 500
					status = http.StatusInternalServerError
				}
				route := clean(routePattern(r), maxRouteLen)
				latency := time.Since(start)

				span := trace.SpanFromContext(ctx)
				span.SetAttributes(semconv.HTTPResponseStatusCode(status), semconv.HTTPRoute(route))
				if status >= http.StatusInternalServerError {
					span.SetStatus(codes.Error, http.StatusText(status))
				}
				requestDuration.record(ctx, method, route, status, latency)

				fields := append([]zap.Field{
					zap.String("route", route),
					zap.Int("status", status),
					zap.Duration("latency", latency),
					zap.Int64("bytes", rec.bytes),
				}, rec.subject.fields()...)
				if ce := logger.Check(completionLevel(status), "request completed"); ce != nil {
					ce.Write(fields...)
				}
			}()

			next.ServeHTTP(rec, r)
			completed = true
		})
	}
}

// RecoveryMiddleware turns a panic into a logged stack trace and a 500 JSON:API error.
func RecoveryMiddleware(fallback *zap.Logger) func(http.Handler) http.Handler {
	if fallback == nil {
		fallback = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				ctx := r.Context()
				logger := requestctx.Logger(ctx)
				if logger == requestctx.NoopLogger() {
					logger = fallback
				}
				logger.Error("panic recovered", zap.Any("panic", rec), zap.ByteString("stack", debug.Stack()))
				httpx.WriteError(ctx, w, httpx.NewError("internal_error", "an unexpected error occurred", http.StatusInternalServerError))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func completionLevel(status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	if r.URL.Path == "" {
		return "/"
	}
	return r.URL.Path
}

func remoteIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return clean(addr, maxIPLen)
}

func traceResource(info requestctx.TraceInfo) string {
	if info.ProjectID == "" || info.TraceID == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/traces/%s", info.ProjectID, info.TraceID)
}

// clean drops control characters and truncates to limit runes.
func clean(value string, limit int) string {
	out := make([]rune, 0, min(len(value), limit))
	for _, r := range value {
		if len(out) == limit {
			break
		}
		if unicode.IsControl(r) {
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

type subjectContextKey struct{}

// AnnotateSubject records who made the request so the completion entry carries it.
func AnnotateSubject(ctx context.Context, uid string, accountNumber int) {
	subject, ok := ctx.Value(subjectContextKey{}).(*requestSubject)
	if !ok {
		return
	}
	if uid != "" {
		subject.uid = clean(uid, maxUIDLen)
	}
	if accountNumber > 0 {
		subject.accountNumber = accountNumber
	}
}

type requestSubject struct {
	uid           string
	accountNumber int
}

func (s *requestSubject) fields() []zap.Field {
	var fields []zap.Field
	if s.uid != "" {
		fields = append(fields, zap.String("user_id", s.uid))
	}
	if s.accountNumber > 0 {
		fields = append(fields, zap.Int("account_number", s.accountNumber))
	}
	return fields
}

type responseRecorder struct {
	http.ResponseWriter
	status  int
	bytes   int64
	subject *requestSubject
}

func newResponseRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{ResponseWriter: w, subject: &requestSubject{}}
}

func (r *responseRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += int64(n)
	return n, err
}

func (r *responseRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *responseRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
