package idempotency

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fieldline/customer-api/internal/platform/auth"
	"github.com/fieldline/customer-api/internal/platform/httpx"
	"github.com/fieldline/customer-api/internal/platform/requestctx"
)

const (
	defaultHeaderName = "Idempotency-Key"
	replayHeaderName  = "X-Idempotent-Replay"
	maxKeyLength      = 255
)

// Logger receives persistence failures that cannot be surfaced to the client.
type Logger interface {
	Printf(format string, args ...any)
}

// Option configures Middleware.
type Option func(*guard)

// WithHeader changes the request header carrying the key.
func WithHeader(name string) Option {
	return func(g *guard) {
		if name = strings.TrimSpace(name); name != "" {
			g.header = name
		}
	}
}

// WithTTL sets how long a completed response stays replayable.
func WithTTL(ttl time.Duration) Option {
	return func(g *guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithMethods limits the guarded methods. Other methods pass through untouched.
func WithMethods(methods ...string) Option {
	return func(g *guard) {
		set := make(map[string]bool, len(methods))
		for _, m := range methods {
			if m = strings.ToUpper(strings.TrimSpace(m)); m != "" {
				set[m] = true
			}
		}
		if len(set) > 0 {
			g.methods = set
		}
	}
}

// WithOptionalKey lets requests without the header reach the handler unguarded.
func WithOptionalKey() Option {
	return func(g *guard) { g.optional = true }
}

func WithLogger(logger Logger) Option {
	return func(g *guard) { g.logger = logger }
}

func WithClock(clock func() time.Time) Option {
	return func(g *guard) {
		if clock != nil {
			g.now = clock
		}
	}
}

// Middleware replays the stored response for a repeated key and rejects concurrent or
// mismatched reuse. Responses with a 5xx status are never stored so the client can retry.
func Middleware(store Store, opts ...Option) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	g := &guard{
		store:  store,
		header: defaultHeaderName,
		ttl:    DefaultTTL,
		methods: map[string]bool{
			http.MethodPost:   true,
			http.MethodPut:    true,
			http.MethodPatch:  true,
			http.MethodDelete: true,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.serve(next, w, r)
		})
	}
}

type guard struct {
	store    Store
	header   string
	ttl      time.Duration
	methods  map[string]bool
	optional bool
	now      func() time.Time
	logger   Logger
}

// attempt is one guarded request: the caller's key, scoped to the requester.
type attempt struct {
	raw         string
	scoped      string
	fingerprint string
}

func (g *guard) serve(next http.Handler, w http.ResponseWriter, r *http.Request) {
	if !g.methods[r.Method] {
		next.ServeHTTP(w, r)
		return
	}

	key := strings.TrimSpace(r.Header.Get(g.header))
	switch {
	case key == "" && g.optional:
		next.ServeHTTP(w, r)
		return
	case key == "":
		g.reject(w, r, http.StatusBadRequest, "idempotency_key_required", "missing "+g.header+" header")
		return
	case len(key) > maxKeyLength:
		g.reject(w, r, http.StatusBadRequest, "idempotency_key_invalid",
			g.header+" must be at most "+strconv.Itoa(maxKeyLength)+" characters")
		return
	}

	body, err := readAndReplayBody(r)
	if err != nil {
		g.reject(w, r, http.StatusBadRequest, "idempotency_read_body_failed", "unable to read request body")
		return
	}
	requester := extractRequester(r.Context())
	a := attempt{
		raw:         key,
		scoped:      scopedKey(key, requester),
		fingerprint: requestFingerprint(r, body, requester),
	}

	reservation, err := g.store.Reserve(r.Context(), a.scoped, a.fingerprint, g.now().UTC(), g.ttl)
	switch {
	case errors.Is(err, ErrFingerprintMismatch):
		g.reject(w, r, http.StatusConflict, "idempotency_key_conflict", "idempotency key already used for a different request")
		return
	case err != nil:
		g.logf("idempotency: reserve %s: %v", a.raw, err)
		g.reject(w, r, http.StatusInternalServerError, "idempotency_store_error", "unable to process idempotency key")
		return
	}

	switch reservation.State {
	case ReservationStateNew:
		g.run(next, w, r, a)
	case ReservationStateCompleted:
		replay(w, reservation.Record)
	case ReservationStatePending:
		g.reject(w, r, http.StatusConflict, "idempotency_in_progress", "another request is processing this idempotency key")
	default:
		g.reject(w, r, http.StatusInternalServerError, "idempotency_unknown_state", "unexpected idempotency state")
	}
}

// run executes the handler into a buffer and persists the outcome before anything reaches the client.
func (g *guard) run(next http.Handler, w http.ResponseWriter, r *http.Request, a attempt) {
	buf := newBufferedResponse()
	next.ServeHTTP(buf, r)

	if buf.status() >= http.StatusInternalServerError {
		g.release(r.Context(), a)
		g.flush(w, buf, a)
		return
	}

	resp := Response{Status: buf.status(), Headers: buf.header.Clone(), Body: buf.bytes()}
	if err := g.store.SaveResponse(r.Context(), a.scoped, a.fingerprint, resp, g.now().UTC(), g.ttl); err != nil {
		g.logf("idempotency: save %s: %v", a.raw, err)
		g.release(r.Context(), a)
		g.reject(w, r, http.StatusInternalServerError, "idempotency_store_error", "unable to persist idempotency state")
		return
	}
	g.flush(w, buf, a)
}

func (g *guard) release(ctx context.Context, a attempt) {
	if err := g.store.Release(ctx, a.scoped, a.fingerprint); err != nil {
		g.logf("idempotency: release %s: %v", a.raw, err)
	}
}

func (g *guard) flush(w http.ResponseWriter, buf *bufferedResponse, a attempt) {
	if err := buf.writeTo(w); err != nil {
		g.logf("idempotency: flush %s: %v", a.raw, err)
	}
}

func (g *guard) reject(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	e := httpx.NewError(code, detail, status)
	if status < http.StatusInternalServerError {
		e = e.WithPointer("/header/" + g.header)
	}
	httpx.WriteError(r.Context(), w, e)
}

func (g *guard) logf(format string, args ...any) {
	if g.logger != nil {
		g.logger.Printf(format, args...)
	}
}

func readAndReplayBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// requestFingerprint identifies the request a key was first used with.
func requestFingerprint(r *http.Request, body []byte, requester string) string {
	parts := []string{
		strings.ToUpper(r.Method),
		r.URL.Path,
		r.URL.RawQuery,
		r.Header.Get("Content-Type"),
		requester,
		"",
	}
	if len(body) > 0 {
		parts[len(parts)-1] = sha256Hex(body)
	}
	return sha256Hex([]byte(strings.Join(parts, "|")))
}

// extractRequester scopes keys by customer account, falling back to the authenticated subject.
func extractRequester(ctx context.Context) string {
	if account, ok := requestctx.Account(ctx); ok && account.AccountNumber > 0 {
		return "account:" + strconv.Itoa(account.OfficeID) + ":" + strconv.Itoa(account.AccountNumber)
	}
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil && identity.UID != "" {
		return "user:" + identity.UID
	}
	if svc, ok := auth.ServiceIdentityFromContext(ctx); ok && svc != nil && svc.Subject != "" {
		return "service:" + svc.Subject
	}
	return "anonymous"
}

func scopedKey(key, requester string) string {
	if requester = strings.TrimSpace(requester); requester == "" {
		requester = "anonymous"
	}
	return requester + "|" + strings.TrimSpace(key)
}

func replay(w http.ResponseWriter, record Record) {
	dst := w.Header()
	for name, values := range headersFromRecord(record.ResponseHeaders) {
		dst[name] = values
	}
	dst.Set(replayHeaderName, "true")

	status := record.ResponseStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(record.ResponseBody) > 0 {
		_, _ = w.Write(record.ResponseBody)
	}
}

// bufferedResponse holds the handler's output until the guard decides what to persist.
type bufferedResponse struct {
	header http.Header
	code   int
	body   bytes.Buffer
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header)}
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) {
	if b.code == 0 && status > 0 {
		b.code = status
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.code == 0 {
		b.code = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedResponse) status() int {
	if b.code == 0 {
		return http.StatusOK
	}
	return b.code
}

func (b *bufferedResponse) bytes() []byte {
	if b.body.Len() == 0 {
		return nil
	}
	return b.body.Bytes()
}

func (b *bufferedResponse) writeTo(w http.ResponseWriter) error {
	dst := w.Header()
	for name, values := range b.header {
		dst[name] = values
	}
	w.WriteHeader(b.status())
	if b.body.Len() == 0 {
		return nil
	}
	_, err := w.Write(b.body.Bytes())
	return err
}
