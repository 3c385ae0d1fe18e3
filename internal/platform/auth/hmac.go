package auth

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultSignatureHeader = "X-Signature"
	defaultTimestampHeader = "X-Signature-Timestamp"
	defaultNonceHeader     = "X-Signature-Nonce"
	defaultClockSkew       = 5 * time.Minute
	defaultNonceTTL        = 5 * time.Minute
	maxSignedBodyBytes     = 1 << 20
)

// NonceStore records nonces so a signed request cannot be replayed. UseNonce reports false
// when the nonce was already used within scope.
type NonceStore interface {
	UseNonce(ctx context.Context, scope, nonce string, expiry time.Time) (bool, error)
}

// MemoryNonceStore keeps nonces in process memory.
type MemoryNonceStore struct {
	mu     sync.Mutex
	now    func() time.Time
	nonces map[string]time.Time
}

// NewMemoryNonceStore constructs an empty store.
func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{now: time.Now, nonces: make(map[string]time.Time)}
}

func (s *MemoryNonceStore) UseNonce(_ context.Context, scope, nonce string, expiry time.Time) (bool, error) {
	if scope == "" || nonce == "" {
		return false, errors.New("auth: scope and nonce are required")
	}
	key := scope + "::" + nonce

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, exp := range s.nonces {
		if !exp.After(now) {
			delete(s.nonces, k)
		}
	}
	if _, seen := s.nonces[key]; seen {
		return false, nil
	}
	s.nonces[key] = expiry
	return true, nil
}

// SignatureConfig names the headers and tolerances of signed webhooks.
type SignatureConfig struct {
	SignatureHeader string
	TimestampHeader string
	NonceHeader     string
	ClockSkew       time.Duration
	NonceTTL        time.Duration
}

func (c SignatureConfig) withDefaults() SignatureConfig {
	if c.SignatureHeader == "" {
		c.SignatureHeader = defaultSignatureHeader
	}
	if c.TimestampHeader == "" {
		c.TimestampHeader = defaultTimestampHeader
	}
	if c.NonceHeader == "" {
		c.NonceHeader = defaultNonceHeader
	}
	if c.ClockSkew <= 0 {
		c.ClockSkew = defaultClockSkew
	}
	if c.NonceTTL <= 0 {
		c.NonceTTL = defaultNonceTTL
	}
	return c
}

// WebhookMetadata describes a verified webhook delivery.
type WebhookMetadata struct {
	Source    string
	Timestamp time.Time
	Nonce     string
}

// WebhookFromContext returns the metadata stored by RequireSignature.
func WebhookFromContext(ctx context.Context) (WebhookMetadata, bool) {
	meta, ok := ctx.Value(webhookContextKey).(WebhookMetadata)
	return meta, ok
}

// WebhookVerifier checks HMAC-SHA256 signatures over
// METHOD \n PATH \n TIMESTAMP \n NONCE \n hex(sha256(body)).
type WebhookVerifier struct {
	secrets map[string][]byte
	nonces  NonceStore
	cfg     SignatureConfig
	logger  Logger
	now     func() time.Time
	metrics *verificationMetrics
}

// WebhookOption customises a WebhookVerifier.
type WebhookOption func(*WebhookVerifier)

// WithWebhookClock injects a custom clock.
func WithWebhookClock(now func() time.Time) WebhookOption {
	return func(v *WebhookVerifier) {
		if now != nil {
			v.now = now
		}
	}
}

// WithWebhookLogger overrides the logger.
func WithWebhookLogger(logger Logger) WebhookOption {
	return func(v *WebhookVerifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewWebhookVerifier builds a verifier from shared secrets keyed by source name.
func NewWebhookVerifier(secrets map[string]string, nonces NonceStore, cfg SignatureConfig, opts ...WebhookOption) *WebhookVerifier {
	keyed := make(map[string][]byte, len(secrets))
	for name, secret := range secrets {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" && secret != "" {
			keyed[name] = []byte(secret)
		}
	}
	v := &WebhookVerifier{
		secrets: keyed,
		nonces:  nonces,
		cfg:     cfg.withDefaults(),
		logger:  log.Default(),
		now:     time.Now,
		metrics: newVerificationMetrics(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type rejection struct {
	status int
	reason string
	detail string
}

// RequireSignature rejects requests not signed with the secret registered for source.
func (v *WebhookVerifier) RequireSignature(source string) func(http.Handler) http.Handler {
	source = strings.ToLower(strings.TrimSpace(source))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			meta, rej := v.verify(r, source)
			if rej != nil {
				v.metrics.record(ctx, "hmac", rej.reason)
				respondAuthError(w, r, rej.status, rej.reason, rej.detail)
				return
			}
			v.metrics.record(ctx, "hmac", "ok")
			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, webhookContextKey, meta)))
		})
	}
}

func (v *WebhookVerifier) verify(r *http.Request, source string) (WebhookMetadata, *rejection) {
	secret, ok := v.secrets[source]
	if !ok {
		return WebhookMetadata{}, &rejection{http.StatusServiceUnavailable, "verification_unavailable", "webhook secret not configured"}
	}

	signature, err := decodeSignature(r.Header.Get(v.cfg.SignatureHeader))
	if err != nil {
		return WebhookMetadata{}, &rejection{http.StatusUnauthorized, "signature_invalid", "signature header missing or malformed"}
	}
	rawTimestamp := strings.TrimSpace(r.Header.Get(v.cfg.TimestampHeader))
	timestamp, err := parseSignatureTimestamp(rawTimestamp)
	if err != nil {
		return WebhookMetadata{}, &rejection{http.StatusUnauthorized, "timestamp_invalid", "signature timestamp missing or invalid"}
	}
	now := v.now()
	if skew := now.Sub(timestamp); skew > v.cfg.ClockSkew || skew < -v.cfg.ClockSkew {
		return WebhookMetadata{}, &rejection{http.StatusUnauthorized, "timestamp_skew", "signature timestamp outside allowed window"}
	}
	nonce := strings.TrimSpace(r.Header.Get(v.cfg.NonceHeader))
	if nonce == "" {
		return WebhookMetadata{}, &rejection{http.StatusUnauthorized, "nonce_missing", "signature nonce missing"}
	}

	body, err := readAndRestoreBody(r)
	if err != nil {
		return WebhookMetadata{}, &rejection{http.StatusBadRequest, "invalid_body", "unable to read body"}
	}
	if !hmac.Equal(signature, computeHMAC(secret, canonicalRequest(r, body, rawTimestamp, nonce))) {
		return WebhookMetadata{}, &rejection{http.StatusUnauthorized, "signature_mismatch", "signature verification failed"}
	}

	if v.nonces == nil {
		return WebhookMetadata{}, &rejection{http.StatusServiceUnavailable, "verification_unavailable", "nonce store unavailable"}
	}
	fresh, err := v.nonces.UseNonce(r.Context(), source, nonce, now.Add(v.cfg.NonceTTL))
	if err != nil {
		v.logger.Printf("auth: nonce store error: %v", err)
		return WebhookMetadata{}, &rejection{http.StatusServiceUnavailable, "verification_unavailable", "nonce storage error"}
	}
	if !fresh {
		return WebhookMetadata{}, &rejection{http.StatusUnauthorized, "nonce_replay", "duplicate signature nonce"}
	}

	return WebhookMetadata{Source: source, Timestamp: timestamp, Nonce: nonce}, nil
}

func readAndRestoreBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	buf, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBodyBytes))
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(buf))
	return buf, nil
}

func decodeSignature(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "sha256=")
	if value == "" {
		return nil, errors.New("auth: empty signature")
	}
	if decoded, err := hex.DecodeString(value); err == nil {
		return decoded, nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
		return decoded, nil
	}
	return nil, errors.New("auth: signature must be hex or base64 encoded")
}

func parseSignatureTimestamp(value string) (time.Time, error) {
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(seconds, 0).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}

func canonicalRequest(r *http.Request, body []byte, timestamp, nonce string) []byte {
	path := r.URL.EscapedPath()
	if path == "" {
		path = "/"
	}
	sum := sha256.Sum256(body)
	return []byte(strings.Join([]string{
		strings.ToUpper(r.Method),
		path,
		timestamp,
		nonce,
		hex.EncodeToString(sum[:]),
	}, "\n"))
}

func computeHMAC(secret, message []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(message)
	return mac.Sum(nil)
}
