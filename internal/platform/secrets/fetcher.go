package secrets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultFallbackPath = ".secrets.local"
	defaultCacheTTL     = 10 * time.Minute
	meterName           = "github.com/fieldline/customer-api/internal/platform/secrets"
)

var (
	// ErrInvalidReference reports a reference that is not secret://name[?version=&project=].
	ErrInvalidReference = errors.New("secrets: invalid reference")
	// ErrNotFound reports a secret missing both remotely and in the fallback file.
	ErrNotFound = errors.New("secrets: secret not found")
)

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves secret:// references (field-service token, Stripe key, Redis password,
// webhook secrets) from Secret Manager. Values are cached for a TTL so rotations are picked up
// without a restart. When Secret Manager is unreachable, values come from a local dotenv file.
type Fetcher struct {
	client     secretManagerClient
	ownsClient bool
	logger     *zap.Logger
	project    string
	ttl        time.Duration
	now        func() time.Time

	fallbackPath string
	fallbackOnce sync.Once
	fallback     map[string]string

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]cacheEntry

	latency metric.Float64Histogram
	hits    metric.Int64Counter
}

type cacheEntry struct {
	value   string
	expires time.Time
}

type fetcherConfig struct {
	logger       *zap.Logger
	project      string
	ttl          time.Duration
	fallbackPath string
	client       secretManagerClient
	clientOpts   []option.ClientOption
	meter        metric.Meter
	now          func() time.Time
}

// Option customises Fetcher construction.
type Option func(*fetcherConfig)

func WithLogger(logger *zap.Logger) Option {
	return func(cfg *fetcherConfig) { cfg.logger = logger }
}

// WithDefaultProject sets the project used when a reference names none.
func WithDefaultProject(projectID string) Option {
	return func(cfg *fetcherConfig) { cfg.project = strings.TrimSpace(projectID) }
}

// WithCacheTTL overrides how long resolved values are reused.
func WithCacheTTL(ttl time.Duration) Option {
	return func(cfg *fetcherConfig) {
		if ttl > 0 {
			cfg.ttl = ttl
		}
	}
}

// WithFallbackFile overrides the local fallback file. An empty path disables the fallback.
func WithFallbackFile(path string) Option {
	return func(cfg *fetcherConfig) { cfg.fallbackPath = strings.TrimSpace(path) }
}

// WithSecretManagerClient injects a client, mainly for tests.
func WithSecretManagerClient(client secretManagerClient) Option {
	return func(cfg *fetcherConfig) { cfg.client = client }
}

func WithClientOptions(opts ...option.ClientOption) Option {
	return func(cfg *fetcherConfig) { cfg.clientOpts = append(cfg.clientOpts, opts...) }
}

func WithMeter(m metric.Meter) Option {
	return func(cfg *fetcherConfig) { cfg.meter = m }
}

func withClock(now func() time.Time) Option {
	return func(cfg *fetcherConfig) { cfg.now = now }
}

// NewFetcher builds a Fetcher. A Secret Manager client that cannot be created (no credentials
// on a laptop) is logged and the fetcher runs from the fallback file alone.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	cfg := fetcherConfig{
		logger:       zap.NewNop(),
		ttl:          defaultCacheTTL,
		fallbackPath: defaultFallbackPath,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.meter == nil {
		cfg.meter = otel.GetMeterProvider().Meter(meterName)
	}

	f := &Fetcher{
		client:       cfg.client,
		logger:       cfg.logger.Named("secrets"),
		project:      cfg.project,
		ttl:          cfg.ttl,
		now:          cfg.now,
		fallbackPath: cfg.fallbackPath,
		cache:        make(map[string]cacheEntry),
	}

	var err error
	if f.latency, err = cfg.meter.Float64Histogram("secrets.fetch.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("Secret resolution latency by source"),
	); err != nil {
		f.logger.Warn("unable to register latency metric", zap.Error(err))
	}
	if f.hits, err = cfg.meter.Int64Counter("secrets.cache.hits",
		metric.WithDescription("Secret resolutions served from cache"),
	); err != nil {
		f.logger.Warn("unable to register cache metric", zap.Error(err))
	}

	if f.client == nil {
		client, err := secretmanager.NewClient(ctx, cfg.clientOpts...)
		if err != nil {
			f.logger.Warn("secret manager unavailable; using fallback file only", zap.Error(err))
		} else {
			f.client = client
			f.ownsClient = true
		}
	}
	return f, nil
}

func (f *Fetcher) Close() error {
	if f.ownsClient && f.client != nil {
		return f.client.Close()
	}
	return nil
}

// ResolveSecret satisfies config.SecretResolver.
func (f *Fetcher) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f.Resolve(ctx, ref)
}

// Resolve returns the value for ref, using the cache when it is fresh. Concurrent callers for
// the same reference share one remote fetch.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (string, error) {
	start := time.Now()
	parsed, err := parseReference(ref)
	if err != nil {
		return "", err
	}
	key := parsed.key()

	if value, ok := f.cached(key); ok {
		if f.hits != nil {
			f.hits.Add(ctx, 1, metric.WithAttributes(attribute.String("secret", maskReference(key))))
		}
		f.record(ctx, start, "cache")
		return value, nil
	}

	value, err, _ := f.group.Do(key, func() (any, error) {
		value, source, err := f.fetch(ctx, parsed)
		if err != nil {
			return "", err
		}
		f.mu.Lock()
		f.cache[key] = cacheEntry{value: value, expires: f.now().Add(f.ttl)}
		f.mu.Unlock()
		f.record(ctx, start, source)
		return value, nil
	})
	if err != nil {
		f.record(ctx, start, "error")
		return "", err
	}
	return value.(string), nil
}

// Invalidate drops the cached value for ref so the next Resolve goes back to Secret Manager.
func (f *Fetcher) Invalidate(ref string) {
	parsed, err := parseReference(ref)
	if err != nil {
		return
	}
	f.mu.Lock()
	delete(f.cache, parsed.key())
	f.mu.Unlock()
}

func (f *Fetcher) cached(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	entry, ok := f.cache[key]
	if !ok || !f.now().Before(entry.expires) {
		return "", false
	}
	return entry.value, true
}

func (f *Fetcher) fetch(ctx context.Context, ref reference) (string, string, error) {
	project := ref.project
	if project == "" {
		project = f.project
	}
	if f.client != nil && project != "" {
		name := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, ref.name, ref.version)
		resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
		switch {
		case err == nil && resp.GetPayload() != nil:
			return string(resp.GetPayload().GetData()), "remote", nil
		case err == nil:
			return "", "", fmt.Errorf("secrets: empty payload for %s", name)
		case !fallbackEligible(err):
			return "", "", fmt.Errorf("secrets: access %s: %w", name, err)
		}
		f.logger.Debug("falling back to local secrets", zap.String("secret", ref.name), zap.Error(err))
	}

	if value, ok := f.lookupFallback(ref); ok {
		return value, "fallback", nil
	}
	return "", "", fmt.Errorf("%w: %s", ErrNotFound, ref.name)
}

// lookupFallback reads the dotenv-style fallback file, where secret://stripe-api-key is stored
// as STRIPE_API_KEY.
func (f *Fetcher) lookupFallback(ref reference) (string, bool) {
	f.fallbackOnce.Do(func() {
		f.fallback = map[string]string{}
		if f.fallbackPath == "" {
			return
		}
		values, err := godotenv.Read(f.fallbackPath)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				f.logger.Warn("unable to read fallback file", zap.String("path", f.fallbackPath), zap.Error(err))
			}
			return
		}
		f.fallback = values
	})
	value, ok := f.fallback[fallbackKey(ref.name)]
	return value, ok && value != ""
}

func fallbackKey(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
}

func (f *Fetcher) record(ctx context.Context, start time.Time, source string) {
	if f.latency == nil {
		return
	}
	f.latency.Record(ctx, float64(time.Since(start))/float64(time.Millisecond),
		metric.WithAttributes(attribute.String("source", source)))
}

type reference struct {
	name    string
	version string
	project string
}

func (r reference) key() string {
	return r.project + "/" + r.name + "#" + r.version
}

// parseReference accepts secret://name and sm://name with optional version and project query
// parameters.
func parseReference(ref string) (reference, error) {
	ref = strings.TrimSpace(ref)
	if rest, ok := strings.CutPrefix(ref, "sm://"); ok {
		ref = "secret://" + rest
	}
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "secret" {
		return reference{}, fmt.Errorf("%w: %q", ErrInvalidReference, ref)
	}
	name := strings.Trim(u.Host+u.Path, "/")
	if name == "" {
		return reference{}, fmt.Errorf("%w: missing secret name", ErrInvalidReference)
	}
	query := u.Query()
	version := strings.TrimSpace(query.Get("version"))
	if version == "" {
		version = "latest"
	}
	return reference{name: name, version: version, project: strings.TrimSpace(query.Get("project"))}, nil
}

func maskReference(ref string) string {
	sum := sha256.Sum256([]byte(ref))
	return hex.EncodeToString(sum[:8])
}

// fallbackEligible reports errors that mean "Secret Manager is not reachable from here" rather
// than "this secret does not exist".
func fallbackEligible(err error) bool {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}
