package planpricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	domain "github.com/fieldline/customer-api/internal/domain"
)

const (
	defaultTimeout   = 8 * time.Second
	defaultCacheTTL  = 15 * time.Minute
	apiKeyHeader     = "X-Api-Key"
	tracerName       = "github.com/fieldline/customer-api/internal/platform/planpricing"
	maxErrorBodySize = 2 << 10
)

var (
	// ErrPlanNotFound indicates the service has no plan for the requested customer.
	ErrPlanNotFound = errors.New("planpricing: plan not found")
	// ErrUnavailable wraps transport failures and unexpected responses.
	ErrUnavailable = errors.New("planpricing: unavailable")
)

// Config holds plan-pricing connection settings.
type Config struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Client reads plan catalogs and customer plans from the plan-pricing service.
type Client struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	cache    Cache
	cacheTTL time.Duration
	logger   *zap.Logger
	tracer   trace.Tracer
}

// Option customises Client construction.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithCache enables response caching.
func WithCache(cache Cache) Option {
	return func(c *Client) {
		if cache != nil {
			c.cache = cache
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("planpricing: base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	c := &Client{
		baseURL:  base,
		apiKey:   strings.TrimSpace(cfg.APIKey),
		http:     &http.Client{Timeout: timeout},
		cache:    NoopCache{},
		cacheTTL: ttl,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type planPayload struct {
	ID             int             `json:"id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Order          int             `json:"order"`
	InitialPrice   decimal.Decimal `json:"initial_price"`
	RecurringPrice decimal.Decimal `json:"recurring_price"`
	Addons         []addonPayload  `json:"addons"`
}

type addonPayload struct {
	ProductID int             `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
}

func (p planPayload) toDomain() domain.Plan {
	addons := make([]domain.Addon, 0, len(p.Addons))
	for _, a := range p.Addons {
		addons = append(addons, domain.Addon{ProductID: a.ProductID, Name: strings.TrimSpace(a.Name), Price: a.Price})
	}
	return domain.Plan{
		ID:             p.ID,
		Code:           strings.ToLower(strings.TrimSpace(p.Code)),
		Name:           strings.TrimSpace(p.Name),
		Order:          p.Order,
		InitialPrice:   p.InitialPrice,
		RecurringPrice: p.RecurringPrice,
		Addons:         addons,
	}
}

// Plans returns the plan catalog of an office.
func (c *Client) Plans(ctx context.Context, officeID int) ([]domain.Plan, error) {
	key := catalogKey(officeID)
	var cached []planPayload
	if hit := c.cacheGet(ctx, key, &cached); hit {
		return toPlans(cached), nil
	}

	var resp struct {
		Plans []planPayload `json:"plans"`
	}
	path := "/offices/" + strconv.Itoa(officeID) + "/plans"
	if err := c.get(ctx, "plans", path, nil, &resp); err != nil {
		return nil, err
	}
	c.cacheSet(ctx, key, resp.Plans)
	return toPlans(resp.Plans), nil
}

// CurrentPlan returns the plan the customer is subscribed to.
func (c *Client) CurrentPlan(ctx context.Context, officeID, customerID int) (domain.Plan, error) {
	key := currentPlanKey(officeID, customerID)
	var cached planPayload
	if hit := c.cacheGet(ctx, key, &cached); hit {
		return cached.toDomain(), nil
	}

	var resp struct {
		Plan *planPayload `json:"plan"`
	}
	query := url.Values{}
	query.Set("officeID", strconv.Itoa(officeID))
	path := "/customers/" + strconv.Itoa(customerID) + "/plan"
	if err := c.get(ctx, "current_plan", path, query, &resp); err != nil {
		return domain.Plan{}, err
	}
	if resp.Plan == nil {
		return domain.Plan{}, ErrPlanNotFound
	}
	c.cacheSet(ctx, key, *resp.Plan)
	return resp.Plan.toDomain(), nil
}

// Invalidate evicts cached data for a customer so the next read hits the service.
func (c *Client) Invalidate(ctx context.Context, officeID, customerID int) error {
	keys := []string{currentPlanKey(officeID, customerID)}
	if err := c.cache.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("planpricing: invalidate: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	ctx, span := c.tracer.Start(ctx, "planpricing."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrPlanNotFound
	case resp.StatusCode >= http.StatusBadRequest:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		span.SetStatus(codes.Error, resp.Status)
		c.logger.Warn("planpricing request failed",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("body", strings.TrimSpace(string(body))),
		)
		return fmt.Errorf("%w: %s: status %d", ErrUnavailable, op, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: decode: %v", ErrUnavailable, op, err)
	}
	return nil
}

func (c *Client) cacheGet(ctx context.Context, key string, dest any) bool {
	hit, err := c.cache.Get(ctx, key, dest)
	if err != nil {
		c.logger.Warn("planpricing cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return hit
}

func (c *Client) cacheSet(ctx context.Context, key string, value any) {
	if err := c.cache.Set(ctx, key, value, c.cacheTTL); err != nil {
		c.logger.Warn("planpricing cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func toPlans(items []planPayload) []domain.Plan {
	plans := make([]domain.Plan, 0, len(items))
	for _, item := range items {
		plans = append(plans, item.toDomain())
	}
	return plans
}

func catalogKey(officeID int) string {
	return fmt.Sprintf("planpricing:catalog:%d", officeID)
}

func currentPlanKey(officeID, customerID int) string {
	return fmt.Sprintf("planpricing:current:%d:%d", officeID, customerID)
}
