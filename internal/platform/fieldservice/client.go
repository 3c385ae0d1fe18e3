package fieldservice

import (
	"bytes"
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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout           = 10 * time.Second
	defaultRequestsPerSecond = 10
	defaultBurst             = 5
	maxErrorBody             = 4 << 10
	instrumentationName      = "github.com/fieldline/customer-api/internal/platform/fieldservice"

	headerAuthKey   = "authenticationKey"
	headerAuthToken = "authenticationToken"
)

// Resource names a field-service REST collection.
type Resource string

const (
	ResourceAppointment    Resource = "appointment"
	ResourceCustomer       Resource = "customer"
	ResourceSubscription   Resource = "subscription"
	ResourceServiceType    Resource = "serviceType"
	ResourceSpot           Resource = "spot"
	ResourceEmployee       Resource = "employee"
	ResourcePayment        Resource = "payment"
	ResourcePaymentProfile Resource = "paymentProfile"
	ResourceDocument       Resource = "document"
	ResourceOffice         Resource = "office"
	ResourceTicket         Resource = "ticket"
	ResourceContract       Resource = "contract"
	ResourceForm           Resource = "form"
)

// Config holds connection settings for the field-service API.
type Config struct {
	BaseURL           string
	AuthKey           string
	AuthToken         string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Client issues authenticated, rate limited calls against the field-service API.
type Client struct {
	baseURL   string
	authKey   string
	authToken string
	http      *http.Client
	limiter   *rate.Limiter
	logger    *zap.Logger
	tracer    trace.Tracer
	latency   metric.Float64Histogram
	requests  metric.Int64Counter
}

type clientConfig struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	meter      metric.Meter
	tracer     trace.Tracer
}

// Option customises Client construction.
type Option func(*clientConfig)

// WithHTTPClient overrides the HTTP client used for outbound calls.
func WithHTTPClient(client *http.Client) Option {
	return func(cfg *clientConfig) {
		cfg.httpClient = client
	}
}

// WithLimiter replaces the token bucket built from Config.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(cfg *clientConfig) {
		cfg.limiter = limiter
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *clientConfig) {
		cfg.logger = logger
	}
}

// WithMeter injects a custom OpenTelemetry meter.
func WithMeter(m metric.Meter) Option {
	return func(cfg *clientConfig) {
		cfg.meter = m
	}
}

// WithTracer injects a custom tracer.
func WithTracer(t trace.Tracer) Option {
	return func(cfg *clientConfig) {
		cfg.tracer = t
	}
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("fieldservice: base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("fieldservice: invalid base url: %w", err)
	}
	if strings.TrimSpace(cfg.AuthKey) == "" || strings.TrimSpace(cfg.AuthToken) == "" {
		return nil, errors.New("fieldservice: authentication key and token are required")
	}

	options := clientConfig{}
	for _, opt := range opts {
		opt(&options)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := options.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	limiter := options.limiter
	if limiter == nil {
		qps := cfg.RequestsPerSecond
		if qps <= 0 {
			qps = defaultRequestsPerSecond
		}
		burst := cfg.Burst
		if burst <= 0 {
			burst = defaultBurst
		}
		limiter = rate.NewLimiter(rate.Limit(qps), burst)
	}

	logger := options.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	meter := options.meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(instrumentationName)
	}
	tracer := options.tracer
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}

	latency, err := meter.Float64Histogram(
		"fieldservice.request.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency in milliseconds for field-service requests"),
	)
	if err != nil {
		logger.Warn("fieldservice: unable to register latency metric", zap.Error(err))
	}
	requests, err := meter.Int64Counter(
		"fieldservice.request.count",
		metric.WithDescription("Count of field-service requests by resource and outcome"),
	)
	if err != nil {
		logger.Warn("fieldservice: unable to register request metric", zap.Error(err))
	}

	return &Client{
		baseURL:   base,
		authKey:   strings.TrimSpace(cfg.AuthKey),
		authToken: strings.TrimSpace(cfg.AuthToken),
		http:      httpClient,
		limiter:   limiter,
		logger:    logger,
		tracer:    tracer,
		latency:   latency,
		requests:  requests,
	}, nil
}

type envelope struct {
	Success      *bool           `json:"success"`
	ErrorMessage string          `json:"errorMessage"`
	Result       json.RawMessage `json:"result"`
	Count        Int             `json:"count"`
	Resolved     json.RawMessage `json:"resolvedObjects"`
}

func (c *Client) do(ctx context.Context, method string, resource Resource, op string, path string, query url.Values, body any) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "fieldservice."+op, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("fieldservice.resource", string(resource)),
			attribute.String("http.request.method", method),
		))
	defer span.End()

	start := time.Now()
	payload, err := c.roundTrip(ctx, method, resource, op, path, query, body)
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	outcome := "ok"
	if err != nil {
		outcome = outcomeOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		c.logger.Warn("fieldservice request failed",
			zap.String("resource", string(resource)),
			zap.String("op", op),
			zap.Float64("latency_ms", elapsed),
			zap.Error(err),
		)
	} else {
		c.logger.Debug("fieldservice request",
			zap.String("resource", string(resource)),
			zap.String("op", op),
			zap.Float64("latency_ms", elapsed),
		)
	}

	attrs := metric.WithAttributes(
		attribute.String("resource", string(resource)),
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	)
	if c.latency != nil {
		c.latency.Record(ctx, elapsed, attrs)
	}
	if c.requests != nil {
		c.requests.Add(ctx, 1, attrs)
	}
	return payload, err
}

func (c *Client) roundTrip(ctx context.Context, method string, resource Resource, op string, path string, query url.Values, body any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, transportError(resource, op, err)
	}

	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("fieldservice: encode %s %s: %w", op, resource, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, transportError(resource, op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(headerAuthKey, c.authKey)
	req.Header.Set(headerAuthToken, c.authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(resource, op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(resource, op, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(data, &env)
	if resp.StatusCode >= http.StatusBadRequest {
		message := env.ErrorMessage
		if decodeErr != nil || message == "" {
			message = truncate(string(data), maxErrorBody)
		}
		return nil, newResponseError(resource, op, resp.StatusCode, message)
	}
	if decodeErr != nil {
		return nil, transportError(resource, op, fmt.Errorf("decode response: %w", decodeErr))
	}
	if env.Success != nil && !*env.Success {
		return nil, newResponseError(resource, op, resp.StatusCode, env.ErrorMessage)
	}
	return data, nil
}

// Ping performs a minimal authenticated call used by readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	query := url.Values{}
	query.Set("limit", "1")
	_, err := c.do(ctx, http.MethodGet, ResourceOffice, "ping", string(ResourceOffice)+"/search", query, nil)
	return err
}

// Get fetches a single entity of resource by id within officeID.
func Get[T any](ctx context.Context, c *Client, resource Resource, officeID, id int) (T, error) {
	var zero T
	query := url.Values{}
	if officeID > 0 {
		query.Set("officeID", strconv.Itoa(officeID))
	}
	data, err := c.do(ctx, http.MethodGet, resource, "get", string(resource)+"/"+strconv.Itoa(id), query, nil)
	if err != nil {
		return zero, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return zero, transportError(resource, "get", fmt.Errorf("decode response: %w", err))
	}
	raw, ok := fields[string(resource)]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return zero, newResponseError(resource, "get", http.StatusNotFound, fmt.Sprintf("%s %d not found", resource, id))
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, transportError(resource, "get", fmt.Errorf("decode %s: %w", resource, err))
	}
	return out, nil
}

// Search lists entities of resource matching params within officeID.
func Search[T any](ctx context.Context, c *Client, resource Resource, officeID int, params Params) ([]T, error) {
	query := params.values()
	if officeID > 0 {
		query.Set("officeIDs", "["+strconv.Itoa(officeID)+"]")
	}
	query.Set("includeData", "1")
	data, err := c.do(ctx, http.MethodGet, resource, "search", string(resource)+"/search", query, nil)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, transportError(resource, "search", fmt.Errorf("decode response: %w", err))
	}
	if len(env.Resolved) == 0 || string(env.Resolved) == "null" {
		return []T{}, nil
	}
	var out []T
	if err := json.Unmarshal(env.Resolved, &out); err != nil {
		return nil, transportError(resource, "search", fmt.Errorf("decode %s list: %w", resource, err))
	}
	return out, nil
}

// Create posts a new entity and returns the identifier assigned by the remote.
func (c *Client) Create(ctx context.Context, resource Resource, officeID int, body any) (int, error) {
	data, err := c.do(ctx, http.MethodPost, resource, "create", string(resource), officeQuery(officeID), body)
	if err != nil {
		return 0, err
	}
	return decodeResultID(resource, "create", data)
}

// Update posts changes for an existing entity.
func (c *Client) Update(ctx context.Context, resource Resource, officeID, id int, body any) (int, error) {
	data, err := c.do(ctx, http.MethodPost, resource, "update", string(resource)+"/"+strconv.Itoa(id), officeQuery(officeID), body)
	if err != nil {
		return 0, err
	}
	return decodeResultID(resource, "update", data)
}

// Delete removes (or cancels, for appointments) an entity.
func (c *Client) Delete(ctx context.Context, resource Resource, officeID, id int) error {
	_, err := c.do(ctx, http.MethodDelete, resource, "delete", string(resource)+"/"+strconv.Itoa(id), officeQuery(officeID), nil)
	return err
}

func decodeResultID(resource Resource, op string, data []byte) (int, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return 0, transportError(resource, op, fmt.Errorf("decode response: %w", err))
	}
	if len(env.Result) == 0 {
		return 0, nil
	}
	var id Int
	if err := json.Unmarshal(env.Result, &id); err != nil {
		return 0, transportError(resource, op, fmt.Errorf("decode result: %w", err))
	}
	return int(id), nil
}

func officeQuery(officeID int) url.Values {
	query := url.Values{}
	if officeID > 0 {
		query.Set("officeID", strconv.Itoa(officeID))
	}
	return query
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRejected):
		return "rejected"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "unavailable"
	}
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}
