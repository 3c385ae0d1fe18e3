package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fieldline/customer-api/internal/platform/httpx"
)

// RouteRegistrar adds routes to r.
type RouteRegistrar func(r chi.Router)

type middlewareFunc = func(http.Handler) http.Handler

const (
	defaultAPIPrefix = "/api/v2"
	requestTimeout   = 60 * time.Second
)

// routeGroup is a set of routes sharing middleware.
type routeGroup struct {
	middlewares []middlewareFunc
	routes      []RouteRegistrar
}

func (g routeGroup) empty() bool { return len(g.routes) == 0 }

func (g routeGroup) register(r chi.Router) {
	for _, mw := range g.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}
	for _, reg := range g.routes {
		if reg != nil {
			reg(r)
		}
	}
}

type routerConfig struct {
	basePath string
	global   []middlewareFunc
	health   *HealthHandlers

	// customer wraps link and account; account additionally resolves the linked account.
	customer routeGroup
	account  routeGroup
	internal routeGroup
	webhooks routeGroup
}

type Option func(*routerConfig)

// NewRouter builds the API:
//
//	/healthz, /readyz             no auth
//	{base}/webhooks/...           webhook middleware (HMAC)
//	{base}/internal/...           internal middleware (OIDC)
//	{base}/...                    customer middleware, then account middleware for account routes
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		basePath: defaultAPIPrefix,
		global:   []middlewareFunc{middleware.RequestID, middleware.RealIP, middleware.Timeout(requestTimeout)},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	r := chi.NewRouter()
	for _, mw := range cfg.global {
		if mw != nil {
			r.Use(mw)
		}
	}
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("route_not_found", "no route for "+req.URL.Path, http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed",
			"method "+req.Method+" not allowed on "+req.URL.Path, http.StatusMethodNotAllowed))
	})
	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)

	r.Route(cfg.basePath, func(api chi.Router) {
		mountOrStub(api, "/webhooks", cfg.webhooks)
		mountOrStub(api, "/internal", cfg.internal)

		if cfg.customer.empty() && cfg.account.empty() {
			return
		}
		api.Group(func(customer chi.Router) {
			cfg.customer.register(customer)
			customer.Group(cfg.account.register)
		})
	})
	return r
}

// mountOrStub answers 501 under path when the group has no routes, so a missing wiring is visible.
func mountOrStub(api chi.Router, path string, g routeGroup) {
	if g.empty() {
		g.routes = []RouteRegistrar{notImplemented(path)}
	}
	api.Route(path, g.register)
}

func notImplemented(path string) RouteRegistrar {
	return func(r chi.Router) {
		stub := func(w http.ResponseWriter, req *http.Request) {
			httpx.WriteError(req.Context(), w, httpx.NewError("not_implemented", path+" routes not implemented", http.StatusNotImplemented))
		}
		r.HandleFunc("/", stub)
		r.HandleFunc("/*", stub)
	}
}

func WithBasePath(path string) Option {
	return func(cfg *routerConfig) {
		if path != "" {
			cfg.basePath = path
		}
	}
}

// WithMiddlewares appends router-wide middleware after RequestID, RealIP and Timeout.
func WithMiddlewares(mw ...middlewareFunc) Option {
	return func(cfg *routerConfig) { cfg.global = append(cfg.global, mw...) }
}

func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) { cfg.health = h }
}

// WithCustomerMiddlewares wraps every customer route, linked or not.
func WithCustomerMiddlewares(mw ...middlewareFunc) Option {
	return func(cfg *routerConfig) { cfg.customer.middlewares = append(cfg.customer.middlewares, mw...) }
}

// WithLinkRoutes adds customer routes that run before an account is linked.
func WithLinkRoutes(reg ...RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.customer.routes = append(cfg.customer.routes, reg...) }
}

func WithAccountMiddlewares(mw ...middlewareFunc) Option {
	return func(cfg *routerConfig) { cfg.account.middlewares = append(cfg.account.middlewares, mw...) }
}

// WithAccountRoutes adds customer routes that need a linked account.
func WithAccountRoutes(reg ...RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.account.routes = append(cfg.account.routes, reg...) }
}

func WithWebhookRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		if reg != nil {
			cfg.webhooks.routes = append(cfg.webhooks.routes, reg)
		}
	}
}

func WithWebhookMiddlewares(mw ...middlewareFunc) Option {
	return func(cfg *routerConfig) { cfg.webhooks.middlewares = append(cfg.webhooks.middlewares, mw...) }
}

func WithInternalRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		if reg != nil {
			cfg.internal.routes = append(cfg.internal.routes, reg)
		}
	}
}

func WithInternalMiddlewares(mw ...middlewareFunc) Option {
	return func(cfg *routerConfig) { cfg.internal.middlewares = append(cfg.internal.middlewares, mw...) }
}
