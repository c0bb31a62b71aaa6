// Package router assembles the gin engine of the ops surface.
package router

import (
	"net/http"
	"time"

	"github.com/erp/retailops/internal/infrastructure/logger"
	"github.com/erp/retailops/internal/interfaces/http/dto"
	"github.com/erp/retailops/internal/interfaces/http/handler"
	"github.com/erp/retailops/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup registers all routes under /api/<version>.
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// DomainGroup collects the routes of one area before registration.
type DomainGroup struct {
	name       string
	prefix     string
	routes     []routeDefinition
	subgroups  []*DomainGroup
	middleware []gin.HandlerFunc
}

type routeDefinition struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewDomainGroup creates a new domain-specific route group
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Use adds middleware to this group
func (dg *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, middleware...)
	return dg
}

// GET registers a GET route
func (dg *DomainGroup) GET(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodGet, path, handlers)
}

// POST registers a POST route
func (dg *DomainGroup) POST(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodPost, path, handlers)
}

func (dg *DomainGroup) handle(method, path string, handlers []gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, routeDefinition{method: method, path: path, handlers: handlers})
	return dg
}

// Group creates a sub-group within this domain
func (dg *DomainGroup) Group(name, prefix string) *DomainGroup {
	subgroup := NewDomainGroup(name, prefix)
	dg.subgroups = append(dg.subgroups, subgroup)
	return subgroup
}

// RegisterRoutes implements RouteRegistrar interface
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(dg.prefix)
	if len(dg.middleware) > 0 {
		group.Use(dg.middleware...)
	}
	for _, route := range dg.routes {
		group.Handle(route.method, route.path, route.handlers...)
	}
	for _, subgroup := range dg.subgroups {
		subgroup.RegisterRoutes(group)
	}
}

// Name returns the group name
func (dg *DomainGroup) Name() string {
	return dg.name
}

// Prefix returns the group prefix
func (dg *DomainGroup) Prefix() string {
	return dg.prefix
}

// Config carries everything New needs to build the engine.
type Config struct {
	Logger         *zap.Logger
	Meter          metric.Meter
	Tracing        middleware.TracingConfig
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	TrustedProxies []string

	System *handler.SystemHandler
	Ledger *handler.LedgerHandler
	Outbox *handler.OutboxHandler
}

// New builds the gin engine with the standard middleware chain and every
// route of the ops surface.
//
//	GET  /health/live
//	GET  /health/ready
//	GET  /api/v1/system/info
//	GET  /api/v1/outbox/stats
//	POST /api/v1/outbox/retry-dead
//	GET  /api/v1/tenants/:tenant_id/ledger/balances/:location_id/:product_id
//	GET  /api/v1/tenants/:tenant_id/ledger/movements
//	GET  /api/v1/tenants/:tenant_id/ledger/expiring
//	POST /api/v1/tenants/:tenant_id/ledger/verify
func New(cfg Config) (*gin.Engine, error) {
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	metrics, err := middleware.HTTPMetrics(cfg.Meter)
	if err != nil {
		return nil, err
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(cfg.Logger),
		logger.Recovery(cfg.Logger, func(c *gin.Context) {
			c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeInternal, "An unexpected error occurred", middleware.GetRequestID(c)))
		}),
		middleware.Tracing(cfg.Tracing),
		middleware.SpanAttributes(),
		metrics,
		middleware.Secure(),
		middleware.BodyLimit(maxBody),
	)

	health := engine.Group("/health")
	health.GET("/live", cfg.System.Live)
	health.GET("/ready", cfg.System.Ready)

	r := NewRouter(engine)

	r.Register(NewDomainGroup("system", "/system").
		GET("/info", cfg.System.Info))

	r.Register(NewDomainGroup("outbox", "/outbox").
		GET("/stats", cfg.Outbox.GetStats).
		POST("/retry-dead", cfg.Outbox.RetryDead))

	ledger := NewDomainGroup("ledger", "/tenants/:tenant_id/ledger").
		Use(middleware.TenantContext(), middleware.Timeout(cfg.RequestTimeout))
	ledger.GET("/balances/:location_id/:product_id", cfg.Ledger.GetBalance).
		GET("/movements", cfg.Ledger.ListMovements).
		GET("/expiring", cfg.Ledger.ListExpiring).
		POST("/verify", cfg.Ledger.Verify)
	r.Register(ledger)

	r.Setup()
	return engine, nil
}
