package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/apascualco/microscope/internal/application"
	"github.com/apascualco/microscope/internal/domain"
	"github.com/apascualco/microscope/internal/infrastructure/config"
	"github.com/apascualco/microscope/internal/infrastructure/http/handler"
	"github.com/apascualco/microscope/internal/infrastructure/http/middleware"
	"github.com/apascualco/microscope/internal/infrastructure/observability"
	"github.com/apascualco/microscope/internal/infrastructure/proxy"
	"github.com/apascualco/microscope/internal/infrastructure/ratelimit"
	"github.com/apascualco/microscope/internal/infrastructure/tracing"
	"github.com/gin-gonic/gin"
)

// Dependencies are built by the caller and shared with the background workers.
// Tokens, Limiter and Metrics are optional.
type Dependencies struct {
	Registry  *application.Registry
	Filters   handler.FilterStore
	Tokens    middleware.TokenValidator
	Limiter   ratelimit.RateLimiter
	Metrics   *observability.Prometheus
	Exporter  tracing.SpanExporter
	Transport http.RoundTripper
	Readiness []handler.ReadinessCheck

	Build    domain.InfoProperties
	Git      domain.InfoProperties
	CloudKey string
	Cloud    *domain.CloudMetadata
}

type Server struct {
	router     *gin.Engine
	config     *config.Config
	deps       Dependencies
	httpServer *http.Server
	startTime  time.Time
}

func NewServer(cfg *config.Config, deps Dependencies) *Server {
	if deps.Exporter == nil {
		deps.Exporter = tracing.NoopExporter{}
	}
	if deps.Transport == nil {
		deps.Transport = http.DefaultTransport
	}

	s := &Server{
		config:    cfg,
		deps:      deps,
		startTime: time.Now(),
	}
	s.setupRouter()
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.EffectiveServerPort()),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() {
	if s.config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = gin.New()
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.TraceMiddleware(middleware.NewW3CTraceProvider(), s.deps.Exporter))
	s.router.Use(middleware.Logger("/health", "/ready", "/metrics"))
	s.router.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: s.config.CORSAllowedOrigins,
		AllowedMethods: s.config.CORSAllowedMethods,
		AllowedHeaders: s.config.CORSAllowedHeaders,
	}))
	if s.deps.Metrics != nil {
		s.router.Use(middleware.Metrics(s.deps.Metrics))
		s.router.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}

	s.router.GET("/health", handler.HealthHandler(s.startTime, s.config.Version, s.deps.Registry))
	s.router.GET("/ready", handler.ReadyHandler(s.deps.Readiness...))
	s.router.GET("/info", handler.InfoHandler(s.deps.Build, s.deps.Git, s.deps.CloudKey, s.deps.Cloud))

	s.setupApplicationRoutes()
	s.setupFilterRoutes()
}

// writeGuards protect the routes monitored applications call on their own behalf.
func (s *Server) writeGuards() []gin.HandlerFunc {
	var guards []gin.HandlerFunc
	if s.deps.Tokens != nil {
		guards = append(guards, middleware.NewServiceAuthMiddleware(s.deps.Tokens).Authenticate())
	}
	if s.deps.Limiter != nil {
		guards = append(guards, middleware.RateLimit(s.deps.Limiter, s.config.RateLimitPerMinute))
	}
	return guards
}

func (s *Server) setupApplicationRoutes() {
	applications := handler.NewApplicationsHandler(s.deps.Registry)
	proxyHandler := proxy.NewProxyHandler(s.deps.Registry, s.deps.Transport, s.deps.Exporter)

	api := s.router.Group("/api/applications")
	{
		api.GET("", applications.List)
		api.GET("/names", applications.Names)
		api.GET("/:id", applications.Get)
		api.Any("/:id/proxy/*path", proxyHandler.Handle)
	}

	guarded := api.Group("", s.writeGuards()...)
	{
		guarded.POST("", applications.Register)
		guarded.DELETE("/:id", applications.Deregister)
		guarded.POST("/:id/heartbeat", applications.Heartbeat)
	}
}

func (s *Server) setupFilterRoutes() {
	if s.deps.Filters == nil {
		return
	}
	filters := handler.NewFiltersHandler(s.deps.Filters)

	api := s.router.Group("/api/notifications/filters")
	api.GET("", filters.List)

	guarded := api.Group("", s.writeGuards()...)
	{
		guarded.POST("", filters.Add)
		guarded.DELETE("/:id", filters.Remove)
	}
}

// Run blocks until the listener fails or Shutdown is called. After Shutdown it
// returns http.ErrServerClosed, also when Shutdown ran first.
func (s *Server) Run() error {
	slog.Info("http server listening", "addr", s.httpServer.Addr, "tls", s.config.SSLEnabled)
	if s.config.SSLEnabled {
		return s.httpServer.ListenAndServeTLS(s.config.SSLCertFile, s.config.SSLKeyFile)
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
