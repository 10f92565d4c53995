// Package server wires configuration, logging, monitoring, the optimization
// engine, and the HTTP surface into one runnable unit.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/pagelift/pagelift/backend/internal/api/http"
	"github.com/pagelift/pagelift/backend/internal/api/middleware"
	"github.com/pagelift/pagelift/backend/internal/api/ws"
	"github.com/pagelift/pagelift/backend/internal/domain/cache"
	"github.com/pagelift/pagelift/backend/internal/domain/engine"
	"github.com/pagelift/pagelift/backend/internal/domain/fetch"
	"github.com/pagelift/pagelift/backend/internal/domain/metrics"
	"github.com/pagelift/pagelift/backend/internal/domain/pagespeed"
	"github.com/pagelift/pagelift/backend/internal/domain/policy"
	"github.com/pagelift/pagelift/backend/internal/domain/state"
	"github.com/pagelift/pagelift/backend/internal/infrastructure/config"
	"github.com/pagelift/pagelift/backend/internal/infrastructure/monitoring"
	"github.com/pagelift/pagelift/backend/internal/infrastructure/tracing"
	"github.com/pagelift/pagelift/backend/internal/logging"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	http    *http.Server
	bus     *state.Bus
	cache   *cache.Store
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// New creates a server instance from configuration.
func New(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		l, err := logging.New(logging.Config{
			Level:       cfg.Logging.Level,
			OutputPaths: []string{"stdout"},
			File:        cfg.Logging.File,
			MaxSizeMB:   100,
			MaxBackups:  3,
			MaxAgeDays:  28,
		})
		if err != nil {
			return nil, err
		}
		logger = l
	}

	logger.Info("Initializing PageLift server",
		zap.String("port", cfg.Server.Port),
		zap.Duration("fetch_timeout", cfg.Fetch.Timeout),
		zap.Duration("cache_ttl", cfg.Cache.TTL),
	)

	mon := monitoring.NewMetrics()
	tracer := tracing.New("backend", logger.Logger)

	store := cache.New(cfg.Cache.TTL)
	history := metrics.NewHistory()

	fetcher := fetch.NewClient(fetch.Config{
		Timeout:   cfg.Fetch.Timeout,
		UserAgent: cfg.Fetch.UserAgent,
		RateRPS:   cfg.Fetch.RateRPS,
	})
	eng := engine.New(fetcher, store, history, mon, logger)

	psClient := pagespeed.NewClient(pagespeed.Config{
		Endpoint: cfg.PageSpeed.Endpoint,
		APIKey:   cfg.PageSpeed.APIKey,
		Timeout:  cfg.PageSpeed.Timeout,
	})

	enforcer := policy.NewEnforcer(cfg.Policy.OwnOrigins, cfg.Policy.ExemptHosts)
	bus := state.NewBus(state.NewStore(enforcer))

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(mon))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(eng, history, psClient, mon)
	wsHandler := ws.NewHandler(bus, mon, logger)

	router.GET("/health", handlers.Health)

	api := router.Group("/api")
	{
		api.POST("/optimize", handlers.Optimize)
		api.POST("/metrics", handlers.StoreMetrics)
		api.GET("/metrics", handlers.GetMetrics)
		api.GET("/metrics/summary", handlers.MetricsSummary)
		api.GET("/pagespeed", handlers.PageSpeed)
		api.GET("/stats", handlers.Stats)
	}

	router.GET("/optimize", handlers.OptimizePage)
	router.GET("/stream", wsHandler.HandleConnection)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router:  router,
		bus:     bus,
		cache:   store,
		logger:  logger,
		config:  cfg,
		metrics: mon,
	}, nil
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests, then stops the state bus.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var err error
	if s.http != nil {
		err = s.http.Shutdown(ctx)
	}
	s.bus.Close()
	s.logger.Sync()
	return err
}
