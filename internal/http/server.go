package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/projectrag/internal/engine"
	"github.com/fyrsmithlabs/projectrag/internal/logging"
	"github.com/fyrsmithlabs/projectrag/internal/vectorstore"
)

// HeaderUserID carries the caller identity set by the upstream auth layer.
const HeaderUserID = "X-User-ID"

var errUnknownClient = errors.New("unable to identify client")

// Engine is the retrieval surface served over HTTP. *engine.Engine implements it.
type Engine interface {
	Ingest(ctx context.Context, projectID, userID, content, filename string) engine.IngestResponse
	Search(ctx context.Context, projectID, userID, query string, topK int) engine.SearchResponse
	DeleteProjectVectors(ctx context.Context, projectID, userID string) engine.DeleteResponse
	Stats() vectorstore.Stats
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// RequestTimeout bounds each API request. Zero disables the timeout.
	RequestTimeout time.Duration

	// RateLimit is requests per second per client IP. Zero disables limiting.
	RateLimit float64

	// StatsToken guards GET /api/v1/stats. Empty hides the route (404).
	StatsToken string

	// BodyLimit caps request bodies, e.g. "10M". Default: 10M
	BodyLimit string
}

// Server provides HTTP endpoints for projectrag.
type Server struct {
	echo    *echo.Echo
	engine  Engine
	logger  *logging.Logger
	config  *Config
	metrics *HTTPMetrics
}

// NewServer creates a new HTTP server.
func NewServer(eng Engine, logger *logging.Logger, cfg *Config) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9090,
		}
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = "10M"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		engine:  eng,
		logger:  logger,
		config:  cfg,
		metrics: NewHTTPMetrics(logger.Underlying()),
	}

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		RequestIDHandler: func(c echo.Context, id string) {
			ctx := logging.WithRequestID(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))
		},
	}))
	e.Use(tracingMiddleware())
	e.Use(s.requestLogger())
	e.Use(middleware.Recover())
	e.Use(s.metrics.MetricsMiddleware())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	if cfg.RateLimit > 0 {
		e.Use(s.rateLimiter())
	}
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.ContextTimeout(cfg.RequestTimeout))
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/projects/:project_id/documents", s.handleIngest)
	v1.POST("/projects/:project_id/search", s.handleSearch)
	v1.DELETE("/projects/:project_id/vectors", s.handleDelete)
	v1.GET("/stats", s.handleStats)
}

// requestLogger logs one line per request with request and scope IDs.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				// Commit the error response so the logged status is final.
				c.Error(err)
			}

			ctx := c.Request().Context()
			if projectID := c.Param("project_id"); projectID != "" {
				ctx = logging.WithScope(ctx, projectID, c.Request().Header.Get(HeaderUserID))
			}

			fields := []zap.Field{
				zap.String("method", c.Request().Method),
				zap.String("route", normalizePath(c.Path())),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			}
			if c.Response().Status >= http.StatusInternalServerError {
				s.logger.Warn(ctx, "http request", fields...)
			} else {
				s.logger.Info(ctx, "http request", fields...)
			}
			return nil
		}
	}
}

// rateLimiter limits requests per client IP. /health and /metrics are exempt.
func (s *Server) rateLimiter() echo.MiddlewareFunc {
	burst := max(int(s.config.RateLimit), 1)
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/health" || c.Path() == "/metrics"
		},
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(s.config.RateLimit),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			ip := c.RealIP()
			if ip == "" {
				return "", errUnknownClient
			}
			return ip, nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return badRequest(c, err.Error())
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, ErrorResponse{Success: false, Error: "rate limit exceeded", Code: "rate_limited"})
		},
	})
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// ServeHTTP lets the server be mounted or exercised with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start starts the HTTP server. It returns nil after a graceful Shutdown.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", s.Addr()))
	if err := s.echo.Start(s.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server, draining in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
