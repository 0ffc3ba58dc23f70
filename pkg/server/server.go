package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soundprediction/lexigraph/pkg/config"
	"github.com/soundprediction/lexigraph/pkg/server/handlers"
	"github.com/soundprediction/lexigraph/pkg/types"
)

// Backend is the engine surface the HTTP server exposes.
type Backend interface {
	handlers.A2ABackend
	handlers.HealthBackend
}

// Server represents the HTTP server
type Server struct {
	config  *config.Config
	router  *gin.Engine
	backend Backend
	server  *http.Server
	logger  *slog.Logger
}

// New creates a new server instance
func New(cfg *config.Config, backend Backend, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:  cfg,
		backend: backend,
		logger:  logger,
	}
}

// Setup sets up the server routes and middleware
func (s *Server) Setup() {
	if s.config.Server.Mode != "" {
		gin.SetMode(s.config.Server.Mode)
	}

	s.router = gin.New()

	s.router.Use(gin.Recovery(), corsMiddleware(), contextMiddleware(), requestLogger(s.logger))
	s.setupRoutes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Handler returns the configured router. Setup must have been called.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes sets up all the routes
func (s *Server) setupRoutes() {
	health := handlers.NewHealthHandler(s.backend)
	a2aHandler := handlers.NewA2AHandler(s.backend, s.logger)

	s.router.GET("/health", health.HealthCheck)
	s.router.GET("/live", health.LivenessCheck) // Kubernetes liveness probe
	s.router.GET("/ready", health.ReadinessCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.POST("/a2a/:domain", a2aHandler.Handle)
}

// Start starts the server
func (s *Server) Start() error {
	s.logger.Info("Starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop stops the server gracefully
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping server")
	return s.server.Shutdown(ctx)
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, "+queryIDHeader)
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// contextMiddleware tags the request context with its query ID, target domain
// and source. A missing X-Query-ID header gets a fresh UUID, echoed back.
func contextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		queryID := c.GetHeader(queryIDHeader)
		if queryID == "" {
			queryID = uuid.NewString()
		}
		c.Header(queryIDHeader, queryID)

		ctx := context.WithValue(c.Request.Context(), types.ContextKeyQueryID, queryID)
		if domain := c.Param("domain"); domain != "" {
			ctx = context.WithValue(ctx, types.ContextKeyDomainID, domain)
		}
		ctx = context.WithValue(ctx, types.ContextKeyRequestSource, "a2a")

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

const queryIDHeader = "X-Query-ID"

// requestLogger logs one line per request. Probe and metrics scrapes log at debug.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			level = slog.LevelError
		case c.FullPath() != "/a2a/:domain":
			level = slog.LevelDebug
		}
		logger.LogAttrs(c.Request.Context(), level, "HTTP request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
			slog.String("query_id", c.Writer.Header().Get(queryIDHeader)),
		)
	}
}
