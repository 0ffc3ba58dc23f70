package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// Build information - can be set at build time using ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

const serviceName = "lexigraph"

// HealthBackend is what readiness needs to know about the engine.
type HealthBackend interface {
	Ping(ctx context.Context) error
	DomainCount(ctx context.Context) int
}

// HealthHandler handles health check requests
type HealthHandler struct {
	backend HealthBackend
	started time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(backend HealthBackend) *HealthHandler {
	return &HealthHandler{backend: backend, started: time.Now()}
}

// HealthCheck handles GET /health - basic liveness check
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
		"build_info": gin.H{
			"git_commit": GitCommit,
			"build_time": BuildTime,
			"go_version": GoVersion,
		},
	})
}

// LivenessCheck handles GET /live - Kubernetes liveness probe endpoint
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// probe is one readiness check in the /ready body.
type probe struct {
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration,omitempty"`
	Domains  *int   `json:"domains,omitempty"`
}

func probeOf(err error, took time.Duration) probe {
	p := probe{Status: "healthy", Duration: took.String()}
	if err != nil {
		p.Status, p.Error = "unhealthy", err.Error()
	}
	return p
}

// ReadinessCheck handles GET /ready. The service is ready when the graph store
// answers and the registry knows at least one domain.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]any{
		"system": gin.H{
			"status":     "healthy",
			"uptime":     time.Since(h.started).Round(time.Second).String(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
	ready := h.backend != nil
	if !ready {
		checks["engine"] = probe{Status: "unhealthy", Error: "engine not initialized"}
	} else {
		start := time.Now()
		db := probeOf(h.backend.Ping(ctx), time.Since(start))
		checks["database"] = db

		n := h.backend.DomainCount(ctx)
		reg := probe{Status: "healthy", Domains: &n}
		if n == 0 {
			reg.Status = "unhealthy"
		}
		checks["registry"] = reg
		ready = db.Status == "healthy" && n > 0
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}
