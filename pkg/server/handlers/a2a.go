package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/lexigraph/pkg/server/dto"
	"github.com/soundprediction/lexigraph/pkg/types"
)

// A2ABackend answers peer requests addressed to a domain.
type A2ABackend interface {
	HandleA2A(ctx context.Context, domainID string, req types.A2ARequest) (types.A2AResponse, error)
}

// A2AHandler serves POST /a2a/:domain for workers in other processes.
type A2AHandler struct {
	backend A2ABackend
	logger  *slog.Logger
}

// NewA2AHandler creates a new a2a handler
func NewA2AHandler(backend A2ABackend, logger *slog.Logger) *A2AHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &A2AHandler{backend: backend, logger: logger}
}

// Handle handles POST /a2a/:domain
func (h *A2AHandler) Handle(c *gin.Context) {
	domainID := c.Param("domain")

	var req types.A2ARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid request",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
		return
	}

	if h.backend == nil {
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "engine not initialized", Code: http.StatusServiceUnavailable})
		return
	}

	resp, err := h.backend.HandleA2A(c.Request.Context(), domainID, req)
	if err != nil {
		code, body := dto.NewErrorResponse(err)
		h.logger.Warn("A2A request failed", "domain", domainID, "from", req.FromDomain, "status", code, "error", err)
		c.JSON(code, body)
		return
	}
	if resp.Results == nil {
		resp.Results = []types.QueryResult{}
	}
	c.JSON(http.StatusOK, resp)
}
