// Package dto holds the wire shapes of the HTTP surface that are not domain types.
package dto

import (
	"errors"
	"net/http"

	"github.com/soundprediction/lexigraph/pkg/a2a"
	"github.com/soundprediction/lexigraph/pkg/types"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// NewErrorResponse builds the response and status code for err.
func NewErrorResponse(err error) (int, ErrorResponse) {
	code := StatusFor(err)
	return code, ErrorResponse{
		Error: http.StatusText(code),
		// Message carries the cause so peers can log it.
		Message: err.Error(),
		Code:    code,
	}
}

// StatusFor maps the error taxonomy onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrEmptyQuery), errors.Is(err, types.ErrInvalidLimit):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrNotFound), errors.Is(err, a2a.ErrUnknownDomain):
		return http.StatusNotFound
	case errors.Is(err, types.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, types.ErrStoreUnavailable),
		errors.Is(err, types.ErrEmbeddingService),
		errors.Is(err, types.ErrJudgmentService):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
