package embedder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sony/gobreaker"
	"github.com/soundprediction/lexigraph/pkg/alert"
	"github.com/soundprediction/lexigraph/pkg/config"
	"github.com/soundprediction/lexigraph/pkg/types"
)

// CircuitBreakerEmbedder wraps a Client with circuit breaking logic. An open breaker
// fails fast with an embedding service error.
type CircuitBreakerEmbedder struct {
	inner Client
	cb    *gobreaker.CircuitBreaker
}

// NewCircuitBreakerEmbedder creates a new circuit breaker embedder
func NewCircuitBreakerEmbedder(inner Client, cfg config.CircuitBreakerConfig, alerter alert.Alerter, name string, logger *slog.Logger) *CircuitBreakerEmbedder {
	if logger == nil {
		logger = slog.Default()
	}

	st := alert.BreakerSettings(name, cfg, alerter, logger, nil)

	return &CircuitBreakerEmbedder{inner: inner, cb: gobreaker.NewCircuitBreaker(st)}
}

// Embed implements Client
func (c *CircuitBreakerEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		return c.inner.Embed(ctx, texts)
	})
	if err != nil {
		return nil, types.Wrap(types.KindEmbeddingService, "embedder.circuit_breaker", err)
	}
	return resp.([][]float32), nil
}

// EmbedSingle implements Client
func (c *CircuitBreakerEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, types.Wrap(types.KindEmbeddingService, "embedder.circuit_breaker", fmt.Errorf("empty embedding response"))
	}
	return vecs[0], nil
}

// Dimensions implements Client
func (c *CircuitBreakerEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// Close implements Client
func (c *CircuitBreakerEmbedder) Close() error {
	return c.inner.Close()
}
