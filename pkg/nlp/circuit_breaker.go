package nlp

import (
	"context"
	"log/slog"

	"github.com/sony/gobreaker"
	"github.com/soundprediction/lexigraph/pkg/alert"
	"github.com/soundprediction/lexigraph/pkg/config"
	"github.com/soundprediction/lexigraph/pkg/types"
)

// CircuitBreakerClient fails judgment calls fast while the model service is down.
// Refusals and empty bodies mean the service answered, so they never trip it.
type CircuitBreakerClient struct {
	next Client
	cb   *gobreaker.CircuitBreaker
}

func NewCircuitBreakerClient(next Client, cfg config.CircuitBreakerConfig, alerter alert.Alerter, name string, logger *slog.Logger) *CircuitBreakerClient {
	answered := func(err error) bool {
		if err == nil {
			return true
		}
		ce, ok := asCallError(err)
		return ok && ce.Answered()
	}
	return &CircuitBreakerClient{
		next: next,
		cb:   gobreaker.NewCircuitBreaker(alert.BreakerSettings(name, cfg, alerter, logger, answered)),
	}
}

func (c *CircuitBreakerClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	return c.guard(func() (*types.Response, error) { return c.next.Chat(ctx, messages) })
}

func (c *CircuitBreakerClient) ChatWithStructuredOutput(ctx context.Context, messages []types.Message, schema any) (*types.Response, error) {
	return c.guard(func() (*types.Response, error) { return c.next.ChatWithStructuredOutput(ctx, messages, schema) })
}

func (c *CircuitBreakerClient) guard(call func() (*types.Response, error)) (*types.Response, error) {
	out, err := c.cb.Execute(func() (any, error) { return call() })
	if err != nil {
		return nil, err
	}
	return out.(*types.Response), nil
}

// State reports the breaker state.
func (c *CircuitBreakerClient) State() gobreaker.State { return c.cb.State() }

func (c *CircuitBreakerClient) Close() error { return c.next.Close() }
