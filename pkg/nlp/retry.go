package nlp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/soundprediction/lexigraph/pkg/types"
)

// RetryConfig tunes exponential backoff.
type RetryConfig struct {
	MaxRetries        int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	// Logger receives one debug line per retry. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultRetryConfig returns 3 retries starting at 500ms, doubling, capped at 8s.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          8 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryClient retries rate limits and transient transport failures. A retry is
// skipped when its backoff would outlast the context deadline.
type RetryClient struct {
	client Client
	config RetryConfig
}

// NewRetryClient wraps client. A nil config uses DefaultRetryConfig.
func NewRetryClient(client Client, config *RetryConfig) *RetryClient {
	cfg := *DefaultRetryConfig()
	if config != nil {
		if config.MaxRetries >= 0 {
			cfg.MaxRetries = config.MaxRetries
		}
		if config.InitialDelay > 0 {
			cfg.InitialDelay = config.InitialDelay
		}
		if config.MaxDelay > 0 {
			cfg.MaxDelay = config.MaxDelay
		}
		if config.BackoffMultiplier > 0 {
			cfg.BackoffMultiplier = config.BackoffMultiplier
		}
		cfg.Logger = config.Logger
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &RetryClient{client: client, config: cfg}
}

// Chat implements Client.
func (r *RetryClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	return r.do(ctx, "chat", func() (*types.Response, error) {
		return r.client.Chat(ctx, messages)
	})
}

// ChatWithStructuredOutput implements Client.
func (r *RetryClient) ChatWithStructuredOutput(ctx context.Context, messages []types.Message, schema any) (*types.Response, error) {
	return r.do(ctx, "structured", func() (*types.Response, error) {
		return r.client.ChatWithStructuredOutput(ctx, messages, schema)
	})
}

// Close implements Client.
func (r *RetryClient) Close() error {
	return r.client.Close()
}

func (r *RetryClient) do(ctx context.Context, op string, call func() (*types.Response, error)) (*types.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := call()
		if err == nil {
			return resp, nil
		}
		if !isRetryableError(err) {
			return nil, err
		}
		if attempt == r.config.MaxRetries {
			if attempt == 0 {
				return nil, err
			}
			return nil, fmt.Errorf("%s: giving up after %d retries: %w", op, attempt, err)
		}

		delay := r.backoff(attempt + 1)
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
			return nil, fmt.Errorf("%s: backoff %s exceeds deadline: %w", op, delay, err)
		}
		r.config.Logger.Debug("Retrying judgment call", "op", op, "attempt", attempt+1, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, types.Wrap(types.KindTimeout, "nlp."+op, ctx.Err())
		}
	}
}

// backoff returns InitialDelay·Multiplier^(attempt-1), capped at MaxDelay.
func (r *RetryClient) backoff(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffMultiplier, float64(attempt-1))
	return time.Duration(math.Min(delay, float64(r.config.MaxDelay)))
}

// transientMarkers are substrings of transport errors worth retrying when the
// error carries no status code.
var transientMarkers = []string{
	"bad gateway",
	"service unavailable",
	"gateway timeout",
	"connection reset",
	"connection refused",
	"temporary failure",
	"i/o timeout",
	"too many requests",
}

func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if ce, ok := asCallError(err); ok {
		return ce.Retryable()
	}

	var status interface{ HTTPStatusCode() int }
	if errors.As(err, &status) {
		code := status.HTTPStatusCode()
		return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
