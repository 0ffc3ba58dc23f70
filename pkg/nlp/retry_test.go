package nlp

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/lexigraph/pkg/types"
)

func fastRetry(retries int) *RetryConfig {
	return &RetryConfig{
		MaxRetries:        retries,
		InitialDelay:      5 * time.Millisecond,
		MaxDelay:          20 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestRetryClient(t *testing.T) {
	tests := []struct {
		name      string
		failUntil int
		err       error
		retries   int
		wantErr   error
		wantCalls int
	}{
		{name: "first attempt", wantCalls: 1, retries: 3},
		{name: "recovers from 503", failUntil: 2, err: errors.New("503 service unavailable"), retries: 3, wantCalls: 3},
		{name: "rate limit retried", failUntil: 1, err: NewRateLimitError(), retries: 3, wantCalls: 2},
		{name: "gives up", failUntil: 10, err: NewRateLimitError("quota"), retries: 2, wantErr: ErrRateLimit, wantCalls: 3},
		{name: "refusal not retried", failUntil: 10, err: NewRefusalError("no"), retries: 3, wantErr: ErrRefusal, wantCalls: 1},
		{name: "no retries configured", failUntil: 10, err: errors.New("bad gateway"), retries: 0, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &scriptedClient{failUntilCall: tt.failUntil, errorToReturn: tt.err}
			client := NewRetryClient(inner, fastRetry(tt.retries))

			resp, err := client.Chat(context.Background(), []types.Message{NewUserMessage("assess")})
			assert.Equal(t, tt.wantCalls, inner.calls)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.failUntil >= tt.wantCalls && tt.failUntil > 0:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, "success", resp.Content)
			}
		})
	}
}

func TestRetryClient_StructuredOutput(t *testing.T) {
	inner := &scriptedClient{failUntilCall: 1, errorToReturn: errors.New("connection reset by peer")}
	client := NewRetryClient(inner, fastRetry(2))

	resp, err := client.ChatWithStructuredOutput(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Contains(t, resp.Content, "can_answer")
	assert.Equal(t, 2, inner.structured)
}

func TestRetryClient_BackoffBeyondDeadline(t *testing.T) {
	inner := &scriptedClient{failUntilCall: 10, errorToReturn: NewRateLimitError()}
	client := NewRetryClient(inner, &RetryConfig{MaxRetries: 3, InitialDelay: time.Second, MaxDelay: time.Second, BackoffMultiplier: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Chat(ctx, nil)
	assert.ErrorIs(t, err, ErrRateLimit)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "does not sleep past the deadline")
	assert.Equal(t, 1, inner.calls)
}

func TestRetryClient_CancelledDuringBackoff(t *testing.T) {
	inner := &scriptedClient{failUntilCall: 10, errorToReturn: errors.New("service unavailable")}
	client := NewRetryClient(inner, &RetryConfig{MaxRetries: 3, InitialDelay: 200 * time.Millisecond, MaxDelay: time.Second, BackoffMultiplier: 1})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := client.Chat(ctx, nil)
	assert.Equal(t, types.KindTimeout, types.KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryClient_Backoff(t *testing.T) {
	client := NewRetryClient(&scriptedClient{}, &RetryConfig{
		MaxRetries:        5,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          300 * time.Millisecond,
		BackoffMultiplier: 2,
	})

	assert.Equal(t, 100*time.Millisecond, client.backoff(1))
	assert.Equal(t, 200*time.Millisecond, client.backoff(2))
	assert.Equal(t, 300*time.Millisecond, client.backoff(3), "capped")
}

func TestNewRetryClient_Defaults(t *testing.T) {
	client := NewRetryClient(&scriptedClient{}, nil)
	assert.Equal(t, 3, client.config.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, client.config.InitialDelay)
	assert.NotNil(t, client.config.Logger)
}

type statusError int

func (e statusError) Error() string       { return http.StatusText(int(e)) }
func (e statusError) HTTPStatusCode() int { return int(e) }

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", NewRateLimitError(), true},
		{"refusal", NewRefusalError("no"), false},
		{"empty", NewEmptyResponseError("none"), false},
		{"deadline", context.DeadlineExceeded, false},
		{"status 500", statusError(http.StatusInternalServerError), true},
		{"status 429", statusError(http.StatusTooManyRequests), true},
		{"status 400", statusError(http.StatusBadRequest), false},
		{"gateway text", errors.New("502 Bad Gateway"), true},
		{"invalid request", errors.New("invalid model"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableError(tt.err))
		})
	}
}
