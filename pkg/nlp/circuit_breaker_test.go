package nlp

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/soundprediction/lexigraph/pkg/alert"
	"github.com/soundprediction/lexigraph/pkg/config"
	"github.com/soundprediction/lexigraph/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func breakerConfig() config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         60,
		Timeout:          60,
		ReadyToTripRatio: 0.5,
	}
}

func TestCircuitBreakerClient_TripsOnTransportFailures(t *testing.T) {
	mock := &scriptedClient{failUntilCall: 100, errorToReturn: errors.New("503 service unavailable")}
	rec := &alert.RecordingAlerter{}
	cb := NewCircuitBreakerClient(mock, breakerConfig(), rec, "judgment", nil)

	msgs := []types.Message{NewUserMessage("test")}
	for i := 0; i < 3; i++ {
		_, err := cb.Chat(context.Background(), msgs)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := cb.Chat(context.Background(), msgs)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, mock.calls)
}

func TestCircuitBreakerClient_RefusalDoesNotTrip(t *testing.T) {
	mock := &scriptedClient{failUntilCall: 100, errorToReturn: NewRefusalError("no")}
	cb := NewCircuitBreakerClient(mock, breakerConfig(), &alert.NoOpAlerter{}, "judgment", nil)

	for i := 0; i < 5; i++ {
		_, err := cb.ChatWithStructuredOutput(context.Background(), nil, nil)
		assert.ErrorIs(t, err, ErrRefusal)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreakerClient_PassesThrough(t *testing.T) {
	mock := &scriptedClient{}
	cb := NewCircuitBreakerClient(mock, breakerConfig(), nil, "judgment", nil)

	resp, err := cb.Chat(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "success", resp.Content)
	assert.NoError(t, cb.Close())
}
