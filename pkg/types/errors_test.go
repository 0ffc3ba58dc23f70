package types

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := Wrap(KindStoreUnavailable, "vector_search", errors.New("connection refused"))

	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.False(t, errors.Is(err, ErrEmbeddingService))
	assert.Contains(t, err.Error(), "StoreUnavailable")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestErrorIsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("pipeline: %w", Wrap(KindJudgmentService, "assess", errors.New("boom")))
	assert.True(t, errors.Is(err, ErrJudgmentService))
	assert.Equal(t, KindJudgmentService, KindOf(err))
}

func TestWrapClassifiesDeadlineAsTimeout(t *testing.T) {
	err := Wrap(KindEmbeddingService, "embed", fmt.Errorf("call: %w", context.DeadlineExceeded))

	assert.True(t, errors.Is(err, ErrTimeout))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestWrapKeepsClassifiedErrors(t *testing.T) {
	inner := Wrap(KindStoreUnavailable, "neighbors", errors.New("down"))
	outer := Wrap(KindEmbeddingService, "embed", inner)

	assert.Same(t, inner, outer)
	assert.Nil(t, Wrap(KindTimeout, "noop", nil))
}

func TestConfigurationError(t *testing.T) {
	err := NewConfigurationError("embedding.content.dimensions", "must be positive, got %d", 0)
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.Equal(t, "ConfigurationError", KindOf(err).String())
}
