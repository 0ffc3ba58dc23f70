package search

import (
	"context"
	"testing"

	"github.com/soundprediction/lexigraph/pkg/driver"
	"github.com/soundprediction/lexigraph/pkg/types"
	"github.com/stretchr/testify/require"
)

// stubEmbedder returns a fixed vector for every text, or err when set.
type stubEmbedder struct {
	dims   int
	vector []float32
	err    error
	calls  int
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vector
	}
	return out, nil
}

func (s *stubEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (s *stubEmbedder) Dimensions() int { return s.dims }
func (s *stubEmbedder) Close() error    { return nil }

func loadLabor(t *testing.T) *driver.MemoryStore {
	t.Helper()
	store, err := driver.LoadMemoryStore("../driver/testdata/labor.yaml")
	require.NoError(t, err)
	return store
}

func resultIDs(results []types.QueryResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.NodeID
	}
	return ids
}

func newTestPipeline(t *testing.T, store *driver.MemoryStore, content, relation []float32) *Pipeline {
	t.Helper()
	p, err := NewPipeline(store,
		&stubEmbedder{dims: 3, vector: content},
		&stubEmbedder{dims: 2, vector: relation})
	require.NoError(t, err)
	return p
}
