package driver

import (
	"context"
	"errors"
	"testing"

	"github.com/soundprediction/lexigraph/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadLabor(t *testing.T) *MemoryStore {
	t.Helper()
	store, err := LoadMemoryStore("testdata/labor.yaml")
	require.NoError(t, err)
	return store
}

func ids(nodes []*types.DocumentNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func TestMemoryVectorSearchContent(t *testing.T) {
	store := loadLabor(t)
	ctx := context.Background()

	hits, err := store.VectorSearch(ctx, ContentIndex, []float32{1, 0, 0}, nil, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "art17-p1", hits[0].Node.ID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-9)
	assert.Equal(t, "art17-p2", hits[1].Node.ID)
	assert.InDelta(t, 0.8, hits[1].Similarity, 1e-6)
}

func TestMemoryVectorSearchRespectsFilter(t *testing.T) {
	store := loadLabor(t)

	hits, err := store.VectorSearch(context.Background(), ContentIndex, []float32{1, 0, 0}, []string{"art170-p1", "addenda-p1"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.NotEqual(t, "art17-p1", h.Node.ID)
		assert.Equal(t, 0.0, h.Similarity)
	}
}

func TestMemoryVectorSearchDimensionMismatch(t *testing.T) {
	store := loadLabor(t)

	_, err := store.VectorSearch(context.Background(), ContentIndex, []float32{1, 0}, nil, 5)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	_, err = store.VectorSearch(context.Background(), RelationIndex, []float32{1, 0, 0}, nil, 5)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestMemoryVectorSearchRelations(t *testing.T) {
	store := loadLabor(t)

	hits, err := store.VectorSearch(context.Background(), RelationIndex, []float32{1, 0}, []string{"art170-p1"}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "r1", hits[0].Edge.ID)
	assert.Equal(t, "art17-p1", hits[0].Node.ID)

	hits, err = store.VectorSearch(context.Background(), RelationIndex, []float32{1, 0}, []string{"art17-p1"}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryExactPatternSearch(t *testing.T) {
	store := loadLabor(t)
	ctx := context.Background()

	nodes, err := store.ExactPatternSearch(ctx, "article 17", nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"art17-p1", "art17-p2"}, ids(nodes))

	nodes, err = store.ExactPatternSearch(ctx, "article 17", []string{"art170-p1"}, 10)
	require.NoError(t, err)
	assert.Empty(t, nodes)

	nodes, err = store.ExactPatternSearch(ctx, "article 170", nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"art170-p1"}, ids(nodes))
}

func TestMemoryNeighborsOrder(t *testing.T) {
	store := loadLabor(t)

	neighbors, err := store.Neighbors(context.Background(), "art17-p1")
	require.NoError(t, err)

	var got []string
	for _, n := range neighbors {
		got = append(got, string(n.EdgeType)+":"+n.Node.ID)
	}
	assert.Equal(t, []string{"parent:art17", "sibling:art17-p2", "cross-reference:art170-p1"}, got)
	assert.Equal(t, []float32{1, 0}, neighbors[2].RelationEmbedding)
}

func TestMemoryNeighborsOfArticle(t *testing.T) {
	store := loadLabor(t)

	neighbors, err := store.Neighbors(context.Background(), "art17")
	require.NoError(t, err)

	var got []string
	for _, n := range neighbors {
		got = append(got, string(n.EdgeType)+":"+n.Node.ID)
	}
	assert.Equal(t, []string{"parent:act", "child:art17-p1", "child:art17-p2"}, got)
}

func TestMemoryResolveNearestTitledAncestor(t *testing.T) {
	store := loadLabor(t)
	ctx := context.Background()

	a, err := store.ResolveNearestTitledAncestor(ctx, "art17-p1")
	require.NoError(t, err)
	assert.Equal(t, "art17", a.ID)

	// Article 170 carries the "None" sentinel, so the statute is nearest.
	a, err = store.ResolveNearestTitledAncestor(ctx, "art170-p1")
	require.NoError(t, err)
	assert.Equal(t, "act", a.ID)

	a, err = store.ResolveNearestTitledAncestor(ctx, "act")
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestMemoryListDomainsComputesCentroid(t *testing.T) {
	store := loadLabor(t)

	domains, err := store.ListDomains(context.Background())
	require.NoError(t, err)
	require.Len(t, domains, 2)
	assert.Equal(t, "d-contracts", domains[0].ID)
	assert.InDeltaSlice(t, []float32{0.9, 0.3, 0}, domains[0].Centroid, 1e-6)

	domains[0].MemberIDs[0] = "mutated"
	again, err := store.ListDomains(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "art17-p1", again[0].MemberIDs[0])
}

func TestMemoryCancelledContext(t *testing.T) {
	store := loadLabor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Neighbors(ctx, "art17-p1")
	assert.True(t, errors.Is(err, types.ErrStoreUnavailable))
}

func TestMemoryAddNodeValidation(t *testing.T) {
	store := NewMemoryStore(2, 2)

	assert.ErrorIs(t, store.AddNode(&types.DocumentNode{}), types.ErrEmptyID)
	assert.ErrorIs(t, store.AddNode(&types.DocumentNode{ID: "x", Embedding: []float32{1}}), ErrDimensionMismatch)
	assert.ErrorIs(t, store.AddNode(&types.DocumentNode{ID: "y", ParentID: "missing"}), types.ErrNotFound)
}
