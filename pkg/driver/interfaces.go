package driver

import (
	"context"
	"errors"

	"github.com/soundprediction/lexigraph/pkg/types"
)

// ErrDimensionMismatch is returned when a query embedding does not match the
// dimensionality of the index it is searched against.
var ErrDimensionMismatch = errors.New("embedding dimensionality does not match index")

// VectorIndex selects one of the two independent vector indexes.
type VectorIndex int

const (
	// ContentIndex holds searchable node content embeddings (D1).
	ContentIndex VectorIndex = iota
	// RelationIndex holds relational edge context embeddings (D2).
	RelationIndex
)

func (i VectorIndex) String() string {
	if i == RelationIndex {
		return "relation"
	}
	return "content"
}

// VectorHit is one nearest-neighbor match. For RelationIndex hits, Edge is the matched
// relation and Node its target.
type VectorHit struct {
	Node       *types.DocumentNode
	Edge       *types.RelationalEdge
	Similarity float64
}

// Neighbor is a node adjacent to another in the document graph.
type Neighbor struct {
	Node     *types.DocumentNode
	EdgeType types.EdgeType
	// RelationEmbedding and Context are set for relational edges only.
	RelationEmbedding []float32
	Context           string
}

// VectorSearcher runs cosine nearest-neighbor search restricted to a node id filter.
// An empty filter searches the whole index.
type VectorSearcher interface {
	VectorSearch(ctx context.Context, index VectorIndex, embedding []float32, filter []string, topK int) ([]VectorHit, error)
	Dimensions(index VectorIndex) int
}

// PatternSearcher matches structural references such as "article 17" against node
// paths and titles.
type PatternSearcher interface {
	ExactPatternSearch(ctx context.Context, pattern string, filter []string, limit int) ([]*types.DocumentNode, error)
}

// GraphNavigator walks the containment and relational structure.
type GraphNavigator interface {
	Neighbors(ctx context.Context, nodeID string) ([]Neighbor, error)
	Children(ctx context.Context, nodeID string) ([]*types.DocumentNode, error)
	GetNodes(ctx context.Context, nodeIDs []string) ([]*types.DocumentNode, error)
	ResolveNearestTitledAncestor(ctx context.Context, nodeID string) (*types.DocumentNode, error)
}

// DomainDirectory lists the domains written by the clustering process.
type DomainDirectory interface {
	ListDomains(ctx context.Context) ([]*types.Domain, error)
}

// GraphStore is the full read-only store contract.
type GraphStore interface {
	VectorSearcher
	PatternSearcher
	GraphNavigator
	DomainDirectory

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
	// Close releases all resources held by the store.
	Close() error
}

var (
	_ GraphStore = (*MemoryStore)(nil)
	_ GraphStore = (*Neo4jStore)(nil)
)

// maxAncestorHops bounds upward walks; the hierarchy has four levels.
const maxAncestorHops = int(types.LevelItem) + 1

// nearestTitled returns the first titled node of ancestors, which must be ordered
// nearest first.
func nearestTitled(ancestors []*types.DocumentNode) *types.DocumentNode {
	for i, a := range ancestors {
		if i >= maxAncestorHops {
			break
		}
		if a.HasTitle() {
			return a
		}
	}
	return nil
}

func filterSet(filter []string) map[string]struct{} {
	if len(filter) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(filter))
	for _, id := range filter {
		set[id] = struct{}{}
	}
	return set
}

func storeError(op string, err error) error {
	return types.Wrap(types.KindStoreUnavailable, op, err)
}
