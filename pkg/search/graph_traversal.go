package search

import (
	"container/heap"
	"context"
	"log/slog"

	"github.com/soundprediction/lexigraph/pkg/driver"
	"github.com/soundprediction/lexigraph/pkg/embedder"
	"github.com/soundprediction/lexigraph/pkg/metrics"
	"github.com/soundprediction/lexigraph/pkg/types"
	"github.com/soundprediction/lexigraph/pkg/utils"
)

// Expansion modes.
const (
	ModeRNE  = "rne"
	ModeINE  = "ine"
	ModeNone = "none"
)

// ExpanderConfig tunes graph expansion.
type ExpanderConfig struct {
	// Threshold is the RNE similarity floor.
	Threshold float64
	// MaxResults bounds the RNE result count.
	MaxResults int
	// K is the INE result budget.
	K int
	// SearchableLevel is the level at and below which nodes are emitted.
	SearchableLevel types.Level
}

// DefaultExpanderConfig returns the expansion defaults.
func DefaultExpanderConfig() ExpanderConfig {
	return ExpanderConfig{
		Threshold:       0.75,
		MaxResults:      20,
		K:               10,
		SearchableLevel: types.LevelParagraph,
	}
}

// Expander runs cost-based frontier expansion over the document graph. One
// invocation is single-threaded; separate invocations may run concurrently.
type Expander struct {
	navigator driver.GraphNavigator
	config    ExpanderConfig
	logger    *slog.Logger
}

// NewExpander creates an expander reading the graph through navigator.
func NewExpander(navigator driver.GraphNavigator, config ExpanderConfig, logger *slog.Logger) *Expander {
	if logger == nil {
		logger = slog.Default()
	}
	return &Expander{navigator: navigator, config: config, logger: logger}
}

// Config returns the expander configuration.
func (e *Expander) Config() ExpanderConfig {
	return e.config
}

// RNE expands from seeds until the cheapest frontier node falls below threshold or
// maxResults nodes have been emitted.
func (e *Expander) RNE(ctx context.Context, queryEmbedding []float32, seeds []types.QueryResult, threshold float64, maxResults int) ([]types.QueryResult, error) {
	return e.expand(ctx, ModeRNE, queryEmbedding, seeds, threshold, maxResults)
}

// INE expands from seeds until k nodes have been emitted; no similarity floor applies.
// A k of zero or less returns an empty result.
func (e *Expander) INE(ctx context.Context, queryEmbedding []float32, seeds []types.QueryResult, k int) ([]types.QueryResult, error) {
	if k <= 0 {
		return []types.QueryResult{}, nil
	}
	return e.expand(ctx, ModeINE, queryEmbedding, seeds, -1, k)
}

// Expand runs the configured mode with the configured bounds.
func (e *Expander) Expand(ctx context.Context, mode string, queryEmbedding []float32, seeds []types.QueryResult) ([]types.QueryResult, error) {
	switch mode {
	case ModeRNE:
		return e.RNE(ctx, queryEmbedding, seeds, e.config.Threshold, e.config.MaxResults)
	case ModeINE:
		return e.INE(ctx, queryEmbedding, seeds, e.config.K)
	default:
		return []types.QueryResult{}, nil
	}
}

// ExpandFromQuery is the standalone invocation: it seeds from a fresh content-vector
// search for query within filter and expands with the configured mode.
func (e *Expander) ExpandFromQuery(ctx context.Context, searcher driver.VectorSearcher, content embedder.Client, mode, query string, filter []string, seedCount int) ([]types.QueryResult, error) {
	vec, err := content.EmbedSingle(ctx, query)
	if err != nil {
		return nil, types.Wrap(types.KindEmbeddingService, "search.expand_from_query", err)
	}
	hits, err := searcher.VectorSearch(ctx, driver.ContentIndex, vec, filter, seedCount)
	if err != nil {
		return nil, err
	}
	seeds := make([]types.QueryResult, 0, len(hits))
	for _, h := range hits {
		seeds = append(seeds, types.NewQueryResult(h.Node, h.Similarity, types.StageContentVector))
	}
	return e.Expand(ctx, mode, vec, seeds)
}

// direction constrains containment moves along a path.
type direction int

const (
	dirAny direction = iota
	dirUp
	dirDown
)

type frontierItem struct {
	node *types.DocumentNode
	cost float64
	edge types.EdgeType
	dir  direction
	seq  int
}

// frontier is a min-heap on cost with FIFO order among equal costs.
type frontier []*frontierItem

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	if f[i].cost != f[j].cost {
		return f[i].cost < f[j].cost
	}
	return f[i].seq < f[j].seq
}
func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }
func (f *frontier) Push(x any)   { *f = append(*f, x.(*frontierItem)) }
func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*f = old[:n-1]
	return item
}

// expand is shared by RNE and INE. A negative threshold disables the floor.
func (e *Expander) expand(ctx context.Context, mode string, queryEmbedding []float32, seeds []types.QueryResult, threshold float64, limit int) ([]types.QueryResult, error) {
	out := []types.QueryResult{}
	if limit <= 0 || len(seeds) == 0 {
		return out, nil
	}

	pq := &frontier{}
	seq := 0
	push := func(item *frontierItem) {
		item.seq = seq
		seq++
		heap.Push(pq, item)
	}
	seedIDs := make(map[string]struct{}, len(seeds))
	for _, s := range seeds {
		if s.Node == nil {
			continue
		}
		seedIDs[s.Node.ID] = struct{}{}
		push(&frontierItem{node: s.Node, cost: 1 - types.ClampUnit(s.Similarity)})
	}

	reached := make(map[string]struct{})
	for pq.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return out, types.Wrap(types.KindTimeout, "search.expand", err)
		}

		item := heap.Pop(pq).(*frontierItem)
		if _, ok := reached[item.node.ID]; ok {
			continue
		}
		similarity := types.ClampUnit(1 - item.cost)
		if threshold >= 0 && similarity < threshold {
			break
		}
		reached[item.node.ID] = struct{}{}

		if _, isSeed := seedIDs[item.node.ID]; !isSeed && item.node.IsLeafContent(e.config.SearchableLevel) {
			out = append(out, types.NewQueryResult(item.node, similarity, types.ExpansionStage(item.edge)))
			if len(out) >= limit {
				break
			}
		}

		neighbors, err := e.navigator.Neighbors(ctx, item.node.ID)
		if err != nil {
			e.logger.Debug("Failed to load neighbors", "node_id", item.node.ID, "error", err)
			continue
		}
		for _, nb := range neighbors {
			if nb.Node == nil {
				continue
			}
			if _, ok := reached[nb.Node.ID]; ok {
				continue
			}
			next, ok := e.step(item, nb, queryEmbedding)
			if ok {
				push(next)
			}
		}
	}

	metrics.ExpansionReachedTotal.WithLabelValues(mode).Add(float64(len(out)))
	return out, nil
}

// step prices the move from item over nb. Containment moves keep their direction so
// siblings are only reached through the sibling edge.
func (e *Expander) step(item *frontierItem, nb driver.Neighbor, queryEmbedding []float32) (*frontierItem, bool) {
	next := &frontierItem{node: nb.Node, cost: item.cost, edge: nb.EdgeType}

	switch {
	case nb.EdgeType == types.EdgeParent:
		if item.dir == dirDown {
			return nil, false
		}
		next.dir = dirUp
	case nb.EdgeType == types.EdgeChild:
		if item.dir == dirUp {
			return nil, false
		}
		next.dir = dirDown
	case nb.EdgeType == types.EdgeSibling:
		next.cost += siblingCost(queryEmbedding, nb.Node.Embedding)
	case nb.EdgeType.IsRelational():
		// Free: the relation vouches for relevance, similarity stays as reached.
	default:
		return nil, false
	}
	return next, true
}

func siblingCost(query, sibling []float32) float64 {
	if len(query) == 0 || len(sibling) == 0 || len(query) != len(sibling) {
		return 1
	}
	return 1 - utils.UnitSimilarity(query, sibling)
}
