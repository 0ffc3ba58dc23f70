package search

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/soundprediction/lexigraph/pkg/driver"
	"github.com/soundprediction/lexigraph/pkg/embedder"
	"github.com/soundprediction/lexigraph/pkg/metrics"
	"github.com/soundprediction/lexigraph/pkg/types"
	"github.com/soundprediction/lexigraph/pkg/utils"
)

var (
	// ErrStoreRequired is returned when no graph store is given.
	ErrStoreRequired = errors.New("graph store is required")
	// ErrEmbedderRequired is returned when an embedder is missing.
	ErrEmbedderRequired = errors.New("content and relation embedders are required")
)

// DefaultAdministrativeClasses are document classes dropped from topical results.
var DefaultAdministrativeClasses = []string{"supplementary", "transitional", "부칙"}

// Config tunes the hybrid pipeline.
type Config struct {
	// SearchableLevel is the level whose nodes carry content embeddings.
	SearchableLevel types.Level
	// CandidateMultiplier scales the per-stage topK relative to the requested limit.
	CandidateMultiplier int
	// RelationDiscount scales the similarity of leaves resolved from a relation hit.
	RelationDiscount float64
	// MaxResolvedLeaves bounds the leaves one relation hit resolves to.
	MaxResolvedLeaves int
	// ResolveDepth bounds the containment descent when resolving relation hits.
	ResolveDepth int
	// AdministrativeClasses are dropped unless nothing else remains.
	AdministrativeClasses []string
	// HeadingCount is how many top results get a Heading from their titled ancestor.
	HeadingCount int
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		SearchableLevel:       types.LevelParagraph,
		CandidateMultiplier:   2,
		RelationDiscount:      0.9,
		MaxResolvedLeaves:     3,
		ResolveDepth:          2,
		AdministrativeClasses: DefaultAdministrativeClasses,
		HeadingCount:          10,
	}
}

// Pipeline is the hybrid search pipeline of one engine. It is safe for concurrent use.
type Pipeline struct {
	store    driver.GraphStore
	content  embedder.Client
	relation embedder.Client
	config   Config
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger != nil {
			p.logger = logger
		}
		return nil
	}
}

// WithConfig replaces the pipeline configuration.
func WithConfig(cfg Config) Option {
	return func(p *Pipeline) error {
		if cfg.CandidateMultiplier <= 0 {
			cfg.CandidateMultiplier = 1
		}
		if cfg.RelationDiscount <= 0 || cfg.RelationDiscount > 1 {
			return types.NewConfigurationError("relation_discount", "must be in (0,1], got %v", cfg.RelationDiscount)
		}
		p.config = cfg
		return nil
	}
}

// NewPipeline creates a pipeline over store with the content (D1) and relation (D2)
// embedders. The embedder dimensionalities must match the store's indexes.
func NewPipeline(store driver.GraphStore, content, relation embedder.Client, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if content == nil || relation == nil {
		return nil, ErrEmbedderRequired
	}

	p := &Pipeline{
		store:    store,
		content:  content,
		relation: relation,
		config:   DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	if got, want := content.Dimensions(), store.Dimensions(driver.ContentIndex); got != want {
		return nil, types.NewConfigurationError("embedding.content.dimensions", "embedder produces %d, content index holds %d", got, want)
	}
	if got, want := relation.Dimensions(), store.Dimensions(driver.RelationIndex); got != want {
		return nil, types.NewConfigurationError("embedding.relation.dimensions", "embedder produces %d, relation index holds %d", got, want)
	}
	return p, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config {
	return p.config
}

// Store returns the graph store the pipeline reads.
func (p *Pipeline) Store() driver.GraphStore {
	return p.store
}

// HybridResult is the output of one pipeline run.
type HybridResult struct {
	Results     []types.QueryResult
	StageCounts map[types.Stage]int
	// ContentEmbedding is the D1 query embedding, nil when it could not be computed.
	ContentEmbedding []float32
	// Errors collects the absorbed per-stage failures.
	Errors []error
}

// Seeds returns up to n top results to seed graph expansion.
func (r *HybridResult) Seeds(n int) []types.QueryResult {
	if n > len(r.Results) {
		n = len(r.Results)
	}
	return r.Results[:n]
}

type stageOutput struct {
	stage   types.Stage
	results []types.QueryResult
	vector  []float32
}

// Search runs the pipeline for query restricted to filter (a domain's member ids;
// empty means the whole corpus) and returns at most limit candidates. Stage failures
// are absorbed: the stage contributes nothing and the error is recorded in Errors.
func (p *Pipeline) Search(ctx context.Context, query string, filter []string, limit int) (*HybridResult, error) {
	out := &HybridResult{StageCounts: map[types.Stage]int{}}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, types.ErrEmptyQuery
	}
	if limit <= 0 {
		return out, nil
	}
	topK := limit * p.config.CandidateMultiplier

	stages, errs := utils.ExecuteWithResults(ctx, 3,
		func() (stageOutput, error) { return p.exactStage(ctx, query, filter, topK) },
		func() (stageOutput, error) { return p.contentStage(ctx, query, filter, topK) },
		func() (stageOutput, error) { return p.relationStage(ctx, query, filter, topK) },
	)

	var merged mergeSet
	for i, st := range stages {
		if errs[i] != nil {
			p.recordStageError(stageNames[i], errs[i])
			out.Errors = append(out.Errors, errs[i])
			continue
		}
		if st.stage == types.StageContentVector {
			out.ContentEmbedding = st.vector
		}
		out.StageCounts[st.stage] = len(st.results)
		metrics.StageResultsTotal.WithLabelValues(string(st.stage)).Add(float64(len(st.results)))
		merged.add(st.results...)
	}

	results := FilterAdministrative(merged.sorted(), p.config.AdministrativeClasses)
	if len(results) > limit {
		results = results[:limit]
	}
	p.decorateHeadings(ctx, results)
	out.Results = results
	return out, nil
}

var stageNames = []types.Stage{types.StageExact, types.StageContentVector, types.StageRelationshipVector}

func (p *Pipeline) exactStage(ctx context.Context, query string, filter []string, topK int) (stageOutput, error) {
	st := stageOutput{stage: types.StageExact}
	pattern := ExtractPattern(query)
	if pattern == "" {
		return st, nil
	}

	nodes, err := p.store.ExactPatternSearch(ctx, pattern, filter, topK)
	if err != nil {
		return st, err
	}
	for _, n := range nodes {
		st.results = append(st.results, types.NewQueryResult(n, 1.0, types.StageExact))
	}
	p.logger.Debug("Exact pattern search", "pattern", pattern, "hits", len(st.results))
	return st, nil
}

func (p *Pipeline) contentStage(ctx context.Context, query string, filter []string, topK int) (stageOutput, error) {
	st := stageOutput{stage: types.StageContentVector}
	vec, err := p.content.EmbedSingle(ctx, query)
	if err != nil {
		return st, types.Wrap(types.KindEmbeddingService, "search.content_embedding", err)
	}
	st.vector = vec

	hits, err := p.store.VectorSearch(ctx, driver.ContentIndex, vec, filter, topK)
	if err != nil {
		return st, err
	}
	for _, h := range hits {
		if !h.Node.IsSearchable(p.config.SearchableLevel) {
			continue
		}
		st.results = append(st.results, types.NewQueryResult(h.Node, h.Similarity, types.StageContentVector))
	}
	return st, nil
}

func (p *Pipeline) relationStage(ctx context.Context, query string, filter []string, topK int) (stageOutput, error) {
	st := stageOutput{stage: types.StageRelationshipVector}
	vec, err := p.relation.EmbedSingle(ctx, query)
	if err != nil {
		return st, types.Wrap(types.KindEmbeddingService, "search.relation_embedding", err)
	}

	hits, err := p.store.VectorSearch(ctx, driver.RelationIndex, vec, filter, topK)
	if err != nil {
		return st, err
	}

	member := memberOf(filter)
	var set mergeSet
	for _, h := range hits {
		if h.Node == nil {
			continue
		}
		if h.Node.IsSearchable(p.config.SearchableLevel) {
			if member(h.Node.ID) {
				set.add(types.NewQueryResult(h.Node, h.Similarity, types.StageRelationshipVector))
			}
			continue
		}
		leaves, err := p.resolveLeaves(ctx, h.Node, member)
		if err != nil {
			p.logger.Debug("Failed to resolve relation target", "node_id", h.Node.ID, "error", err)
			continue
		}
		for _, leaf := range leaves {
			set.add(types.NewQueryResult(leaf, h.Similarity*p.config.RelationDiscount, types.StageRelationshipVector))
		}
	}
	st.results = set.ordered()
	return st, nil
}

// memberOf reports whether an id is in filter. An empty filter admits every id.
func memberOf(filter []string) func(string) bool {
	if len(filter) == 0 {
		return func(string) bool { return true }
	}
	set := make(map[string]struct{}, len(filter))
	for _, id := range filter {
		set[id] = struct{}{}
	}
	return func(id string) bool {
		_, ok := set[id]
		return ok
	}
}

// resolveLeaves walks containment downward breadth-first from node and returns up to
// MaxResolvedLeaves searchable leaves within ResolveDepth hops that pass member.
func (p *Pipeline) resolveLeaves(ctx context.Context, node *types.DocumentNode, member func(string) bool) ([]*types.DocumentNode, error) {
	var leaves []*types.DocumentNode
	frontier := []*types.DocumentNode{node}

	for depth := 0; depth < p.config.ResolveDepth && len(frontier) > 0; depth++ {
		var next []*types.DocumentNode
		for _, n := range frontier {
			children, err := p.store.Children(ctx, n.ID)
			if err != nil {
				return leaves, err
			}
			for _, c := range children {
				if c.IsSearchable(p.config.SearchableLevel) {
					if !member(c.ID) {
						continue
					}
					leaves = append(leaves, c)
					if len(leaves) == p.config.MaxResolvedLeaves {
						return leaves, nil
					}
					continue
				}
				next = append(next, c)
			}
		}
		frontier = next
	}
	return leaves, nil
}

func (p *Pipeline) decorateHeadings(ctx context.Context, results []types.QueryResult) {
	n := min(len(results), p.config.HeadingCount)
	for i := 0; i < n; i++ {
		anc, err := p.store.ResolveNearestTitledAncestor(ctx, results[i].NodeID)
		if err != nil {
			p.logger.Debug("Failed to resolve heading", "node_id", results[i].NodeID, "error", err)
			continue
		}
		if anc != nil {
			results[i].Heading = anc.Title
		}
	}
}

func (p *Pipeline) recordStageError(stage types.Stage, err error) {
	kind := types.KindOf(err).String()
	metrics.StageErrorsTotal.WithLabelValues(string(stage), kind).Inc()
	p.logger.Warn("Search stage failed", "stage", stage, "kind", kind, "error", err)
}
