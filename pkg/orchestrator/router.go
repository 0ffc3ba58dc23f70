package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soundprediction/lexigraph/pkg/a2a"
	"github.com/soundprediction/lexigraph/pkg/embedder"
	"github.com/soundprediction/lexigraph/pkg/judge"
	"github.com/soundprediction/lexigraph/pkg/metrics"
	"github.com/soundprediction/lexigraph/pkg/registry"
	"github.com/soundprediction/lexigraph/pkg/search"
	"github.com/soundprediction/lexigraph/pkg/types"
	"github.com/soundprediction/lexigraph/pkg/utils"
)

// Registry is the view of the domain registry the router needs.
type Registry interface {
	Directory
	Shortlist(ctx context.Context, queryEmbedding []float32, n int) []registry.Candidate
	Subscribe(l registry.Listener)
}

// Router is the top-level query handler. It owns one worker per known domain and
// serves as their a2a directory.
type Router struct {
	registry Registry
	pipeline *search.Pipeline
	expander *search.Expander
	content  embedder.Client
	judge    judge.Judge
	config   Config
	logger   *slog.Logger

	transport a2a.Transport

	mu      sync.Mutex
	workers map[string]*Orchestrator
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithRouterLogger sets the logger.
func WithRouterLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTransport builds the a2a transport from the router's own directory. Without
// it workers reach each other in process.
func WithTransport(build func(dir a2a.Directory) a2a.Transport) RouterOption {
	return func(r *Router) {
		r.transport = build(r)
	}
}

// NewRouter creates a router. The content embedder ranks the shortlist; the
// pipeline, expander and judge are shared by all workers.
func NewRouter(reg Registry, pipeline *search.Pipeline, expander *search.Expander, content embedder.Client, j judge.Judge, cfg Config, opts ...RouterOption) (*Router, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Router{
		registry: reg,
		pipeline: pipeline,
		expander: expander,
		content:  content,
		judge:    j,
		config:   cfg,
		logger:   slog.Default(),
		workers:  make(map[string]*Orchestrator),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.transport == nil {
		r.transport = a2a.NewLocalTransport(r)
	}

	reg.Subscribe(func(ev registry.Event) {
		if ev.Type == registry.EventRemoved {
			r.mu.Lock()
			delete(r.workers, ev.Domain.ID)
			r.mu.Unlock()
			r.logger.Info("Domain worker retired", "domain_id", ev.Domain.ID, "name", ev.Domain.Name)
		}
	})
	return r, nil
}

// Config returns the orchestration configuration.
func (r *Router) Config() Config { return r.config }

// Worker returns the worker of a registered domain, creating it on first use.
func (r *Router) Worker(ctx context.Context, domainID string) (*Orchestrator, bool) {
	if _, ok := r.registry.GetByID(ctx, domainID); !ok {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[domainID]
	if !ok {
		w = New(domainID, r.registry, r.pipeline, r.expander, r.judge, r.transport, r.config, r.logger)
		r.workers[domainID] = w
	}
	return w, true
}

// Handler implements a2a.Directory.
func (r *Router) Handler(domainID string) (a2a.Handler, bool) {
	w, ok := r.Worker(context.Background(), domainID)
	if !ok {
		return nil, false
	}
	return w, true
}

// HandleA2A routes an inbound peer request to the worker of domainID.
func (r *Router) HandleA2A(ctx context.Context, domainID string, req types.A2ARequest) (types.A2AResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return types.A2AResponse{}, types.ErrEmptyQuery
	}
	w, ok := r.Worker(ctx, domainID)
	if !ok {
		return types.A2AResponse{}, fmt.Errorf("%w: domain %s", types.ErrNotFound, domainID)
	}
	return w.HandleA2ARequest(ctx, req)
}

// Assess runs the shortlist assessments in parallel and returns them ranked by
// combined score. Equal scores keep registry order. An assessment that times out
// uses the degraded defaults.
func (r *Router) Assess(ctx context.Context, query string, shortlist []registry.Candidate) []types.DomainAssessment {
	tasks := make([]func(context.Context) (types.DomainAssessment, error), len(shortlist))
	workers := make([]*Orchestrator, len(shortlist))
	for i, c := range shortlist {
		w, ok := r.Worker(ctx, c.Domain.ID)
		workers[i] = w
		tasks[i] = func(ctx context.Context) (types.DomainAssessment, error) {
			if !ok {
				return types.DomainAssessment{}, fmt.Errorf("%w: domain %s", types.ErrNotFound, c.Domain.ID)
			}
			return w.Assess(ctx, query, c.Similarity), nil
		}
	}

	assessments, errs := utils.GatherWithTimeout(ctx, len(tasks), r.config.PerCallTimeout, tasks...)

	order := make(map[string]int, len(shortlist))
	for i, c := range shortlist {
		order[c.Domain.ID] = c.Order
		if errs[i] != nil {
			r.logger.Warn("Domain assessment abandoned", "domain", c.Domain.Name, "error", errs[i])
			metrics.AssessmentsTotal.WithLabelValues("degraded").Inc()
			assessments[i] = DegradedAssessment(r.config, c.Domain.ID, c.Domain.Name, c.Similarity, errs[i])
		}
	}

	RankAssessments(assessments, order)
	return assessments
}

// RankAssessments sorts by combined score descending, breaking ties by the
// registry order of the domain.
func RankAssessments(assessments []types.DomainAssessment, order map[string]int) {
	sort.SliceStable(assessments, func(i, j int) bool {
		a, b := assessments[i], assessments[j]
		if a.CombinedScore != b.CombinedScore {
			return a.CombinedScore > b.CombinedScore
		}
		return order[a.DomainID] < order[b.DomainID]
	})
}

// Search answers req. With a DomainID the domain is queried directly; otherwise the
// shortlist is assessed and the top-ranked domain becomes primary. When nothing can
// be queried the response is empty and carries zeroed stats.
func (r *Router) Search(ctx context.Context, req types.SearchRequest) (*types.SearchResponse, error) {
	if err := req.Validate(r.config.DefaultLimit); err != nil {
		return nil, err
	}
	start := time.Now()
	routing := "routed"
	if req.DomainID != "" {
		routing = "direct"
	}
	defer func() {
		metrics.QueryDuration.WithLabelValues(routing).Observe(time.Since(start).Seconds())
	}()

	if r.config.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.QueryTimeout)
		defer cancel()
	}

	resp := &types.SearchResponse{
		QueryID: uuid.New().String(),
		Results: []types.QueryResult{},
		Stats:   types.NewSearchStats(),
	}
	logger := r.logger.With("query_id", resp.QueryID)

	primary, err := r.primary(ctx, req, logger)
	if err != nil {
		return nil, err
	}
	if primary == nil {
		logger.Warn("No domain available for query", "query", req.Query)
		resp.ResponseTimeMs = time.Since(start).Milliseconds()
		return resp, nil
	}

	d, _ := r.registry.GetByID(ctx, primary.DomainID())
	answer, err := primary.Answer(ctx, req.Query, req.Limit)
	if err != nil {
		logger.Error("Primary domain failed", "domain_id", primary.DomainID(), "error", err)
		resp.ResponseTimeMs = time.Since(start).Milliseconds()
		return resp, nil
	}

	if d != nil {
		resp.PrimaryDomainName = d.Name
		resp.Stats.DomainsQueried = append(resp.Stats.DomainsQueried, d.Name)
	}
	resp.Stats.DomainsQueried = append(resp.Stats.DomainsQueried, answer.Collaborators...)
	resp.Stats.CollaborationTriggered = answer.CollaborationTriggered
	resp.Stats.CollaboratingDomains = append(resp.Stats.CollaboratingDomains, answer.Collaborators...)
	if answer.Results != nil {
		resp.Results = answer.Results
	}
	resp.Stats.TotalCount = len(resp.Results)
	resp.Stats.PerStageCounts = StageCounts(resp.Results)

	if req.Synthesize && len(resp.Results) > 0 {
		top := resp.Results[:min(r.config.SynthesisTopN, len(resp.Results))]
		text, err := r.judge.Synthesize(ctx, req.Query, top)
		if err != nil {
			logger.Warn("Synthesis failed, returning results only", "error", err)
		} else {
			resp.SynthesizedAnswer = text
		}
	}

	resp.ResponseTimeMs = time.Since(start).Milliseconds()
	logger.Info("Query answered",
		"primary", resp.PrimaryDomainName,
		"results", resp.Stats.TotalCount,
		"collaborated", resp.Stats.CollaborationTriggered,
		"elapsed_ms", resp.ResponseTimeMs)
	return resp, nil
}

func (r *Router) primary(ctx context.Context, req types.SearchRequest, logger *slog.Logger) (*Orchestrator, error) {
	if req.DomainID != "" {
		w, ok := r.Worker(ctx, req.DomainID)
		if !ok {
			return nil, fmt.Errorf("%w: domain %s", types.ErrNotFound, req.DomainID)
		}
		return w, nil
	}

	vec, err := r.content.EmbedSingle(ctx, req.Query)
	if err != nil {
		// Without an embedding every centroid scores zero and registry order decides.
		logger.Warn("Query embedding failed, shortlist falls back to registry order", "error", err)
		vec = nil
	}
	shortlist := r.registry.Shortlist(ctx, vec, r.config.ShortlistSize)
	if len(shortlist) == 0 {
		return nil, nil
	}

	ranked := r.Assess(ctx, req.Query, shortlist)
	for _, a := range ranked {
		logger.Debug("Domain ranked", "domain", a.DomainName, "score", a.CombinedScore, "confidence", a.Confidence, "similarity", a.Similarity, "degraded", a.Degraded)
	}
	w, ok := r.Worker(ctx, ranked[0].DomainID)
	if !ok {
		return nil, nil
	}
	return w, nil
}

// StageCounts counts the results carrying each stage tag.
func StageCounts(results []types.QueryResult) map[types.Stage]int {
	counts := make(map[types.Stage]int)
	for _, res := range results {
		for _, s := range res.Stages {
			counts[s]++
		}
	}
	return counts
}
