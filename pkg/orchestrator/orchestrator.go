// Package orchestrator runs one worker per domain and routes queries across them.
//
// A worker assesses whether its domain can answer a query, answers it with the
// hybrid pipeline and graph expansion restricted to its members, and asks up to
// two peers for help over the a2a transport when its own results are weak. The
// Router picks the primary worker from the registry shortlist.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/soundprediction/lexigraph/pkg/a2a"
	"github.com/soundprediction/lexigraph/pkg/judge"
	"github.com/soundprediction/lexigraph/pkg/metrics"
	"github.com/soundprediction/lexigraph/pkg/prompts"
	"github.com/soundprediction/lexigraph/pkg/search"
	"github.com/soundprediction/lexigraph/pkg/types"
	"github.com/soundprediction/lexigraph/pkg/utils"
)

// Directory is the view of the domain registry a worker needs.
type Directory interface {
	GetAll(ctx context.Context, force bool) []*types.Domain
	GetByID(ctx context.Context, id string) (*types.Domain, bool)
	GetByName(ctx context.Context, name string) (*types.Domain, bool)
	RecordQuery(id string) int64
}

// Answer is what a primary worker returns for a query.
type Answer struct {
	Results []types.QueryResult
	// Collaborators are the names of the peers that contributed results.
	Collaborators []string
	// CollaborationTriggered is set when the worker asked at least one peer.
	CollaborationTriggered bool
	Errors                 []error
	States                 []State
}

// Orchestrator is the worker of one domain. It is safe for concurrent use.
type Orchestrator struct {
	domainID  string
	dir       Directory
	pipeline  *search.Pipeline
	expander  *search.Expander
	judge     judge.Judge
	transport a2a.Transport
	config    Config
	logger    *slog.Logger
}

// New creates the worker of domainID.
func New(domainID string, dir Directory, pipeline *search.Pipeline, expander *search.Expander, j judge.Judge, transport a2a.Transport, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		domainID:  domainID,
		dir:       dir,
		pipeline:  pipeline,
		expander:  expander,
		judge:     j,
		transport: transport,
		config:    cfg,
		logger:    logger.With("domain_id", domainID),
	}
}

// DomainID returns the id of the worker's domain.
func (o *Orchestrator) DomainID() string { return o.domainID }

func (o *Orchestrator) domain(ctx context.Context) (*types.Domain, error) {
	d, ok := o.dir.GetByID(ctx, o.domainID)
	if !ok {
		return nil, fmt.Errorf("%w: domain %s", types.ErrNotFound, o.domainID)
	}
	return d, nil
}

// Assess asks the judge whether the domain can answer query and blends the
// confidence with the centroid similarity. A failed judgment degrades to a
// neutral confidence instead of failing.
func (o *Orchestrator) Assess(ctx context.Context, query string, similarity float64) types.DomainAssessment {
	d, err := o.domain(ctx)
	if err != nil {
		return o.degraded(o.domainID, similarity, err)
	}
	t := newTracker(o.logger, d.Name, query)
	t.to(StateAssessing)

	samples := o.samples(ctx, d)
	verdict, err := o.judge.Assess(ctx, query, d, samples)
	if err != nil {
		o.logger.Warn("Domain assessment failed, using defaults", "error", err)
		return o.degraded(d.Name, similarity, err)
	}

	metrics.AssessmentsTotal.WithLabelValues("ok").Inc()
	return types.DomainAssessment{
		DomainID:      o.domainID,
		DomainName:    d.Name,
		CanAnswer:     verdict.CanAnswer,
		Confidence:    verdict.Confidence,
		Similarity:    similarity,
		CombinedScore: o.config.CombinedScore(verdict.Confidence, similarity),
		Reason:        verdict.Reason,
	}
}

func (o *Orchestrator) degraded(name string, similarity float64, err error) types.DomainAssessment {
	metrics.AssessmentsTotal.WithLabelValues("degraded").Inc()
	return DegradedAssessment(o.config, o.domainID, name, similarity, err)
}

// DegradedAssessment is the assessment used when the judgment is unavailable.
func DegradedAssessment(cfg Config, domainID, name string, similarity float64, err error) types.DomainAssessment {
	a := types.DomainAssessment{
		DomainID:      domainID,
		DomainName:    name,
		CanAnswer:     true,
		Confidence:    prompts.DefaultConfidence,
		Similarity:    similarity,
		CombinedScore: cfg.CombinedScore(prompts.DefaultConfidence, similarity),
		Degraded:      true,
	}
	if err != nil {
		a.Reason = err.Error()
	}
	return a
}

func (o *Orchestrator) samples(ctx context.Context, d *types.Domain) []*types.DocumentNode {
	n := min(o.config.SampleSize, len(d.MemberIDs))
	if n <= 0 {
		return nil
	}
	nodes, err := o.pipeline.Store().GetNodes(ctx, d.MemberIDs[:n])
	if err != nil {
		o.logger.Warn("Failed to load assessment samples", "error", err)
		return nil
	}
	return nodes
}

// Answer handles query as the primary domain: local search and expansion, then
// collaboration with peers when the judge asks for it.
func (o *Orchestrator) Answer(ctx context.Context, query string, limit int) (*Answer, error) {
	d, err := o.domain(ctx)
	if err != nil {
		return nil, err
	}
	o.dir.RecordQuery(o.domainID)
	t := newTracker(o.logger, d.Name, query)
	out := &Answer{Collaborators: []string{}}

	local, errs, err := o.local(ctx, t, d, query, limit)
	if err != nil {
		return nil, err
	}
	out.Errors = errs

	t.to(StateDeciding)
	targets := o.decide(ctx, d, query, local)
	if len(targets) == 0 {
		t.to(StateDone)
		out.Results = local
		out.States = t.visited
		return out, nil
	}

	t.to(StateCollaborating)
	out.CollaborationTriggered = true
	peerLists, names := o.collaborate(ctx, d, query, limit, targets)
	out.Collaborators = names

	t.to(StateMerging)
	out.Results = MergeResults(local, peerLists)

	t.to(StateDone)
	out.States = t.visited
	return out, nil
}

// HandleA2ARequest answers a peer's refined query with local search and expansion.
// Every result is tagged with this domain and the refined query. Peers never
// collaborate further on a request they received.
func (o *Orchestrator) HandleA2ARequest(ctx context.Context, req types.A2ARequest) (types.A2AResponse, error) {
	d, err := o.domain(ctx)
	if err != nil {
		return types.A2AResponse{}, err
	}
	o.dir.RecordQuery(o.domainID)

	limit := req.Limit
	if limit <= 0 {
		limit = o.config.DefaultLimit
	}
	o.logger.Info("Handling a2a request", "from", req.FromDomain, "query", req.Query)

	t := newTracker(o.logger, d.Name, req.Query)
	results, _, err := o.local(ctx, t, d, req.Query, limit)
	if err != nil {
		return types.A2AResponse{}, err
	}
	t.to(StateDone)

	prov := &types.Provenance{DomainID: d.ID, DomainName: d.Name, RefinedQuery: req.Query}
	for i := range results {
		p := *prov
		results[i].Provenance = &p
	}
	return types.A2AResponse{Results: results, DomainName: d.Name}, nil
}

func (o *Orchestrator) local(ctx context.Context, t *tracker, d *types.Domain, query string, limit int) ([]types.QueryResult, []error, error) {
	t.to(StateSearching)
	hybrid, err := o.pipeline.Search(ctx, query, d.MemberIDs, limit)
	if err != nil {
		return nil, nil, err
	}
	errs := hybrid.Errors
	results := hybrid.Results

	if o.config.ExpansionMode != search.ModeNone && hybrid.ContentEmbedding != nil && len(results) > 0 {
		t.to(StateExpanding)
		expanded, err := o.expander.Expand(ctx, o.config.ExpansionMode, hybrid.ContentEmbedding, hybrid.Seeds(o.config.SeedCount))
		if err != nil {
			o.logger.Warn("Graph expansion incomplete", "error", err)
			errs = append(errs, err)
		}
		results = search.Merge(results, expanded)
	}

	results = search.FilterAdministrative(results, o.config.ExcludedClasses)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, errs, nil
}

type target struct {
	domain       *types.Domain
	refinedQuery string
}

// decide asks the judge for collaboration targets and resolves them through the
// registry. Judgment failures mean no collaboration.
func (o *Orchestrator) decide(ctx context.Context, self *types.Domain, query string, results []types.QueryResult) []target {
	if o.config.FanoutLimit <= 0 || o.transport == nil {
		return nil
	}
	var peers []*types.Domain
	for _, d := range o.dir.GetAll(ctx, false) {
		if d.ID != self.ID {
			peers = append(peers, d)
		}
	}
	if len(peers) == 0 {
		return nil
	}

	decision, err := o.judge.ShouldCollaborate(ctx, query, self.Name, results, peers, o.config.FanoutLimit)
	if err != nil {
		o.logger.Warn("Collaboration decision failed, answering alone", "error", err)
		return nil
	}
	if !decision.NeedsCollaboration {
		return nil
	}
	return o.resolveTargets(ctx, self, query, decision.Targets)
}

func (o *Orchestrator) resolveTargets(ctx context.Context, self *types.Domain, query string, named []prompts.CollaborationTarget) []target {
	seen := map[string]bool{self.ID: true}
	var out []target
	for _, n := range named {
		d, ok := o.dir.GetByName(ctx, n.Domain)
		if !ok {
			o.logger.Debug("Dropping unknown collaboration target", "target", n.Domain)
			continue
		}
		if seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		refined := strings.TrimSpace(n.RefinedQuery)
		if refined == "" {
			refined = query
		}
		out = append(out, target{domain: d, refinedQuery: refined})
		if len(out) == o.config.FanoutLimit {
			break
		}
	}
	return out
}

// collaborate sends the refined queries in parallel. A peer that fails or times
// out contributes nothing.
func (o *Orchestrator) collaborate(ctx context.Context, self *types.Domain, query string, limit int, targets []target) ([][]types.QueryResult, []string) {
	tasks := make([]func(context.Context) (types.A2AResponse, error), len(targets))
	for i, tg := range targets {
		tasks[i] = func(ctx context.Context) (types.A2AResponse, error) {
			return o.transport.Send(ctx, tg.domain.ID, types.A2ARequest{
				FromDomain:    self.ID,
				Query:         tg.refinedQuery,
				OriginalQuery: query,
				Limit:         limit,
			})
		}
	}

	responses, errs := utils.GatherWithTimeout(ctx, len(tasks), o.config.PerCallTimeout, tasks...)

	lists := make([][]types.QueryResult, 0, len(targets))
	names := []string{}
	for i, resp := range responses {
		tg := targets[i]
		if err := errs[i]; err != nil {
			outcome := "error"
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, types.ErrTimeout) {
				outcome = "timeout"
			}
			metrics.CollaborationRequestsTotal.WithLabelValues(outcome).Inc()
			o.logger.Warn("Peer contributed nothing", "peer", tg.domain.Name, "outcome", outcome, "error", err)
			continue
		}
		metrics.CollaborationRequestsTotal.WithLabelValues("success").Inc()

		name := resp.DomainName
		if name == "" {
			name = tg.domain.Name
		}
		for j := range resp.Results {
			if resp.Results[j].Provenance == nil {
				resp.Results[j].Provenance = &types.Provenance{DomainID: tg.domain.ID, DomainName: name, RefinedQuery: tg.refinedQuery}
			}
		}
		lists = append(lists, resp.Results)
		names = append(names, name)
	}
	return lists, names
}

// MergeResults unions primary and peer results by node id, keeping the highest
// similarity and the peer provenance, in descending similarity. Every primary
// result and every peer result is kept.
func MergeResults(primary []types.QueryResult, peers [][]types.QueryResult) []types.QueryResult {
	lists := append([][]types.QueryResult{primary}, peers...)
	return search.Merge(lists...)
}
