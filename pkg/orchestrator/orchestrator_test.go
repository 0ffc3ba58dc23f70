package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/soundprediction/lexigraph/pkg/a2a"
	"github.com/soundprediction/lexigraph/pkg/prompts"
	"github.com/soundprediction/lexigraph/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreBlendBoundaries(t *testing.T) {
	tests := []struct {
		name        string
		alpha, beta float64
		conf, sim   float64
		want        float64
	}{
		{"confidence only", 1, 0, 0.4, 0.9, 0.4},
		{"similarity only", 0, 1, 0.4, 0.9, 0.9},
		{"default weights, confidence", 0.7, 0.3, 1, 0, 0.7},
		{"default weights, similarity", 0.7, 0.3, 0, 1, 0.3},
		{"inputs are clamped", 0.7, 0.3, 1.5, -1, 0.7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Alpha: tt.alpha, Beta: tt.beta}
			assert.InDelta(t, tt.want, cfg.CombinedScore(tt.conf, tt.sim), 1e-9)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Beta = 0.4
	assert.ErrorIs(t, cfg.Validate(), types.ErrConfiguration)

	cfg = DefaultConfig()
	cfg.FanoutLimit = 3
	assert.ErrorIs(t, cfg.Validate(), types.ErrConfiguration)

	cfg = DefaultConfig()
	cfg.ExpansionMode = "bfs"
	assert.ErrorIs(t, cfg.Validate(), types.ErrConfiguration)
}

func TestAssessDegradedDefaults(t *testing.T) {
	j := &fakeJudge{assessErr: types.Wrap(types.KindJudgmentService, "fake", errors.New("503"))}
	h := newHarness(t, loadLabor(t), []float32{1, 0, 0}, []float32{1, 0}, j, testConfig())

	w, ok := h.router.Worker(context.Background(), "d-contracts")
	require.True(t, ok)
	a := w.Assess(context.Background(), "written contract", 0.8)

	assert.True(t, a.Degraded)
	assert.True(t, a.CanAnswer)
	assert.Equal(t, prompts.DefaultConfidence, a.Confidence)
	assert.InDelta(t, 0.7*0.5+0.3*0.8, a.CombinedScore, 1e-9)
	assert.Equal(t, "Employment Contracts", a.DomainName)
}

func TestAnswerWithoutCollaboration(t *testing.T) {
	j := &fakeJudge{}
	h := newHarness(t, loadLabor(t), []float32{1, 0, 0}, []float32{1, 0}, j, testConfig())

	w, _ := h.router.Worker(context.Background(), "d-contracts")
	answer, err := w.Answer(context.Background(), "written contract", 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"art17-p1", "art170-p1", "art17-p2"}, resultIDs(answer.Results))
	expanded, _ := findResult(answer.Results, "art170-p1")
	assert.True(t, expanded.HasStage(types.ExpansionStage(types.EdgeCrossReference)))
	assert.False(t, answer.CollaborationTriggered)
	assert.Equal(t, []State{StateSearching, StateExpanding, StateDeciding, StateDone}, answer.States)
	assert.Equal(t, 1, j.collaborateCalls)
	assert.Equal(t, int64(1), h.registry.QueryCount("d-contracts"))
}

func TestCollaborationDecisionFailureAnswersAlone(t *testing.T) {
	j := &fakeJudge{collaborateErr: errors.New("judge unavailable")}
	transport := &scriptedTransport{}
	h := newHarness(t, loadLabor(t), []float32{1, 0, 0}, []float32{1, 0}, j, testConfig(),
		WithTransport(func(a2a.Directory) a2a.Transport { return transport }))

	w, _ := h.router.Worker(context.Background(), "d-contracts")
	answer, err := w.Answer(context.Background(), "written contract", 10)
	require.NoError(t, err)
	assert.False(t, answer.CollaborationTriggered)
	assert.Len(t, answer.Results, 3)
	assert.Empty(t, transport.sent())
}

func TestCollaborationFailureIsolation(t *testing.T) {
	store := loadLabor(t)
	require.NoError(t, store.AddDomain(&types.Domain{ID: "d-wages", Name: "Wages", Slug: "wages"}))

	j := &fakeJudge{collaborate: map[string]prompts.CollaborationResponse{
		"Employment Contracts": {
			NeedsCollaboration: true,
			Targets: []prompts.CollaborationTarget{
				{Domain: "contracts", RefinedQuery: "self"},
				{Domain: "Taxes", RefinedQuery: "unknown"},
				{Domain: "Penalties", RefinedQuery: "penalty for missing contract"},
				{Domain: "wages"},
			},
		},
	}}
	transport := &scriptedTransport{replies: map[string]*types.A2AResponse{
		"d-penalties": nil, // never answers
		"d-wages": {
			DomainName: "Wages",
			Results: []types.QueryResult{{
				NodeID:     "w-1",
				Similarity: 0.95,
				Stages:     []types.Stage{types.StageContentVector},
			}},
		},
	}}
	h := newHarness(t, store, []float32{1, 0, 0}, []float32{1, 0}, j, testConfig(),
		WithTransport(func(a2a.Directory) a2a.Transport { return transport }))

	start := time.Now()
	resp, err := h.router.Search(context.Background(), types.SearchRequest{Query: "written contract", DomainID: "d-contracts"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	assert.Equal(t, []string{"art17-p1", "art170-p1", "w-1", "art17-p2"}, resultIDs(resp.Results))
	assert.True(t, resp.Stats.CollaborationTriggered)
	assert.Equal(t, []string{"Wages"}, resp.Stats.CollaboratingDomains)
	assert.Equal(t, []string{"Employment Contracts", "Wages"}, resp.Stats.DomainsQueried)

	wage, _ := findResult(resp.Results, "w-1")
	require.NotNil(t, wage.Provenance)
	assert.Equal(t, "Wages", wage.Provenance.DomainName)
	assert.Equal(t, "written contract", wage.Provenance.RefinedQuery, "refined query defaults to the original")

	sent := transport.sent()
	require.Len(t, sent, 2)
	for _, req := range sent {
		assert.Equal(t, "d-contracts", req.FromDomain)
		assert.Equal(t, "written contract", req.OriginalQuery)
	}
}

func TestHandleA2ARequestTagsProvenance(t *testing.T) {
	h := newHarness(t, loadLabor(t), []float32{0, 1, 0}, []float32{0, 1}, &fakeJudge{}, testConfig())

	resp, err := h.router.HandleA2A(context.Background(), "d-contracts", types.A2ARequest{
		FromDomain:    "d-penalties",
		Query:         "written contract article 17",
		OriginalQuery: "article 17",
	})
	require.NoError(t, err)
	assert.Equal(t, "Employment Contracts", resp.DomainName)
	assert.Equal(t, []string{"art17-p1", "art17-p2", "art170-p1"}, resultIDs(resp.Results))
	for _, r := range resp.Results {
		require.NotNil(t, r.Provenance)
		assert.Equal(t, "d-contracts", r.Provenance.DomainID)
		assert.Equal(t, "written contract article 17", r.Provenance.RefinedQuery)
	}
	assert.Equal(t, int64(1), h.registry.QueryCount("d-contracts"))

	_, err = h.router.HandleA2A(context.Background(), "d-missing", types.A2ARequest{Query: "x"})
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = h.router.HandleA2A(context.Background(), "d-contracts", types.A2ARequest{Query: " "})
	assert.ErrorIs(t, err, types.ErrEmptyQuery)
}

func TestMergeResults(t *testing.T) {
	primary := []types.QueryResult{
		{NodeID: "a", Similarity: 0.9, Stages: []types.Stage{types.StageExact}},
		{NodeID: "b", Similarity: 0.2, Stages: []types.Stage{types.StageContentVector}},
	}
	peer := []types.QueryResult{
		{NodeID: "b", Similarity: 0.7, Stages: []types.Stage{types.StageExact}, Provenance: &types.Provenance{DomainName: "Wages", RefinedQuery: "q"}},
		{NodeID: "c", Similarity: 0.5, Provenance: &types.Provenance{DomainName: "Wages"}},
	}

	got := MergeResults(primary, [][]types.QueryResult{peer})
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b", "c"}, resultIDs(got))
	assert.Equal(t, 0.7, got[1].Similarity)
	assert.Equal(t, []types.Stage{types.StageContentVector, types.StageExact}, got[1].Stages)
	require.NotNil(t, got[1].Provenance)
	assert.Equal(t, "Wages", got[1].Provenance.DomainName)
}

func TestMergeResultsKeepsPrimaryWhenPeersScoreHigher(t *testing.T) {
	primary := []types.QueryResult{
		{NodeID: "p1", Similarity: 0.3},
		{NodeID: "p2", Similarity: 0.2},
	}
	peer := []types.QueryResult{
		{NodeID: "x1", Similarity: 1.0, Provenance: &types.Provenance{DomainName: "Wages"}},
		{NodeID: "x2", Similarity: 0.9, Provenance: &types.Provenance{DomainName: "Wages"}},
	}

	got := MergeResults(primary, [][]types.QueryResult{peer})
	assert.Equal(t, []string{"x1", "x2", "p1", "p2"}, resultIDs(got))
	assert.Nil(t, got[2].Provenance)

	assert.Equal(t, []string{"p1", "p2"}, resultIDs(MergeResults(primary, nil)))
}
