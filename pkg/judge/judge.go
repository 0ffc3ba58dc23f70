// Package judge implements the relevance-judgment collaborator on top of a chat model.
package judge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soundprediction/lexigraph/pkg/metrics"
	"github.com/soundprediction/lexigraph/pkg/nlp"
	"github.com/soundprediction/lexigraph/pkg/prompts"
	"github.com/soundprediction/lexigraph/pkg/types"
)

const (
	maxSnippetRunes    = 400
	maxResultsInPrompt = 10
)

// Judge answers the three relevance questions the orchestrator asks.
// Every error it returns is classified as types.ErrJudgmentService or types.ErrTimeout.
type Judge interface {
	// Assess reports whether domain can answer query, given sample member nodes.
	Assess(ctx context.Context, query string, domain *types.Domain, samples []*types.DocumentNode) (prompts.Assessment, error)
	// ShouldCollaborate decides whether domainName should consult peers and what to ask them.
	ShouldCollaborate(ctx context.Context, query, domainName string, results []types.QueryResult, peers []*types.Domain, maxTargets int) (prompts.CollaborationResponse, error)
	// Synthesize writes a cited narrative answer from results.
	Synthesize(ctx context.Context, query string, results []types.QueryResult) (string, error)
}

// LLMJudge implements Judge with an nlp.Client.
type LLMJudge struct {
	client  nlp.Client
	prompts prompts.JudgmentPrompts
	logger  *slog.Logger
}

// Option configures an LLMJudge.
type Option func(*LLMJudge)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(j *LLMJudge) {
		if logger != nil {
			j.logger = logger
		}
	}
}

// WithPrompts overrides individual prompts. Nil entries keep the defaults.
func WithPrompts(p prompts.JudgmentPrompts) Option {
	return func(j *LLMJudge) {
		if p.Assess != nil {
			j.prompts.Assess = p.Assess
		}
		if p.Collaborate != nil {
			j.prompts.Collaborate = p.Collaborate
		}
		if p.Synthesize != nil {
			j.prompts.Synthesize = p.Synthesize
		}
	}
}

// NewLLMJudge creates a judge over client.
func NewLLMJudge(client nlp.Client, opts ...Option) *LLMJudge {
	j := &LLMJudge{
		client:  client,
		prompts: prompts.DefaultJudgmentPrompts(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Assess implements Judge.
func (j *LLMJudge) Assess(ctx context.Context, query string, domain *types.Domain, samples []*types.DocumentNode) (prompts.Assessment, error) {
	rows := make([]prompts.SampleRow, 0, len(samples))
	for _, n := range samples {
		rows = append(rows, prompts.SampleRow{Path: n.FullPath, Content: truncate(n.Snippet(), maxSnippetRunes)})
	}

	content, err := j.call(ctx, "assess", j.prompts.Assess, prompts.Vars{
		"query":              query,
		"domain_name":        domain.Name,
		"domain_description": domain.Description,
		"samples":            rows,
	})
	if err != nil {
		return prompts.Assessment{}, err
	}

	a, err := prompts.ParseAssessment(content)
	if err != nil {
		metrics.JudgmentRequestsTotal.WithLabelValues("assess", "invalid").Inc()
		return prompts.Assessment{}, types.Wrap(types.KindJudgmentService, "judge.assess", err)
	}
	return a, nil
}

// ShouldCollaborate implements Judge.
func (j *LLMJudge) ShouldCollaborate(ctx context.Context, query, domainName string, results []types.QueryResult, peers []*types.Domain, maxTargets int) (prompts.CollaborationResponse, error) {
	peerRows := make([]prompts.PeerRow, 0, len(peers))
	for _, p := range peers {
		peerRows = append(peerRows, prompts.PeerRow{Name: p.Name, Description: p.Description})
	}

	content, err := j.call(ctx, "collaborate", j.prompts.Collaborate, prompts.Vars{
		"query":       query,
		"domain_name": domainName,
		"results":     resultRows(results),
		"peers":       peerRows,
		"max_targets": maxTargets,
	})
	if err != nil {
		return prompts.CollaborationResponse{}, err
	}

	resp, err := prompts.ParseCollaboration(content)
	if err != nil {
		metrics.JudgmentRequestsTotal.WithLabelValues("collaborate", "invalid").Inc()
		return prompts.CollaborationResponse{}, types.Wrap(types.KindJudgmentService, "judge.collaborate", err)
	}
	return resp, nil
}

// Synthesize implements Judge.
func (j *LLMJudge) Synthesize(ctx context.Context, query string, results []types.QueryResult) (string, error) {
	content, err := j.call(ctx, "synthesize", j.prompts.Synthesize, prompts.Vars{
		"query":   query,
		"results": resultRows(results),
	})
	if err != nil {
		return "", err
	}

	resp, err := prompts.ParseSynthesis(content)
	if err != nil {
		metrics.JudgmentRequestsTotal.WithLabelValues("synthesize", "invalid").Inc()
		return "", types.Wrap(types.KindJudgmentService, "judge.synthesize", err)
	}
	return resp.Answer, nil
}

func (j *LLMJudge) call(ctx context.Context, name string, prompt prompts.Prompt, vars prompts.Vars) (string, error) {
	op := "judge." + name
	vars["logger"] = j.logger

	messages, err := prompt.Render(vars)
	if err != nil {
		return "", types.Wrap(types.KindJudgmentService, op, fmt.Errorf("failed to build prompt: %w", err))
	}

	resp, err := j.client.ChatWithStructuredOutput(ctx, messages, nil)
	if err != nil {
		metrics.JudgmentRequestsTotal.WithLabelValues(name, "error").Inc()
		j.logger.Debug("Judgment call failed", "call", name, "error", err)
		return "", types.Wrap(types.KindJudgmentService, op, err)
	}

	metrics.JudgmentRequestsTotal.WithLabelValues(name, "success").Inc()
	return resp.Content, nil
}

func resultRows(results []types.QueryResult) []prompts.ResultRow {
	n := min(len(results), maxResultsInPrompt)
	rows := make([]prompts.ResultRow, 0, n)
	for i := 0; i < n; i++ {
		r := results[i]
		content := truncate(r.Content, maxSnippetRunes)
		rows = append(rows, prompts.ResultRow{
			Ref:        i + 1,
			Path:       r.FullPath,
			Similarity: r.Similarity,
			Content:    content,
		})
	}
	return rows
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
