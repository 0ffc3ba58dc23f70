package types

import "strings"

// Stage names the pipeline stage that produced a result.
type Stage string

const (
	StageExact              Stage = "exact"
	StageContentVector      Stage = "content-vector"
	StageRelationshipVector Stage = "relationship-vector"

	expansionPrefix = "graph-expansion-"
)

// ExpansionStage returns the stage tag for a node reached over the given edge type.
func ExpansionStage(edge EdgeType) Stage {
	return Stage(expansionPrefix + string(edge))
}

// IsExpansion reports whether the stage was produced by graph expansion.
func (s Stage) IsExpansion() bool {
	return strings.HasPrefix(string(s), expansionPrefix)
}

// Provenance records which peer domain contributed a result and what it was asked.
type Provenance struct {
	DomainID     string `json:"domain_id,omitempty"`
	DomainName   string `json:"domain_name"`
	RefinedQuery string `json:"refined_query"`
}

// QueryResult is a candidate answer item.
type QueryResult struct {
	NodeID     string      `json:"node_id"`
	Content    string      `json:"content"`
	FullPath   string      `json:"full_path,omitempty"`
	Heading    string      `json:"heading,omitempty"`
	Similarity float64     `json:"similarity"`
	Stages     []Stage     `json:"stages"`
	Provenance *Provenance `json:"provenance,omitempty"`

	// Node is the backing node, kept for seeding expansion. It is not serialized.
	Node *DocumentNode `json:"-"`
}

// NewQueryResult builds a result for node with a single stage tag.
func NewQueryResult(node *DocumentNode, similarity float64, stage Stage) QueryResult {
	return QueryResult{
		NodeID:     node.ID,
		Content:    node.Snippet(),
		FullPath:   node.FullPath,
		Similarity: ClampUnit(similarity),
		Stages:     []Stage{stage},
		Node:       node,
	}
}

// HasStage reports whether the result carries the stage tag.
func (r *QueryResult) HasStage(stage Stage) bool {
	for _, s := range r.Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// AddStages unions stages into the result, keeping first-seen order.
func (r *QueryResult) AddStages(stages ...Stage) {
	for _, s := range stages {
		if !r.HasStage(s) {
			r.Stages = append(r.Stages, s)
		}
	}
}

// ClampUnit clamps v to [0,1].
func ClampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SearchRequest is the query accepted by the engine.
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
	// DomainID bypasses routing and queries one domain directly.
	DomainID   string `json:"domain_id,omitempty"`
	Synthesize bool   `json:"synthesize,omitempty"`
}

// Validate checks the request and applies the default limit.
func (r *SearchRequest) Validate(defaultLimit int) error {
	if strings.TrimSpace(r.Query) == "" {
		return ErrEmptyQuery
	}
	if r.Limit < 0 {
		return ErrInvalidLimit
	}
	if r.Limit == 0 {
		r.Limit = defaultLimit
	}
	return nil
}

// SearchStats summarizes how a response was produced.
type SearchStats struct {
	TotalCount             int           `json:"total_count"`
	PerStageCounts         map[Stage]int `json:"per_stage_counts"`
	DomainsQueried         []string      `json:"domains_queried"`
	CollaborationTriggered bool          `json:"collaboration_triggered"`
	CollaboratingDomains   []string      `json:"collaborating_domains"`
}

// NewSearchStats returns stats with empty, non-nil collections.
func NewSearchStats() SearchStats {
	return SearchStats{
		PerStageCounts:       map[Stage]int{},
		DomainsQueried:       []string{},
		CollaboratingDomains: []string{},
	}
}

// SearchResponse is the result of a routed search.
type SearchResponse struct {
	QueryID           string        `json:"query_id"`
	Results           []QueryResult `json:"results"`
	Stats             SearchStats   `json:"stats"`
	PrimaryDomainName string        `json:"primary_domain_name,omitempty"`
	ResponseTimeMs    int64         `json:"response_time_ms"`
	SynthesizedAnswer string        `json:"synthesized_answer,omitempty"`
}

// A2ARequest asks a peer domain to answer a refined query.
type A2ARequest struct {
	FromDomain    string `json:"from_domain"`
	Query         string `json:"query"`
	OriginalQuery string `json:"original_query"`
	Limit         int    `json:"limit"`
}

// A2AResponse carries a peer's results, each tagged with provenance.
type A2AResponse struct {
	Results    []QueryResult `json:"results"`
	DomainName string        `json:"domain_name"`
}
