package telemetry

import (
	"strings"
	"time"

	"github.com/soundprediction/lexigraph/pkg/types"
)

// QueryTrace is one row per answered query.
type QueryTrace struct {
	QueryID                string    `parquet:"query_id"`
	Timestamp              time.Time `parquet:"timestamp"`
	Query                  string    `parquet:"query"`
	DomainID               string    `parquet:"domain_id"`
	PrimaryDomain          string    `parquet:"primary_domain"`
	ResultCount            int       `parquet:"result_count"`
	ExactCount             int       `parquet:"exact_count"`
	ContentCount           int       `parquet:"content_count"`
	RelationCount          int       `parquet:"relation_count"`
	ExpansionCount         int       `parquet:"expansion_count"`
	CollaborationTriggered bool      `parquet:"collaboration_triggered"`
	CollaboratingDomains   string    `parquet:"collaborating_domains"`
	Synthesized            bool      `parquet:"synthesized"`
	ResponseTimeMs         int64     `parquet:"response_time_ms"`
}

// NewQueryTrace summarizes a response for req.
func NewQueryTrace(req types.SearchRequest, resp *types.SearchResponse) QueryTrace {
	t := QueryTrace{
		QueryID:                resp.QueryID,
		Timestamp:              time.Now().UTC(),
		Query:                  req.Query,
		DomainID:               req.DomainID,
		PrimaryDomain:          resp.PrimaryDomainName,
		ResultCount:            resp.Stats.TotalCount,
		CollaborationTriggered: resp.Stats.CollaborationTriggered,
		CollaboratingDomains:   strings.Join(resp.Stats.CollaboratingDomains, ","),
		Synthesized:            resp.SynthesizedAnswer != "",
		ResponseTimeMs:         resp.ResponseTimeMs,
	}
	for stage, n := range resp.Stats.PerStageCounts {
		switch {
		case stage == types.StageExact:
			t.ExactCount = n
		case stage == types.StageContentVector:
			t.ContentCount = n
		case stage == types.StageRelationshipVector:
			t.RelationCount = n
		case stage.IsExpansion():
			t.ExpansionCount += n
		}
	}
	return t
}

// TraceWriter spools query traces to Parquet files. It is safe for concurrent use.
type TraceWriter struct {
	spool *spool[QueryTrace]
}

// NewTraceWriter creates a writer that flushes every batchSize traces.
func NewTraceWriter(outputDir string, batchSize int) (*TraceWriter, error) {
	sp, err := newSpool[QueryTrace](outputDir, "query_traces", batchSize)
	if err != nil {
		return nil, err
	}
	return &TraceWriter{spool: sp}, nil
}

// Record buffers a trace.
func (w *TraceWriter) Record(t QueryTrace) error {
	return w.spool.add(t)
}

// Close flushes buffered traces.
func (w *TraceWriter) Close() error {
	return w.spool.flush()
}
