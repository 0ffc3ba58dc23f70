package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/lexigraph/pkg/types"
)

func parquetFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
	require.NoError(t, err)
	return matches
}

func TestParquetHandlerSpoolsErrors(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	h, err := NewParquetHandlerWithBatch(slog.NewTextHandler(&out, nil), dir, 2)
	require.NoError(t, err)

	logger := slog.New(h)
	ctx := context.WithValue(context.Background(), types.ContextKeyQueryID, "q-1")
	logger.InfoContext(ctx, "ignored by spool")
	logger.With("domain", "d-contracts").ErrorContext(ctx, "search failed", "stage", "exact")
	assert.Empty(t, parquetFiles(t, dir))

	logger.Error("judge down")
	files := parquetFiles(t, dir)
	require.Len(t, files, 1, "derived loggers share the batch")
	assert.Contains(t, out.String(), "ignored by spool")

	rows, err := parquet.ReadFile[LogRecord](files[0])
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "search failed", rows[0].Message)
	assert.Equal(t, "q-1", rows[0].QueryID)
	assert.Contains(t, rows[0].Attributes, "exact")
}

func TestParquetHandlerCloseFlushes(t *testing.T) {
	dir := t.TempDir()
	h, err := NewParquetHandler(slog.NewTextHandler(&bytes.Buffer{}, nil), dir)
	require.NoError(t, err)

	slog.New(h).Error("boom")
	require.NoError(t, h.Close())
	assert.Len(t, parquetFiles(t, dir), 1)

	require.NoError(t, h.Close())
	assert.Len(t, parquetFiles(t, dir), 1, "empty buffer writes nothing")
}

func TestTraceWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "traces")
	w, err := NewTraceWriter(dir, 10)
	require.NoError(t, err)
	_, err = os.Stat(dir)
	require.NoError(t, err)

	resp := &types.SearchResponse{
		QueryID:           "q-7",
		PrimaryDomainName: "Penalties",
		Stats: types.SearchStats{
			TotalCount: 3,
			PerStageCounts: map[types.Stage]int{
				types.StageExact: 2,
				types.ExpansionStage(types.EdgeCrossReference): 1,
				types.ExpansionStage(types.EdgeSibling):        1,
			},
			CollaborationTriggered: true,
			CollaboratingDomains:   []string{"Employment Contracts"},
		},
		ResponseTimeMs: 42,
	}
	trace := NewQueryTrace(types.SearchRequest{Query: "article 17"}, resp)
	assert.Equal(t, 2, trace.ExactCount)
	assert.Equal(t, 2, trace.ExpansionCount)
	assert.Equal(t, "Employment Contracts", trace.CollaboratingDomains)

	require.NoError(t, w.Record(trace))
	require.NoError(t, w.Close())

	files := parquetFiles(t, dir)
	require.Len(t, files, 1)
	rows, err := parquet.ReadFile[QueryTrace](files[0])
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "q-7", rows[0].QueryID)
	assert.Equal(t, int64(42), rows[0].ResponseTimeMs)
}
