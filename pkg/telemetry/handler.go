// Package telemetry spools error logs and per-query traces to Parquet files for
// offline analysis.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"

	"github.com/soundprediction/lexigraph/pkg/types"
)

const defaultBatchSize = 100

// LogRecord represents a single log entry for Parquet storage
type LogRecord struct {
	ID            string    `parquet:"id"`
	Timestamp     time.Time `parquet:"timestamp"`
	Level         string    `parquet:"level"`
	Message       string    `parquet:"message"`
	QueryID       string    `parquet:"query_id"`
	DomainID      string    `parquet:"domain_id"`
	RequestSource string    `parquet:"request_source"`
	SourceFile    string    `parquet:"source_file"`
	LineNumber    int       `parquet:"line_number"`
	Attributes    string    `parquet:"attributes"` // JSON string
}

// spool is the buffer shared by a handler and every handler derived from it.
type spool[T any] struct {
	mu        sync.Mutex
	dir       string
	prefix    string
	batchSize int
	buffer    []T
}

func newSpool[T any](dir, prefix string, batchSize int) (*spool[T], error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &spool[T]{dir: dir, prefix: prefix, batchSize: batchSize, buffer: make([]T, 0, batchSize)}, nil
}

func (s *spool[T]) add(row T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer = append(s.buffer, row)
	if len(s.buffer) >= s.batchSize {
		return s.flushLocked()
	}
	return nil
}

func (s *spool[T]) flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

// flushLocked writes the buffer to a new Parquet file. Caller must hold the lock.
func (s *spool[T]) flushLocked() error {
	if len(s.buffer) == 0 {
		return nil
	}
	now := time.Now()
	name := fmt.Sprintf("%s_%s_%d.parquet", s.prefix, now.Format("20060102_150405"), now.UnixNano())
	if err := parquet.WriteFile(filepath.Join(s.dir, name), s.buffer); err != nil {
		return fmt.Errorf("failed to write telemetry parquet file: %w", err)
	}
	s.buffer = s.buffer[:0]
	return nil
}

// ParquetHandler is a slog.Handler that passes every record to next and spools
// ERROR records to Parquet files.
type ParquetHandler struct {
	next  slog.Handler
	spool *spool[LogRecord]
}

// NewParquetHandler creates a new ParquetHandler writing into outputDir.
func NewParquetHandler(next slog.Handler, outputDir string) (*ParquetHandler, error) {
	return NewParquetHandlerWithBatch(next, outputDir, defaultBatchSize)
}

// NewParquetHandlerWithBatch is NewParquetHandler with an explicit flush size.
func NewParquetHandlerWithBatch(next slog.Handler, outputDir string, batchSize int) (*ParquetHandler, error) {
	sp, err := newSpool[LogRecord](outputDir, "execution_errors", batchSize)
	if err != nil {
		return nil, err
	}
	return &ParquetHandler{next: next, spool: sp}, nil
}

// Enabled implements slog.Handler
func (h *ParquetHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler
func (h *ParquetHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.next.Handle(ctx, r); err != nil {
		return err
	}
	if r.Level < slog.LevelError {
		return nil
	}

	attrs := make(map[string]any)
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})
	attrsJSON, _ := json.Marshal(attrs)

	fs := runtime.CallersFrames([]uintptr{r.PC})
	f, _ := fs.Next()

	return h.spool.add(LogRecord{
		ID:            uuid.New().String(),
		Timestamp:     r.Time.UTC(),
		Level:         r.Level.String(),
		Message:       r.Message,
		QueryID:       contextString(ctx, types.ContextKeyQueryID),
		DomainID:      contextString(ctx, types.ContextKeyDomainID),
		RequestSource: contextString(ctx, types.ContextKeyRequestSource),
		SourceFile:    f.File,
		LineNumber:    f.Line,
		Attributes:    string(attrsJSON),
	})
}

// WithAttrs implements slog.Handler. Derived handlers share the spool.
func (h *ParquetHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ParquetHandler{next: h.next.WithAttrs(attrs), spool: h.spool}
}

// WithGroup implements slog.Handler
func (h *ParquetHandler) WithGroup(name string) slog.Handler {
	return &ParquetHandler{next: h.next.WithGroup(name), spool: h.spool}
}

// Flush writes buffered records.
func (h *ParquetHandler) Flush() error {
	return h.spool.flush()
}

// Close flushes buffered records.
func (h *ParquetHandler) Close() error {
	return h.Flush()
}

func contextString(ctx context.Context, key types.ContextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
