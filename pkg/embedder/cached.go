package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/soundprediction/lexigraph/pkg/metrics"
)

const cacheKeyPrefix = "emb_cache:"

// CachedEmbedder caches embeddings of an inner Client in badger. Keys hash the
// model name, dimensionality and text, so the two embedding spaces never collide.
type CachedEmbedder struct {
	inner  Client
	db     *badger.DB
	model  string
	logger *slog.Logger
}

// NewCachedEmbedder opens a badger database at path (in memory when path is empty)
// and wraps inner.
func NewCachedEmbedder(inner Client, model, path string, logger *slog.Logger) (*CachedEmbedder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts.Logger = nil
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding cache: %w", err)
	}

	return &CachedEmbedder{inner: inner, db: db, model: model, logger: logger}, nil
}

// Embed implements Client. Only cache misses are sent to the inner client.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		keys[i] = c.cacheKey(text)
		if vec, ok := c.get(keys[i]); ok {
			out[i] = vec
			metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
			continue
		}
		metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := c.inner.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, i := range missingIdx {
		out[i] = vecs[j]
		c.put(keys[i], vecs[j])
	}
	return out, nil
}

// EmbedSingle implements Client.
func (c *CachedEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Dimensions implements Client.
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// Close closes the cache and the inner client.
func (c *CachedEmbedder) Close() error {
	return errors.Join(c.db.Close(), c.inner.Close())
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(c.model + "|" + strconv.Itoa(c.inner.Dimensions()) + "|" + text))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}

func (c *CachedEmbedder) get(key string) ([]float32, bool) {
	var vec []float32
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			vec, err = bytesToVector(val)
			return err
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.logger.Warn("Failed to read cached embedding", "key", key, "error", err)
		}
		return nil, false
	}
	if len(vec) != c.inner.Dimensions() {
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) put(key string, vec []float32) {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), vectorToBytes(vec))
	})
	if err != nil {
		c.logger.Warn("Failed to cache embedding", "key", key, "error", err)
	}
}

func vectorToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding cache data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
