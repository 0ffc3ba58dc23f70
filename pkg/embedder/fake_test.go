package embedder

import (
	"context"
	"strings"
	"sync"
)

// countingEmbedder returns a deterministic vector per text and counts the texts it saw.
type countingEmbedder struct {
	mu     sync.Mutex
	dims   int
	seen   []string
	err    error
	closed bool
}

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		c.seen = append(c.seen, t)
		vec := make([]float32, c.dims)
		vec[0] = float32(len(t))
		if strings.HasPrefix(t, "제") {
			vec[c.dims-1] = 1
		}
		out[i] = vec
	}
	return out, nil
}

func (c *countingEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *countingEmbedder) Dimensions() int { return c.dims }

func (c *countingEmbedder) Close() error {
	c.closed = true
	return nil
}

func (c *countingEmbedder) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
