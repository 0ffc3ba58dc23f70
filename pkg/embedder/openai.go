package embedder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/soundprediction/lexigraph/pkg/metrics"
	"github.com/soundprediction/lexigraph/pkg/types"
)

const (
	defaultModel      = "text-embedding-3-small"
	defaultDimensions = 1536
	defaultBatchSize  = 100
)

// OpenAIEmbedder implements Client with the OpenAI embeddings API or any
// OpenAI-compatible service.
type OpenAIEmbedder struct {
	client *openai.Client
	config Config
}

// NewOpenAIEmbedder creates a new OpenAI embedder.
func NewOpenAIEmbedder(apiKey string, config Config) *OpenAIEmbedder {
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.Dimensions <= 0 {
		config.Dimensions = defaultDimensions
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaultBatchSize
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}
}

// Embed implements Client, batching requests by BatchSize.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := min(start+e.config.BatchSize, len(texts))
		batch, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

// EmbedSingle implements Client.
func (e *OpenAIEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Dimensions implements Client.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.config.Dimensions
}

// Close implements Client.
func (e *OpenAIEmbedder) Close() error {
	return nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          openai.EmbeddingModel(e.config.Model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		Dimensions:     e.config.Dimensions,
		User:           e.config.User,
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	metrics.EmbeddingRequestDuration.WithLabelValues(e.config.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.config.Model, "error").Inc()
		return nil, types.Wrap(types.KindEmbeddingService, "openai.embed", err)
	}

	if len(resp.Data) != len(texts) {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.config.Model, "error").Inc()
		return nil, types.Wrap(types.KindEmbeddingService, "openai.embed",
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, types.Wrap(types.KindEmbeddingService, "openai.embed", fmt.Errorf("embedding index %d out of range", d.Index))
		}
		if len(d.Embedding) != e.config.Dimensions {
			metrics.EmbeddingRequestsTotal.WithLabelValues(e.config.Model, "error").Inc()
			return nil, types.Wrap(types.KindEmbeddingService, "openai.embed",
				fmt.Errorf("model %s returned %d dimensions, want %d", e.config.Model, len(d.Embedding), e.config.Dimensions))
		}
		out[d.Index] = d.Embedding
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.config.Model, "success").Inc()
	return out, nil
}
