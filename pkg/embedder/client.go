package embedder

import "context"

// Client generates dense embeddings of a fixed dimensionality.
type Client interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedSingle embeds one text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
	// Dimensions is the length of every returned vector.
	Dimensions() int
	// Close releases resources.
	Close() error
}

// Config holds configuration for embedding clients.
type Config struct {
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
	BatchSize  int    `json:"batch_size"`
	BaseURL    string `json:"base_url,omitempty"`
	User       string `json:"user,omitempty"`
}
