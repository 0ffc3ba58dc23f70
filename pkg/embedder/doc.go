// Package embedder provides the embedding-generation collaborator.
//
// The retrieval core uses two independent embedders: one for paragraph content (D1)
// and one for relation context (D2). Both implement Client. Decorators add a
// persistent badger cache (CachedEmbedder) and a circuit breaker
// (CircuitBreakerEmbedder).
//
// # Usage
//
//	content := embedder.NewOpenAIEmbedder(apiKey, embedder.Config{
//	    Model:      "text-embedding-3-large",
//	    Dimensions: 3072,
//	})
//	vec, err := content.EmbedSingle(ctx, "written employment contract")
//
// Every failure is classified as types.ErrEmbeddingService (or types.ErrTimeout).
package embedder
