// Package utils provides the concurrency and vector helpers shared by the lexigraph
// packages: a semaphore-bounded gather with per-task timeouts, panic recovery for
// goroutines started by the module, and cosine similarity over float32 embeddings.
package utils
