// Package embed obtains embedding vectors for text, amortizing remote cost
// through batching and a request-level cache. Embedder is the interface the
// rest of the engine depends on; CachingEmbedder and the Ollama-backed
// client are the two collaborators composed to satisfy it in production.
package embed

import "context"

// Embedder produces embedding vectors for arbitrary text. All vectors
// returned by a single Embedder share the same dimension.
type Embedder interface {
	// EmbedTexts returns one vector per text, result[i] corresponding to
	// texts[i].
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
