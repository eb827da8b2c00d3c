// Package store defines the vector-store capability the engine depends on
// and provides two implementations: an in-process map-backed one used in
// tests, and a SQLite + sqlite-vec backed one used in production.
package store

import "context"

// Record is one stored (or retrieved) chunk: its text, embedding, and
// metadata, plus a retrieval score when it comes back from Query.
type Record struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  map[string]any
	Score     float64
}

// Store is the capability set the engine is polymorphic over: upsert,
// similarity query, count, and whole-collection deletion. Concrete backends
// (file-local or remote) implement it without the engine knowing which one
// it holds.
type Store interface {
	// Upsert inserts or replaces rec by id within collection.
	Upsert(ctx context.Context, collection string, rec Record) error
	// Query returns up to k records ranked by descending similarity to
	// queryEmbedding. An empty or missing collection returns an empty slice,
	// never an error.
	Query(ctx context.Context, collection string, queryEmbedding []float32, k int) ([]Record, error)
	// Count returns the number of records stored in collection.
	Count(ctx context.Context, collection string) (int, error)
	// DeleteCollection drops every record in collection.
	DeleteCollection(ctx context.Context, collection string) error
	// Close releases any resources held by the store.
	Close() error
}
