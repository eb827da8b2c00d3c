// Package engine composes the hierarchical chunker, the per-level vector
// store, the cross-layer validator, the caching embedder, and the LLM client
// into the single owned value the rest of the service depends on: construct
// once, call Ingest/Query/Stats/ClearAll/ClearLayer any number of times
// (concurrently — the engine holds no mutable state of its own beyond its
// collaborators), then Close.
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garry00107/sheetrag/internal/cache"
	"github.com/garry00107/sheetrag/internal/chunk"
	"github.com/garry00107/sheetrag/internal/embed"
	"github.com/garry00107/sheetrag/internal/llm"
	"github.com/garry00107/sheetrag/internal/sheeterr"
	"github.com/garry00107/sheetrag/internal/store"
	"github.com/garry00107/sheetrag/internal/validate"
)

const collectionPrefix = "sheet_rag_"

func collectionName(level chunk.Level) string {
	return collectionPrefix + string(level)
}

// Config holds the engine's own tunables, separate from its collaborators'
// construction parameters.
type Config struct {
	// Layers restricts ingestion to a subset of the four levels. Nil or
	// empty means all four. Query and Stats always cover all four levels.
	Layers []chunk.Level
	// BatchSize bounds how many chunk texts are embedded per remote call
	// during ingest. Defaults to 32.
	BatchSize int
	// DefaultTopK is used when Query is called with topK <= 0.
	DefaultTopK int
	// PersistDir is surfaced verbatim in Stats; it carries no behavior.
	PersistDir string
}

func (c Config) layers() []chunk.Level {
	if len(c.Layers) == 0 {
		return chunk.Levels
	}
	return c.Layers
}

func (c Config) batchSize() int {
	if c.BatchSize <= 0 {
		return 32
	}
	return c.BatchSize
}

func (c Config) defaultTopK() int {
	if c.DefaultTopK <= 0 {
		return 5
	}
	return c.DefaultTopK
}

// Engine is the Sheet RAG engine: chunk, embed, store, validate, and answer.
type Engine struct {
	chunker   *chunk.Chunker
	embedder  embed.Embedder
	cache     cache.Cache
	store     store.Store
	validator *validate.Validator
	llm       llm.Client
	logger    *zap.Logger
	cfg       Config
}

// New constructs an Engine from its collaborators. None of the arguments may
// be nil.
func New(
	chunker *chunk.Chunker,
	embedder embed.Embedder,
	cacheImpl cache.Cache,
	storeImpl store.Store,
	validator *validate.Validator,
	llmClient llm.Client,
	logger *zap.Logger,
	cfg Config,
) *Engine {
	return &Engine{
		chunker:   chunker,
		embedder:  embedder,
		cache:     cacheImpl,
		store:     storeImpl,
		validator: validator,
		llm:       llmClient,
		logger:    logger,
		cfg:       cfg,
	}
}

// Close releases the underlying store's resources. The embedder, cache, and
// LLM client are owned by the caller and are not closed here.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Ingest chunks doc into the four granularities, embeds every chunk text in
// batches, and upserts the result into each level's collection. Chunks at
// levels outside the engine's configured subset are still built (to keep the
// parent/child tree intact) but are neither embedded nor stored.
func (e *Engine) Ingest(ctx context.Context, doc chunk.Document) error {
	if doc.Content == "" {
		e.logger.Debug("ingest called with empty content", zap.String("document_id", doc.ID))
	}

	nodes := e.chunker.Chunk(doc)
	if len(nodes) == 0 {
		return nil
	}

	wanted := make(map[chunk.Level]bool, len(e.cfg.layers()))
	for _, l := range e.cfg.layers() {
		wanted[l] = true
	}

	byLevel := make(map[chunk.Level][]*chunk.Node)
	for _, n := range nodes {
		if wanted[n.Level] {
			byLevel[n.Level] = append(byLevel[n.Level], n)
		}
	}

	total := 0
	for _, level := range chunk.Levels {
		levelNodes := byLevel[level]
		if len(levelNodes) == 0 {
			continue
		}
		if err := e.ingestLevel(ctx, level, levelNodes); err != nil {
			return err
		}
		total += len(levelNodes)
	}

	e.logger.Info("ingest completed",
		zap.String("document_id", doc.ID),
		zap.Int("chunks", total))
	return nil
}

func (e *Engine) ingestLevel(ctx context.Context, level chunk.Level, nodes []*chunk.Node) error {
	batchSize := e.cfg.batchSize()
	collection := collectionName(level)

	for start := 0; start < len(nodes); start += batchSize {
		end := start + batchSize
		if end > len(nodes) {
			end = len(nodes)
		}
		batch := nodes[start:end]

		texts := make([]string, len(batch))
		for i, n := range batch {
			texts[i] = n.Text
		}

		vectors, err := e.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return sheeterr.NewTransient("embed_chunks", fmt.Errorf("level %s: %w", level, err))
		}

		for i, n := range batch {
			rec := nodeToRecord(n, vectors[i])
			if err := e.store.Upsert(ctx, collection, rec); err != nil {
				return sheeterr.NewTransient("store_upsert", fmt.Errorf("level %s: %w", level, err))
			}
		}
	}
	return nil
}

// Stats reports per-level chunk counts.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	layers := make(map[chunk.Level]LayerStats, len(chunk.Levels))
	total := 0
	for _, level := range chunk.Levels {
		collection := collectionName(level)
		count, err := e.store.Count(ctx, collection)
		if err != nil {
			return nil, sheeterr.NewTransient("store_count", fmt.Errorf("level %s: %w", level, err))
		}
		layers[level] = LayerStats{ChunkCount: count, CollectionName: collection}
		total += count
	}
	return &Stats{Layers: layers, TotalChunks: total, PersistDir: e.cfg.PersistDir}, nil
}

// ClearAll drops every level's collection.
func (e *Engine) ClearAll(ctx context.Context) error {
	for _, level := range chunk.Levels {
		if err := e.ClearLayer(ctx, level); err != nil {
			return err
		}
	}
	return nil
}

// ClearLayer drops one level's collection. level must be one of the four
// recognized granularities.
func (e *Engine) ClearLayer(ctx context.Context, level chunk.Level) error {
	if !isKnownLevel(level) {
		return sheeterr.Input("clear_layer", "unknown level %q", level)
	}
	if err := e.store.DeleteCollection(ctx, collectionName(level)); err != nil {
		return sheeterr.NewTransient("store_delete_collection", fmt.Errorf("level %s: %w", level, err))
	}
	return nil
}

func isKnownLevel(level chunk.Level) bool {
	for _, l := range chunk.Levels {
		if l == level {
			return true
		}
	}
	return false
}

func nodeToRecord(n *chunk.Node, vec []float32) store.Record {
	if n.Level != chunk.Summary && !n.HasParent() {
		panic(sheeterr.Invariant("chunk tree: non-summary node %s (level %s) has no parent", n.ID, n.Level))
	}

	meta := make(map[string]any, len(n.Metadata)+2)
	for k, v := range n.Metadata {
		meta[k] = v
	}
	meta["_parent_id"] = n.ParentID
	meta["_children_ids"] = n.ChildrenIDs
	return store.Record{ID: n.ID, Text: n.Text, Embedding: vec, Metadata: meta}
}

func recordToScored(level chunk.Level, rec store.Record) chunk.Scored {
	meta := make(map[string]any, len(rec.Metadata))
	var parentID string
	var childrenIDs []string
	for k, v := range rec.Metadata {
		switch k {
		case "_parent_id":
			if s, ok := v.(string); ok {
				parentID = s
			}
		case "_children_ids":
			childrenIDs = toStringSlice(v)
		default:
			meta[k] = v
		}
	}
	node := &chunk.Node{
		ID:          rec.ID,
		Text:        rec.Text,
		Level:       level,
		ParentID:    parentID,
		ChildrenIDs: childrenIDs,
		Metadata:    meta,
	}
	return chunk.Scored{Chunk: node, Score: rec.Score}
}

// toStringSlice handles both the in-memory store (which keeps []string
// as-is) and the SQLite store (whose metadata makes a JSON round trip,
// turning []string into []interface{}).
func toStringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
