package engine

import "github.com/garry00107/sheetrag/internal/chunk"

// emptyIndexResponse and noGroundingResponse are the two literal response
// strings the engine returns instead of an error when it has nothing to
// ground an answer in.
const (
	emptyIndexResponse  = "The Sheet RAG index is empty. Please ingest some papers first."
	noGroundingResponse = "I couldn't find relevant information to answer your question with sufficient confidence."
)

// SourceValidation is the optional per-source corroboration summary, attached
// only to sources whose result has supporting chunks at other levels.
type SourceValidation struct {
	Confidence       float64       `json:"confidence"`
	LayerCoverage    int           `json:"layer_coverage"`
	SupportingLayers []chunk.Level `json:"supporting_layers"`
}

// Source is one piece of grounding evidence returned alongside a query's
// answer. Text is truncated to 500 characters (with an ellipsis) for
// display.
type Source struct {
	Text       string            `json:"text"`
	Level      chunk.Level       `json:"level"`
	Score      float64           `json:"score"`
	ChunkID    string            `json:"chunk_id"`
	Metadata   map[string]any    `json:"metadata"`
	Validation *SourceValidation `json:"validation,omitempty"`
}

// Diagnostics carries the validator's decision trail for a query: whether
// cross-validation ran, whether it fell back to the paragraph layer, and how
// many context candidates there were before and after deduplication.
type Diagnostics struct {
	ValidationRan  bool `json:"validation_ran"`
	FallbackUsed   bool `json:"fallback_used"`
	ResultsBefore  int  `json:"results_before_dedup"`
	ResultsAfter   int  `json:"results_after_dedup"`
}

// QueryResult is the engine's answer to one Query call.
type QueryResult struct {
	Response       string               `json:"response"`
	Sources        []Source             `json:"sources"`
	Validation     Diagnostics          `json:"validation"`
	LayersSearched map[chunk.Level]int  `json:"layers_searched"`
}

// LayerStats describes one level's footprint in the store.
type LayerStats struct {
	ChunkCount     int    `json:"chunk_count"`
	CollectionName string `json:"collection_name"`
}

// Stats is the engine's answer to a Stats call.
type Stats struct {
	Layers      map[chunk.Level]LayerStats `json:"layers"`
	TotalChunks int                        `json:"total_chunks"`
	PersistDir  string                     `json:"persist_dir"`
}
