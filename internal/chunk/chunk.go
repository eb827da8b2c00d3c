// Package chunk implements the hierarchical chunker and the data model shared
// by every granularity of the Sheet RAG engine: sentence, paragraph, section,
// and summary chunks linked into a single parent/child arena.
package chunk

// Level is one of the four granularities a document is chunked into. The
// ordering below (Sentence < Paragraph < Section < Summary) is the one used
// for parent-chain walks.
type Level string

const (
	Sentence  Level = "sentence"
	Paragraph Level = "paragraph"
	Section   Level = "section"
	Summary   Level = "summary"
)

// Levels lists every level in coarsening order.
var Levels = []Level{Sentence, Paragraph, Section, Summary}

// Finer returns the level one step finer than l, and false at Sentence.
func (l Level) Finer() (Level, bool) {
	switch l {
	case Paragraph:
		return Sentence, true
	case Section:
		return Paragraph, true
	case Summary:
		return Section, true
	default:
		return "", false
	}
}

// Node is the fundamental chunk-tree unit at every granularity. Parent and
// child links are plain ids into a shared arena, never owning references, so
// no cycle is ever materialized structurally.
type Node struct {
	ID          string
	Text        string
	Level       Level
	ParentID    string // empty at the top (summary chunks have no parent)
	ChildrenIDs []string
	Metadata    map[string]any
}

// HasParent reports whether the node declares a parent id. Only summary
// chunks are expected to have none.
func (n *Node) HasParent() bool { return n.ParentID != "" }

// Scored decorates a Node with a retrieval score in [0,1]. It exists only at
// query time and is never persisted.
type Scored struct {
	Chunk *Node
	Score float64
}

// ValidatedResult is the cross-layer validator's output for one primary
// candidate: the chunks from other levels that corroborate it, and the
// resulting confidence.
type ValidatedResult struct {
	Primary           Scored
	SupportingChunks  map[Level]Scored
	ConfidenceScore   float64
	LayerCoverage     int
	ValidationDetails map[string]any
}

// Document is the ingest-time envelope handed to the chunker: raw content
// plus caller-supplied metadata. It carries no chunking-strategy choice of
// its own — the engine always applies the four-level algorithm.
type Document struct {
	ID       string
	Source   string
	DocType  string
	Content  string
	Metadata map[string]any
}
