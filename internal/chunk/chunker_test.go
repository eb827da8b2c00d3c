package chunk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func nodesByLevel(nodes []*Node) map[Level][]*Node {
	out := map[Level][]*Node{}
	for _, n := range nodes {
		out[n.Level] = append(out[n.Level], n)
	}
	return out
}

func byID(nodes []*Node) map[string]*Node {
	out := map[string]*Node{}
	for _, n := range nodes {
		out[n.ID] = n
	}
	return out
}

func TestChunk_EmptyInput(t *testing.T) {
	c := New(nil)
	nodes := c.Chunk(Document{ID: "d1", Content: "   "})
	require.Empty(t, nodes)
}

func TestChunk_StructuralInvariants(t *testing.T) {
	content := `Introduction

This paper presents a thorough study of hierarchical document chunking. The
approach preserves the relationships between levels of granularity.

Background

Prior work in retrieval-augmented generation has mostly treated documents as
flat sequences. This section reviews that work in more detail than before.

Results

The experiments show consistent improvement across every granularity tested.
Cross-layer validation catches a meaningful fraction of unsupported claims.`

	c := New(nil)
	nodes := c.Chunk(Document{ID: "doc-1", Source: "test", Content: content})
	require.NotEmpty(t, nodes)

	byLevel := nodesByLevel(nodes)
	all := byID(nodes)

	require.NotEmpty(t, byLevel[Summary])
	require.NotEmpty(t, byLevel[Section])
	require.NotEmpty(t, byLevel[Paragraph])
	require.NotEmpty(t, byLevel[Sentence])

	for _, s := range byLevel[Summary] {
		require.Empty(t, s.ParentID, "summary chunks must have no parent")
	}

	for _, sec := range byLevel[Section] {
		require.NotEmpty(t, sec.ParentID)
		parent, ok := all[sec.ParentID]
		require.True(t, ok)
		require.Contains(t, parent.ChildrenIDs, sec.ID)
	}
	for _, p := range byLevel[Paragraph] {
		require.NotEmpty(t, p.ParentID)
		parent, ok := all[p.ParentID]
		require.True(t, ok)
		require.Equal(t, Section, parent.Level)
		require.Contains(t, parent.ChildrenIDs, p.ID)
		require.GreaterOrEqual(t, len(p.Text), paragraphMinLen)
	}
	for _, s := range byLevel[Sentence] {
		require.NotEmpty(t, s.ParentID)
		parent, ok := all[s.ParentID]
		require.True(t, ok)
		require.Equal(t, Paragraph, parent.Level)
		require.Contains(t, parent.ChildrenIDs, s.ID)
		require.GreaterOrEqual(t, len(s.Text), sentenceMinLen)
	}

	// All sections share the first summary chunk as parent (resolved open question).
	for _, sec := range byLevel[Section] {
		require.Equal(t, byLevel[Summary][0].ID, sec.ParentID)
	}
}

func TestChunk_Deterministic(t *testing.T) {
	content := "Abstract\n\nA short abstract that is long enough to survive paragraph filtering easily.\n\nConclusion\n\nA short conclusion paragraph that also clears the minimum length threshold."
	doc := Document{ID: "doc-2", Content: content}

	c1 := New(nil)
	c2 := New(nil)

	n1 := c1.Chunk(doc)
	n2 := c2.Chunk(doc)

	require.Equal(t, len(n1), len(n2))
	ids1 := make([]string, len(n1))
	ids2 := make([]string, len(n2))
	for i := range n1 {
		ids1[i] = n1[i].ID
		ids2[i] = n2[i].ID
	}
	require.Equal(t, ids1, ids2)
}

func TestChunk_NoHeaders_SingleContentSection(t *testing.T) {
	content := "Just a plain document with no headings at all, spanning a couple of sentences. It keeps going for a while to stay above every length floor."
	c := New(nil)
	nodes := c.Chunk(Document{ID: "doc-3", Content: content})
	byLevel := nodesByLevel(nodes)
	require.Len(t, byLevel[Section], 1)
	require.Equal(t, "Content", byLevel[Section][0].Metadata["section_title"])
}

func TestChunk_PreambleBeforeFirstHeader_TitledIntroduction(t *testing.T) {
	content := "This is a preamble paragraph long enough to survive the paragraph filter easily.\n\nBackground\n\nThis is the background paragraph long enough to survive as well, definitely."
	c := New(nil)
	nodes := c.Chunk(Document{ID: "doc-4", Content: content})
	byLevel := nodesByLevel(nodes)
	require.GreaterOrEqual(t, len(byLevel[Section]), 2)
	require.Equal(t, "Introduction", byLevel[Section][0].Metadata["section_title"])
}

// Sentence/paragraph length floors are stated twice in the governing
// specification (§4.1 and the testable-properties section) as hard minimums
// (15 chars, 30 chars). The single worked "short document" example in that
// same document produces sentences/paragraphs shorter than those floors —
// an internal inconsistency we resolve in favor of the explicitly stated,
// doubly-confirmed numeric floors (see DESIGN.md). This test exercises the
// floors directly instead of asserting the example's literal counts.
func TestChunk_LengthFloorsEnforced(t *testing.T) {
	content := "Title\n\nOk. This one is fine though. Short one.\n\nTiny para."
	c := New(nil)
	nodes := c.Chunk(Document{ID: "doc-5", Content: content})
	for _, n := range nodes {
		switch n.Level {
		case Sentence:
			require.GreaterOrEqual(t, len(n.Text), sentenceMinLen)
		case Paragraph:
			require.GreaterOrEqual(t, len(n.Text), paragraphMinLen)
		}
	}
}
