package chunk

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// LayerConfig holds a level's target size (in characters) and overlap. Only
// the summary level's TargetSize is read: it decides whether the document
// becomes one summary chunk or several overlapping ones, and the word overlap
// is derived from it. The other levels' values, and every Overlap field, are
// carried for fidelity with the documented per-level table and do not affect
// chunking (see buildSummaries).
type LayerConfig struct {
	TargetSize int
	Overlap    int
}

// DefaultConfig returns the four-level defaults.
func DefaultConfig() map[Level]LayerConfig {
	return map[Level]LayerConfig{
		Sentence:  {TargetSize: 200, Overlap: 0},
		Paragraph: {TargetSize: 800, Overlap: 100},
		Section:   {TargetSize: 2000, Overlap: 200},
		Summary:   {TargetSize: 4000, Overlap: 0},
	}
}

const (
	sentenceMinLen  = 15
	paragraphMinLen = 30
)

var abbreviations = []string{"Mr", "Mrs", "Dr", "Prof", "Sr", "Jr", "vs", "etc", "e.g", "i.e"}

var (
	mdHeaderRe      = regexp.MustCompile(`^#{1,6}\s*(.+)$`)
	numberedHeadRe  = regexp.MustCompile(`^\d+\.?\s+[A-Z][^.]+$`)
	allCapsRe       = regexp.MustCompile(`^[A-Z][A-Z0-9 \-:,&']{2,}$`)
	academicLabelRe = regexp.MustCompile(`(?i)^(abstract|introduction|background|related work|methodology|methods|experiments|results|discussion|conclusion|references|acknowledgments?)s?:?$`)
	blankLineRe     = regexp.MustCompile(`\n[ \t]*\n`)
	sentenceSplitRe = regexp.MustCompile(`(?:[.!?])\s+`)
)

// Chunker turns one document into four aligned levels of Nodes with the
// parent/child tree built during construction.
type Chunker struct {
	config map[Level]LayerConfig
}

// New builds a Chunker with the given per-level configuration. A nil config
// falls back to DefaultConfig.
func New(config map[Level]LayerConfig) *Chunker {
	if config == nil {
		config = DefaultConfig()
	}
	return &Chunker{config: config}
}

// Chunk transforms one document into its full set of Nodes across all four
// levels. Empty input yields zero chunks at every level and no error.
func (c *Chunker) Chunk(doc Document) []*Node {
	content := doc.Content
	if strings.TrimSpace(content) == "" {
		return nil
	}

	var nodes []*Node

	summaries := c.buildSummaries(doc, content)
	nodes = append(nodes, summaries...)
	parentSummaryID := ""
	if len(summaries) > 0 {
		parentSummaryID = summaries[0].ID
	}

	sections, sectionContent := c.buildSections(doc, content, parentSummaryID)
	if parentSummaryID != "" {
		for _, s := range sections {
			summaries[0].ChildrenIDs = append(summaries[0].ChildrenIDs, s.ID)
		}
	}
	nodes = append(nodes, sections...)

	for _, sec := range sections {
		paragraphs := c.buildParagraphs(doc, sec, sectionContent[sec.ID])
		nodes = append(nodes, paragraphs...)
		for _, p := range paragraphs {
			sec.ChildrenIDs = append(sec.ChildrenIDs, p.ID)
			sentences := c.buildSentences(doc, p)
			nodes = append(nodes, sentences...)
			for _, s := range sentences {
				p.ChildrenIDs = append(p.ChildrenIDs, s.ID)
			}
		}
	}

	return nodes
}

func genID(level Level, index int, text string) string {
	t := text
	if len(t) > 50 {
		t = t[:50]
	}
	sum := md5.Sum([]byte(fmt.Sprintf("%s:%d:%s", level, index, t)))
	return string(level) + "_" + hex.EncodeToString(sum[:])[:12]
}

func baseMetadata(doc Document) map[string]any {
	m := map[string]any{
		"document_id": doc.ID,
		"source":      doc.Source,
		"doc_type":    doc.DocType,
	}
	for k, v := range doc.Metadata {
		m[k] = v
	}
	return m
}

// --- Summary level ---

func (c *Chunker) buildSummaries(doc Document, content string) []*Node {
	cfg := c.config[Summary]
	if len(content) <= cfg.TargetSize {
		meta := baseMetadata(doc)
		meta["chunk_index"] = 0
		return []*Node{{
			ID:       genID(Summary, 0, content),
			Text:     content,
			Level:    Summary,
			Metadata: meta,
		}}
	}

	wordsPerChunk := cfg.TargetSize / 5
	if wordsPerChunk < 1 {
		wordsPerChunk = 1
	}
	overlapWords := wordsPerChunk / 4

	words := strings.Fields(content)
	var nodes []*Node
	idx := 0
	step := wordsPerChunk - overlapWords
	if step < 1 {
		step = 1
	}
	for start := 0; start < len(words); start += step {
		end := start + wordsPerChunk
		if end > len(words) {
			end = len(words)
		}
		text := strings.Join(words[start:end], " ")
		meta := baseMetadata(doc)
		meta["chunk_index"] = idx
		nodes = append(nodes, &Node{
			ID:       genID(Summary, idx, text),
			Text:     text,
			Level:    Summary,
			Metadata: meta,
		})
		idx++
		if end >= len(words) {
			break
		}
	}
	return nodes
}

// --- Section level ---

type rawSection struct {
	title   string
	content string
}

func isHeaderLine(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", false
	}
	if m := mdHeaderRe.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if numberedHeadRe.MatchString(trimmed) {
		return trimmed, true
	}
	if allCapsRe.MatchString(trimmed) && trimmed == strings.ToUpper(trimmed) {
		return trimmed, true
	}
	if academicLabelRe.MatchString(trimmed) {
		return trimmed, true
	}
	return "", false
}

func splitSections(content string) []rawSection {
	lines := strings.Split(content, "\n")

	var sections []rawSection
	var curTitle string
	var curContent strings.Builder
	hasCurrent := false
	sawHeader := false

	flush := func() {
		if !hasCurrent {
			return
		}
		title := curTitle
		if title == "" {
			title = "Introduction"
		}
		sections = append(sections, rawSection{title: title, content: strings.TrimRight(curContent.String(), "\n")})
		curContent.Reset()
	}

	for _, line := range lines {
		if title, ok := isHeaderLine(line); ok {
			flush()
			sawHeader = true
			curTitle = title
			hasCurrent = true
			continue
		}
		curContent.WriteString(line)
		curContent.WriteString("\n")
		hasCurrent = true
	}
	flush()

	if !sawHeader {
		return []rawSection{{title: "Content", content: strings.TrimRight(content, "\n")}}
	}
	return sections
}

func (c *Chunker) buildSections(doc Document, content, parentSummaryID string) ([]*Node, map[string]string) {
	raw := splitSections(content)
	nodes := make([]*Node, 0, len(raw))
	rawContent := make(map[string]string, len(raw))
	for i, rs := range raw {
		text := rs.title + "\n\n" + rs.content
		meta := baseMetadata(doc)
		meta["section_title"] = rs.title
		meta["section_index"] = i
		n := &Node{
			ID:       genID(Section, i, text),
			Text:     text,
			Level:    Section,
			ParentID: parentSummaryID,
			Metadata: meta,
		}
		nodes = append(nodes, n)
		rawContent[n.ID] = rs.content
	}
	return nodes, rawContent
}

// --- Paragraph level ---

func (c *Chunker) buildParagraphs(doc Document, section *Node, content string) []*Node {
	parts := blankLineRe.Split(content, -1)

	var nodes []*Node
	idx := 0
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if len(trimmed) < paragraphMinLen {
			continue
		}
		meta := baseMetadata(doc)
		meta["paragraph_index"] = idx
		meta["section_title"] = section.Metadata["section_title"]
		n := &Node{
			ID:       genID(Paragraph, idx, trimmed),
			Text:     trimmed,
			Level:    Paragraph,
			ParentID: section.ID,
			Metadata: meta,
		}
		nodes = append(nodes, n)
		idx++
	}
	return nodes
}

// --- Sentence level ---

func sentinelFor(abbr string) string {
	return "\x00" + strings.ReplaceAll(abbr, ".", "") + "\x00"
}

func splitSentences(text string) []string {
	protected := text
	for _, abbr := range abbreviations {
		dotted := abbr
		if !strings.HasSuffix(dotted, ".") {
			dotted += "."
		}
		protected = strings.ReplaceAll(protected, dotted+" ", sentinelFor(abbr)+" ")
	}

	rawParts := sentenceSplitRe.Split(protected, -1)

	var out []string
	for _, p := range rawParts {
		restored := p
		for _, abbr := range abbreviations {
			restored = strings.ReplaceAll(restored, sentinelFor(abbr), abbr+".")
		}
		restored = strings.TrimSpace(restored)
		if restored != "" {
			out = append(out, restored)
		}
	}
	return out
}

func (c *Chunker) buildSentences(doc Document, paragraph *Node) []*Node {
	sentences := splitSentences(paragraph.Text)

	var nodes []*Node
	idx := 0
	for _, s := range sentences {
		if len(s) < sentenceMinLen {
			continue
		}
		meta := baseMetadata(doc)
		meta["sentence_index"] = idx
		n := &Node{
			ID:       genID(Sentence, idx, s),
			Text:     s,
			Level:    Sentence,
			ParentID: paragraph.ID,
			Metadata: meta,
		}
		nodes = append(nodes, n)
		idx++
	}
	return nodes
}
