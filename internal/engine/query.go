package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/garry00107/sheetrag/internal/chunk"
	"github.com/garry00107/sheetrag/internal/sheeterr"
	"github.com/garry00107/sheetrag/internal/store"
	"github.com/garry00107/sheetrag/internal/validate"
)

const (
	sourceTextLimit = 500
	queryCacheTTL   = 10 * time.Minute
)

// Query embeds text, fans out to all four levels, optionally runs
// bidirectional cross-layer validation, deduplicates the resulting context,
// and asks the LLM client for a grounded answer.
func (e *Engine) Query(ctx context.Context, text string, topK int, useCrossValidation bool) (*QueryResult, error) {
	if topK < 0 {
		return nil, sheeterr.Input("query", "top_k must not be negative, got %d", topK)
	}
	if topK == 0 {
		topK = e.cfg.defaultTopK()
	}

	cacheKey := fmt.Sprintf("sheet_rag:%s:%d:%t", text, topK, useCrossValidation)
	if raw, ok := e.cache.Get(ctx, cacheKey); ok {
		var cached QueryResult
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &cached, nil
		}
	}

	total := 0
	for _, level := range chunk.Levels {
		count, err := e.store.Count(ctx, collectionName(level))
		if err != nil {
			return nil, sheeterr.NewTransient("store_count", fmt.Errorf("level %s: %w", level, err))
		}
		total += count
	}
	if total == 0 {
		return &QueryResult{
			Response:       emptyIndexResponse,
			Sources:        []Source{},
			LayersSearched: map[chunk.Level]int{},
		}, nil
	}

	queryVec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, sheeterr.NewTransient("embed_query", err)
	}

	layerResults, embeddings, layersSearched, err := e.retrieveAllLevels(ctx, queryVec, topK)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	grounded, diagnostics := e.buildContext(layerResults, embeddings, topK, useCrossValidation)

	if len(grounded) == 0 {
		result := &QueryResult{
			Response:       noGroundingResponse,
			Sources:        []Source{},
			Validation:     diagnostics,
			LayersSearched: layersSearched,
		}
		return result, nil
	}

	prompt := assemblePrompt(text, grounded)
	answer, err := e.llm.Complete(ctx, prompt)
	if err != nil {
		return &QueryResult{
			Response:       err.Error(),
			Sources:        []Source{},
			Validation:     diagnostics,
			LayersSearched: layersSearched,
		}, nil
	}

	result := &QueryResult{
		Response:       answer,
		Sources:        toSources(grounded),
		Validation:     diagnostics,
		LayersSearched: layersSearched,
	}

	if ctx.Err() == nil {
		if encoded, err := json.Marshal(result); err == nil {
			e.cache.Set(ctx, cacheKey, encoded, queryCacheTTL)
		}
	}
	return result, nil
}

func (e *Engine) retrieveAllLevels(ctx context.Context, queryVec []float32, topK int) (map[chunk.Level][]chunk.Scored, validate.Embeddings, map[chunk.Level]int, error) {
	results := make(map[chunk.Level][]chunk.Scored, len(chunk.Levels))
	searched := make(map[chunk.Level]int, len(chunk.Levels))
	embeddings := make(validate.Embeddings)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, level := range chunk.Levels {
		level := level
		g.Go(func() error {
			records, err := e.store.Query(gctx, collectionName(level), queryVec, topK)
			if err != nil {
				return sheeterr.NewTransient("store_query", fmt.Errorf("level %s: %w", level, err))
			}
			scored := make([]chunk.Scored, len(records))
			for i, rec := range records {
				scored[i] = recordToScored(level, rec)
			}

			mu.Lock()
			results[level] = scored
			searched[level] = len(scored)
			collectEmbeddings(embeddings, records)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}

	return results, embeddings, searched, nil
}

// collectEmbeddings records each record's embedding (when the store
// returned one) so the validator can use cosine similarity instead of
// falling back to Jaccard. The in-memory store returns embeddings; the
// SQLite store intentionally does not select the vector column back on
// query, so those chunks simply fall back to text-based similarity.
func collectEmbeddings(dst validate.Embeddings, records []store.Record) {
	for _, rec := range records {
		if len(rec.Embedding) == 0 {
			continue
		}
		vec := make([]float64, len(rec.Embedding))
		for i, v := range rec.Embedding {
			vec[i] = float64(v)
		}
		dst[rec.ID] = vec
	}
}

// buildContext runs validation (when requested) or falls back to the
// paragraph layer, then deduplicates the result into the final ordered
// context list.
func (e *Engine) buildContext(layerResults map[chunk.Level][]chunk.Scored, embeddings validate.Embeddings, topK int, useCrossValidation bool) ([]chunk.ValidatedResult, Diagnostics) {
	diag := Diagnostics{ValidationRan: useCrossValidation}

	var candidates []chunk.ValidatedResult
	if useCrossValidation {
		validated := e.validator.ValidateBidirectional(layerResults, embeddings)
		if len(validated) > 0 {
			candidates = validated
		} else {
			diag.FallbackUsed = true
			candidates = fallbackParagraph(layerResults)
		}
	} else {
		candidates = fallbackParagraph(layerResults)
	}

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	diag.ResultsBefore = len(candidates)
	deduped := dedupeResults(candidates)
	diag.ResultsAfter = len(deduped)
	return deduped, diag
}

// fallbackParagraph wraps the paragraph layer's raw retrieval as
// ValidatedResults with no supporting chunks (layer coverage 1), used both as the no-cross-validation path and as the
// validator's empty-output fallback.
func fallbackParagraph(layerResults map[chunk.Level][]chunk.Scored) []chunk.ValidatedResult {
	paragraphs := layerResults[chunk.Paragraph]
	out := make([]chunk.ValidatedResult, len(paragraphs))
	for i, p := range paragraphs {
		out[i] = chunk.ValidatedResult{
			Primary:           p,
			SupportingChunks:  map[chunk.Level]chunk.Scored{},
			ConfidenceScore:   p.Score,
			LayerCoverage:     1,
			ValidationDetails: map[string]any{},
		}
	}
	return out
}

func dedupeResults(results []chunk.ValidatedResult) []chunk.ValidatedResult {
	var kept []chunk.ValidatedResult
	var keptTexts []string
	var keptPrefixes []string

	for _, r := range results {
		text := r.Primary.Chunk.Text
		prefix := text
		if len(prefix) > 50 {
			prefix = prefix[:50]
		}

		duplicate := false
		for i, kt := range keptTexts {
			if strings.Contains(kt, text) || strings.Contains(text, kt) || keptPrefixes[i] == prefix {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}

		kept = append(kept, r)
		keptTexts = append(keptTexts, text)
		keptPrefixes = append(keptPrefixes, prefix)
	}
	return kept
}

func truncate(text string) string {
	if len(text) <= sourceTextLimit {
		return text
	}
	return text[:sourceTextLimit] + "..."
}

func toSources(results []chunk.ValidatedResult) []Source {
	sources := make([]Source, len(results))
	for i, r := range results {
		src := Source{
			Text:     truncate(r.Primary.Chunk.Text),
			Level:    r.Primary.Chunk.Level,
			Score:    r.Primary.Score,
			ChunkID:  r.Primary.Chunk.ID,
			Metadata: r.Primary.Chunk.Metadata,
		}
		if len(r.SupportingChunks) > 0 || r.LayerCoverage > 1 {
			layers := make([]chunk.Level, 0, len(r.SupportingChunks))
			for l := range r.SupportingChunks {
				layers = append(layers, l)
			}
			src.Validation = &SourceValidation{
				Confidence:       r.ConfidenceScore,
				LayerCoverage:    r.LayerCoverage,
				SupportingLayers: layers,
			}
		}
		sources[i] = src
	}
	return sources
}

func assemblePrompt(query string, results []chunk.ValidatedResult) string {
	var b strings.Builder
	b.WriteString("You are a research assistant answering questions about scientific papers using only the context below.\n\n")
	b.WriteString("Context:\n")
	for i, r := range results {
		b.WriteString("[Source ")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(" - ")
		b.WriteString(string(r.Primary.Chunk.Level))
		b.WriteString("]\n")
		b.WriteString(r.Primary.Chunk.Text)
		b.WriteString("\n\n")
	}
	b.WriteString("Instructions:\n")
	b.WriteString("1. Answer in detail, using the context above.\n")
	b.WriteString("2. Cite sources by their number, e.g. [Source 1].\n")
	b.WriteString("3. Do not state anything that is not supported by the context.\n")
	b.WriteString("4. If the context is insufficient, say so explicitly rather than guessing.\n\n")
	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\n\nAnswer:")
	return b.String()
}
