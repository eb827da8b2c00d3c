package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/garry00107/sheetrag/internal/cache"
	"github.com/garry00107/sheetrag/internal/chunk"
	"github.com/garry00107/sheetrag/internal/store"
	"github.com/garry00107/sheetrag/internal/validate"
	"go.uber.org/zap"
)

// fakeEmbedder produces a small deterministic vector from the sum of each
// text's rune values, so distinct texts land at distinct points without needing a live
// embedding service.
type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = vecFor(t)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.calls++
	return vecFor(text), nil
}

func vecFor(text string) []float32 {
	var sum float32
	for _, r := range text {
		sum += float32(r)
	}
	return []float32{sum, sum / 2, 1}
}

type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Complete(_ context.Context, prompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.response != "" {
		return f.response, nil
	}
	return "answer grounded in " + fmt.Sprint(len(prompt)) + " prompt chars", nil
}

func newTestEngine(t *testing.T, llmClient *fakeLLM) (*Engine, *fakeEmbedder) {
	t.Helper()
	logger := zap.NewNop()
	embedder := &fakeEmbedder{}
	eng := New(
		chunk.New(chunk.DefaultConfig()),
		embedder,
		cache.NewMemory(),
		store.NewMemory(),
		validate.New(nil, 0, 0),
		llmClient,
		logger,
		Config{},
	)
	return eng, embedder
}

func TestQuery_EmptyStoreReturnsLiteralResponse(t *testing.T) {
	eng, _ := newTestEngine(t, &fakeLLM{})
	ctx := context.Background()

	result, err := eng.Query(ctx, "anything", 5, true)
	require.NoError(t, err)
	require.Equal(t, emptyIndexResponse, result.Response)
	require.Empty(t, result.Sources)
}

func TestIngestThenQuery_ReturnsGroundedAnswer(t *testing.T) {
	eng, _ := newTestEngine(t, &fakeLLM{})
	ctx := context.Background()

	doc := chunk.Document{
		ID:      "doc-1",
		Source:  "paper.txt",
		Content: "Introduction\n\nPhotosynthesis converts light into chemical energy. Plants use chlorophyll for this process.\n\nMethods\n\nWe measured oxygen output under varying light intensities over several trials.",
	}
	require.NoError(t, eng.Ingest(ctx, doc))

	stats, err := eng.Stats(ctx)
	require.NoError(t, err)
	require.Greater(t, stats.TotalChunks, 0)

	result, err := eng.Query(ctx, "How does photosynthesis work?", 3, true)
	require.NoError(t, err)
	require.NotEqual(t, emptyIndexResponse, result.Response)
	require.NotEmpty(t, result.Sources)
}

func TestQuery_CachesSecondCall(t *testing.T) {
	eng, embedder := newTestEngine(t, &fakeLLM{response: "cached answer"})
	ctx := context.Background()

	doc := chunk.Document{ID: "doc-1", Content: "Introduction\n\nA short paragraph of sufficient length to survive filtering easily."}
	require.NoError(t, eng.Ingest(ctx, doc))

	first, err := eng.Query(ctx, "what is this about", 3, true)
	require.NoError(t, err)

	callsAfterFirst := embedder.calls
	second, err := eng.Query(ctx, "what is this about", 3, true)
	require.NoError(t, err)

	require.Equal(t, callsAfterFirst, embedder.calls, "second identical query should be served from cache")
	require.Equal(t, first.Response, second.Response)
}

func TestQuery_NoGroundingWhenFallbackLayerIsEmpty(t *testing.T) {
	eng, _ := newTestEngine(t, &fakeLLM{})
	ctx := context.Background()

	eng.validator = validate.New(nil, 0.999, 4) // with the paragraph layer cleared only three levels remain, so min_layers 4 is never met, forcing fallback

	doc := chunk.Document{ID: "doc-1", Content: "Introduction\n\nA short paragraph of sufficient length to survive filtering easily."}
	require.NoError(t, eng.Ingest(ctx, doc))
	require.NoError(t, eng.ClearLayer(ctx, chunk.Paragraph)) // fallback layer now has nothing to serve

	result, err := eng.Query(ctx, "unrelated query text", 3, true)
	require.NoError(t, err)
	require.Equal(t, noGroundingResponse, result.Response)
}

func TestNodeToRecord_PanicsOnOrphanedNonSummaryNode(t *testing.T) {
	orphan := &chunk.Node{ID: "sentence_bad", Text: "no parent", Level: chunk.Sentence}
	require.Panics(t, func() { nodeToRecord(orphan, []float32{1, 2, 3}) })
}

func TestClearLayer_RejectsUnknownLevel(t *testing.T) {
	eng, _ := newTestEngine(t, &fakeLLM{})
	err := eng.ClearLayer(context.Background(), chunk.Level("bogus"))
	require.Error(t, err)
}

func TestClearAll_ResetsStats(t *testing.T) {
	eng, _ := newTestEngine(t, &fakeLLM{})
	ctx := context.Background()

	doc := chunk.Document{ID: "doc-1", Content: "Introduction\n\nA short paragraph of sufficient length to survive filtering easily."}
	require.NoError(t, eng.Ingest(ctx, doc))

	require.NoError(t, eng.ClearAll(ctx))

	stats, err := eng.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, stats.TotalChunks)
}
