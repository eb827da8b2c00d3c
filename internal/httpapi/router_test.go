package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garry00107/sheetrag/internal/cache"
	"github.com/garry00107/sheetrag/internal/chunk"
	"github.com/garry00107/sheetrag/internal/engine"
	"github.com/garry00107/sheetrag/internal/store"
	"github.com/garry00107/sheetrag/internal/validate"
)

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

func (fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{1, 2, 3}, nil
}

type fakeLLM struct{}

func (fakeLLM) Complete(context.Context, string) (string, error) { return "test answer", nil }

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	eng := engine.New(
		chunk.New(chunk.DefaultConfig()),
		fakeEmbedder{},
		cache.NewMemory(),
		store.NewMemory(),
		validate.New(nil, 0, 0),
		fakeLLM{},
		logger,
		engine.Config{},
	)
	return NewRouter(eng, logger)
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestIngestThenQuery(t *testing.T) {
	r := newTestRouter(t)

	ingestBody := map[string]any{
		"source":  "paper.txt",
		"content": "Introduction\n\nA short paragraph of sufficient length to survive filtering easily.",
	}
	w := doJSON(r, http.MethodPost, "/api/v1/documents", ingestBody)
	require.Equal(t, http.StatusCreated, w.Code)

	queryBody := map[string]any{"query": "what is this paper about", "top_k": 3}
	w = doJSON(r, http.MethodPost, "/api/v1/query", queryBody)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestIngestRejectsMissingContent(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(r, http.MethodPost, "/api/v1/documents", map[string]any{"source": "x"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatsAndClearAll(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(r, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodDelete, "/api/v1/collections", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestClearLayerRejectsUnknownLevel(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(r, http.MethodDelete, "/api/v1/collections/bogus", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
