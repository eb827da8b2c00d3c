package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemory_UpsertQueryCount(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	err := m.Upsert(ctx, "sheet_rag_sentence", Record{ID: "a", Text: "alpha", Embedding: []float32{1, 0, 0}})
	require.NoError(t, err)
	err = m.Upsert(ctx, "sheet_rag_sentence", Record{ID: "b", Text: "beta", Embedding: []float32{0, 1, 0}})
	require.NoError(t, err)

	count, err := m.Count(ctx, "sheet_rag_sentence")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	results, err := m.Query(ctx, "sheet_rag_sentence", []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "a", results[0].ID)
}

func TestMemory_QueryEmptyCollection(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	results, err := m.Query(ctx, "sheet_rag_paragraph", []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestMemory_UpsertIsIdempotentByID(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Upsert(ctx, "c", Record{ID: "x", Text: "v1"}))
	require.NoError(t, m.Upsert(ctx, "c", Record{ID: "x", Text: "v2"}))
	count, err := m.Count(ctx, "c")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestMemory_DeleteCollection(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Upsert(ctx, "c", Record{ID: "x", Text: "v1"}))
	require.NoError(t, m.DeleteCollection(ctx, "c"))
	count, err := m.Count(ctx, "c")
	require.NoError(t, err)
	require.Equal(t, 0, count)
}
