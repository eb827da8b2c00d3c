package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemory_SetGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	c.Set(ctx, "k", []byte("v"), time.Hour)
	v, ok := c.Get(ctx, "k")
	require.True(t, ok)
	require.Equal(t, []byte("v"), v)
}

func TestMemory_Miss(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	_, ok := c.Get(ctx, "missing")
	require.False(t, ok)
}

func TestMemory_Expires(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	c.Set(ctx, "k", []byte("v"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get(ctx, "k")
	require.False(t, ok)
}

func TestMemory_Del(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	c.Set(ctx, "k", []byte("v"), time.Hour)
	c.Del(ctx, "k")
	_, ok := c.Get(ctx, "k")
	require.False(t, ok)
}
