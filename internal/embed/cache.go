package embed

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/garry00107/sheetrag/internal/cache"
)

const embeddingTTL = 24 * time.Hour

// CachingEmbedder wraps a remote Embedder with a request-level cache
// following the batching contract of the batch embedder: probe the cache for
// every input, collect the misses while preserving their original
// positions, submit the misses to the remote in groups no larger than
// BatchSize, then splice the results back into place and populate the
// cache.
type CachingEmbedder struct {
	remote    Embedder
	cache     cache.Cache
	BatchSize int
}

// NewCachingEmbedder wraps remote with cache, using batchSize (default 32
// when <= 0) as the largest group of cache misses sent to remote per call.
func NewCachingEmbedder(remote Embedder, c cache.Cache, batchSize int) *CachingEmbedder {
	if batchSize <= 0 {
		batchSize = 32
	}
	return &CachingEmbedder{remote: remote, cache: c, BatchSize: batchSize}
}

func cacheKey(text string) string {
	sum := md5.Sum([]byte(text))
	return "emb:" + hex.EncodeToString(sum[:])
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("cached embedding has invalid length %d", len(data))
	}
	out := make([]float32, len(data)/4)
	r := bytes.NewReader(data)
	for i := range out {
		var bits uint32
		if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
			return nil, fmt.Errorf("decode cached embedding: %w", err)
		}
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}

func (e *CachingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *CachingEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	var missTexts []string
	var missIndices []int

	for i, text := range texts {
		if raw, ok := e.cache.Get(ctx, cacheKey(text)); ok {
			vec, err := decodeVector(raw)
			if err == nil {
				result[i] = vec
				continue
			}
		}
		missTexts = append(missTexts, text)
		missIndices = append(missIndices, i)
	}

	for start := 0; start < len(missTexts); start += e.BatchSize {
		end := start + e.BatchSize
		if end > len(missTexts) {
			end = len(missTexts)
		}
		batch := missTexts[start:end]

		vecs, err := e.remote.EmbedTexts(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("embed batch: %w", err)
		}

		for j, vec := range vecs {
			origIdx := missIndices[start+j]
			result[origIdx] = vec
			e.cache.Set(ctx, cacheKey(batch[j]), encodeVector(vec), embeddingTTL)
		}
	}

	return result, nil
}
