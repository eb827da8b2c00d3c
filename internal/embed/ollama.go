package embed

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/garry00107/sheetrag/internal/ollamautil"
	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
	"go.uber.org/zap"
)

// OllamaEmbedder embeds text through a local or remote Ollama daemon. It
// bounds in-flight requests with a semaphore and retries each individual
// call a fixed number of times, following the teacher pack's
// OllamaEmbedder/EmbedBatch concurrency idiom.
type OllamaEmbedder struct {
	client        *api.Client
	model         string
	logger        *zap.Logger
	maxRetries    int
	maxConcurrent int
	timeout       time.Duration
}

// NewOllamaEmbedder builds a client against host using model for every
// embedding request.
func NewOllamaEmbedder(host, model string, logger *zap.Logger) (*OllamaEmbedder, error) {
	client, err := ollamaClientForHost(host)
	if err != nil {
		return nil, fmt.Errorf("build ollama client: %w", err)
	}
	return &OllamaEmbedder{
		client:        client,
		model:         model,
		logger:        logger,
		maxRetries:    1,
		maxConcurrent: 3,
		timeout:       30 * time.Second,
	}, nil
}

func (e *OllamaEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embedOne(ctx, text)
}

func (e *OllamaEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	errs := make([]error, len(texts))

	sem := make(chan struct{}, e.maxConcurrent)
	var wg sync.WaitGroup
	for i, text := range texts {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, text string) {
			defer wg.Done()
			defer func() { <-sem }()
			vec, err := e.embedOne(ctx, text)
			out[i] = vec
			errs[i] = err
		}(i, text)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (e *OllamaEmbedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		vec, err := e.createEmbedding(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		e.logger.Debug("embedding attempt failed", zap.Int("attempt", attempt), zap.Error(err))
	}
	return nil, fmt.Errorf("embed after %d attempts: %w", e.maxRetries+1, lastErr)
}

func (e *OllamaEmbedder) createEmbedding(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req := &api.EmbeddingRequest{Model: e.model, Prompt: text}
	resp, err := e.client.Embeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: %w", err)
	}

	vec := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

func ollamaClientForHost(host string) (*api.Client, error) {
	if host == "" {
		return api.NewClient(envconfig.Host(), http.DefaultClient), nil
	}
	base, err := ollamautil.ParseHost(host)
	if err != nil {
		return nil, err
	}
	return api.NewClient(base, http.DefaultClient), nil
}
