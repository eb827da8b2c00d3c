package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"

	"github.com/garry00107/sheetrag/internal/ollamautil"
)

// OllamaClient completes prompts through a local or remote Ollama daemon.
type OllamaClient struct {
	client      *api.Client
	model       string
	temperature float32
	numPredict  int
	timeout     time.Duration
}

// NewOllamaClient builds a Client against host using model for completion.
func NewOllamaClient(host, model string) (*OllamaClient, error) {
	client, err := ollamaClientForHost(host)
	if err != nil {
		return nil, fmt.Errorf("build ollama client: %w", err)
	}
	return &OllamaClient{
		client:      client,
		model:       model,
		temperature: 0.1,
		numPredict:  1024,
		timeout:     60 * time.Second,
	}, nil
}

func (c *OllamaClient) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := &api.GenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Options: map[string]any{
			"temperature": c.temperature,
			"num_predict": c.numPredict,
		},
	}

	var out strings.Builder
	err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		_, err := out.WriteString(resp.Response)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return out.String(), nil
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
