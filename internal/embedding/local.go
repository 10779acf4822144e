package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sevigo/goframe/embeddings"
	"github.com/sevigo/goframe/llms/ollama"

	"github.com/sevigo/code-atlas/internal/config"
)

// localClient embeds through a local Ollama server.
type localClient struct {
	embedder embeddings.Embedder
	model    string
}

func newLocalClient(cfg config.EmbeddingConfig, logger *slog.Logger) (*localClient, error) {
	embedderLLM, err := ollama.New(
		ollama.WithServerURL(cfg.OllamaHost),
		ollama.WithModel(cfg.Model),
		ollama.WithHTTPClient(newEmbedHTTPClient()),
		ollama.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder LLM: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(embedderLLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	return &localClient{embedder: embedder, model: cfg.Model}, nil
}

func (c *localClient) ModelID() string { return "local/" + c.model }

func (c *localClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *localClient) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = DocumentPrefix + t
	}

	vecs, err := c.embedder.EmbedDocuments(ctx, prefixed)
	if err != nil {
		return nil, fmt.Errorf("failed to embed documents: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
	}
	for i := range vecs {
		vecs[i] = normalize(vecs[i])
	}
	return vecs, nil
}

func (c *localClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := c.embedder.EmbedQuery(ctx, QueryPrefix+text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return normalize(vec), nil
}
