package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/sevigo/code-atlas/internal/config"
)

// remoteClient talks to an OpenAI-compatible /v1/embeddings endpoint.
type remoteClient struct {
	baseURL    string
	model      string
	batchSize  int
	httpClient *http.Client
	logger     *slog.Logger
}

func newRemoteClient(cfg config.EmbeddingConfig, logger *slog.Logger) *remoteClient {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 32
	}
	return &remoteClient{
		baseURL:    strings.TrimSuffix(cfg.RemoteURL, "/"),
		model:      cfg.Model,
		batchSize:  batch,
		httpClient: newEmbedHTTPClient(),
		logger:     logger.With("component", "embedding"),
	}
}

func (c *remoteClient) ModelID() string { return "remote/" + c.model }

func (c *remoteClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.post(ctx, []string{DocumentPrefix + text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *remoteClient) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := make([]string, 0, end-start)
		for _, t := range texts[start:end] {
			batch = append(batch, DocumentPrefix+t)
		}
		vecs, err := c.post(ctx, batch)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (c *remoteClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.post(ctx, []string{QueryPrefix + text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (c *remoteClient) post(ctx context.Context, inputs []string) ([][]float32, error) {
	payload, err := json.Marshal(map[string]any{
		"model": c.model,
		"input": inputs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("embedding endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var body embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(body.Data) != len(inputs) {
		return nil, fmt.Errorf("embedding endpoint returned %d vectors for %d inputs", len(body.Data), len(inputs))
	}

	// The API may return items out of order; the index field is authoritative.
	sort.Slice(body.Data, func(i, j int) bool { return body.Data[i].Index < body.Data[j].Index })

	vecs := make([][]float32, len(body.Data))
	for i, d := range body.Data {
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("embedding endpoint returned an empty vector at index %d", d.Index)
		}
		vecs[i] = normalize(d.Embedding)
	}
	return vecs, nil
}
