// Package embedding produces fixed-dimension unit vectors for document and
// query text. Documents and queries get distinct prefixes so models trained
// for asymmetric search retrieve better.
package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/sevigo/code-atlas/internal/config"
)

// Prefixes applied before encoding, per the nomic-embed convention.
const (
	DocumentPrefix = "search_document: "
	QueryPrefix    = "search_query: "
)

// Client is the embedding backend. EmbedMany preserves input order.
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// ModelID identifies the backend and model. A changed model id forces a
	// full re-ingest because stored vectors are no longer comparable.
	ModelID() string
}

// New selects the backend from configuration.
func New(cfg config.EmbeddingConfig, logger *slog.Logger) (Client, error) {
	switch cfg.Backend {
	case "local":
		return newLocalClient(cfg, logger)
	case "remote":
		return newRemoteClient(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported embedding backend: %s", cfg.Backend)
	}
}

// normalize scales the vector to unit length. Zero vectors pass through.
func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}

func newEmbedHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxConnsPerHost:     10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   2 * time.Minute,
	}
}
