package store

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/sevigo/goframe/embeddings"
	"github.com/sevigo/goframe/schema"
	"github.com/sevigo/goframe/vectorstores"
	"github.com/sevigo/goframe/vectorstores/qdrant"
)

// VectorStore mirrors document summaries into Qdrant so downstream semantic
// search can kNN over them. Ingest never reads it back.
type VectorStore interface {
	AddDocuments(ctx context.Context, collectionName string, docs []schema.Document) error
	DeleteCollection(ctx context.Context, collectionName string) error
}

type qdrantVectorStore struct {
	qdrantHost string
	embedder   embeddings.Embedder
	logger     *slog.Logger
}

// NewQdrantVectorStore creates a Qdrant-backed vector mirror.
func NewQdrantVectorStore(qdrantHost string, embedder embeddings.Embedder, logger *slog.Logger) VectorStore {
	return &qdrantVectorStore{
		qdrantHost: qdrantHost,
		embedder:   embedder,
		logger:     logger,
	}
}

func (q *qdrantVectorStore) getStoreForCollection(collectionName string) (vectorstores.VectorStore, error) {
	if strings.TrimSpace(collectionName) == "" {
		return nil, fmt.Errorf("collection name cannot be empty")
	}
	return qdrant.New(
		qdrant.WithHost(q.qdrantHost),
		qdrant.WithEmbedder(q.embedder),
		qdrant.WithCollectionName(collectionName),
		qdrant.WithLogger(q.logger),
	)
}

func (q *qdrantVectorStore) AddDocuments(ctx context.Context, collectionName string, docs []schema.Document) error {
	if len(docs) == 0 {
		return nil
	}
	vs, err := q.getStoreForCollection(collectionName)
	if err != nil {
		return fmt.Errorf("failed to get qdrant store for collection %s: %w", collectionName, err)
	}
	if _, err := vs.AddDocuments(ctx, docs); err != nil {
		return fmt.Errorf("failed to add documents to qdrant collection %s: %w", collectionName, err)
	}
	return nil
}

func (q *qdrantVectorStore) DeleteCollection(ctx context.Context, collectionName string) error {
	vs, err := q.getStoreForCollection(collectionName)
	if err != nil {
		return fmt.Errorf("failed to get qdrant store for collection %s: %w", collectionName, err)
	}
	return vs.DeleteCollection(ctx, collectionName)
}

var collectionNameRegexp = regexp.MustCompile(`[^a-z0-9-]`)

// CollectionName builds a valid Qdrant collection name from repo and
// embedder model info.
func CollectionName(repoID, embedderName string) string {
	safeRepo := strings.ToLower(strings.ReplaceAll(repoID, "/", "-"))
	safeEmbedder := strings.ToLower(strings.Split(embedderName, ":")[0])
	safeEmbedder = strings.ReplaceAll(safeEmbedder, "/", "-")

	safeRepo = collectionNameRegexp.ReplaceAllString(safeRepo, "")
	safeEmbedder = collectionNameRegexp.ReplaceAllString(safeEmbedder, "")

	name := fmt.Sprintf("atlas-%s-%s", safeRepo, safeEmbedder)

	const maxCollectionNameLength = 255
	if len(name) > maxCollectionNameLength {
		name = name[:maxCollectionNameLength]
	}
	return name
}
