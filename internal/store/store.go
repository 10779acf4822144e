// Package store persists the document hierarchy and run history. Documents
// are addressed by their content-derived ids, so upserts are idempotent and
// concurrent writers converge on the same bytes.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sevigo/code-atlas/internal/core"
)

// ErrNotFound is returned when a document or state row does not exist.
var ErrNotFound = errors.New("not found")

// Document is the storage envelope. The payload is the full JSON document;
// the envelope columns exist for predicate queries and cleanup.
type Document struct {
	ID         string          `db:"document_id"`
	RepoID     string          `db:"repo_id"`
	Type       core.DocType    `db:"doc_type"`
	FilePath   string          `db:"file_path"`
	CommitHash string          `db:"commit_hash"`
	Payload    json.RawMessage `db:"payload"`
}

// RepoState is the per-repo ingestion bookmark. The commit only advances
// after a repo has been fully processed; the embedder id forces a full
// re-ingest when the embedding model changes.
type RepoState struct {
	RepoID     string `db:"repo_id"`
	LastCommit string `db:"last_commit"`
	Embedder   string `db:"embedder"`
}

// Store is the document store contract.
type Store interface {
	// Upsert writes documents idempotently, keyed by document id.
	Upsert(ctx context.Context, docs []Document) error
	Get(ctx context.Context, id string) (*Document, error)

	// DeleteByRepo removes every document for a repo; DeleteByFile removes
	// the per-file documents (file index, symbols, doc chunks) for one path.
	DeleteByRepo(ctx context.Context, repoID string) (int64, error)
	DeleteByFile(ctx context.Context, repoID, path string) (int64, error)

	// FileIndexByPath returns the stored file index for (repo, path)
	// regardless of commit, or ErrNotFound.
	FileIndexByPath(ctx context.Context, repoID, path string) (*core.FileIndex, error)
	FileIndexesForRepo(ctx context.Context, repoID string) ([]core.FileIndex, error)
	CountFiles(ctx context.Context, repoID string) (int, error)
	CountByType(ctx context.Context, repoID string) (map[core.DocType]int, error)

	// RepoIDs lists every repo present in the store, for orphan detection.
	RepoIDs(ctx context.Context) ([]string, error)

	GetRepoState(ctx context.Context, repoID string) (*RepoState, error)
	SaveRepoState(ctx context.Context, state RepoState) error
	DeleteRepoState(ctx context.Context, repoID string) error

	// SaveRun writes the run record in both the current and the legacy
	// shape. Runs returns the most recent records, newest first.
	SaveRun(ctx context.Context, run core.IngestionRun) error
	Runs(ctx context.Context, limit int) ([]core.IngestionRun, error)
}

// NewDocument wraps a typed document into its storage envelope.
func NewDocument(id, repoID string, docType core.DocType, path, commit string, payload any) (Document, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Document{}, fmt.Errorf("failed to encode document %s: %w", id, err)
	}
	return Document{
		ID:         id,
		RepoID:     repoID,
		Type:       docType,
		FilePath:   path,
		CommitHash: commit,
		Payload:    raw,
	}, nil
}

// SymbolDocument builds the envelope for a symbol index.
func SymbolDocument(sym core.SymbolIndex) (Document, error) {
	return NewDocument(sym.DocumentID, sym.RepoID, core.DocTypeSymbol, sym.FilePath, sym.CommitHash, sym)
}

// FileDocument builds the envelope for a file index.
func FileDocument(file core.FileIndex) (Document, error) {
	return NewDocument(file.DocumentID, file.RepoID, core.DocTypeFile, file.FilePath, file.CommitHash, file)
}

// ModuleDocument builds the envelope for a module summary.
func ModuleDocument(mod core.ModuleSummary) (Document, error) {
	return NewDocument(mod.DocumentID, mod.RepoID, core.DocTypeModule, mod.FolderPath, mod.CommitHash, mod)
}

// RepoDocument builds the envelope for a repo summary.
func RepoDocument(repo core.RepoSummary) (Document, error) {
	return NewDocument(repo.DocumentID, repo.RepoID, core.DocTypeRepo, "", repo.CommitHash, repo)
}

// ChunkDocument builds the envelope for a documentation chunk.
func ChunkDocument(chunk core.DocumentChunk) (Document, error) {
	return NewDocument(chunk.DocumentID, chunk.RepoID, core.DocTypeDocChunk, chunk.FilePath, chunk.CommitHash, chunk)
}
