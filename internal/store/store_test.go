package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/code-atlas/internal/core"
)

func testFileIndex(repoID, path, commit string) core.FileIndex {
	return core.FileIndex{
		DocumentID: core.FileDocID(repoID, path, commit),
		RepoID:     repoID,
		FilePath:   path,
		CommitHash: core.Commit12(commit),
		Language:   "python",
		Content:    "summary of " + path,
		Symbols:    []core.FileSymbol{},
		Version:    core.NewVersion(time.Now()),
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	doc, err := FileDocument(testFileIndex("acme/widget", "src/app.py", "abc123def456"))
	require.NoError(t, err)

	require.NoError(t, s.Upsert(ctx, []Document{doc}))
	require.NoError(t, s.Upsert(ctx, []Document{doc}))

	assert.Len(t, s.Documents(), 1)
	got, err := s.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, core.DocTypeFile, got.Type)
}

func TestGetNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteByFileRemovesAllFileDocs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	file := testFileIndex("acme/widget", "src/app.py", "abc123def456")
	fileDoc, err := FileDocument(file)
	require.NoError(t, err)

	symDoc, err := SymbolDocument(core.SymbolIndex{
		DocumentID: core.SymbolDocID("acme/widget", "src/app.py", "main", "abc123def456"),
		RepoID:     "acme/widget",
		FilePath:   "src/app.py",
		CommitHash: core.Commit12("abc123def456"),
		SymbolName: "main",
	})
	require.NoError(t, err)

	otherDoc, err := FileDocument(testFileIndex("acme/widget", "src/other.py", "abc123def456"))
	require.NoError(t, err)

	require.NoError(t, s.Upsert(ctx, []Document{fileDoc, symDoc, otherDoc}))

	deleted, err := s.DeleteByFile(ctx, "acme/widget", "src/app.py")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	count, err := s.CountFiles(ctx, "acme/widget")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDeleteByRepo(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	a, err := FileDocument(testFileIndex("acme/widget", "a.py", "abc123def456"))
	require.NoError(t, err)
	b, err := FileDocument(testFileIndex("acme/gadget", "b.py", "abc123def456"))
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, []Document{a, b}))

	deleted, err := s.DeleteByRepo(ctx, "acme/widget")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	ids, err := s.RepoIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/gadget"}, ids)
}

func TestFileIndexByPathDecodesPayload(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	file := testFileIndex("acme/widget", "src/app.py", "abc123def456")
	doc, err := FileDocument(file)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, []Document{doc}))

	got, err := s.FileIndexByPath(ctx, "acme/widget", "src/app.py")
	require.NoError(t, err)
	assert.Equal(t, file.DocumentID, got.DocumentID)
	assert.Equal(t, "summary of src/app.py", got.Content)

	_, err = s.FileIndexByPath(ctx, "acme/widget", "src/missing.py")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepoState(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.GetRepoState(ctx, "acme/widget")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SaveRepoState(ctx, RepoState{
		RepoID:     "acme/widget",
		LastCommit: "abc123def456",
		Embedder:   "local/nomic-embed-text",
	}))

	state, err := s.GetRepoState(ctx, "acme/widget")
	require.NoError(t, err)
	assert.Equal(t, "abc123def456", state.LastCommit)

	require.NoError(t, s.DeleteRepoState(ctx, "acme/widget"))
	_, err = s.GetRepoState(ctx, "acme/widget")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRunUpsertsByID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	run := core.IngestionRun{RunID: "r1", StartedAt: time.Now(), Status: core.RunCompleted}
	require.NoError(t, s.SaveRun(ctx, run))

	run.Status = core.RunFailed
	require.NoError(t, s.SaveRun(ctx, run))

	runs, err := s.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, core.RunFailed, runs[0].Status)
}

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "atlas-acme-widget-nomic-embed-text",
		CollectionName("acme/widget", "nomic-embed-text:latest"))
	assert.Equal(t, "atlas-acmewidget-m",
		CollectionName("Acme_Widget", "M"))
}
