package processor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/code-atlas/internal/core"
	"github.com/sevigo/code-atlas/internal/llm"
	"github.com/sevigo/code-atlas/internal/quality"
)

const pySample = `"""Invoice models."""


class Invoice(Base):
    """Tracks one invoice."""

    def total(self):
        amount = 0
        for item in self.items:
            amount += item.price
        return amount


def helper():
    return 1`

type fakeSummarizer struct {
	symbolCalls int
	fileCalls   int
	err         error
}

func (f *fakeSummarizer) SummarizeSymbol(_ context.Context, name, _, _, _, _ string) (llm.Summary, error) {
	f.symbolCalls++
	if f.err != nil {
		return llm.Summary{}, f.err
	}
	return llm.Summary{Text: "LLM summary of " + name, Tokens: 10}, nil
}

func (f *fakeSummarizer) SummarizeFile(_ context.Context, path, _, _ string) (llm.Summary, error) {
	f.fileCalls++
	if f.err != nil {
		return llm.Summary{}, f.err
	}
	return llm.Summary{Text: "LLM summary of " + path, Tokens: 20}, nil
}

type fakeChunker struct {
	chunks []llm.SemanticChunk
	calls  int
}

func (f *fakeChunker) Chunk(_ context.Context, _, _, _ string, _ []string) []llm.SemanticChunk {
	f.calls++
	return f.chunks
}

func newTestProcessor(t *testing.T, summarizer Summarizer, chunker Chunker, llmEnabled bool) *Processor {
	t.Helper()
	p := New(Options{
		Summarizer: summarizer,
		Chunker:    chunker,
		Tracker:    quality.NewTracker(quality.NewCircuitBreaker(3, time.Minute)),
		Logger:     slog.New(slog.DiscardHandler),
		LLMEnabled: llmEnabled,
	})
	p.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return p
}

func writeFile(t *testing.T, dir, relPath, content string) {
	t.Helper()
	full := filepath.Join(dir, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestProcessFileBuildsHierarchy(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/models.py", pySample)

	p := newTestProcessor(t, nil, nil, false)
	file, symbolDocs, err := p.ProcessFile(context.Background(), "acme/widget", dir, "src/models.py", "abc123def456")
	require.NoError(t, err)
	require.NotNil(t, file)

	// Only the class and its large method clear the five-line threshold.
	require.Len(t, symbolDocs, 2)
	assert.Equal(t, "Invoice", symbolDocs[0].SymbolName)
	assert.Equal(t, core.KindClass, symbolDocs[0].SymbolType)
	assert.Equal(t, "Invoice.total", symbolDocs[1].SymbolName)

	for _, doc := range symbolDocs {
		assert.Equal(t, file.DocumentID, doc.ParentID)
		assert.Contains(t, file.ChildrenIDs, doc.DocumentID)
		assert.NotEmpty(t, doc.SourceCode)
	}
	assert.Len(t, file.ChildrenIDs, 2)

	// Every parsed symbol appears in the file listing, significant or not.
	require.Len(t, file.Symbols, 3)
	assert.Equal(t, "helper", file.Symbols[2].Name)
	assert.False(t, file.Symbols[2].Significant)
	assert.True(t, file.Symbols[0].Significant)

	assert.Equal(t, core.FileDocID("acme/widget", "src/models.py", "abc123def456"), file.DocumentID)
	assert.Equal(t, core.ModuleDocID("acme/widget", "src", "abc123def456"), file.ParentID)
	assert.Equal(t, "abc123def456", file.CommitHash)
	assert.Equal(t, "python", file.Language)
	assert.Equal(t, 15, file.LineCount)
	assert.False(t, file.Quality.IsUnderchunked)
	assert.Equal(t, core.EnrichmentBasic, file.Quality.EnrichmentLevel)
}

func TestProcessFileBasicSummaries(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/models.py", pySample)

	p := newTestProcessor(t, nil, nil, false)
	file, symbolDocs, err := p.ProcessFile(context.Background(), "acme/widget", dir, "src/models.py", "abc123def456")
	require.NoError(t, err)

	assert.Equal(t, "Invoice (class in src/models.py, lines 4-11). Tracks one invoice. Methods: total", symbolDocs[0].Content)
	assert.Contains(t, file.Content, "src/models.py: python file, 15 lines")
	assert.Contains(t, file.Content, "Classes: Invoice")
	assert.Contains(t, file.Content, "Functions: helper")
}

func TestProcessFileLLMSummaries(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/models.py", pySample)

	summarizer := &fakeSummarizer{}
	p := newTestProcessor(t, summarizer, nil, true)
	file, symbolDocs, err := p.ProcessFile(context.Background(), "acme/widget", dir, "src/models.py", "abc123def456")
	require.NoError(t, err)

	assert.Equal(t, 2, summarizer.symbolCalls)
	assert.Equal(t, 1, summarizer.fileCalls)
	assert.Equal(t, "LLM summary of Invoice", symbolDocs[0].Content)
	assert.Equal(t, core.EnrichmentLLM, symbolDocs[0].Quality.EnrichmentLevel)
	assert.Equal(t, "LLM summary of src/models.py", file.Content)
	assert.Equal(t, core.EnrichmentLLM, file.Quality.EnrichmentLevel)
	assert.True(t, file.Quality.LLMAvailable)
}

func TestProcessFileFallsBackOnSummarizerError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/models.py", pySample)

	summarizer := &fakeSummarizer{err: errors.New("boom")}
	p := newTestProcessor(t, summarizer, nil, true)
	file, symbolDocs, err := p.ProcessFile(context.Background(), "acme/widget", dir, "src/models.py", "abc123def456")
	require.NoError(t, err)

	assert.Equal(t, core.EnrichmentBasic, symbolDocs[0].Quality.EnrichmentLevel)
	assert.Contains(t, symbolDocs[0].Content, "Invoice (class in src/models.py")
	assert.Equal(t, core.EnrichmentBasic, file.Quality.EnrichmentLevel)
}

func TestProcessFileSkipsNearEmpty(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/__init__.py", "# stub\n")

	p := newTestProcessor(t, nil, nil, false)
	file, symbolDocs, err := p.ProcessFile(context.Background(), "acme/widget", dir, "src/__init__.py", "abc123def456")
	require.NoError(t, err)
	assert.Nil(t, file)
	assert.Nil(t, symbolDocs)
}

func TestProcessFileUnresolvableContentIsSkipped(t *testing.T) {
	p := newTestProcessor(t, nil, nil, false)
	file, symbolDocs, err := p.ProcessFile(context.Background(), "acme/widget", t.TempDir(), "src/gone.py", "abc123def456")
	require.NoError(t, err)
	assert.Nil(t, file)
	assert.Nil(t, symbolDocs)

	sum := p.tracker.Summary()
	assert.Equal(t, int64(1), sum.FilesSkipped)
	assert.Zero(t, sum.FilesFailed)
}

func TestProcessFileUnderchunkedMergesLLMChunks(t *testing.T) {
	dir := t.TempDir()
	sql := "SELECT id, name FROM users WHERE active = true;\nSELECT id FROM orders WHERE paid = false;\n"
	writeFile(t, dir, "db/queries.sql", sql)

	chunker := &fakeChunker{chunks: []llm.SemanticChunk{{
		Type:       "query",
		Name:       "active_users",
		StartLine:  1,
		EndLine:    12,
		Purpose:    "Selects the active users",
		Confidence: 0.9,
	}}}
	p := newTestProcessor(t, &fakeSummarizer{}, chunker, true)

	file, symbolDocs, err := p.ProcessFile(context.Background(), "acme/widget", dir, "db/queries.sql", "abc123def456")
	require.NoError(t, err)

	assert.Equal(t, 1, chunker.calls)
	assert.True(t, file.Quality.IsUnderchunked)
	assert.Equal(t, "embedded_sql", file.Quality.UnderchunkReason)
	assert.Equal(t, 1, file.Quality.LLMChunksAdded)

	require.Len(t, symbolDocs, 1)
	assert.Equal(t, "active_users", symbolDocs[0].SymbolName)
	assert.Equal(t, core.SymbolKind("query"), symbolDocs[0].SymbolType)
	assert.Equal(t, "Selects the active users", symbolDocs[0].Docstring)
}

func TestProcessFileChunkerSkippedWhenLLMDisabled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "db/queries.sql", "SELECT id, name FROM users WHERE active = true;\n-- more\n")

	chunker := &fakeChunker{}
	p := newTestProcessor(t, nil, chunker, false)

	file, _, err := p.ProcessFile(context.Background(), "acme/widget", dir, "db/queries.sql", "abc123def456")
	require.NoError(t, err)

	assert.Equal(t, 0, chunker.calls)
	assert.True(t, file.Quality.IsUnderchunked)
	assert.Equal(t, 0, file.Quality.LLMChunksAdded)
}

func TestParentModuleID(t *testing.T) {
	assert.Equal(t, core.ModuleDocID("r", "src/api", "c"), parentModuleID("r", "src/api/views.py", "c"))
	assert.Equal(t, core.RepoDocID("r", "c"), parentModuleID("r", "setup.py", "c"))
}

func TestEnclosingClass(t *testing.T) {
	all := []core.Symbol{
		{Name: "Invoice", Kind: core.KindClass, StartLine: 1, EndLine: 20},
		{Name: "Invoice.total", Kind: core.KindMethod, StartLine: 5, EndLine: 10},
		{Name: "helper", Kind: core.KindFunction, StartLine: 22, EndLine: 30},
	}
	assert.Equal(t, "Invoice", enclosingClass(all[1], all))
	assert.Equal(t, "", enclosingClass(all[2], all))
	assert.Equal(t, "", enclosingClass(all[0], all))
}
