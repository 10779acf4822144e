package aggregator

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/code-atlas/internal/core"
	"github.com/sevigo/code-atlas/internal/llm"
	"github.com/sevigo/code-atlas/internal/quality"
)

const (
	testRepo   = "acme/widget"
	testCommit = "abc123def456"
)

type fakeSummarizer struct {
	moduleCalls int
	repoCalls   int
}

func (f *fakeSummarizer) SummarizeModule(_ context.Context, modulePath, _, _ string) (llm.Summary, error) {
	f.moduleCalls++
	return llm.Summary{Text: "LLM module " + modulePath}, nil
}

func (f *fakeSummarizer) SummarizeRepo(_ context.Context, repoID, _ string) (llm.Summary, error) {
	f.repoCalls++
	return llm.Summary{Text: "LLM repo " + repoID}, nil
}

func newTestAggregator(summarizer Summarizer, llmEnabled bool) *Aggregator {
	a := New(summarizer, quality.NewTracker(quality.NewCircuitBreaker(3, time.Minute)),
		slog.New(slog.DiscardHandler), llmEnabled)
	a.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return a
}

func file(path, lang string, lines int, imports ...string) core.FileIndex {
	return core.FileIndex{
		DocumentID: core.FileDocID(testRepo, path, testCommit),
		RepoID:     testRepo,
		FilePath:   path,
		CommitHash: core.Commit12(testCommit),
		Language:   lang,
		Content:    "summary of " + path,
		LineCount:  lines,
		Imports:    imports,
	}
}

func testFiles() []core.FileIndex {
	return []core.FileIndex{
		file("setup.py", "python", 10),
		file("src/models.py", "python", 100, "sqlalchemy"),
		file("src/api/views.py", "python", 250, "django.http"),
		file("src/api/urls.py", "python", 30),
		file("web/App.svelte", "svelte", 50),
	}
}

func moduleByFolder(t *testing.T, modules []core.ModuleSummary, folder string) core.ModuleSummary {
	t.Helper()
	for _, m := range modules {
		if m.FolderPath == folder {
			return m
		}
	}
	t.Fatalf("module %q not built", folder)
	return core.ModuleSummary{}
}

func TestBuildModuleTree(t *testing.T) {
	files := testFiles()
	modules, repo := newTestAggregator(nil, false).Build(context.Background(), testRepo, testCommit, files)

	require.Len(t, modules, 3)
	require.NotNil(t, repo)

	// Deepest folders are built first.
	assert.Equal(t, "src/api", modules[0].FolderPath)

	api := moduleByFolder(t, modules, "src/api")
	assert.Equal(t, 2, api.FileCount)
	assert.Equal(t, core.ModuleDocID(testRepo, "src", testCommit), api.ParentID)
	assert.Len(t, api.ChildrenIDs, 2)

	src := moduleByFolder(t, modules, "src")
	assert.Equal(t, 1, src.FileCount)
	assert.Equal(t, core.RepoDocID(testRepo, testCommit), src.ParentID)
	require.Len(t, src.ChildrenIDs, 2)
	assert.Contains(t, src.ChildrenIDs, core.FileDocID(testRepo, "src/models.py", testCommit))
	assert.Contains(t, src.ChildrenIDs, api.DocumentID)

	// Repo children are the top-level modules plus root files.
	assert.Len(t, repo.ChildrenIDs, 3)
	assert.Contains(t, repo.ChildrenIDs, src.DocumentID)
	assert.Contains(t, repo.ChildrenIDs, core.FileDocID(testRepo, "setup.py", testCommit))
}

func TestBuildRewiresFileParents(t *testing.T) {
	files := testFiles()
	modules, repo := newTestAggregator(nil, false).Build(context.Background(), testRepo, testCommit, files)

	api := moduleByFolder(t, modules, "src/api")
	for _, f := range files {
		switch f.FilePath {
		case "src/api/views.py", "src/api/urls.py":
			assert.Equal(t, api.DocumentID, f.ParentID, f.FilePath)
		case "setup.py":
			assert.Equal(t, repo.DocumentID, f.ParentID)
		}
	}
}

func TestBuildKeyFiles(t *testing.T) {
	modules, _ := newTestAggregator(nil, false).Build(context.Background(), testRepo, testCommit, testFiles())

	api := moduleByFolder(t, modules, "src/api")
	// urls.py by name, views.py by size.
	assert.Equal(t, []string{"src/api/urls.py", "src/api/views.py"}, api.KeyFiles)

	src := moduleByFolder(t, modules, "src")
	assert.Equal(t, []string{"src/models.py"}, src.KeyFiles)
}

func TestBuildRepoSummaryStats(t *testing.T) {
	_, repo := newTestAggregator(nil, false).Build(context.Background(), testRepo, testCommit, testFiles())

	assert.Equal(t, 5, repo.TotalFiles)
	assert.Equal(t, 440, repo.TotalLines)
	assert.Equal(t, map[string]int{"python": 4, "svelte": 1}, repo.Languages)
	assert.Equal(t, []string{"django", "python", "sqlalchemy", "svelte"}, repo.TechStack)
	assert.Equal(t, []string{"src", "web"}, repo.TopModules)
	assert.Equal(t, core.EnrichmentBasic, repo.Quality.EnrichmentLevel)
}

func TestBuildStructuralSummaries(t *testing.T) {
	modules, repo := newTestAggregator(nil, false).Build(context.Background(), testRepo, testCommit, testFiles())

	api := moduleByFolder(t, modules, "src/api")
	assert.Equal(t, "Module: src/api/ with 2 files. Files: urls.py, views.py", api.Content)

	src := moduleByFolder(t, modules, "src")
	assert.Equal(t, "Module: src/ with 1 files. Files: models.py. Submodules: src/api", src.Content)

	assert.Equal(t, "Repository acme/widget with 5 indexed files. Languages: python, svelte", repo.Content)
}

func TestBuildWithLLM(t *testing.T) {
	summarizer := &fakeSummarizer{}
	modules, repo := newTestAggregator(summarizer, true).Build(context.Background(), testRepo, testCommit, testFiles())

	assert.Equal(t, 3, summarizer.moduleCalls)
	assert.Equal(t, 1, summarizer.repoCalls)

	api := moduleByFolder(t, modules, "src/api")
	assert.Equal(t, "LLM module src/api", api.Content)
	assert.Equal(t, core.EnrichmentLLM, api.Quality.EnrichmentLevel)
	assert.Equal(t, "LLM repo acme/widget", repo.Content)
	assert.Equal(t, core.EnrichmentLLM, repo.Quality.EnrichmentLevel)
}

func TestDetectTechStackFromManifests(t *testing.T) {
	files := []core.FileIndex{
		file("Dockerfile", "unknown", 20),
		file("web/package.json", "unknown", 30),
		file("app/tasks.py", "python", 40, "celery", "redis"),
	}
	assert.Equal(t, []string{"celery", "docker", "nodejs", "python", "redis"}, detectTechStack(files))
}

func TestCloseFolderSetAddsAncestors(t *testing.T) {
	byFolder := map[string][]*core.FileIndex{"a/b/c": nil}
	folders := closeFolderSet(byFolder)
	sortDeepestFirst(folders)
	assert.Equal(t, []string{"a/b/c", "a/b", "a", ""}, folders)
}
