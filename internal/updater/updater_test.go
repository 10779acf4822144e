package updater

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/code-atlas/internal/aggregator"
	"github.com/sevigo/code-atlas/internal/core"
	"github.com/sevigo/code-atlas/internal/processor"
	"github.com/sevigo/code-atlas/internal/quality"
	"github.com/sevigo/code-atlas/internal/store"
)

const (
	testRepo  = "acme/widget"
	oldCommit = "abc123def456abc123def456abc123def456ab12"
	newCommit = "def456abc789def456abc789def456abc789de34"
)

const pySource = `"""Invoice models."""


class Invoice(Base):
    """Tracks one invoice."""

    def total(self):
        amount = 0
        for item in self.items:
            amount += item.price
        return amount


def helper():
    return 1`

type fakeGit struct {
	cs    *core.ChangeSet
	csErr error
	ratio float64
	head  string
	diff  string
	pulls int
}

func (f *fakeGit) DetectChanges(context.Context, string, string) (*core.ChangeSet, error) {
	return f.cs, f.csErr
}
func (f *fakeGit) ChangeRatio(string, *core.ChangeSet) float64 { return f.ratio }
func (f *fakeGit) DiffForFile(context.Context, string, *core.ChangeSet, string) string {
	return f.diff
}
func (f *fakeGit) PullFFOnly(context.Context, string) error { f.pulls++; return nil }
func (f *fakeGit) HeadSHA(context.Context, string) (string, error) {
	return f.head, nil
}

type fakeEmbedClient struct{ manyCalls int }

func (f *fakeEmbedClient) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (f *fakeEmbedClient) EmbedMany(_ context.Context, texts []string) ([][]float32, error) {
	f.manyCalls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (f *fakeEmbedClient) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (f *fakeEmbedClient) ModelID() string { return "fake/model" }

type fakeGate struct {
	significant bool
	calls       int
}

func (f *fakeGate) IsSignificant(context.Context, string, string, string, []float32) (bool, string) {
	f.calls++
	if f.significant {
		return true, "significant_keywords"
	}
	return false, "high_text_similarity"
}

type fakeBuilder struct {
	calls     int
	fileCount int
}

func (f *fakeBuilder) Build(_ context.Context, repoID, commit string, files []core.FileIndex) ([]core.ModuleSummary, *core.RepoSummary) {
	f.calls++
	f.fileCount = len(files)
	module := core.ModuleSummary{
		DocumentID: core.ModuleDocID(repoID, "src", commit),
		RepoID:     repoID,
		FolderPath: "src",
		CommitHash: core.Commit12(commit),
		Content:    "module summary",
	}
	repo := &core.RepoSummary{
		DocumentID: core.RepoDocID(repoID, commit),
		RepoID:     repoID,
		CommitHash: core.Commit12(commit),
		Content:    "repo summary",
	}
	return []core.ModuleSummary{module}, repo
}

type testEnv struct {
	updater *Updater
	store   *store.MemoryStore
	git     *fakeGit
	gate    *fakeGate
	builder *fakeBuilder
	repoDir string
}

func newTestEnv(t *testing.T, git *fakeGit, mutate func(*Options)) *testEnv {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	tracker := quality.NewTracker(quality.NewCircuitBreaker(3, time.Minute))
	memStore := store.NewMemoryStore()
	gateFake := &fakeGate{}
	builder := &fakeBuilder{}

	proc := processor.New(processor.Options{
		Tracker:    tracker,
		Logger:     logger,
		LLMEnabled: false,
	})

	opts := Options{
		Git:        git,
		Store:      memStore,
		Embedder:   &fakeEmbedClient{},
		Processor:  proc,
		Aggregator: builder,
		Gate:       gateFake,
		Tracker:    tracker,
		Logger:     logger,
		Threshold:  0.05,
	}
	if mutate != nil {
		mutate(&opts)
	}

	return &testEnv{
		updater: New(opts),
		store:   memStore,
		git:     git,
		gate:    gateFake,
		builder: builder,
		repoDir: t.TempDir(),
	}
}

func (e *testEnv) writeFile(t *testing.T, relPath, content string) {
	t.Helper()
	full := filepath.Join(e.repoDir, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func (e *testEnv) seedState(t *testing.T, commit, embedder string) {
	t.Helper()
	require.NoError(t, e.store.SaveRepoState(context.Background(), store.RepoState{
		RepoID:     testRepo,
		LastCommit: commit,
		Embedder:   embedder,
	}))
}

func (e *testEnv) seedFileDoc(t *testing.T, path, commit, summary string, embeddingVec []float32) {
	t.Helper()
	doc, err := store.FileDocument(core.FileIndex{
		DocumentID: core.FileDocID(testRepo, path, commit),
		RepoID:     testRepo,
		FilePath:   path,
		CommitHash: core.Commit12(commit),
		Language:   "python",
		Content:    summary,
		Embedding:  embeddingVec,
	})
	require.NoError(t, err)
	require.NoError(t, e.store.Upsert(context.Background(), []store.Document{doc}))
}

func TestNewRepoRunsFullReingest(t *testing.T) {
	git := &fakeGit{head: newCommit}
	env := newTestEnv(t, git, func(o *Options) {
		tracker := o.Tracker
		o.Aggregator = aggregator.New(nil, tracker, o.Logger, false)
	})
	env.writeFile(t, "src/models.py", pySource)
	env.writeFile(t, "README.md", "# Widget\n\n"+strings.Repeat("The widget service issues invoices. ", 5))

	res := env.updater.UpdateRepo(context.Background(), testRepo, env.repoDir)

	assert.Equal(t, core.StatusFullReingest, res.Status)
	assert.Equal(t, "new_repo", res.Reason)
	assert.Equal(t, newCommit, res.Commit)
	assert.Equal(t, 2, res.FilesProcessed)
	assert.Equal(t, 1, git.pulls)

	counts, err := env.store.CountByType(context.Background(), testRepo)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[core.DocTypeFile])
	assert.Equal(t, 2, counts[core.DocTypeSymbol])
	assert.Equal(t, 1, counts[core.DocTypeModule])
	assert.Equal(t, 1, counts[core.DocTypeRepo])
	assert.Equal(t, 1, counts[core.DocTypeDocChunk])

	file, err := env.store.FileIndexByPath(context.Background(), testRepo, "src/models.py")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, file.Embedding)

	state, err := env.store.GetRepoState(context.Background(), testRepo)
	require.NoError(t, err)
	assert.Equal(t, newCommit, state.LastCommit)
	assert.Equal(t, "fake/model", state.Embedder)
}

func TestSkippedWhenCommitsMatch(t *testing.T) {
	git := &fakeGit{cs: &core.ChangeSet{OldCommit: oldCommit, NewCommit: oldCommit}}
	env := newTestEnv(t, git, nil)
	env.seedState(t, oldCommit, "fake/model")

	res := env.updater.UpdateRepo(context.Background(), testRepo, env.repoDir)

	assert.Equal(t, core.StatusSkipped, res.Status)
	assert.Equal(t, "no_changes", res.Reason)
	assert.Equal(t, 0, git.pulls)
	assert.Empty(t, env.store.Documents())
}

func TestSkippedWhenDiffIsEmpty(t *testing.T) {
	git := &fakeGit{cs: &core.ChangeSet{OldCommit: oldCommit, NewCommit: newCommit}}
	env := newTestEnv(t, git, nil)
	env.seedState(t, oldCommit, "fake/model")

	res := env.updater.UpdateRepo(context.Background(), testRepo, env.repoDir)

	assert.Equal(t, core.StatusSkipped, res.Status)
	assert.Equal(t, "no_file_changes", res.Reason)

	// The bookmark advances so the empty diff is not recomputed next run.
	state, err := env.store.GetRepoState(context.Background(), testRepo)
	require.NoError(t, err)
	assert.Equal(t, newCommit, state.LastCommit)
}

func TestThresholdExceededTriggersFullReingest(t *testing.T) {
	git := &fakeGit{
		cs: &core.ChangeSet{
			OldCommit: oldCommit,
			NewCommit: newCommit,
			Modified:  []string{"src/models.py"},
		},
		ratio: 0.15,
		head:  newCommit,
	}
	env := newTestEnv(t, git, nil)
	env.seedState(t, oldCommit, "fake/model")
	env.writeFile(t, "src/models.py", pySource)

	res := env.updater.UpdateRepo(context.Background(), testRepo, env.repoDir)

	assert.Equal(t, core.StatusFullReingest, res.Status)
	assert.Equal(t, "threshold_exceeded (15.0%)", res.Reason)
	assert.Equal(t, 1, env.builder.calls)
}

func TestEmbedderChangeForcesFullReingest(t *testing.T) {
	git := &fakeGit{head: newCommit}
	env := newTestEnv(t, git, nil)
	env.seedState(t, oldCommit, "local/other-model")
	env.writeFile(t, "src/models.py", pySource)

	res := env.updater.UpdateRepo(context.Background(), testRepo, env.repoDir)

	assert.Equal(t, core.StatusFullReingest, res.Status)
	assert.Equal(t, "embedder_changed", res.Reason)

	state, err := env.store.GetRepoState(context.Background(), testRepo)
	require.NoError(t, err)
	assert.Equal(t, "fake/model", state.Embedder)
}

func TestIncrementalInsignificantChangeSkipsAncestors(t *testing.T) {
	git := &fakeGit{
		cs: &core.ChangeSet{
			OldCommit: oldCommit,
			NewCommit: newCommit,
			Modified:  []string{"src/models.py"},
		},
		ratio: 0.005,
	}
	env := newTestEnv(t, git, nil)
	env.seedState(t, oldCommit, "fake/model")
	env.seedFileDoc(t, "src/models.py", oldCommit, "old summary", []float32{1, 0})
	env.seedFileDoc(t, "src/other.py", oldCommit, "untouched", nil)
	env.writeFile(t, "src/models.py", pySource)

	res := env.updater.UpdateRepo(context.Background(), testRepo, env.repoDir)

	assert.Equal(t, core.StatusUpdated, res.Status)
	assert.Equal(t, 1, res.FilesProcessed)
	assert.Equal(t, 1, env.gate.calls)
	assert.Equal(t, 0, env.builder.calls)

	// Exactly one file_index per (repo, path), stamped with the new commit.
	fileDocs := 0
	for _, doc := range env.store.Documents() {
		if doc.Type == core.DocTypeFile && doc.FilePath == "src/models.py" {
			fileDocs++
			assert.Equal(t, core.Commit12(newCommit), doc.CommitHash)
		}
	}
	assert.Equal(t, 1, fileDocs)

	counts, err := env.store.CountByType(context.Background(), testRepo)
	require.NoError(t, err)
	assert.Equal(t, 0, counts[core.DocTypeModule])
	assert.Equal(t, 0, counts[core.DocTypeRepo])
}

func TestIncrementalSignificantChangeRegeneratesAncestors(t *testing.T) {
	git := &fakeGit{
		cs: &core.ChangeSet{
			OldCommit: oldCommit,
			NewCommit: newCommit,
			Modified:  []string{"src/models.py"},
		},
		ratio: 0.005,
	}
	env := newTestEnv(t, git, nil)
	env.gate.significant = true
	env.seedState(t, oldCommit, "fake/model")
	env.seedFileDoc(t, "src/models.py", oldCommit, "old summary", nil)
	env.seedFileDoc(t, "src/other.py", oldCommit, "untouched", nil)
	env.writeFile(t, "src/models.py", pySource)

	res := env.updater.UpdateRepo(context.Background(), testRepo, env.repoDir)

	assert.Equal(t, core.StatusUpdated, res.Status)
	assert.Equal(t, 1, env.builder.calls)
	// Aggregation sees the whole repo, not just the changed file.
	assert.Equal(t, 2, env.builder.fileCount)

	counts, err := env.store.CountByType(context.Background(), testRepo)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[core.DocTypeModule])
	assert.Equal(t, 1, counts[core.DocTypeRepo])
}

func TestIncrementalDeletionRemovesDocsAndRegenerates(t *testing.T) {
	git := &fakeGit{
		cs: &core.ChangeSet{
			OldCommit: oldCommit,
			NewCommit: newCommit,
			Deleted:   []string{"src/models.py"},
		},
		ratio: 0.005,
	}
	env := newTestEnv(t, git, nil)
	env.seedState(t, oldCommit, "fake/model")
	env.seedFileDoc(t, "src/models.py", oldCommit, "old summary", nil)
	env.seedFileDoc(t, "src/other.py", oldCommit, "untouched", nil)

	res := env.updater.UpdateRepo(context.Background(), testRepo, env.repoDir)

	assert.Equal(t, core.StatusUpdated, res.Status)
	assert.Equal(t, 1, res.FilesDeleted)
	assert.Equal(t, 1, env.builder.calls)
	assert.Equal(t, 1, env.builder.fileCount)

	_, err := env.store.FileIndexByPath(context.Background(), testRepo, "src/models.py")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDryRunWritesNothing(t *testing.T) {
	git := &fakeGit{head: newCommit}
	env := newTestEnv(t, git, func(o *Options) { o.DryRun = true })
	env.writeFile(t, "src/models.py", pySource)

	res := env.updater.UpdateRepo(context.Background(), testRepo, env.repoDir)

	assert.Equal(t, core.StatusFullReingest, res.Status)
	assert.Empty(t, env.store.Documents())
	_, err := env.store.GetRepoState(context.Background(), testRepo)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGitErrorIsPerRepoError(t *testing.T) {
	git := &fakeGit{csErr: assert.AnError}
	env := newTestEnv(t, git, nil)
	env.seedState(t, oldCommit, "fake/model")

	res := env.updater.UpdateRepo(context.Background(), testRepo, env.repoDir)

	assert.Equal(t, core.StatusError, res.Status)
	assert.NotEmpty(t, res.Error)
}
