// Package updater drives the per-repository ingestion state machine: skip
// when nothing changed, process incrementally when the change ratio is small,
// re-ingest from scratch when the repo is new, the embedder changed, or the
// ratio trips the threshold.
package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sevigo/code-atlas/internal/core"
	"github.com/sevigo/code-atlas/internal/docsplit"
	"github.com/sevigo/code-atlas/internal/embedding"
	"github.com/sevigo/code-atlas/internal/quality"
	"github.com/sevigo/code-atlas/internal/store"
)

const defaultMaxConcurrentFiles = 4

// GitClient is the slice of git operations the updater needs.
// *gitutil.Client satisfies it.
type GitClient interface {
	DetectChanges(ctx context.Context, path, storedCommit string) (*core.ChangeSet, error)
	ChangeRatio(path string, cs *core.ChangeSet) float64
	DiffForFile(ctx context.Context, path string, cs *core.ChangeSet, relPath string) string
	PullFFOnly(ctx context.Context, path string) error
	HeadSHA(ctx context.Context, path string) (string, error)
}

// FileProcessor builds the per-file documents. *processor.Processor
// satisfies it.
type FileProcessor interface {
	ProcessFile(ctx context.Context, repoID, repoPath, relPath, commit string) (*core.FileIndex, []core.SymbolIndex, error)
}

// Builder aggregates file documents into module and repo summaries.
// *aggregator.Aggregator satisfies it.
type Builder interface {
	Build(ctx context.Context, repoID, commit string, files []core.FileIndex) ([]core.ModuleSummary, *core.RepoSummary)
}

// SignificanceGate decides whether a file change propagates upward.
// *gate.Gate satisfies it.
type SignificanceGate interface {
	IsSignificant(ctx context.Context, oldSummary, newSummary, diffText string, oldEmbedding []float32) (bool, string)
}

// DocSplitter chunks documentation files. *docsplit.Splitter satisfies it.
type DocSplitter interface {
	Split(repoID, path, commit, content string) []core.DocumentChunk
}

// Options wires an Updater.
type Options struct {
	Git        GitClient
	Store      store.Store
	Vectors    store.VectorStore
	Embedder   embedding.Client
	Processor  FileProcessor
	Aggregator Builder
	Gate       SignificanceGate
	Splitter   DocSplitter
	Tracker    *quality.Tracker
	Logger     *slog.Logger

	Threshold          float64
	MaxConcurrentFiles int
	DryRun             bool
}

// Updater processes one repository per call.
type Updater struct {
	opts Options
	log  *slog.Logger
}

func New(opts Options) *Updater {
	if opts.MaxConcurrentFiles <= 0 {
		opts.MaxConcurrentFiles = defaultMaxConcurrentFiles
	}
	if opts.Splitter == nil {
		opts.Splitter = docsplit.New(opts.Logger)
	}
	return &Updater{
		opts: opts,
		log:  opts.Logger.With("component", "updater"),
	}
}

// UpdateRepo runs the state machine for one repository and never panics or
// aborts the run; failures come back as a result with status error.
func (u *Updater) UpdateRepo(ctx context.Context, repoID, repoPath string) core.UpdateResult {
	start := time.Now()
	u.opts.Tracker.StartRun(repoID)
	defer u.opts.Tracker.EndRun()

	res := u.update(ctx, repoID, repoPath)
	res.RepoID = repoID
	res.Duration = time.Since(start)

	u.log.Info("repo processed",
		"repo", repoID,
		"status", res.Status,
		"reason", res.Reason,
		"files_processed", res.FilesProcessed,
		"files_deleted", res.FilesDeleted,
		"duration", res.Duration.Round(time.Millisecond))
	return res
}

func (u *Updater) update(ctx context.Context, repoID, repoPath string) core.UpdateResult {
	state, err := u.opts.Store.GetRepoState(ctx, repoID)
	if errors.Is(err, store.ErrNotFound) {
		return u.fullReingest(ctx, repoID, repoPath, "new_repo")
	}
	if err != nil {
		return errorResult(err)
	}

	if state.Embedder != "" && state.Embedder != u.opts.Embedder.ModelID() {
		u.log.Info("embedder changed, stored vectors are stale",
			"repo", repoID, "stored", state.Embedder, "current", u.opts.Embedder.ModelID())
		return u.fullReingest(ctx, repoID, repoPath, "embedder_changed")
	}

	cs, err := u.opts.Git.DetectChanges(ctx, repoPath, state.LastCommit)
	if err != nil {
		return errorResult(err)
	}
	if cs.OldCommit == cs.NewCommit {
		return core.UpdateResult{Status: core.StatusSkipped, Reason: "no_changes", Commit: cs.NewCommit}
	}
	if cs.Empty() {
		u.saveState(ctx, repoID, cs.NewCommit)
		return core.UpdateResult{Status: core.StatusSkipped, Reason: "no_file_changes", Commit: cs.NewCommit}
	}

	ratio := u.opts.Git.ChangeRatio(repoPath, cs)
	if ratio > u.opts.Threshold {
		return u.fullReingest(ctx, repoID, repoPath, fmt.Sprintf("threshold_exceeded (%.1f%%)", ratio*100))
	}
	return u.incremental(ctx, repoID, repoPath, cs)
}

func (u *Updater) fullReingest(ctx context.Context, repoID, repoPath, reason string) core.UpdateResult {
	if err := u.opts.Git.PullFFOnly(ctx, repoPath); err != nil {
		return errorResult(fmt.Errorf("pull: %w", err))
	}
	head, err := u.opts.Git.HeadSHA(ctx, repoPath)
	if err != nil {
		return errorResult(fmt.Errorf("resolve HEAD: %w", err))
	}

	cfg := LoadRepoConfig(repoPath)
	all, err := ListFiles(repoPath, cfg)
	if err != nil {
		return errorResult(fmt.Errorf("list files: %w", err))
	}
	code, docPaths := Partition(all)

	if !u.opts.DryRun {
		if _, err := u.opts.Store.DeleteByRepo(ctx, repoID); err != nil {
			return errorResult(fmt.Errorf("delete repo documents: %w", err))
		}
		u.deleteCollection(ctx, repoID)
	}

	files, symbols := u.processFiles(ctx, repoID, repoPath, head, code)
	chunks := u.processDocFiles(ctx, repoID, repoPath, head, docPaths, false)

	if len(files) == 0 && len(chunks) == 0 {
		u.saveState(ctx, repoID, head)
		return core.UpdateResult{Status: core.StatusEmpty, Reason: "no_indexable_files", Commit: head}
	}

	modules, repoDoc := u.opts.Aggregator.Build(ctx, repoID, head, files)

	if err := u.persist(ctx, repoID, files, symbols, modules, repoDoc, chunks); err != nil {
		return errorResult(err)
	}
	u.saveState(ctx, repoID, head)

	return core.UpdateResult{
		Status:         core.StatusFullReingest,
		Reason:         reason,
		Commit:         head,
		FilesProcessed: len(files) + len(chunks),
	}
}

func (u *Updater) incremental(ctx context.Context, repoID, repoPath string, cs *core.ChangeSet) core.UpdateResult {
	if err := u.opts.Git.PullFFOnly(ctx, repoPath); err != nil {
		return errorResult(fmt.Errorf("pull: %w", err))
	}
	cfg := LoadRepoConfig(repoPath)

	deleted := 0
	for _, relPath := range cs.Deleted {
		if ShouldSkip(relPath, cfg) {
			continue
		}
		if !u.opts.DryRun {
			if _, err := u.opts.Store.DeleteByFile(ctx, repoID, relPath); err != nil {
				return errorResult(fmt.Errorf("delete documents of %s: %w", relPath, err))
			}
		}
		deleted++
	}

	var toProcess []string
	for _, relPath := range cs.FilesToProcess() {
		if !ShouldSkip(relPath, cfg) {
			toProcess = append(toProcess, relPath)
		}
	}
	code, docPaths := Partition(toProcess)

	// Old summaries and embeddings feed the significance gate after the new
	// documents are built.
	oldFiles := make(map[string]*core.FileIndex, len(code))
	for _, relPath := range code {
		if old, err := u.opts.Store.FileIndexByPath(ctx, repoID, relPath); err == nil {
			oldFiles[relPath] = old
		}
		if !u.opts.DryRun {
			if _, err := u.opts.Store.DeleteByFile(ctx, repoID, relPath); err != nil {
				return errorResult(fmt.Errorf("delete documents of %s: %w", relPath, err))
			}
		}
	}

	files, symbols := u.processFiles(ctx, repoID, repoPath, cs.NewCommit, code)
	chunks := u.processDocFiles(ctx, repoID, repoPath, cs.NewCommit, docPaths, true)

	anySignificant := false
	for i := range files {
		var oldSummary string
		var oldEmbedding []float32
		if old := oldFiles[files[i].FilePath]; old != nil {
			oldSummary = old.Content
			oldEmbedding = old.Embedding
		}
		diff := u.opts.Git.DiffForFile(ctx, repoPath, cs, files[i].FilePath)
		significant, reason := u.opts.Gate.IsSignificant(ctx, oldSummary, files[i].Content, diff, oldEmbedding)
		u.log.Debug("significance gate", "file", files[i].FilePath, "significant", significant, "reason", reason)
		if significant {
			anySignificant = true
		}
	}

	var modules []core.ModuleSummary
	var repoDoc *core.RepoSummary
	if anySignificant || deleted > 0 {
		merged, err := u.currentFileSet(ctx, repoID, files, cs.Deleted)
		if err != nil {
			return errorResult(err)
		}
		modules, repoDoc = u.opts.Aggregator.Build(ctx, repoID, cs.NewCommit, merged)
	} else {
		u.log.Debug("no significant changes, skipping ancestor regeneration", "repo", repoID)
	}

	if err := u.persist(ctx, repoID, files, symbols, modules, repoDoc, chunks); err != nil {
		return errorResult(err)
	}
	u.saveState(ctx, repoID, cs.NewCommit)

	return core.UpdateResult{
		Status:         core.StatusUpdated,
		Commit:         cs.NewCommit,
		FilesProcessed: len(files) + len(chunks),
		FilesDeleted:   deleted,
	}
}

// processFiles runs the file processor over the given paths with bounded
// concurrency. Per-file failures are recorded and do not abort the repo.
func (u *Updater) processFiles(ctx context.Context, repoID, repoPath, commit string, paths []string) ([]core.FileIndex, []core.SymbolIndex) {
	var mu sync.Mutex
	var files []core.FileIndex
	var symbols []core.SymbolIndex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.opts.MaxConcurrentFiles)
	for _, relPath := range paths {
		g.Go(func() error {
			file, fileSymbols, err := u.opts.Processor.ProcessFile(gctx, repoID, repoPath, relPath, commit)
			if err != nil {
				u.log.Warn("file processing failed", "repo", repoID, "file", relPath, "error", err)
				return nil
			}
			if file == nil {
				return nil
			}
			mu.Lock()
			files = append(files, *file)
			symbols = append(symbols, fileSymbols...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return files, symbols
}

// processDocFiles chunks documentation files read from the working tree.
func (u *Updater) processDocFiles(ctx context.Context, repoID, repoPath, commit string, paths []string, deleteFirst bool) []core.DocumentChunk {
	var chunks []core.DocumentChunk
	for _, relPath := range paths {
		if deleteFirst && !u.opts.DryRun {
			if _, err := u.opts.Store.DeleteByFile(ctx, repoID, relPath); err != nil {
				u.log.Warn("doc cleanup failed", "file", relPath, "error", err)
				continue
			}
		}
		data, err := os.ReadFile(filepath.Join(repoPath, relPath))
		if err != nil {
			u.log.Warn("doc file unreadable", "file", relPath, "error", err)
			continue
		}
		chunks = append(chunks, u.opts.Splitter.Split(repoID, relPath, commit, string(data))...)
	}
	return chunks
}

// currentFileSet merges the freshly-built file documents with the stored
// ones, dropping deleted paths, to drive aggregation over the whole repo.
func (u *Updater) currentFileSet(ctx context.Context, repoID string, fresh []core.FileIndex, deletedPaths []string) ([]core.FileIndex, error) {
	stored, err := u.opts.Store.FileIndexesForRepo(ctx, repoID)
	if err != nil {
		return nil, fmt.Errorf("load file documents: %w", err)
	}

	deleted := make(map[string]bool, len(deletedPaths))
	for _, p := range deletedPaths {
		deleted[p] = true
	}
	byPath := make(map[string]core.FileIndex, len(stored)+len(fresh))
	for _, f := range stored {
		if !deleted[f.FilePath] {
			byPath[f.FilePath] = f
		}
	}
	for _, f := range fresh {
		byPath[f.FilePath] = f
	}

	merged := make([]core.FileIndex, 0, len(byPath))
	for _, f := range byPath {
		merged = append(merged, f)
	}
	return merged, nil
}

func (u *Updater) saveState(ctx context.Context, repoID, commit string) {
	if u.opts.DryRun {
		return
	}
	err := u.opts.Store.SaveRepoState(ctx, store.RepoState{
		RepoID:     repoID,
		LastCommit: commit,
		Embedder:   u.opts.Embedder.ModelID(),
	})
	if err != nil {
		u.log.Error("failed to save repo state", "repo", repoID, "error", err)
	}
}

func (u *Updater) deleteCollection(ctx context.Context, repoID string) {
	if u.opts.Vectors == nil {
		return
	}
	name := store.CollectionName(repoID, u.opts.Embedder.ModelID())
	if err := u.opts.Vectors.DeleteCollection(ctx, name); err != nil {
		u.log.Warn("vector collection cleanup failed", "collection", name, "error", err)
	}
}

func errorResult(err error) core.UpdateResult {
	return core.UpdateResult{Status: core.StatusError, Error: err.Error()}
}
