// Package runner is the run driver: it serializes runs behind a host-wide
// lock, reconciles the canonical repository set against disk and store,
// dispatches the per-repo updater and finalizes the run record.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/sevigo/code-atlas/internal/core"
	"github.com/sevigo/code-atlas/internal/github"
	"github.com/sevigo/code-atlas/internal/store"
)

// Cloner clones new repositories. *gitutil.Client satisfies it.
type Cloner interface {
	Clone(ctx context.Context, repoURL, path, token string) error
}

// RepoUpdater processes one repository. *updater.Updater satisfies it.
type RepoUpdater interface {
	UpdateRepo(ctx context.Context, repoID, repoPath string) core.UpdateResult
}

// Dashboard regenerates the KPI page. *kpi.Generator satisfies it.
type Dashboard interface {
	Generate(ctx context.Context) error
}

// Options wires a Runner.
type Options struct {
	Store     store.Store
	Vectors   store.VectorStore
	Updater   RepoUpdater
	Git       Cloner
	GitHub    github.Client
	Dashboard Dashboard
	Logger    *slog.Logger

	ReposPath     string
	ReposFile     string
	LockPath      string
	GitHubToken   string
	ExcludedRepos []string
	EmbedderID    string

	RepoFilter string
	Trigger    core.Trigger
	DryRun     bool

	// RunID, when set, names the run; otherwise one is generated. The CLI
	// passes it so the run log file and the run record share the id.
	RunID string
}

// Runner executes one driver invocation.
type Runner struct {
	opts Options
	log  *slog.Logger
}

func New(opts Options) *Runner {
	if opts.Trigger == "" {
		opts.Trigger = core.TriggerManual
	}
	return &Runner{
		opts: opts,
		log:  opts.Logger.With("component", "runner"),
	}
}

// NewRunID builds a sortable run identifier with a random suffix.
func NewRunID(now time.Time) string {
	return now.UTC().Format("20060102-150405") + "-" + uuid.NewString()[:8]
}

// Run executes the full driver sequence. The only returned error is the
// lock failure; everything else is recorded on the run.
func (r *Runner) Run(ctx context.Context) (*core.IngestionRun, error) {
	lock, err := AcquireLock(r.opts.LockPath)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	runID := r.opts.RunID
	if runID == "" {
		runID = NewRunID(time.Now())
	}
	run := &core.IngestionRun{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		Trigger:   r.opts.Trigger,
		DryRun:    r.opts.DryRun,
		Repos:     make(map[string]core.UpdateResult),
	}
	r.log.Info("run started", "run_id", run.RunID, "trigger", run.Trigger, "dry_run", run.DryRun)

	canonical := r.canonicalSet(ctx)
	if r.opts.RepoFilter != "" {
		canonical = filterCanonical(canonical, r.opts.RepoFilter)
	}

	canonicalIDs := make(map[string]bool, len(canonical))
	for _, repo := range canonical {
		canonicalIDs[repo.ID] = true
	}
	onDisk := r.reposOnDisk()
	excluded := make(map[string]bool, len(r.opts.ExcludedRepos))
	for _, id := range r.opts.ExcludedRepos {
		excluded[id] = true
	}

	r.cloneNewRepos(ctx, run, canonical, onDisk, excluded)
	r.removeOrphans(ctx, run, canonicalIDs)

	for _, repo := range canonical {
		if ctx.Err() != nil {
			r.log.Warn("run interrupted", "run_id", run.RunID)
			break
		}
		if excluded[repo.ID] {
			run.Record(core.UpdateResult{RepoID: repo.ID, Status: core.StatusExcluded})
			continue
		}
		dir := dirName(repo.ID)
		if !onDisk[dir] {
			// Clone failed or was skipped in a dry run; already recorded.
			continue
		}
		res := r.opts.Updater.UpdateRepo(ctx, repo.ID, filepath.Join(r.opts.ReposPath, dir))
		run.Record(res)
	}

	run.CompletedAt = time.Now().UTC()
	run.Counters.DurationSecs = run.CompletedAt.Sub(run.StartedAt).Seconds()
	run.Status = finalStatus(ctx, run)
	r.finalize(ctx, run)

	r.log.Info("run finished",
		"run_id", run.RunID,
		"status", run.Status,
		"processed", run.Counters.Processed,
		"updated", run.Counters.Updated,
		"full_reingest", run.Counters.FullReingest,
		"errors", run.Counters.Errors)
	return run, nil
}

func (r *Runner) cloneNewRepos(ctx context.Context, run *core.IngestionRun, canonical []CanonicalRepo, onDisk, excluded map[string]bool) {
	for _, repo := range canonical {
		dir := dirName(repo.ID)
		if onDisk[dir] || excluded[repo.ID] {
			continue
		}
		if r.opts.DryRun {
			r.log.Info("dry run, would clone", "repo", repo.ID)
			run.Record(core.UpdateResult{RepoID: repo.ID, Status: core.StatusSkipped, Reason: "dry_run_clone"})
			continue
		}
		target := filepath.Join(r.opts.ReposPath, dir)
		if err := r.opts.Git.Clone(ctx, repo.CloneURL, target, r.opts.GitHubToken); err != nil {
			r.log.Error("clone failed", "repo", repo.ID, "error", err)
			run.Record(core.UpdateResult{RepoID: repo.ID, Status: core.StatusError, Error: fmt.Sprintf("clone: %v", err)})
			continue
		}
		run.Counters.Cloned++
		onDisk[dir] = true
	}
}

// removeOrphans deletes every document of repos that left the canonical set,
// along with their vector collection and working copy.
func (r *Runner) removeOrphans(ctx context.Context, run *core.IngestionRun, canonicalIDs map[string]bool) {
	inStore, err := r.opts.Store.RepoIDs(ctx)
	if err != nil {
		r.log.Warn("could not list stored repos for orphan cleanup", "error", err)
		return
	}

	for _, repoID := range inStore {
		if canonicalIDs[repoID] {
			continue
		}
		if r.opts.DryRun {
			r.log.Info("dry run, would delete orphaned repo", "repo", repoID)
			run.Record(core.UpdateResult{RepoID: repoID, Status: core.StatusSkipped, Reason: "dry_run_orphan"})
			continue
		}

		deleted, err := r.opts.Store.DeleteByRepo(ctx, repoID)
		if err != nil {
			run.Record(core.UpdateResult{RepoID: repoID, Status: core.StatusError, Error: fmt.Sprintf("orphan cleanup: %v", err)})
			continue
		}
		if err := r.opts.Store.DeleteRepoState(ctx, repoID); err != nil {
			r.log.Warn("orphan state cleanup failed", "repo", repoID, "error", err)
		}
		if r.opts.Vectors != nil {
			name := store.CollectionName(repoID, r.opts.EmbedderID)
			if err := r.opts.Vectors.DeleteCollection(ctx, name); err != nil {
				r.log.Warn("orphan vector cleanup failed", "collection", name, "error", err)
			}
		}
		if err := os.RemoveAll(filepath.Join(r.opts.ReposPath, dirName(repoID))); err != nil {
			r.log.Warn("orphan working copy removal failed", "repo", repoID, "error", err)
		}

		r.log.Info("orphaned repo removed", "repo", repoID, "documents", deleted)
		run.Record(core.UpdateResult{RepoID: repoID, Status: core.StatusDeleted, FilesDeleted: int(deleted)})
	}
}

// finalize writes the run record and regenerates the dashboard. Both are
// best-effort and survive cancellation of the run context.
func (r *Runner) finalize(ctx context.Context, run *core.IngestionRun) {
	ctx = context.WithoutCancel(ctx)
	if err := r.opts.Store.SaveRun(ctx, *run); err != nil {
		r.log.Error("failed to save run record", "run_id", run.RunID, "error", err)
	}
	if r.opts.Dashboard != nil {
		if err := r.opts.Dashboard.Generate(ctx); err != nil {
			r.log.Warn("dashboard generation failed", "error", err)
		}
	}
}

func finalStatus(ctx context.Context, run *core.IngestionRun) core.RunStatus {
	if ctx.Err() != nil {
		return core.RunInterrupted
	}
	if run.Counters.Processed > 0 && run.Counters.Errors == run.Counters.Processed {
		return core.RunFailed
	}
	return core.RunCompleted
}

func filterCanonical(canonical []CanonicalRepo, repoID string) []CanonicalRepo {
	for _, repo := range canonical {
		if repo.ID == repoID {
			return []CanonicalRepo{repo}
		}
	}
	// Allow targeting a repo that is on disk but absent from the canonical
	// source.
	return []CanonicalRepo{{ID: repoID, CloneURL: defaultCloneURL(repoID)}}
}
