package runner

import (
	"bufio"
	"context"
	"os"
	"sort"
	"strings"

	"github.com/sevigo/code-atlas/internal/github"
)

// CanonicalRepo is one entry of the canonical set.
type CanonicalRepo struct {
	ID       string
	CloneURL string
}

// canonicalSet resolves the authoritative repository list, in order of
// preference: GitHub API, the repos file, the directory listing on disk.
func (r *Runner) canonicalSet(ctx context.Context) []CanonicalRepo {
	if r.opts.GitHub != nil {
		repos, err := r.opts.GitHub.ListOwnRepos(ctx)
		if err != nil {
			r.log.Warn("GitHub listing failed, falling back to repos file", "error", err)
		} else if len(repos) > 0 {
			return fromGitHub(repos)
		}
	}

	if r.opts.ReposFile != "" {
		if repos := readReposFile(r.opts.ReposFile); len(repos) > 0 {
			r.log.Info("canonical set from repos file", "path", r.opts.ReposFile, "count", len(repos))
			return repos
		}
	}

	repos := r.diskListing()
	r.log.Info("canonical set from disk listing", "count", len(repos))
	return repos
}

func fromGitHub(repos []github.Repo) []CanonicalRepo {
	out := make([]CanonicalRepo, 0, len(repos))
	for _, repo := range repos {
		if repo.Archived {
			continue
		}
		out = append(out, CanonicalRepo{ID: repo.ID, CloneURL: repo.CloneURL})
	}
	return out
}

// readReposFile parses the newline-delimited repos file; `#` starts a
// comment.
func readReposFile(path string) []CanonicalRepo {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var repos []CanonicalRepo
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		repos = append(repos, CanonicalRepo{ID: line, CloneURL: defaultCloneURL(line)})
	}
	return repos
}

// diskListing derives the canonical set from the working-copy directories.
func (r *Runner) diskListing() []CanonicalRepo {
	var repos []CanonicalRepo
	for dir := range r.reposOnDisk() {
		id := repoIDFromDir(dir)
		repos = append(repos, CanonicalRepo{ID: id, CloneURL: defaultCloneURL(id)})
	}
	sort.Slice(repos, func(i, j int) bool { return repos[i].ID < repos[j].ID })
	return repos
}

// reposOnDisk lists the repo directory names under the repos path.
func (r *Runner) reposOnDisk() map[string]bool {
	onDisk := make(map[string]bool)
	entries, err := os.ReadDir(r.opts.ReposPath)
	if err != nil {
		return onDisk
	}
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			onDisk[entry.Name()] = true
		}
	}
	return onDisk
}

// dirName maps "owner/name" to the on-disk directory "owner_name".
func dirName(repoID string) string {
	return strings.ReplaceAll(repoID, "/", "_")
}

// repoIDFromDir inverts dirName; underscores beyond the first belong to the
// repository name.
func repoIDFromDir(dir string) string {
	parts := strings.SplitN(dir, "_", 2)
	if len(parts) != 2 {
		return dir
	}
	return parts[0] + "/" + parts[1]
}

func defaultCloneURL(repoID string) string {
	return "https://github.com/" + repoID + ".git"
}
