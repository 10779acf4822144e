// Package gitutil provides a client for working with Git repositories. All
// mutating operations shell out to the git CLI with interactive prompts
// disabled; read-only tree inspection goes through go-git.
package gitutil

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Client handles interacting with Git repositories.
type Client struct {
	logger *slog.Logger
}

// NewClient returns a new Client instance.
func NewClient(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{logger: logger}
}

// noPromptEnv prevents any git invocation from blocking on credential input.
func noPromptEnv() []string {
	return append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "GIT_ASKPASS=echo")
}

// run executes git with the given arguments inside dir and returns trimmed
// stdout+stderr.
func (c *Client) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = noPromptEnv()
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// runRaw executes git and returns stdout exactly as produced, with stderr
// kept out of the result. File content must not be trimmed: leading blank
// lines shift every parsed symbol's line numbers.
func (c *Client) runRaw(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = noPromptEnv()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(stderr.String()), err)
	}
	return stdout.String(), nil
}

// AuthenticatedURL rewrites an https GitHub URL to carry the token as the
// x-access-token credential. The token is URL-escaped. Non-URL inputs (local
// paths) pass through unchanged.
func AuthenticatedURL(repoURL, token string) (string, error) {
	if token == "" || !strings.Contains(repoURL, "://") {
		return repoURL, nil
	}
	if !strings.HasPrefix(repoURL, "https://") && !strings.HasPrefix(repoURL, "http://") {
		return "", fmt.Errorf("invalid repository URL: %s", repoURL)
	}
	parsed, err := url.Parse(repoURL)
	if err != nil {
		return "", fmt.Errorf("parse repository URL %q: %w", repoURL, err)
	}
	parsed.User = url.UserPassword("x-access-token", token)
	return parsed.String(), nil
}

// Clone performs a shallow clone of repoURL into path.
func (c *Client) Clone(ctx context.Context, repoURL, path, token string) error {
	authURL, err := AuthenticatedURL(repoURL, token)
	if err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "cloning repository", "url", repoURL, "path", path)
	if _, err := c.run(ctx, "", "clone", "--depth", "1", authURL, path); err != nil {
		return err
	}
	return nil
}

// Fetch updates the origin remote.
func (c *Client) Fetch(ctx context.Context, path string) error {
	_, err := c.run(ctx, path, "fetch", "origin")
	return err
}

// PullFFOnly fast-forwards the working tree to origin. Used by the
// incremental path before re-reading files.
func (c *Client) PullFFOnly(ctx context.Context, path string) error {
	_, err := c.run(ctx, path, "pull", "--ff-only")
	return err
}

// HeadSHA returns the current HEAD commit of the repository at path.
func (c *Client) HeadSHA(ctx context.Context, path string) (string, error) {
	return c.run(ctx, path, "rev-parse", "HEAD")
}

// OriginHeadSHA returns the commit origin/<branch> points at.
func (c *Client) OriginHeadSHA(ctx context.Context, path, branch string) (string, error) {
	return c.run(ctx, path, "rev-parse", "origin/"+branch)
}

// DefaultBranch discovers the remote default branch via the origin HEAD
// symbolic ref, falling back to main and then master.
func (c *Client) DefaultBranch(ctx context.Context, path string) string {
	out, err := c.run(ctx, path, "symbolic-ref", "refs/remotes/origin/HEAD")
	if err == nil {
		if branch, ok := strings.CutPrefix(out, "refs/remotes/origin/"); ok && branch != "" {
			return branch
		}
	}
	for _, candidate := range []string{"main", "master"} {
		if _, err := c.run(ctx, path, "rev-parse", "origin/"+candidate); err == nil {
			return candidate
		}
	}
	return "main"
}

// ShowFile returns the content of relPath at the given commit. The full hash
// is tried first, then its 12-character form.
func (c *Client) ShowFile(ctx context.Context, path, commit, relPath string) (string, error) {
	out, err := c.runRaw(ctx, path, "show", commit+":"+relPath)
	if err == nil {
		return out, nil
	}
	if short := commit; len(short) > 12 {
		if out, retryErr := c.runRaw(ctx, path, "show", short[:12]+":"+relPath); retryErr == nil {
			return out, nil
		}
	}
	return "", err
}

// FileDiff returns the unified diff of one file between two commits,
// truncated to maxLen bytes.
func (c *Client) FileDiff(ctx context.Context, path, oldSHA, newSHA, relPath string, maxLen int) (string, error) {
	out, err := c.run(ctx, path, "diff", oldSHA, newSHA, "--", relPath)
	if err != nil {
		return "", err
	}
	if maxLen > 0 && len(out) > maxLen {
		out = out[:maxLen]
	}
	return out, nil
}

// FileCountAtCommit counts the files present in the repository tree at the
// given commit using go-git, without touching the working tree.
func (c *Client) FileCountAtCommit(path, commit string) (int, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return 0, fmt.Errorf("open repository at %s: %w", path, err)
	}
	commitObj, err := repo.CommitObject(plumbing.NewHash(commit))
	if err != nil {
		return 0, fmt.Errorf("resolve commit %s: %w", commit, err)
	}
	tree, err := commitObj.Tree()
	if err != nil {
		return 0, fmt.Errorf("read tree for %s: %w", commit, err)
	}
	count := 0
	if err := tree.Files().ForEach(func(*object.File) error {
		count++
		return nil
	}); err != nil {
		return 0, err
	}
	return count, nil
}
