package gitutil

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/sevigo/code-atlas/internal/core"
)

// maxFileDiffChars bounds the per-file diff text handed to the significance
// gate.
const maxFileDiffChars = 2000

// DetectChanges fetches origin and classifies the files touched between the
// stored commit and the remote head of the default branch.
func (c *Client) DetectChanges(ctx context.Context, path, storedCommit string) (*core.ChangeSet, error) {
	if err := c.Fetch(ctx, path); err != nil {
		return nil, fmt.Errorf("fetch origin: %w", err)
	}

	branch := c.DefaultBranch(ctx, path)
	originHead, err := c.OriginHeadSHA(ctx, path, branch)
	if err != nil {
		return nil, fmt.Errorf("resolve origin/%s: %w", branch, err)
	}

	cs := &core.ChangeSet{OldCommit: storedCommit, NewCommit: originHead}
	if storedCommit == originHead {
		return cs, nil
	}

	out, err := c.run(ctx, path, "diff", "--name-status", storedCommit, originHead)
	if err != nil {
		return nil, fmt.Errorf("diff %s..%s: %w", core.Commit12(storedCommit), core.Commit12(originHead), err)
	}
	classifyNameStatus(out, cs)
	return cs, nil
}

// classifyNameStatus parses `git diff --name-status` output into the change
// set. Renames split into a delete of the old path plus an add of the new
// one; copies become an add.
func classifyNameStatus(out string, cs *core.ChangeSet) {
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		status := fields[0]
		switch {
		case strings.HasPrefix(status, "A"):
			cs.Added = append(cs.Added, fields[1])
		case strings.HasPrefix(status, "M"):
			cs.Modified = append(cs.Modified, fields[1])
		case strings.HasPrefix(status, "D"):
			cs.Deleted = append(cs.Deleted, fields[1])
		case strings.HasPrefix(status, "R"):
			if len(fields) >= 3 {
				cs.Deleted = append(cs.Deleted, fields[1])
				cs.Added = append(cs.Added, fields[2])
			}
		case strings.HasPrefix(status, "C"):
			if len(fields) >= 3 {
				cs.Added = append(cs.Added, fields[2])
			}
		}
	}
}

// ChangeRatio computes total_changed / existing_file_count at the stored
// commit. A repo with no countable files reports 1.0 so the threshold policy
// falls back to a full re-ingest.
func (c *Client) ChangeRatio(path string, cs *core.ChangeSet) float64 {
	if cs.Empty() {
		return 0
	}
	count, err := c.FileCountAtCommit(path, cs.OldCommit)
	if err != nil || count == 0 {
		c.logger.Warn("could not count files at stored commit", "path", path, "error", err)
		return 1.0
	}
	return float64(cs.TotalChanged()) / float64(count)
}

// DiffForFile fetches the bounded per-file diff text for the significance
// gate.
func (c *Client) DiffForFile(ctx context.Context, path string, cs *core.ChangeSet, relPath string) string {
	diff, err := c.FileDiff(ctx, path, cs.OldCommit, cs.NewCommit, relPath, maxFileDiffChars)
	if err != nil {
		c.logger.Debug("per-file diff unavailable", "file", relPath, "error", err)
		return ""
	}
	return diff
}
