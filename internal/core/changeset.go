package core

// ChangeSet classifies the files touched between two commits.
type ChangeSet struct {
	OldCommit string
	NewCommit string

	Added    []string
	Modified []string
	Deleted  []string
}

// FilesToProcess returns added ∪ modified, the set of files that need
// re-processing.
func (c *ChangeSet) FilesToProcess() []string {
	out := make([]string, 0, len(c.Added)+len(c.Modified))
	out = append(out, c.Added...)
	out = append(out, c.Modified...)
	return out
}

// TotalChanged is |added| + |modified| + |deleted|.
func (c *ChangeSet) TotalChanged() int {
	return len(c.Added) + len(c.Modified) + len(c.Deleted)
}

// Empty reports whether the change set touches no files.
func (c *ChangeSet) Empty() bool {
	return c.TotalChanged() == 0
}
