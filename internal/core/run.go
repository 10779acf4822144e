package core

import "time"

// RepoStatus is the per-repo outcome of one driver run.
type RepoStatus string

const (
	StatusSkipped      RepoStatus = "skipped"
	StatusExcluded     RepoStatus = "excluded"
	StatusEmpty        RepoStatus = "empty"
	StatusFullReingest RepoStatus = "full_reingest"
	StatusUpdated      RepoStatus = "updated"
	StatusDeleted      RepoStatus = "deleted"
	StatusError        RepoStatus = "error"
)

// Trigger identifies what started a run.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
	TriggerWebhook   Trigger = "webhook"
)

// RunStatus is the overall outcome of a driver invocation.
type RunStatus string

const (
	RunCompleted   RunStatus = "completed"
	RunFailed      RunStatus = "failed"
	RunInterrupted RunStatus = "interrupted"
)

// UpdateResult is the outcome of processing one repository.
type UpdateResult struct {
	RepoID         string        `json:"repo_id"`
	Status         RepoStatus    `json:"status"`
	Reason         string        `json:"reason,omitempty"`
	Commit         string        `json:"commit,omitempty"`
	FilesProcessed int           `json:"files_processed"`
	FilesDeleted   int           `json:"files_deleted"`
	Duration       time.Duration `json:"duration"`
	Error          string        `json:"error,omitempty"`
}

// RunCounters aggregates per-repo outcomes for the run record.
type RunCounters struct {
	Processed      int     `json:"processed"`
	Skipped        int     `json:"skipped"`
	Excluded       int     `json:"excluded"`
	Updated        int     `json:"updated"`
	FullReingest   int     `json:"full_reingest"`
	Empty          int     `json:"empty"`
	Cloned         int     `json:"cloned"`
	Deleted        int     `json:"deleted"`
	Errors         int     `json:"error"`
	FilesProcessed int     `json:"files_processed"`
	FilesDeleted   int     `json:"files_deleted"`
	DurationSecs   float64 `json:"duration_seconds"`
}

// IngestionRun is the run-history document written once per driver
// invocation.
type IngestionRun struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Trigger     Trigger   `json:"trigger"`
	DryRun      bool      `json:"dry_run"`
	Status      RunStatus `json:"status"`

	Counters RunCounters             `json:"counters"`
	Errors   []string                `json:"errors,omitempty"`
	Repos    map[string]UpdateResult `json:"repos"`
}

// Record folds one per-repo result into the run's counters and repo map.
func (r *IngestionRun) Record(res UpdateResult) {
	if r.Repos == nil {
		r.Repos = make(map[string]UpdateResult)
	}
	r.Repos[res.RepoID] = res

	r.Counters.Processed++
	r.Counters.FilesProcessed += res.FilesProcessed
	r.Counters.FilesDeleted += res.FilesDeleted

	switch res.Status {
	case StatusSkipped:
		r.Counters.Skipped++
	case StatusExcluded:
		r.Counters.Excluded++
	case StatusEmpty:
		r.Counters.Empty++
	case StatusFullReingest:
		r.Counters.FullReingest++
	case StatusUpdated:
		r.Counters.Updated++
	case StatusDeleted:
		r.Counters.Deleted++
	case StatusError:
		r.Counters.Errors++
		if res.Error != "" {
			r.Errors = append(r.Errors, res.RepoID+": "+res.Error)
		}
	}
}
