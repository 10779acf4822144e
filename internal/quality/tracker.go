package quality

import (
	"sync"
	"sync/atomic"
	"time"
)

// Summary is a snapshot of the tracker's counters.
type Summary struct {
	RepoID           string        `json:"repo_id"`
	FilesProcessed   int64         `json:"files_processed"`
	FilesFailed      int64         `json:"files_failed"`
	FilesSkipped     int64         `json:"files_skipped"`
	SymbolsProcessed int64         `json:"symbols_processed"`
	ModulesCreated   int64         `json:"modules_created"`
	LLMCalls         int64         `json:"llm_calls"`
	LLMFailures      int64         `json:"llm_failures"`
	LLMTokens        int64         `json:"llm_tokens"`
	Embeddings       int64         `json:"embeddings"`
	Errors           []string      `json:"errors,omitempty"`
	Duration         time.Duration `json:"duration"`
	LLMAvailable     bool          `json:"llm_available"`
}

// Tracker accumulates per-run processing counters. All increments are safe
// for concurrent use; the circuit breaker state is shared with every LLM
// caller.
type Tracker struct {
	breaker *CircuitBreaker

	mu      sync.Mutex
	repoID  string
	started time.Time
	errors  []string

	filesProcessed   atomic.Int64
	filesFailed      atomic.Int64
	filesSkipped     atomic.Int64
	symbolsProcessed atomic.Int64
	modulesCreated   atomic.Int64
	llmCalls         atomic.Int64
	llmFailures      atomic.Int64
	llmTokens        atomic.Int64
	embeddings       atomic.Int64
}

// NewTracker returns a tracker wrapping the given breaker.
func NewTracker(breaker *CircuitBreaker) *Tracker {
	return &Tracker{breaker: breaker}
}

// Breaker exposes the shared circuit breaker.
func (t *Tracker) Breaker() *CircuitBreaker { return t.breaker }

// LLMAvailable is the cheap availability read used for quality snapshots and
// fallback hints. It never changes breaker state; call admission goes through
// AllowLLMCall.
func (t *Tracker) LLMAvailable() bool {
	return !t.breaker.IsOpen()
}

// AllowLLMCall asks the breaker to admit one call. After the reset timeout it
// half-opens the circuit and admits exactly one trial; concurrent callers are
// rejected until that trial reports its outcome through RecordLLMCall.
func (t *Tracker) AllowLLMCall() bool {
	return t.breaker.Allow()
}

// StartRun resets the per-repo counters and stamps the start time.
func (t *Tracker) StartRun(repoID string) {
	t.mu.Lock()
	t.repoID = repoID
	t.started = time.Now()
	t.errors = nil
	t.mu.Unlock()

	t.filesProcessed.Store(0)
	t.filesFailed.Store(0)
	t.filesSkipped.Store(0)
	t.symbolsProcessed.Store(0)
	t.modulesCreated.Store(0)
	t.llmCalls.Store(0)
	t.llmFailures.Store(0)
	t.llmTokens.Store(0)
	t.embeddings.Store(0)
}

// EndRun returns the final summary for the repo started with StartRun.
func (t *Tracker) EndRun() Summary {
	return t.Summary()
}

func (t *Tracker) RecordFileProcessed() { t.filesProcessed.Add(1) }
func (t *Tracker) RecordFileSkipped()   { t.filesSkipped.Add(1) }

// RecordFileFailed counts the failure and keeps the message for the run's
// error list.
func (t *Tracker) RecordFileFailed(msg string) {
	t.filesFailed.Add(1)
	t.mu.Lock()
	t.errors = append(t.errors, msg)
	t.mu.Unlock()
}

func (t *Tracker) RecordSymbolProcessed() { t.symbolsProcessed.Add(1) }
func (t *Tracker) RecordModuleCreated()   { t.modulesCreated.Add(1) }
func (t *Tracker) RecordEmbedding()       { t.embeddings.Add(1) }

// RecordLLMCall counts an attempt and feeds the circuit breaker.
func (t *Tracker) RecordLLMCall(success bool, tokens int) {
	t.llmCalls.Add(1)
	t.llmTokens.Add(int64(tokens))
	if success {
		t.breaker.RecordSuccess()
	} else {
		t.llmFailures.Add(1)
		t.breaker.RecordFailure()
	}
}

// Summary snapshots the counters without resetting them.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	repoID := t.repoID
	started := t.started
	errs := make([]string, len(t.errors))
	copy(errs, t.errors)
	t.mu.Unlock()

	var dur time.Duration
	if !started.IsZero() {
		dur = time.Since(started)
	}

	return Summary{
		RepoID:           repoID,
		FilesProcessed:   t.filesProcessed.Load(),
		FilesFailed:      t.filesFailed.Load(),
		FilesSkipped:     t.filesSkipped.Load(),
		SymbolsProcessed: t.symbolsProcessed.Load(),
		ModulesCreated:   t.modulesCreated.Load(),
		LLMCalls:         t.llmCalls.Load(),
		LLMFailures:      t.llmFailures.Load(),
		LLMTokens:        t.llmTokens.Load(),
		Embeddings:       t.embeddings.Load(),
		Errors:           errs,
		Duration:         dur,
		LLMAvailable:     t.LLMAvailable(),
	}
}
