package quality

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(threshold int, reset time.Duration) (*CircuitBreaker, *time.Time) {
	cb := NewCircuitBreaker(threshold, reset)
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return now }
	return cb, &now
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	assert.True(t, cb.Allow(), "two failures should not open a threshold-3 breaker")

	cb.RecordFailure()
	assert.False(t, cb.Allow())
	assert.True(t, cb.IsOpen())
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	assert.True(t, cb.Allow(), "count must reset on success")
}

func TestBreakerHalfOpenTrial(t *testing.T) {
	cb, now := newTestBreaker(2, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	require.False(t, cb.Allow())

	// After the reset timeout exactly one trial call is permitted.
	*now = now.Add(61 * time.Second)
	assert.True(t, cb.Allow())
	assert.False(t, cb.Allow(), "only one half-open trial at a time")

	// A failed trial reopens immediately.
	cb.RecordFailure()
	assert.False(t, cb.Allow())

	// A successful trial closes the circuit.
	*now = now.Add(61 * time.Second)
	require.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.True(t, cb.Allow())
	assert.False(t, cb.IsOpen())
}

func TestTrackerCountersAreConcurrencySafe(t *testing.T) {
	tr := NewTracker(NewCircuitBreaker(5, time.Minute))
	tr.StartRun("acme/widget")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				tr.RecordFileProcessed()
				tr.RecordSymbolProcessed()
				tr.RecordLLMCall(true, 10)
				tr.RecordEmbedding()
			}
		}()
	}
	wg.Wait()

	sum := tr.EndRun()
	assert.Equal(t, int64(800), sum.FilesProcessed)
	assert.Equal(t, int64(800), sum.SymbolsProcessed)
	assert.Equal(t, int64(800), sum.LLMCalls)
	assert.Equal(t, int64(8000), sum.LLMTokens)
	assert.True(t, sum.LLMAvailable)
}

func TestTrackerAdmitsSingleTrialAfterResetTimeout(t *testing.T) {
	cb, now := newTestBreaker(2, time.Minute)
	tr := NewTracker(cb)
	tr.StartRun("acme/widget")

	tr.RecordLLMCall(false, 0)
	tr.RecordLLMCall(false, 0)
	require.False(t, tr.AllowLLMCall())
	require.False(t, tr.LLMAvailable())

	// Past the reset timeout the availability read turns true, but only one
	// caller gets admitted; the rest fall back until the trial resolves.
	*now = now.Add(61 * time.Second)
	assert.True(t, tr.LLMAvailable())
	assert.True(t, tr.AllowLLMCall())
	assert.False(t, tr.AllowLLMCall())
	assert.False(t, tr.AllowLLMCall())
	assert.False(t, tr.LLMAvailable())

	// A successful trial closes the circuit for everyone.
	tr.RecordLLMCall(true, 10)
	assert.True(t, tr.AllowLLMCall())
	assert.True(t, tr.LLMAvailable())
}

func TestTrackerFailedTrialReopensBreaker(t *testing.T) {
	cb, now := newTestBreaker(2, time.Minute)
	tr := NewTracker(cb)
	tr.StartRun("acme/widget")

	tr.RecordLLMCall(false, 0)
	tr.RecordLLMCall(false, 0)
	*now = now.Add(61 * time.Second)
	require.True(t, tr.AllowLLMCall())

	tr.RecordLLMCall(false, 0)
	assert.False(t, tr.AllowLLMCall())
	assert.False(t, tr.LLMAvailable())
}

func TestTrackerLLMFailuresOpenBreaker(t *testing.T) {
	tr := NewTracker(NewCircuitBreaker(3, time.Minute))
	tr.StartRun("acme/widget")

	for range 3 {
		tr.RecordLLMCall(false, 0)
	}

	assert.False(t, tr.LLMAvailable())
	assert.Equal(t, int64(3), tr.Summary().LLMFailures)
}
