// Package quality tracks per-run processing counters and guards LLM access
// with a consecutive-failure circuit breaker.
package quality

import (
	"sync"
	"time"
)

// breakerState is the classic three-state circuit.
type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// CircuitBreaker opens after a number of consecutive failures and, once the
// reset timeout has elapsed since the last failure, allows a single trial
// call. A successful trial closes the circuit; a failed one reopens it.
type CircuitBreaker struct {
	mu sync.Mutex

	failureThreshold int
	resetTimeout     time.Duration

	state       breakerState
	failures    int
	lastFailure time.Time

	now func() time.Time
}

// NewCircuitBreaker returns a closed breaker. A non-positive threshold
// defaults to 5; a non-positive reset timeout defaults to 5 minutes.
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 5 * time.Minute
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		now:              time.Now,
	}
}

// Allow reports whether a call may proceed. When the circuit is open and the
// reset timeout has passed, it half-opens and permits exactly one trial call.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case stateClosed:
		return true
	case stateHalfOpen:
		// One trial is already in flight.
		return false
	default:
		if cb.now().Sub(cb.lastFailure) >= cb.resetTimeout {
			cb.state = stateHalfOpen
			return true
		}
		return false
	}
}

// RecordSuccess closes the circuit and clears the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = stateClosed
	cb.failures = 0
}

// RecordFailure increments the consecutive-failure count and opens the
// circuit when the threshold is reached. A failed half-open trial reopens
// immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = cb.now()

	if cb.state == stateHalfOpen || cb.failures >= cb.failureThreshold {
		cb.state = stateOpen
	}
}

// IsOpen reports whether the circuit currently rejects calls.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == stateOpen && cb.now().Sub(cb.lastFailure) >= cb.resetTimeout {
		return false
	}
	return cb.state != stateClosed
}
