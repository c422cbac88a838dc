package montage

import (
	"errors"
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	// StateClosed indicates the circuit is closed (normal operation)
	StateClosed CircuitState = iota
	// StateOpen indicates the circuit is open (blocking playback attempts)
	StateOpen
	// StateHalfOpen indicates the circuit is letting one attempt through
	StateHalfOpen
)

// String returns the string representation of CircuitState
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen indicates the montage failed too often and playback is
// refused until the reset timeout elapses
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker stops a montage whose master clock keeps failing from being
// restarted in a tight loop
type CircuitBreaker struct {
	failureThreshold int
	resetTimeout     time.Duration
	now              func() time.Time
	state            CircuitState
	failures         int
	lastFailureTime  time.Time
	mu               sync.Mutex
}

// NewCircuitBreaker creates a new circuit breaker with the given threshold and reset timeout
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	return newCircuitBreaker(failureThreshold, resetTimeout, time.Now)
}

func newCircuitBreaker(failureThreshold int, resetTimeout time.Duration, now func() time.Time) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		now:              now,
		state:            StateClosed,
	}
}

// RecordSuccess records a successful start and closes the circuit
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.state = StateClosed
}

// RecordFailure records a failed playback. It reports true when this failure
// opened the circuit.
func (cb *CircuitBreaker) RecordFailure() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureTime = cb.now()

	// A failed half-open attempt re-opens immediately
	if cb.state == StateHalfOpen || cb.failures >= cb.failureThreshold {
		opened := cb.state != StateOpen
		cb.state = StateOpen
		return opened
	}
	return false
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stateLocked()
}

// stateLocked moves an expired open circuit to half-open (must hold lock)
func (cb *CircuitBreaker) stateLocked() CircuitState {
	if cb.state == StateOpen && cb.now().Sub(cb.lastFailureTime) >= cb.resetTimeout {
		cb.state = StateHalfOpen
		cb.failures = 0
	}
	return cb.state
}

// GetFailures returns the current failure count
func (cb *CircuitBreaker) GetFailures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// CanAttempt returns true if the circuit breaker allows a playback attempt
func (cb *CircuitBreaker) CanAttempt() bool {
	return cb.GetState() != StateOpen
}
