package memory

import (
	"sync"
	"time"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// CircuitBreaker is a three-state gate guarding embedding calls:
// closed (normal), open (short-circuiting), half-open (single probe
// admitted after cooldown).
type CircuitBreaker struct {
	failureThreshold int
	cooldown         time.Duration

	mu               sync.Mutex
	state            breakerState
	consecutiveFails int
	openedAt         time.Time
	probeInFlight    bool
}

// NewCircuitBreaker builds a breaker that opens after failureThreshold
// consecutive failures and offers one probe per cooldown window.
func NewCircuitBreaker(failureThreshold int, cooldown time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	return &CircuitBreaker{failureThreshold: failureThreshold, cooldown: cooldown}
}

// Allow reports whether a call may proceed. Constant-time. In the open
// state, exactly one caller per cooldown window is admitted as a probe.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		return true
	case breakerHalfOpen:
		return !b.probeInFlight
	case breakerOpen:
		if time.Since(b.openedAt) < b.cooldown {
			return false
		}
		if b.probeInFlight {
			return false
		}
		b.state = breakerHalfOpen
		b.probeInFlight = true
		return true
	default:
		return true
	}
}

// RecordSuccess closes the breaker and resets its failure count.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = breakerClosed
	b.consecutiveFails = 0
	b.probeInFlight = false
}

// RecordFailure increments the consecutive-failure count, opening the
// breaker once the threshold is reached (or immediately, on a failed probe).
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == breakerHalfOpen {
		b.state = breakerOpen
		b.openedAt = time.Now()
		b.probeInFlight = false
		return
	}

	b.consecutiveFails++
	if b.consecutiveFails >= b.failureThreshold {
		b.state = breakerOpen
		b.openedAt = time.Now()
	}
}

// IsOpen reports whether the breaker is currently short-circuiting calls.
func (b *CircuitBreaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == breakerOpen && time.Since(b.openedAt) < b.cooldown
}
