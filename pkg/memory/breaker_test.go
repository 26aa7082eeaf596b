package memory

import (
	"testing"
	"time"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewCircuitBreaker(2, 100*time.Millisecond)

	if !b.Allow() {
		t.Fatal("expected breaker to allow calls while closed")
	}
	b.RecordFailure()
	if !b.Allow() {
		t.Fatal("expected breaker to still allow after 1 failure")
	}
	b.RecordFailure()
	if b.Allow() {
		t.Fatal("expected breaker to deny after reaching failure_threshold")
	}
}

func TestBreakerHalfOpenProbeThenClose(t *testing.T) {
	b := NewCircuitBreaker(1, 30*time.Millisecond)
	b.RecordFailure()
	if b.Allow() {
		t.Fatal("expected breaker open immediately after threshold")
	}

	time.Sleep(40 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("expected a single probe to be admitted after cooldown")
	}
	if b.Allow() {
		t.Fatal("expected no second probe while first is in flight")
	}

	b.RecordSuccess()
	if !b.Allow() {
		t.Fatal("expected breaker closed after a successful probe")
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewCircuitBreaker(1, 20*time.Millisecond)
	b.RecordFailure()
	time.Sleep(30 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("expected probe to be admitted")
	}
	b.RecordFailure()
	if b.Allow() {
		t.Fatal("expected breaker to reopen immediately after a failed probe")
	}
}
