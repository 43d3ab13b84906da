// Copyright 2025 Certen Protocol

package producer

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// CircuitBreakerError is returned by CircuitBreaker.Allow when a call is
// rejected, either by the rate limiter or by an open circuit.
type CircuitBreakerError struct {
	Name    string
	Message string
}

func (e *CircuitBreakerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// State is one of the three states a CircuitBreaker can be in.
type State string

const (
	// StateClosed allows calls through, subject only to the token bucket.
	StateClosed State = "closed"
	// StateOpen rejects every call until the backoff window elapses.
	StateOpen State = "open"
	// StateHalfOpen allows exactly one trial call through to test whether
	// the dependency has recovered.
	StateHalfOpen State = "half_open"
)

// CircuitBreaker pairs a token-bucket rate limiter with a three-state
// (closed -> open -> half_open) breaker tripped by repeated failures, one
// per external dependency (a venue, an upstream API). The token bucket
// bounds steady-state request rate; the breaker's state is independent of
// it and only reacts to success/failure outcomes.
type CircuitBreaker struct {
	name string

	mu            sync.Mutex
	limiter       *rate.Limiter
	state         State
	failures      int
	threshold     int
	baseDelay     time.Duration
	maxDelay      time.Duration
	blockedUntil  time.Time
	probeInFlight bool
}

// NewCircuitBreaker builds a breaker with a token bucket of the given
// capacity refilling at ratePerSecond, tripping open after
// failureThreshold consecutive failures.
func NewCircuitBreaker(name string, ratePerSecond float64, capacity int, failureThreshold int, baseDelay, maxDelay time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:      name,
		limiter:   rate.NewLimiter(rate.Limit(ratePerSecond), capacity),
		state:     StateClosed,
		threshold: failureThreshold,
		baseDelay: baseDelay,
		maxDelay:  maxDelay,
	}
}

// State reports the breaker's current state, resolving Open -> HalfOpen
// as a side effect once the backoff window has elapsed.
func (b *CircuitBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpenLocked(time.Now())
	return b.state
}

func (b *CircuitBreaker) maybeHalfOpenLocked(now time.Time) {
	if b.state == StateOpen && !now.Before(b.blockedUntil) {
		b.state = StateHalfOpen
		b.probeInFlight = false
	}
}

// Allow reports whether a call may proceed right now. Closed calls are
// gated only by the token bucket. Open calls are rejected outright.
// Half-open allows exactly one probe call through; concurrent callers are
// rejected until the probe resolves via RecordSuccess/RecordFailure.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.maybeHalfOpenLocked(now)

	switch b.state {
	case StateOpen:
		return &CircuitBreakerError{Name: b.name, Message: fmt.Sprintf("circuit open for %s", b.blockedUntil.Sub(now).Round(time.Millisecond))}
	case StateHalfOpen:
		if b.probeInFlight {
			return &CircuitBreakerError{Name: b.name, Message: "circuit half-open, probe in flight"}
		}
		b.probeInFlight = true
	}

	if !b.limiter.AllowN(now, 1) {
		if b.state == StateHalfOpen {
			b.probeInFlight = false
		}
		return &CircuitBreakerError{Name: b.name, Message: "rate limited"}
	}
	return nil
}

// RecordSuccess closes the circuit and resets the failure count.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.state = StateClosed
	b.blockedUntil = time.Time{}
	b.probeInFlight = false
}

// RecordFailure increments the failure count. A failure while half-open
// reopens the circuit immediately (the recovery probe failed); a failure
// while closed reopens it once the count reaches the threshold. Either
// way the backoff window grows exponentially with repeated trips.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probeInFlight = false
	b.failures++

	if b.state == StateHalfOpen || b.failures >= b.threshold {
		k := b.failures - b.threshold
		if k < 0 {
			k = 0
		}
		if k > 20 {
			k = 20
		}
		delay := b.baseDelay << k
		if delay > b.maxDelay || delay <= 0 {
			delay = b.maxDelay
		}
		b.state = StateOpen
		b.blockedUntil = time.Now().Add(delay)
	}
}
