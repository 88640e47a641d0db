package vectorstore

import (
	"fmt"
	"time"
)

// BreakerState is the circuit breaker position.
type BreakerState int

// Breaker states. Initial state is CLOSED; there is no terminal state, the
// breaker cycles for the lifetime of the process.
const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

// String returns the conventional upper-case state name.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "CLOSED"
	case BreakerOpen:
		return "OPEN"
	case BreakerHalfOpen:
		return "HALF_OPEN"
	default:
		return fmt.Sprintf("BreakerState(%d)", int(s))
	}
}

// BreakerEvent is an observation fed into the breaker: the outcome of one
// store operation.
type BreakerEvent int

// Breaker events.
const (
	EventSuccess BreakerEvent = iota
	EventFailure
)

// BreakerSettings holds the breaker tuning knobs.
type BreakerSettings struct {
	// FailureThreshold is the consecutive-failure count that trips the
	// breaker from CLOSED to OPEN. Default: 5.
	FailureThreshold int

	// ResetTimeout is how long the breaker stays OPEN before admitting a
	// single trial operation. Default: 60s.
	ResetTimeout time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (s *BreakerSettings) ApplyDefaults() {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 5
	}
	if s.ResetTimeout == 0 {
		s.ResetTimeout = 60 * time.Second
	}
}

// Validate validates the settings.
func (s BreakerSettings) Validate() error {
	if s.FailureThreshold <= 0 {
		return fmt.Errorf("%w: breaker failure threshold must be positive, got %d", ErrInvalidConfig, s.FailureThreshold)
	}
	if s.ResetTimeout <= 0 {
		return fmt.Errorf("%w: breaker reset timeout must be positive, got %s", ErrInvalidConfig, s.ResetTimeout)
	}
	return nil
}

// Breaker is a value snapshot of circuit-breaker state. It is immutable:
// NextBreaker and AllowBreaker return the successor state instead of
// mutating. The ConnectionManager owns the current value under its mutex;
// everything here is pure and tested without I/O.
type Breaker struct {
	State        BreakerState
	FailureCount int
	LastFailure  time.Time
}

// NextBreaker returns the breaker after observing ev at time now.
//
// Transition table:
//
//	CLOSED    --(failureCount >= threshold)--> OPEN
//	HALF_OPEN --(trial fails)----------------> OPEN
//	HALF_OPEN --(trial succeeds)-------------> CLOSED
//	any state --(success)--------------------> failureCount = 0
//
// The OPEN --(resetTimeout elapsed)--> HALF_OPEN edge lives in AllowBreaker
// because it is driven by the clock at admission time, not by an operation
// outcome.
func NextBreaker(b Breaker, ev BreakerEvent, now time.Time, s BreakerSettings) Breaker {
	switch ev {
	case EventSuccess:
		if b.State == BreakerOpen {
			// A straggler dispatched before the trip finished successfully.
			// Reset the count but stay OPEN; recovery is proven by the
			// HALF_OPEN trial, not by in-flight leftovers.
			return Breaker{State: BreakerOpen, LastFailure: b.LastFailure}
		}
		return Breaker{State: BreakerClosed}
	case EventFailure:
		next := Breaker{
			State:        b.State,
			FailureCount: b.FailureCount + 1,
			LastFailure:  now,
		}
		if b.State == BreakerHalfOpen || next.FailureCount >= s.FailureThreshold {
			next.State = BreakerOpen
		}
		return next
	default:
		return b
	}
}

// AllowBreaker reports whether an operation may proceed at time now, along
// with the successor state.
//
// CLOSED always admits. OPEN denies until ResetTimeout has elapsed since the
// last failure, then transitions to HALF_OPEN and admits exactly the caller
// that performed the transition as the single trial. HALF_OPEN denies because
// the trial is already in flight.
func AllowBreaker(b Breaker, now time.Time, s BreakerSettings) (Breaker, bool) {
	switch b.State {
	case BreakerClosed:
		return b, true
	case BreakerOpen:
		if now.Sub(b.LastFailure) >= s.ResetTimeout {
			b.State = BreakerHalfOpen
			return b, true
		}
		return b, false
	case BreakerHalfOpen:
		return b, false
	default:
		return b, false
	}
}

// BreakerSnapshot is the breaker portion of health and stats payloads.
type BreakerSnapshot struct {
	State            string     `json:"state"`
	FailureCount     int        `json:"failureCount"`
	FailureThreshold int        `json:"failureThreshold"`
	ResetTimeoutMS   int64      `json:"resetTimeoutMs"`
	LastFailure      *time.Time `json:"lastFailure,omitempty"`
}

// snapshotBreaker renders a breaker value for reporting.
func snapshotBreaker(b Breaker, s BreakerSettings) BreakerSnapshot {
	snap := BreakerSnapshot{
		State:            b.State.String(),
		FailureCount:     b.FailureCount,
		FailureThreshold: s.FailureThreshold,
		ResetTimeoutMS:   s.ResetTimeout.Milliseconds(),
	}
	if !b.LastFailure.IsZero() {
		t := b.LastFailure
		snap.LastFailure = &t
	}
	return snap
}
