package retry

import (
	"fmt"
	"petstay-backend/internal/acquire"
	"time"
)

type State int

const (
	StateIdle State = iota
	StateAttempting
	StateBackoff
	StateExhausted
	StateSucceeded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttempting:
		return "attempting"
	case StateBackoff:
		return "backoff"
	case StateExhausted:
		return "exhausted"
	case StateSucceeded:
		return "succeeded"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// RetryState is owned by a single Execute call for its whole duration.
type RetryState struct {
	State       State
	Attempt     int
	NextDelay   time.Duration
	LastFailure acquire.FailureKind
	LastErr     error
	// Strategy indexes the strategy chain, it only moves forward.
	Strategy int
}

// fail records a failed attempt and decides between backing off and giving
// up. The next delay never shrinks for the same target.
func (s *RetryState) fail(policy Policy, err error) {
	s.LastErr = err
	s.LastFailure = acquire.ClassifyFailure(err)
	if s.Attempt >= policy.MaxRetries {
		s.State = StateExhausted
		return
	}
	next := policy.Delay(s.Attempt, s.LastFailure)
	if next < s.NextDelay {
		next = s.NextDelay
	}
	s.NextDelay = next
	s.State = StateBackoff
}

// terminalStatus maps the last failure of an exhausted target.
func (s *RetryState) terminalStatus() acquire.Status {
	if s.LastFailure == acquire.FailureBlocked {
		return acquire.StatusBlocked
	}
	return acquire.StatusRetriesExhausted
}
