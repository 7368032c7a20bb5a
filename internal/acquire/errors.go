package acquire

import (
	"context"
	"errors"
	"fmt"
)

type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureNetwork
	FailureTimeout
	FailureBlocked
	FailureParse
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureNetwork:
		return "network"
	case FailureTimeout:
		return "timeout"
	case FailureBlocked:
		return "blocked"
	case FailureParse:
		return "parse_failure"
	}
	return fmt.Sprintf("FailureKind(%d)", int(k))
}

// TransportError is returned by a transport strategy when a single fetch
// attempt fails.
type TransportError struct {
	Kind FailureKind
	// Status is the HTTP status code when one was received, 0 otherwise.
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transport %s (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("transport %s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func NewTransportError(kind FailureKind, status int, err error) *TransportError {
	return &TransportError{Kind: kind, Status: status, Err: err}
}

// ClassifyFailure extracts the failure kind from err. Errors that are not
// TransportErrors are classified as network failures, except deadline
// expiry which is a timeout.
func ClassifyFailure(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	return FailureNetwork
}

// ErrRequest marks failures to even build a request for a target. They are
// deterministic so retrying them is pointless.
var ErrRequest = errors.New("cannot build request")

type NormalizeKind int

const (
	SchemaMismatch NormalizeKind = iota
)

// NormalizeError is returned when a payload lacks the structure its target
// type requires.
type NormalizeError struct {
	Kind   NormalizeKind
	Type   TargetType
	Detail string
	Err    error
}

func (e *NormalizeError) Error() string {
	msg := fmt.Sprintf("normalize %s: schema mismatch: %s", e.Type, e.Detail)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NormalizeError) Unwrap() error {
	return e.Err
}

func NewSchemaMismatch(t TargetType, detail string, err error) *NormalizeError {
	return &NormalizeError{Kind: SchemaMismatch, Type: t, Detail: detail, Err: err}
}

type RunErrorKind int

const (
	RunCancelled RunErrorKind = iota
	RunInvalidTarget
)

var (
	ErrRunCancelled  = errors.New("run cancelled")
	ErrInvalidTarget = errors.New("invalid target")
)

// RunError is the only kind of error a run returns to its caller, every
// per-target failure is folded into that target's Result instead.
type RunError struct {
	Kind RunErrorKind
	Err  error
}

func (e *RunError) Error() string {
	switch e.Kind {
	case RunCancelled:
		return fmt.Sprintf("run cancelled: %v", e.Err)
	case RunInvalidTarget:
		return fmt.Sprintf("invalid target: %v", e.Err)
	}
	return e.Err.Error()
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func (e *RunError) Is(target error) bool {
	switch target {
	case ErrRunCancelled:
		return e.Kind == RunCancelled
	case ErrInvalidTarget:
		return e.Kind == RunInvalidTarget
	}
	return false
}
