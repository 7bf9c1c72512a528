package storage

import (
	"errors"
	"fmt"
)

// Kind labels the failure classes surfaced to callers. Every operation either
// succeeds or fails with exactly one kind and a human-readable message.
type Kind int

const (
	// KindNotFound is returned when an unknown id is referenced.
	KindNotFound Kind = iota + 1
	// KindValidationFailed is returned for schema or constraint violations
	// detected before any mutation.
	KindValidationFailed
	// KindConflict is returned when a delete target is still referenced or a
	// unique key already exists.
	KindConflict
	// KindDepthExceeded is returned when folder nesting would exceed the
	// maximum depth.
	KindDepthExceeded
	// KindCycleRejected is returned when a folder would be moved into its own
	// subtree.
	KindCycleRejected
	// KindNoActiveCampaign is returned when an operation is attempted with no
	// campaign open.
	KindNoActiveCampaign
)

// String returns the label used in logs and API payloads.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidationFailed:
		return "validation_failed"
	case KindConflict:
		return "conflict"
	case KindDepthExceeded:
		return "depth_exceeded"
	case KindCycleRejected:
		return "cycle_rejected"
	case KindNoActiveCampaign:
		return "no_active_campaign"
	default:
		return "unknown"
	}
}

// Error is the labeled error type for storage operations.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorKind extracts the Kind from err, or 0 if err is not a storage error.
func ErrorKind(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

func errorf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// IsNotFound reports whether err is a NotFound storage error.
func IsNotFound(err error) bool { return ErrorKind(err) == KindNotFound }

// IsValidationFailed reports whether err is a ValidationFailed storage error.
func IsValidationFailed(err error) bool { return ErrorKind(err) == KindValidationFailed }

// IsConflict reports whether err is a Conflict storage error.
func IsConflict(err error) bool { return ErrorKind(err) == KindConflict }

// IsDepthExceeded reports whether err is a DepthExceeded storage error.
func IsDepthExceeded(err error) bool { return ErrorKind(err) == KindDepthExceeded }

// IsCycleRejected reports whether err is a CycleRejected storage error.
func IsCycleRejected(err error) bool { return ErrorKind(err) == KindCycleRejected }

// IsNoActiveCampaign reports whether err is a NoActiveCampaign storage error.
func IsNoActiveCampaign(err error) bool { return ErrorKind(err) == KindNoActiveCampaign }

// ErrNoActiveCampaign is returned by the session layer when nothing is open.
var ErrNoActiveCampaign = &Error{Kind: KindNoActiveCampaign, Msg: "no campaign is open"}
