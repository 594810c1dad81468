package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the client core can report.
type ErrorKind string

const (
	KindDeviceUnavailable  ErrorKind = "device_unavailable"
	KindTransferFailed     ErrorKind = "transfer_failed"
	KindTransport          ErrorKind = "transport"
	KindNotFound           ErrorKind = "not_found"
	KindPreconditionNotMet ErrorKind = "precondition_not_met"
)

// Error carries a kind through every layer so callers never lose it.
type Error struct {
	Kind    ErrorKind
	Op      string // e.g. "CaptureController.Start"
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Op != "" && e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Op != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a kinded error.
func E(kind ErrorKind, op, msg string, err error) error {
	return &Error{Kind: kind, Op: op, Message: msg, Err: err}
}

// KindOf returns the kind of the outermost *Error in the chain.
func KindOf(err error) (ErrorKind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	got, ok := KindOf(err)
	return ok && got == kind
}

var (
	// ErrInsightBusy rejects a request while one of the same kind is outstanding.
	ErrInsightBusy = errors.New("insight request already in progress")
	// ErrInvalidTransition rejects a capture action the current state does not allow.
	ErrInvalidTransition = errors.New("invalid capture state transition")
)
