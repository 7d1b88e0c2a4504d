package beagle

import (
	"errors"
	"fmt"
)

// ErrDeleteRefused is returned when the device answers DELETEBOOKERROR.
// It is an expected outcome, not a sign of a corrupt stream.
var ErrDeleteRefused = errors.New("beagle: device refused to delete book")

// ProtocolError reports an unexpected or malformed response line.
type ProtocolError struct {
	Command string // verb of the request being answered
	Line    string // raw offending line
	Reason  string
}

func (e *ProtocolError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("beagle: %s: %s: %q", e.Command, e.Reason, e.Line)
	}
	return fmt.Sprintf("beagle: %s: unexpected response %q", e.Command, e.Line)
}

// ConnectionError reports a closed stream or an I/O failure.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("beagle: connection %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// CancelledError reports an operation aborted by the caller's context.
type CancelledError struct {
	Err error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("beagle: cancelled: %v", e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }

// StateError reports an operation that is not valid in the current upload state.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("beagle: %s not allowed in state %s", e.Op, e.State)
}

// IsCancelled reports whether err is, or wraps, a CancelledError.
func IsCancelled(err error) bool {
	var ce *CancelledError
	return errors.As(err, &ce)
}
