package feed

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport marks connection-level failures. They abort the session.
	ErrTransport = errors.New("transport error")

	// ErrTruncated marks a stream that closed part way through a frame.
	// Streaming stops but gap recovery still runs.
	ErrTruncated = errors.New("stream truncated mid-frame")

	// ErrSequenceMismatch is the cause of a resend failure when the server
	// answers with a frame for a different sequence.
	ErrSequenceMismatch = errors.New("resent frame has unexpected sequence")

	// ErrTooManyGaps is returned when the highest streamed sequence implies
	// more missing packets than Options.MaxGaps allows.
	ErrTooManyGaps = errors.New("too many missing sequences")

	// ErrSessionUsed is returned when Run is called on a session that has
	// already left the idle state.
	ErrSessionUsed = errors.New("session already run")
)

// TransportError wraps a fatal connection failure with the phase it occurred in.
type TransportError struct {
	Op  string // "dial", "stream", ...
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrTransport, e.Op, e.Err)
}

func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }

// GapLimitError reports a stream whose highest sequence leaves more gaps
// than the configured limit. No resend is attempted.
type GapLimitError struct {
	MaxSequence uint32
	Missing     uint64
	Limit       int
}

func (e *GapLimitError) Error() string {
	return fmt.Sprintf("%s: %d missing up to sequence %d (limit %d)", ErrTooManyGaps, e.Missing, e.MaxSequence, e.Limit)
}

func (e *GapLimitError) Unwrap() error { return ErrTooManyGaps }

// TruncationError records how many bytes of the final frame arrived.
type TruncationError struct {
	Partial int
}

func (e *TruncationError) Error() string {
	return fmt.Sprintf("%s (%d bytes of partial frame discarded)", ErrTruncated, e.Partial)
}

func (e *TruncationError) Unwrap() error { return ErrTruncated }

// ResendError reports that one missing sequence could not be recovered.
type ResendError struct {
	Sequence uint32
	Cause    error
}

func (e *ResendError) Error() string {
	return fmt.Sprintf("resend of sequence %d failed: %v", e.Sequence, e.Cause)
}

func (e *ResendError) Unwrap() error { return e.Cause }
