package transport

import (
	"errors"
	"io"
)

// ReadOutcome classifies the result of ReadExact.
type ReadOutcome int

const (
	ReadComplete  ReadOutcome = iota // all n bytes arrived
	ReadClosed                       // peer closed cleanly before the first byte
	ReadTruncated                    // peer closed after some but not all bytes
	ReadFailed                       // I/O error
)

func (o ReadOutcome) String() string {
	switch o {
	case ReadComplete:
		return "complete"
	case ReadClosed:
		return "closed"
	case ReadTruncated:
		return "truncated"
	case ReadFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ReadExact reads exactly n bytes from r, accumulating across short reads.
//
// The returned error is nil when all n bytes arrived, io.EOF when the reader
// signalled closure before any byte, io.ErrUnexpectedEOF when it closed part
// way through (the partial bytes are returned), or the underlying error
// otherwise. A zero-byte read with a nil error counts as closure.
func ReadExact(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	got := 0
	for got < n {
		m, err := r.Read(buf[got:])
		got += m
		if got == n {
			return buf, nil
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return closedAt(buf[:got])
			}
			return buf[:got], err
		}
		if m == 0 {
			return closedAt(buf[:got])
		}
	}
	return buf, nil
}

func closedAt(partial []byte) ([]byte, error) {
	if len(partial) == 0 {
		return partial, io.EOF
	}
	return partial, io.ErrUnexpectedEOF
}

// Classify maps a ReadExact error onto a ReadOutcome.
func Classify(err error) ReadOutcome {
	switch {
	case err == nil:
		return ReadComplete
	case errors.Is(err, io.ErrUnexpectedEOF):
		return ReadTruncated
	case errors.Is(err, io.EOF):
		return ReadClosed
	default:
		return ReadFailed
	}
}
