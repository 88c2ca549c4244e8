// Package feed implements an ABX client session: stream every packet, find
// the sequence gaps, and recover each gap with an individual resend request.
//
// A Session is strictly sequential. The packet collection is filled by the
// streaming phase and then handed to the recovery phase, which only inserts.
package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/1ureka/abxclient/internal/protocol"
	"github.com/1ureka/abxclient/internal/transport"
	"github.com/1ureka/abxclient/internal/util"
)

// Dialer opens a new connection to the feed server.
type Dialer interface {
	Dial(ctx context.Context) (*transport.Conn, error)
}

// StreamState is the streaming phase's state machine:
// Idle → Streaming → (Complete | Truncated | Failed).
type StreamState int

const (
	StateIdle StreamState = iota
	StateStreaming
	StateComplete
	StateTruncated
	StateFailed
)

func (s StreamState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateComplete:
		return "complete"
	case StateTruncated:
		return "truncated"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s StreamState) Terminal() bool {
	return s == StateComplete || s == StateTruncated || s == StateFailed
}

// Options tunes a Session. The zero value is usable.
type Options struct {
	// Timeout bounds the whole Run. Zero means no overall limit; per-read
	// limits are configured on the Dialer's connections.
	Timeout time.Duration

	// ReconnectPerResend dials a fresh connection for every resend request
	// instead of reusing one recovery connection.
	ReconnectPerResend bool

	// MaxGaps aborts the run when more sequences than this are missing
	// after streaming. Zero means no limit.
	MaxGaps int

	Observer Observer
}

// Report summarises what happened during a session. Every non-fatal event
// is counted here.
type Report struct {
	SessionID   string
	State       StreamState
	Streamed    int // frames decoded during streaming
	Malformed   int
	Duplicates  int
	Truncated   int // bytes of the discarded partial frame, 0 if none
	MaxSequence uint32
	Gaps        []uint32
	Recovered   []uint32
	Failed      []*ResendError
}

// Missing returns the sequences that are still absent after recovery.
func (r *Report) Missing() []uint32 {
	out := make([]uint32, 0, len(r.Failed))
	for _, f := range r.Failed {
		out = append(out, f.Sequence)
	}
	return out
}

// Result is the output of a completed session.
type Result struct {
	Packets []protocol.Packet // ordered by sequence
	Report  Report
}

// Session drives one stream-all pass plus gap recovery against a server.
type Session struct {
	ID string

	dialer Dialer
	opts   Options
	obs    Observer

	coll   *Collection
	state  StreamState
	report Report
}

// NewSession creates an idle session that will connect through dialer.
func NewSession(dialer Dialer, opts Options) *Session {
	obs := opts.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	id := uuid.NewString()
	return &Session{
		ID:     id,
		dialer: dialer,
		opts:   opts,
		obs:    obs,
		coll:   NewCollection(),
		state:  StateIdle,
		report: Report{SessionID: id},
	}
}

// State returns the current streaming state.
func (s *Session) State() StreamState { return s.state }

// Collection exposes the packets gathered so far.
func (s *Session) Collection() *Collection { return s.coll }

// Run performs the full pipeline: stream, resolve gaps, recover. Transport
// failures during streaming and context cancellation are fatal; truncation,
// malformed frames and failed resends are recorded in the Report.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	if s.state != StateIdle {
		return nil, ErrSessionUsed
	}

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		s.state = StateFailed
		s.report.State = s.state
		return nil, &TransportError{Op: "dial", Err: err}
	}

	err = s.Stream(conn)
	conn.Close()
	if err != nil && !errors.Is(err, ErrTruncated) {
		return nil, err
	}

	// every received sequence is <= max, so the gap count is known
	// before any gap is materialized
	missing := uint64(s.coll.MaxSequence()) - uint64(s.coll.Len())
	if s.opts.MaxGaps > 0 && missing > uint64(s.opts.MaxGaps) {
		return nil, &GapLimitError{MaxSequence: s.coll.MaxSequence(), Missing: missing, Limit: s.opts.MaxGaps}
	}

	gaps := ResolveGaps(s.coll.MaxSequence(), s.coll)
	s.report.Gaps = gaps
	s.obs.StreamEnded(s.state, s.coll.MaxSequence(), len(gaps))
	util.LogInfo("[%s] stream %s: %d packets, max sequence %d, %d gaps",
		s.shortID(), s.state, s.coll.Len(), s.coll.MaxSequence(), len(gaps))

	if len(gaps) > 0 {
		if err := s.Recover(ctx, gaps); err != nil {
			return nil, err
		}
	}

	return &Result{Packets: s.coll.Packets(), Report: s.Snapshot()}, nil
}

// Snapshot returns a copy of the report as it stands.
func (s *Session) Snapshot() Report {
	r := s.report
	r.State = s.state
	r.MaxSequence = s.coll.MaxSequence()
	return r
}

func (s *Session) shortID() string {
	if len(s.ID) >= 8 {
		return s.ID[:8]
	}
	return s.ID
}

func (s *Session) transition(to StreamState) {
	util.LogDebug("[%s] stream state %s → %s", s.shortID(), s.state, to)
	s.state = to
	s.report.State = to
}

func (s *Session) fail(op string, err error) error {
	s.transition(StateFailed)
	return &TransportError{Op: op, Err: err}
}

// errContext returns a context error if err was caused by cancellation.
func errContext(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("session aborted: %w", errors.Join(context.Cause(ctx), err))
	}
	return nil
}
