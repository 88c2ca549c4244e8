package feed

import (
	"context"
	"fmt"
	"slices"

	"github.com/1ureka/abxclient/internal/protocol"
	"github.com/1ureka/abxclient/internal/transport"
	"github.com/1ureka/abxclient/internal/util"
)

// Recover requests every sequence in gaps, one at a time in ascending numeric
// order, and inserts each valid answer into the collection.
//
// A failed resend is recorded as a *ResendError and never stops the loop; a
// connection that produced a failure is dropped and the next request dials a
// new one. The only error returned is a context cancellation, which aborts
// the remaining requests.
func (s *Session) Recover(ctx context.Context, gaps []uint32) error {
	pending := slices.Compact(slices.Sorted(slices.Values(gaps)))

	var conn *transport.Conn
	defer func() {
		if conn != nil {
			conn.Close()
		}
	}()

	drop := func() {
		if conn != nil {
			conn.Close()
			conn = nil
		}
	}

	for _, seq := range pending {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("resend recovery aborted before sequence %d: %w", seq, context.Cause(ctx))
		}

		if s.coll.Has(seq) {
			util.LogDebug("[%s] sequence %d already present, skipping resend", s.shortID(), seq)
			continue
		}

		if conn == nil {
			c, err := s.dialer.Dial(ctx)
			if err != nil {
				if aborted := errContext(ctx, err); aborted != nil {
					return aborted
				}
				s.resendFailed(seq, fmt.Errorf("dial: %w", err))
				continue
			}
			conn = c
		}

		pkt, keep, err := s.resendOne(conn, seq)
		if err != nil {
			if aborted := errContext(ctx, err); aborted != nil {
				return aborted
			}
			s.resendFailed(seq, err)
			if !keep {
				drop()
			}
			continue
		}

		s.coll.Insert(pkt)
		s.report.Recovered = append(s.report.Recovered, seq)
		s.obs.ResendSucceeded(seq)
		util.LogDebug("[%s] recovered %s", s.shortID(), pkt)

		if s.opts.ReconnectPerResend {
			drop()
		}
	}

	util.LogInfo("[%s] recovery done: %d recovered, %d failed",
		s.shortID(), len(s.report.Recovered), len(s.report.Failed))
	return nil
}

// resendOne performs a single request/response exchange. keep reports
// whether conn is still aligned on a frame boundary after a failure.
func (s *Session) resendOne(conn *transport.Conn, seq uint32) (pkt protocol.Packet, keep bool, err error) {
	req, err := protocol.EncodeResendRequest(seq)
	if err != nil {
		return pkt, true, err
	}
	if err := conn.Send(req); err != nil {
		return pkt, false, err
	}

	frame, err := conn.ReadFrame(protocol.FrameSize)
	if outcome := transport.Classify(err); outcome != transport.ReadComplete {
		return pkt, false, fmt.Errorf("read %s after %d bytes: %w", outcome, len(frame), err)
	}

	pkt, err = protocol.DecodeFrame(frame)
	if err != nil {
		return pkt, isMalformed(err), err
	}
	if pkt.Sequence != seq {
		// A late answer to an earlier request; the stream can no longer be trusted.
		return protocol.Packet{}, false, fmt.Errorf("%w: got %d", ErrSequenceMismatch, pkt.Sequence)
	}
	return pkt, true, nil
}

func (s *Session) resendFailed(seq uint32, cause error) {
	rerr := &ResendError{Sequence: seq, Cause: cause}
	s.report.Failed = append(s.report.Failed, rerr)
	s.obs.ResendFailed(seq, cause)
	util.LogEvent("resend failed", "session", s.shortID(), "sequence", seq, "error", cause)
}
