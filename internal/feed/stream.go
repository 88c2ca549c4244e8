package feed

import (
	"errors"

	"github.com/1ureka/abxclient/internal/protocol"
	"github.com/1ureka/abxclient/internal/transport"
	"github.com/1ureka/abxclient/internal/util"
)

// Stream sends the stream-all request on conn and decodes frames until the
// server closes the connection.
//
// It returns nil when the stream ended on a frame boundary, an error wrapping
// ErrTruncated when it ended mid-frame, and a *TransportError on any other
// read or write failure. Malformed frames are skipped and counted.
func (s *Session) Stream(conn *transport.Conn) error {
	if s.state != StateIdle {
		return ErrSessionUsed
	}
	s.transition(StateStreaming)

	if err := conn.Send(protocol.EncodeStreamAllRequest()); err != nil {
		return s.fail("stream request", err)
	}

	for {
		frame, err := conn.ReadFrame(protocol.FrameSize)

		switch transport.Classify(err) {
		case transport.ReadComplete:
			s.acceptStreamed(frame)

		case transport.ReadClosed:
			s.transition(StateComplete)
			return nil

		case transport.ReadTruncated:
			s.report.Truncated = len(frame)
			s.obs.Truncated(len(frame))
			util.LogEvent("stream truncated", "session", s.shortID(), "partial_bytes", len(frame), "max_sequence", s.coll.MaxSequence())
			s.transition(StateTruncated)
			return &TruncationError{Partial: len(frame)}

		default:
			return s.fail("stream read", err)
		}
	}
}

func (s *Session) acceptStreamed(frame []byte) {
	pkt, err := protocol.DecodeFrame(frame)
	if err != nil {
		s.report.Malformed++
		s.obs.MalformedFrame(err)
		seq, _ := protocol.PeekSequence(frame)
		util.LogEvent("malformed frame skipped", "session", s.shortID(), "sequence", seq, "error", err)
		return
	}

	if !s.coll.Insert(pkt) {
		s.report.Duplicates++
		s.obs.DuplicateFrame(pkt.Sequence)
		util.LogDebug("[%s] duplicate frame for sequence %d ignored", s.shortID(), pkt.Sequence)
		return
	}

	s.report.Streamed++
	util.Stats.AddFrame()
	s.obs.FrameDecoded(pkt)
	util.LogDebug("[%s] %s", s.shortID(), pkt)
}

// isMalformed reports whether err came from frame validation.
func isMalformed(err error) bool {
	return errors.Is(err, protocol.ErrMalformedFrame)
}
