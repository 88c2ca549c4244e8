package feed

import "github.com/1ureka/abxclient/internal/protocol"

// Observer receives every protocol event of a session as it happens. The
// metrics recorder implements it; tests use it to capture event order.
type Observer interface {
	FrameDecoded(pkt protocol.Packet)
	MalformedFrame(err error)
	DuplicateFrame(seq uint32)
	Truncated(partial int)
	StreamEnded(state StreamState, maxSeq uint32, gaps int)
	ResendSucceeded(seq uint32)
	ResendFailed(seq uint32, cause error)
}

type nopObserver struct{}

func (nopObserver) FrameDecoded(protocol.Packet)         {}
func (nopObserver) MalformedFrame(error)                 {}
func (nopObserver) DuplicateFrame(uint32)                {}
func (nopObserver) Truncated(int)                        {}
func (nopObserver) StreamEnded(StreamState, uint32, int) {}
func (nopObserver) ResendSucceeded(uint32)               {}
func (nopObserver) ResendFailed(uint32, error)           {}
