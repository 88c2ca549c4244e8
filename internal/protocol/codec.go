package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrMalformedFrame is returned by DecodeFrame for structurally invalid frames.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrInvalidSequence is returned when a resend is requested for sequence 0.
	ErrInvalidSequence = errors.New("invalid sequence number")
)

// EncodeStreamAllRequest builds the 2-byte "stream all packets" request.
func EncodeStreamAllRequest() []byte {
	return []byte{OpStreamAll, 0x00}
}

// EncodeResendRequest builds the 5-byte request for a single packet.
func EncodeResendRequest(seq uint32) ([]byte, error) {
	if seq == 0 {
		return nil, fmt.Errorf("resend request: %w (sequences start at 1)", ErrInvalidSequence)
	}
	buf := make([]byte, ResendRequestSize)
	buf[0] = OpResend
	binary.BigEndian.PutUint32(buf[1:5], seq)
	return buf, nil
}

// EncodeFrame serializes a Packet into a 17-byte response frame.
func EncodeFrame(p Packet) []byte {
	buf := make([]byte, FrameSize)
	copy(buf[0:4], p.Symbol[:])
	buf[4] = byte(p.Side)
	binary.BigEndian.PutUint32(buf[5:9], uint32(p.Quantity))
	binary.BigEndian.PutUint32(buf[9:13], uint32(p.Price))
	binary.BigEndian.PutUint32(buf[13:17], p.Sequence)
	return buf
}

// DecodeFrame deserializes a 17-byte response frame. Unknown side indicators
// are rejected.
func DecodeFrame(data []byte) (Packet, error) {
	if len(data) != FrameSize {
		return Packet{}, fmt.Errorf("%w: %d bytes (need %d)", ErrMalformedFrame, len(data), FrameSize)
	}

	var pkt Packet
	copy(pkt.Symbol[:], data[0:4])
	pkt.Side = Side(data[4])
	pkt.Quantity = int32(binary.BigEndian.Uint32(data[5:9]))
	pkt.Price = int32(binary.BigEndian.Uint32(data[9:13]))
	pkt.Sequence = binary.BigEndian.Uint32(data[13:17])

	if !pkt.Side.Valid() {
		return Packet{}, fmt.Errorf("%w: side indicator 0x%02x (sequence %d)", ErrMalformedFrame, data[4], pkt.Sequence)
	}
	return pkt, nil
}

// PeekSequence returns the sequence field of a full-size frame without
// validating the rest. It is used to attribute malformed frames in logs.
func PeekSequence(data []byte) (uint32, bool) {
	if len(data) != FrameSize {
		return 0, false
	}
	return binary.BigEndian.Uint32(data[13:17]), true
}
