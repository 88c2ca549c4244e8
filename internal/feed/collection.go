package feed

import (
	"maps"
	"slices"

	"github.com/1ureka/abxclient/internal/protocol"
)

// Received answers membership queries on the set of received sequences.
type Received interface {
	Has(seq uint32) bool
}

// SequenceSet is a plain Received implementation.
type SequenceSet map[uint32]struct{}

// NewSequenceSet builds a set from the given sequences.
func NewSequenceSet(seqs ...uint32) SequenceSet {
	s := make(SequenceSet, len(seqs))
	for _, seq := range seqs {
		s[seq] = struct{}{}
	}
	return s
}

func (s SequenceSet) Has(seq uint32) bool {
	_, ok := s[seq]
	return ok
}

// Collection holds the decoded packets of one session keyed by sequence, so
// it doubles as the received-sequence set. Packets are only ever inserted;
// nothing is edited or removed.
//
// A Collection belongs to one pipeline phase at a time and needs no locking.
type Collection struct {
	packets map[uint32]protocol.Packet
	max     uint32
}

// NewCollection creates an empty collection.
func NewCollection() *Collection {
	return &Collection{packets: make(map[uint32]protocol.Packet)}
}

// Insert adds pkt. It returns false, leaving the collection unchanged, if a
// packet with the same sequence is already present.
func (c *Collection) Insert(pkt protocol.Packet) bool {
	if _, dup := c.packets[pkt.Sequence]; dup {
		return false
	}
	c.packets[pkt.Sequence] = pkt
	if pkt.Sequence > c.max {
		c.max = pkt.Sequence
	}
	return true
}

func (c *Collection) Has(seq uint32) bool {
	_, ok := c.packets[seq]
	return ok
}

func (c *Collection) Len() int { return len(c.packets) }

// MaxSequence returns the highest sequence inserted, or 0 when empty.
func (c *Collection) MaxSequence() uint32 { return c.max }

// Packets returns the packets ordered by sequence.
func (c *Collection) Packets() []protocol.Packet {
	out := make([]protocol.Packet, 0, len(c.packets))
	for _, seq := range slices.Sorted(maps.Keys(c.packets)) {
		out = append(out, c.packets[seq])
	}
	return out
}

// Sequences returns the received sequences in ascending order.
func (c *Collection) Sequences() []uint32 {
	return slices.Sorted(maps.Keys(c.packets))
}
