// Package sink writes the final, ordered packet collection to its
// destinations.
package sink

import (
	"context"
	"errors"

	"github.com/1ureka/abxclient/internal/protocol"
)

// Sink accepts the final packets of a session, ordered by sequence.
type Sink interface {
	Write(ctx context.Context, packets []protocol.Packet) error
}

// Record is the serialized form of a packet.
type Record struct {
	Symbol   string `json:"symbol"`
	BuySell  string `json:"buy_sell"`
	Quantity int32  `json:"quantity"`
	Price    int32  `json:"price"`
	Sequence uint32 `json:"sequence"`
}

// NewRecord converts a packet to its serialized form.
func NewRecord(p protocol.Packet) Record {
	return Record{
		Symbol:   p.Symbol.String(),
		BuySell:  p.Side.String(),
		Quantity: p.Quantity,
		Price:    p.Price,
		Sequence: p.Sequence,
	}
}

func records(packets []protocol.Packet) []Record {
	out := make([]Record, 0, len(packets))
	for _, p := range packets {
		out = append(out, NewRecord(p))
	}
	return out
}

// Multi fans a write out to several sinks. Every sink is attempted; the
// errors are joined.
type Multi []Sink

func (m Multi) Write(ctx context.Context, packets []protocol.Packet) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, packets); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
