package feedtest

import (
	"math/rand/v2"

	"github.com/1ureka/abxclient/internal/protocol"
)

var symbols = []string{"MSFT", "AAPL", "AMZN", "META", "GOOG", "TSLA"}

// Sequential returns n deterministic packets with sequences 1..n.
func Sequential(n int) []protocol.Packet {
	out := make([]protocol.Packet, 0, n)
	for i := 1; i <= n; i++ {
		side := protocol.SideBuy
		if i%2 == 0 {
			side = protocol.SideSell
		}
		out = append(out, protocol.Packet{
			Symbol:   protocol.MustSymbol(symbols[(i-1)%len(symbols)]),
			Side:     side,
			Quantity: int32(10 * i),
			Price:    int32(100 + i),
			Sequence: uint32(i),
		})
	}
	return out
}

// Random returns n packets with sequences 1..n and pseudo-random content
// drawn from r.
func Random(r *rand.Rand, n int) []protocol.Packet {
	out := make([]protocol.Packet, 0, n)
	for i := 1; i <= n; i++ {
		side := protocol.SideBuy
		if r.IntN(2) == 1 {
			side = protocol.SideSell
		}
		out = append(out, protocol.Packet{
			Symbol:   protocol.MustSymbol(symbols[r.IntN(len(symbols))]),
			Side:     side,
			Quantity: int32(1 + r.IntN(500)),
			Price:    int32(50 + r.IntN(200)),
			Sequence: uint32(i),
		})
	}
	return out
}

// Set turns a list of sequences into the map form Script uses.
func Set(seqs ...uint32) map[uint32]bool {
	m := make(map[uint32]bool, len(seqs))
	for _, s := range seqs {
		m[s] = true
	}
	return m
}
