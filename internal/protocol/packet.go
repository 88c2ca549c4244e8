// Package protocol defines the ABX wire format: the two client requests and
// the fixed 17-byte response frame.
package protocol

import "fmt"

// Request opcodes.
const (
	OpStreamAll uint8 = 0x01 // Stream every packet from the beginning
	OpResend    uint8 = 0x02 // Resend a single packet by sequence number
)

// Fixed message sizes.
const (
	StreamAllRequestSize = 2  // Opcode(1) + unused(1)
	ResendRequestSize    = 5  // Opcode(1) + Sequence(4)
	FrameSize            = 17 // Symbol(4) + Side(1) + Quantity(4) + Price(4) + Sequence(4)
	SymbolSize           = 4
)

// Side is the buy/sell indicator, encoded on the wire as one ASCII byte.
type Side byte

const (
	SideBuy  Side = 'B'
	SideSell Side = 'S'
)

// Valid reports whether s is one of the two known indicators.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

func (s Side) String() string {
	return string(rune(s))
}

// Symbol is a fixed four-byte instrument identifier. It carries no terminator;
// all four bytes are data.
type Symbol [SymbolSize]byte

// ParseSymbol builds a Symbol from a string of exactly four bytes.
func ParseSymbol(s string) (Symbol, error) {
	var sym Symbol
	if len(s) != SymbolSize {
		return sym, fmt.Errorf("symbol %q: need exactly %d bytes, got %d", s, SymbolSize, len(s))
	}
	copy(sym[:], s)
	return sym, nil
}

// MustSymbol is ParseSymbol for constants and tests; it panics on bad input.
func MustSymbol(s string) Symbol {
	sym, err := ParseSymbol(s)
	if err != nil {
		panic(err)
	}
	return sym
}

func (s Symbol) String() string {
	return string(s[:])
}

// Packet is one decoded market event. It is a value type and is never
// modified after decoding.
type Packet struct {
	Symbol   Symbol
	Side     Side
	Quantity int32
	Price    int32  // fixed-point, scale defined by the feed
	Sequence uint32 // starts at 1, assigned by the server
}

func (p Packet) String() string {
	return fmt.Sprintf("#%d %s %s qty=%d price=%d", p.Sequence, p.Symbol, p.Side, p.Quantity, p.Price)
}
