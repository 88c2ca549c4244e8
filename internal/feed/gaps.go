package feed

// ResolveGaps returns, in ascending order, every sequence in [1, max] that is
// absent from received. max == 0 yields no gaps.
func ResolveGaps(max uint32, received Received) []uint32 {
	var gaps []uint32
	if max == 0 {
		return gaps
	}

	for seq := uint32(1); ; seq++ {
		if !received.Has(seq) {
			gaps = append(gaps, seq)
		}
		if seq == max {
			break
		}
	}
	return gaps
}
