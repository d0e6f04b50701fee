package chunk

import "github.com/willf/bitset"

// ComputeMask sets bit i%64 of word i/64 for every present section index. The result ends
// at the highest word with a bit set; an empty input yields an empty mask.
func ComputeMask(indices []int) []uint64 {
	set := bitset.New(0)
	for _, i := range indices {
		if i >= 0 {
			set.Set(uint(i))
		}
	}
	words := set.Bytes()
	n := len(words)
	for n > 0 && words[n-1] == 0 {
		n--
	}
	if n == 0 {
		return nil
	}
	return append([]uint64(nil), words[:n]...)
}

// MaskIndices returns the set bit positions across all words in ascending order.
func MaskIndices(mask []uint64) []int {
	if len(mask) == 0 {
		return nil
	}
	set := bitset.From(append([]uint64(nil), mask...))
	var out []int
	for i, ok := set.NextSet(0); ok; i, ok = set.NextSet(i + 1) {
		out = append(out, int(i))
	}
	return out
}
