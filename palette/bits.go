package palette

import (
	"errors"
	"math/bits"
)

var ErrShortData = errors.New("palette: packed data too short")

// WordsFor returns how many 64-bit words n entries of the given width occupy.
func WordsFor(n, bitsPerEntry int) int {
	return (n*bitsPerEntry + 63) / 64
}

// Entries are laid back to back, least significant bit first. An entry crossing a word
// boundary keeps its low bits at the top of word k and its high bits at the bottom of word k+1.
func getPacked(words []uint64, bitsPerEntry, i int) uint64 {
	bit := i * bitsPerEntry
	w := bit >> 6
	off := uint(bit & 63)
	mask := uint64(1)<<uint(bitsPerEntry) - 1

	v := words[w] >> off
	if off+uint(bitsPerEntry) > 64 {
		v |= words[w+1] << (64 - off)
	}
	return v & mask
}

func setPacked(words []uint64, bitsPerEntry, i int, v uint64) {
	bit := i * bitsPerEntry
	w := bit >> 6
	off := uint(bit & 63)
	mask := uint64(1)<<uint(bitsPerEntry) - 1
	v &= mask

	words[w] = words[w]&^(mask<<off) | v<<off
	if off+uint(bitsPerEntry) > 64 {
		spill := 64 - off
		words[w+1] = words[w+1]&^(mask>>spill) | v>>spill
	}
}

// Pack packs values at the given width. Values are masked to the width.
func Pack(values []int32, bitsPerEntry int) []uint64 {
	words := make([]uint64, WordsFor(len(values), bitsPerEntry))
	for i, v := range values {
		setPacked(words, bitsPerEntry, i, uint64(uint32(v)))
	}
	return words
}

// Unpack reads n entries of the given width from words.
func Unpack(words []uint64, bitsPerEntry, n int) ([]int32, error) {
	if bitsPerEntry < 1 || bitsPerEntry > 32 {
		return nil, errors.New("palette: invalid width")
	}
	if len(words) < WordsFor(n, bitsPerEntry) {
		return nil, ErrShortData
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(getPacked(words, bitsPerEntry, i))
	}
	return out, nil
}

func bitsFor(v int32) int {
	n := bits.Len32(uint32(v))
	if n == 0 {
		return 1
	}
	return n
}
