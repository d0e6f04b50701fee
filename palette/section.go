package palette

import (
	"errors"
	"fmt"
)

const (
	// SectionVolume is the number of block positions in a 16x16x16 section.
	SectionVolume = 16 * 16 * 16
	// MaxBitsPerEntry bounds the global block state ID space.
	MaxBitsPerEntry = 16
	// DirectThreshold is the width from which entries hold global IDs instead of palette indices.
	DirectThreshold = 9
	// MinBitsPerEntry is the default starting width for new sections.
	MinBitsPerEntry = 4
)

var (
	ErrPaletteOverflow  = errors.New("palette: bits per entry would exceed maximum")
	ErrShrink           = errors.New("palette: cannot shrink bits per entry")
	ErrIndexOutOfRange  = errors.New("palette: block index out of range")
	ErrMalformedSection = errors.New("palette: malformed section data")
)

// Section holds the block states of one 16x16x16 sub-volume. Below DirectThreshold each
// packed entry is a local palette index; from DirectThreshold on it is the global ID itself.
//
// A Section is not safe for concurrent mutation.
type Section struct {
	bitsPerEntry int
	blocks       []uint64

	// local index -> global ID, indexed by local index
	paletteBlock []int32
	// global ID -> local index
	blockPalette map[int32]uint16
}

// NewSection creates an empty (all air) section. Indirect sections start with air at local index 0.
func NewSection(bitsPerEntry int) (*Section, error) {
	if bitsPerEntry < 1 {
		return nil, fmt.Errorf("palette: invalid bits per entry %d", bitsPerEntry)
	}
	if bitsPerEntry > MaxBitsPerEntry {
		return nil, ErrPaletteOverflow
	}
	s := &Section{
		bitsPerEntry: bitsPerEntry,
		blocks:       make([]uint64, WordsFor(SectionVolume, bitsPerEntry)),
	}
	if bitsPerEntry < DirectThreshold {
		s.paletteBlock = append(make([]int32, 0, 1<<uint(bitsPerEntry)), 0)
		s.blockPalette = map[int32]uint16{0: 0}
	}
	return s, nil
}

// Load builds a section from its wire form. palette is ignored in direct mode.
func Load(bitsPerEntry int, palette []int32, words []uint64) (*Section, error) {
	if bitsPerEntry < 1 || bitsPerEntry > MaxBitsPerEntry {
		return nil, fmt.Errorf("%w: bits per entry %d", ErrMalformedSection, bitsPerEntry)
	}
	if want := WordsFor(SectionVolume, bitsPerEntry); len(words) != want {
		return nil, fmt.Errorf("%w: %d words at %d bits, want %d", ErrMalformedSection, len(words), bitsPerEntry, want)
	}

	s := &Section{
		bitsPerEntry: bitsPerEntry,
		blocks:       append([]uint64(nil), words...),
	}
	if bitsPerEntry >= DirectThreshold {
		return s, nil
	}

	if len(palette) > 1<<uint(bitsPerEntry) {
		return nil, fmt.Errorf("%w: palette of %d entries at %d bits", ErrMalformedSection, len(palette), bitsPerEntry)
	}
	s.paletteBlock = make([]int32, 0, 1<<uint(bitsPerEntry))
	s.blockPalette = make(map[int32]uint16, len(palette))
	for i, id := range palette {
		if id < 0 || id >= 1<<MaxBitsPerEntry {
			return nil, fmt.Errorf("%w: palette value %d", ErrMalformedSection, id)
		}
		s.paletteBlock = append(s.paletteBlock, id)
		if _, ok := s.blockPalette[id]; !ok {
			s.blockPalette[id] = uint16(i)
		}
	}
	// Every packed local index must name a palette entry; Set appends new IDs at len(palette).
	for i := 0; i < SectionVolume; i++ {
		if local := getPacked(s.blocks, bitsPerEntry, i); local >= uint64(len(palette)) {
			return nil, fmt.Errorf("%w: block %d holds local index %d, palette has %d entries", ErrMalformedSection, i, local, len(palette))
		}
	}
	return s, nil
}

func (s *Section) BitsPerEntry() int {
	return s.bitsPerEntry
}

// Direct reports whether entries hold global IDs.
func (s *Section) Direct() bool {
	return s.bitsPerEntry >= DirectThreshold
}

// Blocks returns the packed words. The slice must not be modified.
func (s *Section) Blocks() []uint64 {
	return s.blocks
}

// Palette returns the global IDs in local index order, or nil in direct mode.
func (s *Section) Palette() []int32 {
	if s.Direct() {
		return nil
	}
	return append([]int32(nil), s.paletteBlock...)
}

// Get returns the global block state ID at index. An index outside the section reads as air.
func (s *Section) Get(index int) int32 {
	if index < 0 || index >= SectionVolume {
		return 0
	}
	v := getPacked(s.blocks, s.bitsPerEntry, index)
	if s.Direct() {
		return int32(v)
	}
	if int(v) < len(s.paletteBlock) {
		return s.paletteBlock[v]
	}
	return 0
}

// Set stores a global block state ID at index, growing the section when the value does not fit.
func (s *Section) Set(index int, id int32) error {
	if index < 0 || index >= SectionVolume {
		return ErrIndexOutOfRange
	}
	if id < 0 || id >= 1<<MaxBitsPerEntry {
		return fmt.Errorf("%w: block state %d", ErrPaletteOverflow, id)
	}

	if s.Direct() {
		if need := bitsFor(id); need > s.bitsPerEntry {
			if err := s.Resize(need); err != nil {
				return err
			}
		}
		setPacked(s.blocks, s.bitsPerEntry, index, uint64(id))
		return nil
	}

	local, ok := s.blockPalette[id]
	if !ok {
		if len(s.paletteBlock) >= 1<<uint(s.bitsPerEntry) {
			if err := s.Resize(s.bitsPerEntry + 1); err != nil {
				return err
			}
			return s.Set(index, id)
		}
		local = uint16(len(s.paletteBlock))
		s.paletteBlock = append(s.paletteBlock, id)
		s.blockPalette[id] = local
	}
	setPacked(s.blocks, s.bitsPerEntry, index, uint64(local))
	return nil
}

// Resize re-packs every entry at a wider width. Moving into direct mode replaces palette
// indices with global IDs, widening further if a global ID needs more bits.
func (s *Section) Resize(bitsPerEntry int) error {
	if bitsPerEntry < s.bitsPerEntry {
		return ErrShrink
	}
	if bitsPerEntry > MaxBitsPerEntry {
		return ErrPaletteOverflow
	}
	if bitsPerEntry == s.bitsPerEntry {
		return nil
	}

	toDirect := !s.Direct() && bitsPerEntry >= DirectThreshold
	if toDirect {
		for _, id := range s.paletteBlock {
			if need := bitsFor(id); need > bitsPerEntry {
				bitsPerEntry = need
			}
		}
	}

	blocks := make([]uint64, WordsFor(SectionVolume, bitsPerEntry))
	for i := 0; i < SectionVolume; i++ {
		var v uint64
		if toDirect {
			v = uint64(s.Get(i))
		} else {
			v = getPacked(s.blocks, s.bitsPerEntry, i)
		}
		setPacked(blocks, bitsPerEntry, i, v)
	}

	s.blocks = blocks
	s.bitsPerEntry = bitsPerEntry
	if toDirect {
		s.paletteBlock = nil
		s.blockPalette = nil
	}
	return nil
}

// BlockCount counts non-air entries.
func (s *Section) BlockCount() int {
	n := 0
	for i := 0; i < SectionVolume; i++ {
		if s.Get(i) != 0 {
			n++
		}
	}
	return n
}
