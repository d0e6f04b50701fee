package palette

import "fmt"

// SectionCount is the number of sections stacked in one chunk column.
const SectionCount = 16

// Storage holds the sections of one chunk column. A nil slot is an absent (all air) section.
type Storage struct {
	minBits  int
	sections [SectionCount]*Section
}

// NewStorage creates an empty storage whose new sections start at minBits wide.
// A non-positive minBits selects MinBitsPerEntry.
func NewStorage(minBits int) *Storage {
	if minBits <= 0 {
		minBits = MinBitsPerEntry
	}
	if minBits > MaxBitsPerEntry {
		minBits = MaxBitsPerEntry
	}
	return &Storage{minBits: minBits}
}

func (s *Storage) MinBitsPerEntry() int {
	return s.minBits
}

// Section returns the section at index, or nil if it is absent.
func (s *Storage) Section(index int) *Section {
	if index < 0 || index >= SectionCount {
		return nil
	}
	return s.sections[index]
}

func (s *Storage) SectionOrCreate(index int) (*Section, error) {
	if index < 0 || index >= SectionCount {
		return nil, fmt.Errorf("palette: section index %d out of range", index)
	}
	if s.sections[index] == nil {
		section, err := NewSection(s.minBits)
		if err != nil {
			return nil, err
		}
		s.sections[index] = section
	}
	return s.sections[index], nil
}

// Put replaces the section at index. A nil section removes it.
func (s *Storage) Put(index int, section *Section) error {
	if index < 0 || index >= SectionCount {
		return fmt.Errorf("palette: section index %d out of range", index)
	}
	s.sections[index] = section
	return nil
}

// Indices returns the indices of present sections in ascending order.
func (s *Storage) Indices() []int {
	var out []int
	for i, section := range s.sections {
		if section != nil {
			out = append(out, i)
		}
	}
	return out
}

func (s *Storage) Len() int {
	n := 0
	for _, section := range s.sections {
		if section != nil {
			n++
		}
	}
	return n
}

// Get returns the block state at chunk-local coordinates. x and z are in [0,16), y in [0,256).
func (s *Storage) Get(x, y, z int) int32 {
	section := s.Section(y >> 4)
	if section == nil || !inColumn(x, y, z) {
		return 0
	}
	return section.Get(Index(x, y, z))
}

func (s *Storage) Set(x, y, z int, id int32) error {
	if !inColumn(x, y, z) {
		return fmt.Errorf("palette: position %d,%d,%d outside chunk column", x, y, z)
	}
	section, err := s.SectionOrCreate(y >> 4)
	if err != nil {
		return err
	}
	return section.Set(Index(x, y, z), id)
}

// Index returns the position of a block inside its section.
func Index(x, y, z int) int {
	return (y&15)<<8 | (z&15)<<4 | x&15
}

func inColumn(x, y, z int) bool {
	return x >= 0 && x < 16 && z >= 0 && z < 16 && y >= 0 && y < SectionCount*16
}
