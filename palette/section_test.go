package palette

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPackStraddlesWords(t *testing.T) {
	// 5-bit entries: entry 12 covers bits 60..64 and straddles words 0 and 1.
	values := make([]int32, 26)
	for i := range values {
		values[i] = int32(31 - i)
	}
	words := Pack(values, 5)
	if len(words) != 3 {
		t.Fatalf("len(words) = %d, want 3", len(words))
	}
	if got := (words[0] >> 60) | (words[1]&1)<<4; got != uint64(values[12]) {
		t.Fatalf("straddling entry = %d, want %d", got, values[12])
	}
	out, err := Unpack(words, 5, len(values))
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if diff := cmp.Diff(values, out); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestUnpackShortData(t *testing.T) {
	if _, err := Unpack(make([]uint64, 2), 9, 256); !errors.Is(err, ErrShortData) {
		t.Fatalf("got %v, want ErrShortData", err)
	}
}

func TestNewSectionIsAir(t *testing.T) {
	s, err := NewSection(4)
	if err != nil {
		t.Fatalf("NewSection: %v", err)
	}
	if len(s.Blocks()) != WordsFor(SectionVolume, 4) {
		t.Fatalf("blocks len = %d", len(s.Blocks()))
	}
	for i := 0; i < SectionVolume; i++ {
		if s.Get(i) != 0 {
			t.Fatalf("index %d = %d, want air", i, s.Get(i))
		}
	}
	if s.BlockCount() != 0 {
		t.Fatalf("BlockCount = %d", s.BlockCount())
	}
}

func TestSetReusesPaletteEntry(t *testing.T) {
	s, _ := NewSection(4)
	for i := 0; i < 100; i++ {
		if err := s.Set(i, 7); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	if diff := cmp.Diff([]int32{0, 7}, s.Palette()); diff != "" {
		t.Fatalf("palette mismatch:\n%s", diff)
	}
	if s.BlockCount() != 100 {
		t.Fatalf("BlockCount = %d, want 100", s.BlockCount())
	}
}

func TestWidthGrowth(t *testing.T) {
	for k := 1; k < DirectThreshold-1; k++ {
		s, err := NewSection(k)
		if err != nil {
			t.Fatalf("NewSection(%d): %v", k, err)
		}
		// Air already holds local index 0; fill the remaining 2^k-1 slots.
		n := 1 << uint(k)
		for v := 1; v < n; v++ {
			if err := s.Set(v, int32(v*3)); err != nil {
				t.Fatalf("Set: %v", err)
			}
		}
		if s.BitsPerEntry() != k {
			t.Fatalf("width %d grew early to %d", k, s.BitsPerEntry())
		}
		if err := s.Set(n, int32(n*3)); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if s.BitsPerEntry() != k+1 {
			t.Fatalf("width = %d, want %d", s.BitsPerEntry(), k+1)
		}
		for v := 1; v <= n; v++ {
			if got := s.Get(v); got != int32(v*3) {
				t.Fatalf("k=%d index %d = %d, want %d", k, v, got, v*3)
			}
		}
		if s.Get(SectionVolume-1) != 0 {
			t.Fatalf("untouched entry changed")
		}
	}
}

func TestSwitchToDirect(t *testing.T) {
	s, _ := NewSection(8)
	for v := 1; v < 256; v++ {
		if err := s.Set(v, int32(1000+v)); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	if s.Direct() {
		t.Fatalf("direct too early")
	}
	if err := s.Set(256, 1256); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !s.Direct() {
		t.Fatalf("expected direct mode at %d bits", s.BitsPerEntry())
	}
	// Global IDs up to 1256 need 11 bits.
	if s.BitsPerEntry() != 11 {
		t.Fatalf("width = %d, want 11", s.BitsPerEntry())
	}
	if s.Palette() != nil {
		t.Fatalf("direct section reports a palette")
	}
	for v := 1; v <= 256; v++ {
		if got := s.Get(v); got != int32(1000+v) {
			t.Fatalf("index %d = %d, want %d", v, got, 1000+v)
		}
	}
	if err := s.Set(300, 40000); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if s.BitsPerEntry() != 16 || s.Get(300) != 40000 || s.Get(5) != 1005 {
		t.Fatalf("direct widening lost data: bits=%d", s.BitsPerEntry())
	}
}

func TestResize(t *testing.T) {
	s, _ := NewSection(4)
	_ = s.Set(10, 3)
	_ = s.Set(11, 4)

	if err := s.Resize(3); !errors.Is(err, ErrShrink) {
		t.Fatalf("shrink: got %v", err)
	}
	if err := s.Resize(17); !errors.Is(err, ErrPaletteOverflow) {
		t.Fatalf("overflow: got %v", err)
	}
	if err := s.Resize(6); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if s.Get(10) != 3 || s.Get(11) != 4 || s.Direct() {
		t.Fatalf("indirect resize lost data")
	}
	if err := s.Resize(9); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if s.Get(10) != 3 || s.Get(11) != 4 || !s.Direct() {
		t.Fatalf("direct resize lost data")
	}
}

func TestSetRejectsOutOfRange(t *testing.T) {
	s, _ := NewSection(4)
	if err := s.Set(SectionVolume, 1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("got %v", err)
	}
	if err := s.Set(0, 1<<16); !errors.Is(err, ErrPaletteOverflow) {
		t.Fatalf("got %v", err)
	}
	if err := s.Set(0, -1); !errors.Is(err, ErrPaletteOverflow) {
		t.Fatalf("got %v", err)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, ids := range []int{1, 5, 40, 300} {
		src, _ := NewSection(4)
		for i := 0; i < SectionVolume; i++ {
			if err := src.Set(i, int32(rng.Intn(ids))); err != nil {
				t.Fatalf("Set: %v", err)
			}
		}
		dst, err := Load(src.BitsPerEntry(), src.Palette(), src.Blocks())
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		for i := 0; i < SectionVolume; i++ {
			if src.Get(i) != dst.Get(i) {
				t.Fatalf("ids=%d index %d: %d != %d", ids, i, dst.Get(i), src.Get(i))
			}
		}
	}
}

func TestLoadValidates(t *testing.T) {
	if _, err := Load(0, nil, nil); !errors.Is(err, ErrMalformedSection) {
		t.Fatalf("bits 0: %v", err)
	}
	if _, err := Load(4, nil, make([]uint64, 10)); !errors.Is(err, ErrMalformedSection) {
		t.Fatalf("short words: %v", err)
	}
	if _, err := Load(1, []int32{1, 2, 3}, make([]uint64, 64)); !errors.Is(err, ErrMalformedSection) {
		t.Fatalf("oversized palette: %v", err)
	}
	if _, err := Load(4, []int32{-1}, make([]uint64, 256)); !errors.Is(err, ErrMalformedSection) {
		t.Fatalf("negative palette value: %v", err)
	}
}

func TestLoadRejectsIndexPastPalette(t *testing.T) {
	words := make([]uint64, WordsFor(SectionVolume, 4))
	words[0] = 1 // block 0 -> local index 1
	if _, err := Load(4, []int32{5}, words); !errors.Is(err, ErrMalformedSection) {
		t.Fatalf("index past palette: %v", err)
	}
	if _, err := Load(4, nil, make([]uint64, len(words))); !errors.Is(err, ErrMalformedSection) {
		t.Fatalf("empty palette: %v", err)
	}
	if _, err := Load(4, []int32{5, 0}, words); err != nil {
		t.Fatalf("valid section: %v", err)
	}
}

func TestGetOutOfRange(t *testing.T) {
	s, _ := NewSection(4)
	if err := s.Set(0, 3); err != nil {
		t.Fatalf("Set: %v", err)
	}
	for _, index := range []int{-1, SectionVolume, SectionVolume + 100} {
		if got := s.Get(index); got != 0 {
			t.Fatalf("Get(%d) = %d, want 0", index, got)
		}
	}
}
