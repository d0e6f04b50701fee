package chunk

import (
	"fmt"

	"github.com/astei/chunkdata/nbt"
	"github.com/astei/chunkdata/palette"
)

const (
	HeightmapBits    = 9
	heightmapColumns = 16 * 16

	motionBlockingKey = "MOTION_BLOCKING"
	worldSurfaceKey   = "WORLD_SURFACE"
)

// Heightmaps hold one height per column, indexed x + z*16. Computing them is up to the caller.
type Heightmaps struct {
	MotionBlocking [heightmapColumns]int32
	WorldSurface   [heightmapColumns]int32
}

// DefaultHeightmaps is the placeholder written when a packet carries no heightmaps.
func DefaultHeightmaps() *Heightmaps {
	return UniformHeightmaps(4, 5)
}

func UniformHeightmaps(motionBlocking, worldSurface int32) *Heightmaps {
	h := &Heightmaps{}
	for i := 0; i < heightmapColumns; i++ {
		h.MotionBlocking[i] = motionBlocking
		h.WorldSurface[i] = worldSurface
	}
	return h
}

func (h *Heightmaps) compound() nbt.Compound {
	return nbt.Compound{
		motionBlockingKey: packHeights(h.MotionBlocking[:]),
		worldSurfaceKey:   packHeights(h.WorldSurface[:]),
	}
}

func packHeights(heights []int32) []int64 {
	words := palette.Pack(heights, HeightmapBits)
	out := make([]int64, len(words))
	for i, w := range words {
		out[i] = int64(w)
	}
	return out
}

func heightmapsFromCompound(c nbt.Compound) (*Heightmaps, error) {
	h := &Heightmaps{}
	for key, dst := range map[string]*[heightmapColumns]int32{
		motionBlockingKey: &h.MotionBlocking,
		worldSurfaceKey:   &h.WorldSurface,
	} {
		longs, ok := c.GetLongArray(key)
		if !ok {
			return nil, fmt.Errorf("heightmap %s missing", key)
		}
		// Any other length is a different packing, such as 7 padded entries per long.
		if want := palette.WordsFor(heightmapColumns, HeightmapBits); len(longs) != want {
			return nil, fmt.Errorf("heightmap %s: %d longs, want %d", key, len(longs), want)
		}
		words := make([]uint64, len(longs))
		for i, l := range longs {
			words[i] = uint64(l)
		}
		heights, err := palette.Unpack(words, HeightmapBits, heightmapColumns)
		if err != nil {
			return nil, fmt.Errorf("heightmap %s: %w", key, err)
		}
		copy(dst[:], heights)
	}
	return h, nil
}
