// Package chunk encodes and decodes chunk data packets: coordinates, the section presence
// mask, heightmaps, biomes, the packed section blob and block entity records.
package chunk

import (
	"github.com/astei/chunkdata/nbt"
	"github.com/astei/chunkdata/palette"
)

// Packet is a chunk data packet. It is built fresh for each encode or decode and is not
// safe for concurrent mutation. Encoding never modifies it.
type Packet struct {
	ChunkX int32
	ChunkZ int32

	Storage *palette.Storage

	// Heightmaps are written as-is; nil writes DefaultHeightmaps.
	Heightmaps *Heightmaps
	Biomes     []Biome

	// BlockEntities is keyed by BlockIndex of the block inside this chunk.
	BlockEntities map[int]BlockEntity

	// Raw records as read by the decoder.
	HeightmapsNBT    nbt.Compound
	BlockEntitiesNBT []nbt.Compound
}

func NewPacket(chunkX, chunkZ int32, minBitsPerEntry int) *Packet {
	return &Packet{
		ChunkX:  chunkX,
		ChunkZ:  chunkZ,
		Storage: palette.NewStorage(minBitsPerEntry),
	}
}

type Biome struct {
	ID         int32
	Identifier string
}

// BlockEntity is a block carrying extra data. Data holds fields beyond id, x, y and z,
// which are always written from ID and the block position.
type BlockEntity struct {
	ID   string
	Data nbt.Compound
}

// BlockIndex returns the chunk-wide index of a block at chunk-local coordinates.
func BlockIndex(x, y, z int) int {
	return y<<8 | (z&15)<<4 | x&15
}

// BlockPosition converts a BlockIndex back to absolute world coordinates.
func BlockPosition(index int, chunkX, chunkZ int32) (x, y, z int32) {
	x = chunkX*16 + int32(index&15)
	z = chunkZ*16 + int32(index>>4&15)
	y = int32(index >> 8)
	return
}
