package main

import (
	"fmt"
	"log"
	"math/bits"

	"github.com/astei/chunkdata/chunk"
	"github.com/astei/chunkdata/nbt"
	"github.com/astei/chunkdata/palette"
	"github.com/astei/chunkdata/registry"
)

// From 20w17a (DataVersion 2529) on, packed entries no longer straddle longs.
const anvilPaddedDataVersion = 2529

// anvilChunkConverter turns Anvil chunk NBT (1.13 to 1.17 layout) into chunk packets.
type anvilChunkConverter struct {
	registries        *registry.Registries
	minBitsPerEntry   int
	unknownBlockAsAir bool
	defaultHeightmaps *chunk.Heightmaps
}

func (c *anvilChunkConverter) convert(root nbt.Compound) (*chunk.Packet, error) {
	level, ok := root.GetCompound("Level")
	if !ok {
		return nil, fmt.Errorf("unsupported chunk layout: no Level compound")
	}
	dataVersion, _ := root.GetInt("DataVersion")
	padded := dataVersion >= anvilPaddedDataVersion

	chunkX, okX := level.GetInt("xPos")
	chunkZ, okZ := level.GetInt("zPos")
	if !okX || !okZ {
		return nil, fmt.Errorf("chunk without position")
	}

	packet := chunk.NewPacket(chunkX, chunkZ, c.minBitsPerEntry)
	if sections, ok := level.GetList("Sections"); ok {
		for _, item := range sections.Items {
			section, ok := item.(nbt.Compound)
			if !ok {
				continue
			}
			if err := c.convertSection(packet.Storage, section, padded); err != nil {
				return nil, fmt.Errorf("chunk %d,%d: %w", chunkX, chunkZ, err)
			}
		}
	}

	if biomes, ok := level.GetIntArray("Biomes"); ok {
		packet.Biomes = make([]chunk.Biome, len(biomes))
		for i, id := range biomes {
			packet.Biomes[i] = chunk.Biome{ID: id}
			if identifier, ok := c.registries.Biomes.IdentifierFor(id); ok {
				packet.Biomes[i].Identifier = identifier
			}
		}
	}

	packet.Heightmaps = c.defaultHeightmaps
	if heightmaps, ok := level.GetCompound("Heightmaps"); ok {
		converted, err := anvilHeightmaps(heightmaps, padded)
		if err != nil {
			return nil, fmt.Errorf("chunk %d,%d: %w", chunkX, chunkZ, err)
		}
		if converted != nil {
			packet.Heightmaps = converted
		}
	}

	if tileEntities, ok := level.GetList("TileEntities"); ok {
		c.convertTileEntities(packet, tileEntities)
	}
	return packet, nil
}

func (c *anvilChunkConverter) convertSection(storage *palette.Storage, section nbt.Compound, padded bool) error {
	y, _ := section.GetInt("Y")
	paletteList, hasPalette := section.GetList("Palette")
	states, hasStates := section.GetLongArray("BlockStates")
	// Light-only sections above and below the column carry no blocks.
	if y < 0 || y >= palette.SectionCount || !hasPalette || !hasStates || len(paletteList.Items) == 0 {
		return nil
	}

	ids := make([]int32, len(paletteList.Items))
	for i, item := range paletteList.Items {
		entry, ok := item.(nbt.Compound)
		if !ok {
			return fmt.Errorf("section %d: palette entry %d is not a compound", y, i)
		}
		id, err := c.blockStateID(entry)
		if err != nil {
			return fmt.Errorf("section %d: %w", y, err)
		}
		ids[i] = id
	}

	bitsPerEntry := bits.Len(uint(len(ids) - 1))
	if bitsPerEntry < 4 {
		bitsPerEntry = 4
	}
	words := make([]uint64, len(states))
	for i, l := range states {
		words[i] = uint64(l)
	}
	locals, err := unpackAnvilStates(words, bitsPerEntry, padded)
	if err != nil {
		return fmt.Errorf("section %d: %w", y, err)
	}

	target, err := palette.NewSection(storage.MinBitsPerEntry())
	if err != nil {
		return err
	}
	empty := true
	for i, local := range locals {
		if int(local) >= len(ids) {
			return fmt.Errorf("section %d: palette index %d out of range", y, local)
		}
		if ids[local] != 0 {
			empty = false
		}
		if err := target.Set(i, ids[local]); err != nil {
			return fmt.Errorf("section %d: %w", y, err)
		}
	}
	if empty {
		return nil
	}
	return storage.Put(int(y), target)
}

func (c *anvilChunkConverter) blockStateID(entry nbt.Compound) (int32, error) {
	name, ok := entry.GetString("Name")
	if !ok {
		return 0, fmt.Errorf("palette entry without Name")
	}
	properties := map[string]string{}
	if props, ok := entry.GetCompound("Properties"); ok {
		for k, v := range props {
			if s, ok := v.(string); ok {
				properties[k] = s
			}
		}
	}
	key := registry.StateKey(name, properties)
	if id, ok := c.registries.Blocks.IDFor(key); ok {
		return id, nil
	}
	if id, ok := c.registries.Blocks.IDFor(name); ok {
		return id, nil
	}
	if c.unknownBlockAsAir {
		log.Printf("unknown block state %s, using air", key)
		return 0, nil
	}
	return 0, fmt.Errorf("%w: %s", chunk.ErrUnknownBlockIdentifier, key)
}

func (c *anvilChunkConverter) convertTileEntities(packet *chunk.Packet, tileEntities nbt.List) {
	for _, item := range tileEntities.Items {
		tag, ok := item.(nbt.Compound)
		if !ok {
			continue
		}
		id, okID := tag.GetString("id")
		x, okX := tag.GetInt("x")
		y, okY := tag.GetInt("y")
		z, okZ := tag.GetInt("z")
		if !okID || !okX || !okY || !okZ {
			log.Printf("chunk %d,%d: skipping tile entity without id or position", packet.ChunkX, packet.ChunkZ)
			continue
		}
		localX, localZ := x-packet.ChunkX*16, z-packet.ChunkZ*16
		if localX < 0 || localX >= 16 || localZ < 0 || localZ >= 16 || y < 0 || y >= palette.SectionCount*16 {
			log.Printf("chunk %d,%d: skipping tile entity %s at %d,%d,%d outside the chunk", packet.ChunkX, packet.ChunkZ, id, x, y, z)
			continue
		}

		data := tag.Clone()
		for _, key := range []string{"id", "x", "y", "z", "keepPacked"} {
			delete(data, key)
		}
		if len(data) == 0 {
			data = nil
		}
		if packet.BlockEntities == nil {
			packet.BlockEntities = make(map[int]chunk.BlockEntity)
		}
		packet.BlockEntities[chunk.BlockIndex(int(localX), int(y), int(localZ))] = chunk.BlockEntity{ID: id, Data: data}
	}
}

func anvilHeightmaps(heightmaps nbt.Compound, padded bool) (*chunk.Heightmaps, error) {
	motion, okMotion := heightmaps.GetLongArray("MOTION_BLOCKING")
	surface, okSurface := heightmaps.GetLongArray("WORLD_SURFACE")
	if !okMotion || !okSurface {
		return nil, nil
	}
	h := &chunk.Heightmaps{}
	for _, m := range []struct {
		src []int64
		dst []int32
	}{{motion, h.MotionBlocking[:]}, {surface, h.WorldSurface[:]}} {
		words := make([]uint64, len(m.src))
		for i, l := range m.src {
			words[i] = uint64(l)
		}
		values, err := unpackAnvil(words, chunk.HeightmapBits, len(m.dst), padded)
		if err != nil {
			return nil, fmt.Errorf("heightmaps: %w", err)
		}
		copy(m.dst, values)
	}
	return h, nil
}

func unpackAnvilStates(words []uint64, bitsPerEntry int, padded bool) ([]int32, error) {
	return unpackAnvil(words, bitsPerEntry, palette.SectionVolume, padded)
}

// unpackAnvil reads n entries. Padded data keeps 64/bits entries per long and leaves the
// high bits unused; unpadded data is the same packing the wire uses.
func unpackAnvil(words []uint64, bitsPerEntry, n int, padded bool) ([]int32, error) {
	if !padded {
		return palette.Unpack(words, bitsPerEntry, n)
	}
	perWord := 64 / bitsPerEntry
	if len(words) < (n+perWord-1)/perWord {
		return nil, palette.ErrShortData
	}
	mask := uint64(1)<<uint(bitsPerEntry) - 1
	out := make([]int32, n)
	for i := range out {
		word := words[i/perWord]
		out[i] = int32(word >> uint((i%perWord)*bitsPerEntry) & mask)
	}
	return out, nil
}
