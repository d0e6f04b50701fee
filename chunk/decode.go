package chunk

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	pk "github.com/Tnze/go-mc/net/packet"

	"github.com/astei/chunkdata/nbt"
	"github.com/astei/chunkdata/palette"
	"github.com/astei/chunkdata/registry"
)

const (
	maxMaskWords   = 64
	maxBiomes      = 1 << 16
	maxBlockEntity = palette.SectionCount * palette.SectionVolume
)

type UnknownBiomePolicy int

const (
	// FailUnknownBiome aborts decoding with ErrUnknownBiomeID.
	FailUnknownBiome UnknownBiomePolicy = iota
	// SubstituteUnknownBiome replaces unresolved biomes with Decoder.FallbackBiome.
	SubstituteUnknownBiome
)

// BlockEntityTypes reports whether a block entity identifier is known.
type BlockEntityTypes interface {
	Has(id string) bool
}

// Decoder reads chunk data packets. A Decoder holds no per-call state and may be shared.
type Decoder struct {
	// Biomes resolves biome IDs. When nil, IDs are kept without identifiers.
	Biomes registry.Lookup
	// BlockEntities validates block entity identifiers. When nil, any identifier is accepted.
	BlockEntities BlockEntityTypes
	// Errors receives every error that aborts decoding.
	Errors ErrorHandler

	MinBitsPerEntry int
	UnknownBiome    UnknownBiomePolicy
	FallbackBiome   Biome
}

func (d *Decoder) DecodeBytes(data []byte) (*Packet, error) {
	return d.Decode(bytes.NewReader(data))
}

// Decode reads one packet. Readers that are not io.ByteReaders are buffered, which may consume
// bytes past the end of the packet.
//
// On error the partially filled packet is returned with it; it must not be used.
// The error is also passed to d.Errors.
func (d *Decoder) Decode(r io.Reader) (p *Packet, err error) {
	if _, ok := r.(io.ByteReader); !ok {
		r = bufio.NewReader(r)
	}
	p = NewPacket(0, 0, d.MinBitsPerEntry)
	if err = d.decode(r, p); err != nil && d.Errors != nil {
		d.Errors.HandleError(err)
	}
	return
}

func (d *Decoder) decode(r io.Reader, p *Packet) (err error) {
	var chunkX, chunkZ pk.Int
	if _, err = chunkX.ReadFrom(r); err != nil {
		return malformed("chunk x", err)
	}
	if _, err = chunkZ.ReadFrom(r); err != nil {
		return malformed("chunk z", err)
	}
	p.ChunkX, p.ChunkZ = int32(chunkX), int32(chunkZ)

	mask, err := readMask(r)
	if err != nil {
		return err
	}

	if p.HeightmapsNBT, err = nbt.NewDecoder(r).Decode(); err != nil {
		return malformed("heightmaps", err)
	}
	// Heightmaps in another packing are only consumed; p.Heightmaps stays nil and the raw
	// compound is kept in HeightmapsNBT.
	if heightmaps, err := heightmapsFromCompound(p.HeightmapsNBT); err == nil {
		p.Heightmaps = heightmaps
	}

	if p.Biomes, err = d.readBiomes(r); err != nil {
		return err
	}

	if err = d.readSections(r, mask, p.Storage); err != nil {
		return err
	}

	return d.readBlockEntities(r, p)
}

func readMask(r io.Reader) ([]uint64, error) {
	var count pk.VarInt
	if _, err := count.ReadFrom(r); err != nil {
		return nil, malformed("mask length", err)
	}
	if count < 0 || count > maxMaskWords {
		return nil, fmt.Errorf("%w: mask length %d", ErrMalformedStream, count)
	}
	mask := make([]uint64, count)
	for i := range mask {
		var word pk.Long
		if _, err := word.ReadFrom(r); err != nil {
			return nil, malformed("mask", err)
		}
		mask[i] = uint64(word)
	}
	return mask, nil
}

func (d *Decoder) readBiomes(r io.Reader) ([]Biome, error) {
	var count pk.VarInt
	if _, err := count.ReadFrom(r); err != nil {
		return nil, malformed("biome count", err)
	}
	if count < 0 || count > maxBiomes {
		return nil, fmt.Errorf("%w: biome count %d", ErrMalformedStream, count)
	}
	if count == 0 {
		return nil, nil
	}

	biomes := make([]Biome, count)
	for i := range biomes {
		var id pk.VarInt
		if _, err := id.ReadFrom(r); err != nil {
			return nil, malformed("biome", err)
		}
		biome, err := d.resolveBiome(int32(id))
		if err != nil {
			return nil, err
		}
		biomes[i] = biome
	}
	return biomes, nil
}

func (d *Decoder) resolveBiome(id int32) (Biome, error) {
	if d.Biomes == nil {
		return Biome{ID: id}, nil
	}
	if identifier, ok := d.Biomes.IdentifierFor(id); ok {
		return Biome{ID: id, Identifier: identifier}, nil
	}
	if d.UnknownBiome == SubstituteUnknownBiome {
		return d.FallbackBiome, nil
	}
	return Biome{}, fmt.Errorf("%w: %d", ErrUnknownBiomeID, id)
}

func (d *Decoder) readSections(r io.Reader, mask []uint64, storage *palette.Storage) error {
	var length pk.VarInt
	if _, err := length.ReadFrom(r); err != nil {
		return malformed("section data length", err)
	}
	if length < 0 || length > MaxSectionBlobSize {
		return fmt.Errorf("%w: section data length %d", ErrMalformedStream, length)
	}
	blob := make([]byte, length)
	if _, err := io.ReadFull(r, blob); err != nil {
		return malformed("section data", err)
	}

	in := bytes.NewReader(blob)
	for _, index := range MaskIndices(mask) {
		if index >= palette.SectionCount {
			return fmt.Errorf("%w: section %d present in mask", ErrMalformedStream, index)
		}
		section, err := readSection(in)
		if err != nil {
			return fmt.Errorf("section %d: %w", index, err)
		}
		// Keep at least the local minimum width so later writes do not resize immediately.
		if minBits := storage.MinBitsPerEntry(); section.BitsPerEntry() < minBits {
			if err = section.Resize(minBits); err != nil {
				return fmt.Errorf("section %d: %w", index, err)
			}
		}
		if err = storage.Put(index, section); err != nil {
			return err
		}
	}
	if in.Len() != 0 {
		return fmt.Errorf("%w: %d trailing bytes in section data", ErrMalformedStream, in.Len())
	}
	return nil
}

func readSection(r io.Reader) (*palette.Section, error) {
	var blockCount pk.Short
	if _, err := blockCount.ReadFrom(r); err != nil {
		return nil, malformed("block count", err)
	}
	var bits pk.UnsignedByte
	if _, err := bits.ReadFrom(r); err != nil {
		return nil, malformed("bits per entry", err)
	}
	bitsPerEntry := int(bits)
	if bitsPerEntry < 1 || bitsPerEntry > palette.MaxBitsPerEntry {
		return nil, fmt.Errorf("%w: bits per entry %d", ErrMalformedStream, bitsPerEntry)
	}

	var values []int32
	if bitsPerEntry < palette.DirectThreshold {
		var size pk.VarInt
		if _, err := size.ReadFrom(r); err != nil {
			return nil, malformed("palette size", err)
		}
		if size < 0 || int(size) > 1<<uint(bitsPerEntry) {
			return nil, fmt.Errorf("%w: palette size %d at %d bits", ErrMalformedStream, size, bitsPerEntry)
		}
		values = make([]int32, size)
		for i := range values {
			var v pk.VarInt
			if _, err := v.ReadFrom(r); err != nil {
				return nil, malformed("palette", err)
			}
			values[i] = int32(v)
		}
	}

	var wordCount pk.VarInt
	if _, err := wordCount.ReadFrom(r); err != nil {
		return nil, malformed("data length", err)
	}
	if wordCount < 0 || int(wordCount) > palette.WordsFor(palette.SectionVolume, palette.MaxBitsPerEntry) {
		return nil, fmt.Errorf("%w: data length %d", ErrMalformedStream, wordCount)
	}
	words := make([]uint64, wordCount)
	for i := range words {
		var word pk.Long
		if _, err := word.ReadFrom(r); err != nil {
			return nil, malformed("data", err)
		}
		words[i] = uint64(word)
	}

	section, err := palette.Load(bitsPerEntry, values, words)
	if err != nil {
		return nil, malformed("section", err)
	}
	return section, nil
}

func (d *Decoder) readBlockEntities(r io.Reader, p *Packet) error {
	var count pk.VarInt
	if _, err := count.ReadFrom(r); err != nil {
		return malformed("block entity count", err)
	}
	if count < 0 || count > maxBlockEntity {
		return fmt.Errorf("%w: block entity count %d", ErrMalformedStream, count)
	}
	if count == 0 {
		return nil
	}

	p.BlockEntities = make(map[int]BlockEntity, count)
	dec := nbt.NewDecoder(r)
	for i := 0; i < int(count); i++ {
		tag, err := dec.Decode()
		if err != nil {
			return malformed("block entity", err)
		}
		p.BlockEntitiesNBT = append(p.BlockEntitiesNBT, tag)

		index, entity, err := d.blockEntityFromTag(tag, p.ChunkX, p.ChunkZ)
		if err != nil {
			return err
		}
		p.BlockEntities[index] = entity
	}
	return nil
}

func (d *Decoder) blockEntityFromTag(tag nbt.Compound, chunkX, chunkZ int32) (int, BlockEntity, error) {
	id, ok := tag.GetString("id")
	if !ok {
		return 0, BlockEntity{}, fmt.Errorf("%w: block entity without id", ErrMalformedStream)
	}
	x, okX := tag.GetInt("x")
	y, okY := tag.GetInt("y")
	z, okZ := tag.GetInt("z")
	if !okX || !okY || !okZ {
		return 0, BlockEntity{}, fmt.Errorf("%w: block entity %s without position", ErrMalformedStream, id)
	}
	if d.BlockEntities != nil && !d.BlockEntities.Has(id) {
		return 0, BlockEntity{}, fmt.Errorf("%w: %s", ErrUnknownBlockIdentifier, id)
	}

	localX, localZ := x-chunkX*16, z-chunkZ*16
	if localX < 0 || localX >= 16 || localZ < 0 || localZ >= 16 || y < 0 || y >= palette.SectionCount*16 {
		return 0, BlockEntity{}, fmt.Errorf("%w: block entity %s at %d,%d,%d outside chunk", ErrMalformedStream, id, x, y, z)
	}

	data := tag.Clone()
	for _, key := range []string{"id", "x", "y", "z"} {
		delete(data, key)
	}
	if len(data) == 0 {
		data = nil
	}
	return BlockIndex(int(localX), int(y), int(localZ)), BlockEntity{ID: id, Data: data}, nil
}
