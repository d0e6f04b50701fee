package chunk

import (
	"bytes"
	"io"
	"sort"

	pk "github.com/Tnze/go-mc/net/packet"

	"github.com/astei/chunkdata/nbt"
	"github.com/astei/chunkdata/palette"
)

// MaxSectionBlobSize is the largest section blob a packet can carry: every section present,
// a full palette and 16 bits per entry.
const MaxSectionBlobSize = (2 + 1 + 5 + 256*5 + 5 + palette.SectionVolume*palette.MaxBitsPerEntry/8) * palette.SectionCount

// headerAllowance bounds everything outside the staged blobs except biomes: coordinates,
// the mask, the heightmap compound and the three length prefixes.
const headerAllowance = 1024

const maxVarIntLen = 5

// Encoder writes chunk data packets. Its scratch buffers are reused across calls, so an
// Encoder must not be shared between goroutines; use one per worker.
type Encoder struct {
	scratch  bytes.Buffer
	entities bytes.Buffer
}

func NewEncoder() *Encoder {
	e := &Encoder{}
	e.scratch.Grow(MaxSectionBlobSize)
	return e
}

// EncodeBytes encodes p into a newly allocated slice sized for the whole packet.
func (e *Encoder) EncodeBytes(p *Packet) ([]byte, error) {
	indices, err := e.stage(p)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	out.Grow(e.sizeHint(p))
	if err = e.writeStaged(&out, p, indices); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (e *Encoder) Encode(w io.Writer, p *Packet) error {
	indices, err := e.stage(p)
	if err != nil {
		return err
	}
	return e.writeStaged(w, p, indices)
}

// stage writes the section blob and the block entity records into the scratch buffers and
// returns the present section indices.
func (e *Encoder) stage(p *Packet) (indices []int, err error) {
	e.scratch.Reset()
	e.entities.Reset()

	if p.Storage != nil {
		indices = p.Storage.Indices()
	}
	for _, index := range indices {
		if err = writeSection(&e.scratch, p.Storage.Section(index)); err != nil {
			return
		}
	}
	err = writeBlockEntities(&e.entities, p)
	return
}

// sizeHint is an upper bound on the encoded size of p once it has been staged.
func (e *Encoder) sizeHint(p *Packet) int {
	return headerAllowance + maxVarIntLen*len(p.Biomes) + e.scratch.Len() + e.entities.Len()
}

func (e *Encoder) writeStaged(w io.Writer, p *Packet, indices []int) (err error) {
	if _, err = pk.Int(p.ChunkX).WriteTo(w); err != nil {
		return
	}
	if _, err = pk.Int(p.ChunkZ).WriteTo(w); err != nil {
		return
	}

	mask := ComputeMask(indices)
	if _, err = pk.VarInt(len(mask)).WriteTo(w); err != nil {
		return
	}
	for _, word := range mask {
		if _, err = pk.Long(word).WriteTo(w); err != nil {
			return
		}
	}

	heightmaps := p.Heightmaps
	if heightmaps == nil {
		heightmaps = DefaultHeightmaps()
	}
	if err = nbt.NewEncoder(w).Encode(heightmaps.compound()); err != nil {
		return
	}

	if _, err = pk.VarInt(len(p.Biomes)).WriteTo(w); err != nil {
		return
	}
	for _, biome := range p.Biomes {
		if _, err = pk.VarInt(biome.ID).WriteTo(w); err != nil {
			return
		}
	}

	if _, err = pk.VarInt(e.scratch.Len()).WriteTo(w); err != nil {
		return
	}
	if _, err = w.Write(e.scratch.Bytes()); err != nil {
		return
	}
	_, err = w.Write(e.entities.Bytes())
	return
}

func writeSection(out io.Writer, section *palette.Section) (err error) {
	// Sections are either fully populated or absent.
	if _, err = pk.Short(palette.SectionVolume).WriteTo(out); err != nil {
		return
	}
	if _, err = pk.UnsignedByte(section.BitsPerEntry()).WriteTo(out); err != nil {
		return
	}
	if !section.Direct() {
		values := section.Palette()
		if _, err = pk.VarInt(len(values)).WriteTo(out); err != nil {
			return
		}
		for _, v := range values {
			if _, err = pk.VarInt(v).WriteTo(out); err != nil {
				return
			}
		}
	}
	words := section.Blocks()
	if _, err = pk.VarInt(len(words)).WriteTo(out); err != nil {
		return
	}
	for _, word := range words {
		if _, err = pk.Long(word).WriteTo(out); err != nil {
			return
		}
	}
	return
}

func writeBlockEntities(w io.Writer, p *Packet) (err error) {
	if _, err = pk.VarInt(len(p.BlockEntities)).WriteTo(w); err != nil {
		return
	}
	indices := make([]int, 0, len(p.BlockEntities))
	for index := range p.BlockEntities {
		indices = append(indices, index)
	}
	sort.Ints(indices)

	enc := nbt.NewEncoder(w)
	for _, index := range indices {
		entity := p.BlockEntities[index]
		x, y, z := BlockPosition(index, p.ChunkX, p.ChunkZ)

		tag := entity.Data.Clone()
		tag["id"] = entity.ID
		tag["x"] = x
		tag["y"] = y
		tag["z"] = z
		if err = enc.Encode(tag); err != nil {
			return
		}
	}
	return
}
