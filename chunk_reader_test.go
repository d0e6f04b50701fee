package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zlib"

	"github.com/astei/chunkdata/chunk"
	"github.com/astei/chunkdata/nbt"
	"github.com/astei/chunkdata/registry"
)

func testRegistries(t *testing.T) *registry.Registries {
	t.Helper()
	regs, err := registry.File{
		Blocks: map[string]int32{
			"minecraft:air":             0,
			"minecraft:stone":           1,
			"minecraft:oak_log[axis=y]": 5,
			"minecraft:grass_block":     9,
		},
		Biomes:        map[string]int32{"minecraft:plains": 1},
		BlockEntities: []string{"minecraft:chest"},
	}.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return regs
}

func packPadded(values []int32, bitsPerEntry int) []int64 {
	perWord := 64 / bitsPerEntry
	out := make([]int64, (len(values)+perWord-1)/perWord)
	for i, v := range values {
		out[i/perWord] |= int64(v) << uint((i%perWord)*bitsPerEntry)
	}
	return out
}

func blockEntry(name string, properties map[string]string) nbt.Compound {
	entry := nbt.Compound{"Name": name}
	if properties != nil {
		props := nbt.Compound{}
		for k, v := range properties {
			props[k] = v
		}
		entry["Properties"] = props
	}
	return entry
}

func testAnvilChunk() nbt.Compound {
	states := make([]int32, 4096)
	states[0] = 1           // stone at 0,0,0
	states[1<<8|2<<4|3] = 2 // log at 3,1,2
	heights := make([]int32, 256)
	for i := range heights {
		heights[i] = 64
	}

	return nbt.Compound{
		"DataVersion": int32(2586),
		"Level": nbt.Compound{
			"xPos": int32(1),
			"zPos": int32(-1),
			"Sections": nbt.List{Type: nbt.TagCompound, Items: []interface{}{
				nbt.Compound{"Y": int8(-1), "SkyLight": make([]byte, 2048)},
				nbt.Compound{
					"Y": int8(0),
					"Palette": nbt.List{Type: nbt.TagCompound, Items: []interface{}{
						blockEntry("minecraft:air", nil),
						blockEntry("minecraft:stone", nil),
						blockEntry("minecraft:oak_log", map[string]string{"axis": "y"}),
					}},
					"BlockStates": packPadded(states, 4),
				},
				nbt.Compound{
					"Y":           int8(1),
					"Palette":     nbt.List{Type: nbt.TagCompound, Items: []interface{}{blockEntry("minecraft:air", nil)}},
					"BlockStates": make([]int64, 256),
				},
			}},
			"Biomes": []int32{1, 1, 7},
			"Heightmaps": nbt.Compound{
				"MOTION_BLOCKING": packPadded(heights, 9),
				"WORLD_SURFACE":   packPadded(heights, 9),
			},
			"TileEntities": nbt.List{Type: nbt.TagCompound, Items: []interface{}{
				nbt.Compound{"id": "minecraft:chest", "x": int32(17), "y": int32(5), "z": int32(-15), "keepPacked": int8(0), "Lock": "key"},
			}},
		},
	}
}

func TestConvertAnvilChunk(t *testing.T) {
	config := defaultConfig()
	packet, err := config.converter(testRegistries(t)).convert(testAnvilChunk())
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	if packet.ChunkX != 1 || packet.ChunkZ != -1 {
		t.Fatalf("position %d,%d", packet.ChunkX, packet.ChunkZ)
	}
	if diff := cmp.Diff([]int{0}, packet.Storage.Indices()); diff != "" {
		t.Fatalf("sections mismatch (-want +got):\n%s", diff)
	}
	if got := packet.Storage.Get(0, 0, 0); got != 1 {
		t.Fatalf("block 0,0,0 = %d, want stone", got)
	}
	if got := packet.Storage.Get(3, 1, 2); got != 5 {
		t.Fatalf("block 3,1,2 = %d, want oak log", got)
	}
	if got := packet.Storage.Get(4, 4, 4); got != 0 {
		t.Fatalf("block 4,4,4 = %d, want air", got)
	}

	wantBiomes := []chunk.Biome{{ID: 1, Identifier: "minecraft:plains"}, {ID: 1, Identifier: "minecraft:plains"}, {ID: 7}}
	if diff := cmp.Diff(wantBiomes, packet.Biomes); diff != "" {
		t.Fatalf("biomes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(chunk.UniformHeightmaps(64, 64), packet.Heightmaps); diff != "" {
		t.Fatalf("heightmaps mismatch (-want +got):\n%s", diff)
	}

	wantEntities := map[int]chunk.BlockEntity{
		chunk.BlockIndex(1, 5, 1): {ID: "minecraft:chest", Data: nbt.Compound{"Lock": "key"}},
	}
	if diff := cmp.Diff(wantEntities, packet.BlockEntities); diff != "" {
		t.Fatalf("block entities mismatch (-want +got):\n%s", diff)
	}
}

func TestConvertUnknownBlock(t *testing.T) {
	root := testAnvilChunk()
	level, _ := root.GetCompound("Level")
	sections, _ := level.GetList("Sections")
	section := sections.Items[1].(nbt.Compound)
	section["Palette"] = nbt.List{Type: nbt.TagCompound, Items: []interface{}{
		blockEntry("minecraft:air", nil),
		blockEntry("minecraft:mystery", nil),
		blockEntry("minecraft:oak_log", map[string]string{"axis": "y"}),
	}}

	config := defaultConfig()
	if _, err := config.converter(testRegistries(t)).convert(root); !errors.Is(err, chunk.ErrUnknownBlockIdentifier) {
		t.Fatalf("got %v, want ErrUnknownBlockIdentifier", err)
	}

	config.UnknownBlockAsAir = true
	packet, err := config.converter(testRegistries(t)).convert(root)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if packet.Storage.Get(0, 0, 0) != 0 || packet.Storage.Get(3, 1, 2) != 5 {
		t.Fatalf("unknown block not replaced by air")
	}
}

func TestUnpackAnvilUnpadded(t *testing.T) {
	values := make([]int32, 4096)
	for i := range values {
		values[i] = int32(i % 32)
	}
	words := make([]uint64, 4096*5/64)
	for i, v := range values {
		bit := i * 5
		words[bit/64] |= uint64(v) << uint(bit%64)
		if bit%64+5 > 64 {
			words[bit/64+1] |= uint64(v) >> uint(64-bit%64)
		}
	}
	got, err := unpackAnvilStates(words, 5, false)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if diff := cmp.Diff(values, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

// writeTestRegion writes a region file holding one zlib-compressed chunk at region slot 1,15.
func writeTestRegion(t *testing.T, dir string, root nbt.Compound) string {
	t.Helper()
	var raw bytes.Buffer
	if err := nbt.Marshal(&raw, root); err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(raw.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	var payload bytes.Buffer
	_ = binary.Write(&payload, binary.BigEndian, int32(compressed.Len()+1))
	payload.WriteByte(byte(AnvilCompressionDeflate))
	payload.Write(compressed.Bytes())
	sectors := (payload.Len() + anvilSectorSize - 1) / anvilSectorSize
	payload.Write(make([]byte, sectors*anvilSectorSize-payload.Len()))

	offsets := make([]int32, anvilMaxOffsets)
	offsets[1+15*32] = 2<<8 | int32(sectors)
	var region bytes.Buffer
	_ = binary.Write(&region, binary.BigEndian, offsets)
	region.Write(make([]byte, anvilSectorSize)) // timestamps
	region.Write(payload.Bytes())

	path := filepath.Join(dir, "r.0.-1.mca")
	if err := os.WriteFile(path, region.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAnvilReader(t *testing.T) {
	path := writeTestRegion(t, t.TempDir(), testAnvilChunk())
	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	reader, err := NewAnvilReader(file)
	if err != nil {
		t.Fatalf("NewAnvilReader: %v", err)
	}
	defer reader.Close()

	if !reader.ChunkExists(1, 15) || reader.ChunkExists(0, 0) {
		t.Fatalf("unexpected chunk presence")
	}
	if _, err := reader.ReadChunk(0, 0); !errors.Is(err, ErrNoChunk) {
		t.Fatalf("got %v, want ErrNoChunk", err)
	}
	root, err := reader.ReadChunk(1, 15)
	if err != nil {
		t.Fatalf("ReadChunk: %v", err)
	}
	if v, _ := root.GetInt("DataVersion"); v != 2586 {
		t.Fatalf("DataVersion = %d", v)
	}
}

func TestConvertRegionsEndToEnd(t *testing.T) {
	worldDir := t.TempDir()
	writeTestRegion(t, worldDir, testAnvilChunk())
	outDir := t.TempDir()

	regions, err := discoverRegions(worldDir)
	if err != nil {
		t.Fatalf("discoverRegions: %v", err)
	}
	regs := testRegistries(t)
	config := defaultConfig()
	written, err := convertRegions(regions, config.converter(regs), outDir, true)
	if err != nil {
		t.Fatalf("convertRegions: %v", err)
	}
	coord := ChunkCoord{X: 1, Z: -1}
	encoded, ok := written[coord]
	if !ok || len(written) != 1 {
		t.Fatalf("written = %v", written)
	}

	data, err := readPacketFile(filepath.Join(outDir, packetFileName(coord, true)))
	if err != nil {
		t.Fatalf("readPacketFile: %v", err)
	}
	if !bytes.Equal(data, encoded.Bytes()) {
		t.Fatalf("packet file differs from encoded packet")
	}

	decoder, err := config.decoder(regs, nil)
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	decoder.UnknownBiome = chunk.SubstituteUnknownBiome
	packet, err := decoder.DecodeBytes(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if packet.Storage.Get(3, 1, 2) != 5 || packet.Storage.Get(0, 0, 0) != 1 {
		t.Fatalf("blocks lost in conversion")
	}
	if len(packet.BlockEntities) != 1 {
		t.Fatalf("block entities = %d", len(packet.BlockEntities))
	}
}
