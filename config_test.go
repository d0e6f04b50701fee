package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/astei/chunkdata/chunk"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chunkdata.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	c, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if c.MinBitsPerEntry != 4 || c.UnknownBiome != "fail" || c.Heightmaps.WorldSurface != 5 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
min_bits_per_entry: 6
unknown_biome: substitute
fallback_biome: minecraft:plains
heightmaps:
  motion_blocking: 70
  world_surface: 71
registry:
  blocks:
    minecraft:air: 0
    minecraft:stone: 1
  biomes:
    minecraft:plains: 1
  block_entities: [minecraft:chest]
`)
	c, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	regs, err := c.Registry.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	d, err := c.decoder(regs, nil)
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	if d.MinBitsPerEntry != 6 || d.UnknownBiome != chunk.SubstituteUnknownBiome {
		t.Fatalf("unexpected decoder: %+v", d)
	}
	if d.FallbackBiome != (chunk.Biome{ID: 1, Identifier: "minecraft:plains"}) {
		t.Fatalf("fallback = %+v", d.FallbackBiome)
	}
	if d.Biomes == nil || d.BlockEntities == nil {
		t.Fatalf("registries not wired")
	}
	conv := c.converter(regs)
	if conv.defaultHeightmaps.MotionBlocking[0] != 70 || conv.defaultHeightmaps.WorldSurface[255] != 71 {
		t.Fatalf("heightmap defaults not applied")
	}
}

func TestLoadConfigRejects(t *testing.T) {
	if _, err := loadConfig(writeConfig(t, "min_bits_per_entry: 9\n")); err == nil {
		t.Fatalf("expected error for direct-mode minimum width")
	}

	c, err := loadConfig(writeConfig(t, "unknown_biome: substitute\nfallback_biome: minecraft:void\n"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	regs, err := c.Registry.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := c.decoder(regs, nil); err == nil {
		t.Fatalf("expected error for missing fallback biome")
	}

	c.UnknownBiome = "ignore"
	if _, err := c.decoder(regs, nil); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}

func TestExampleConfig(t *testing.T) {
	c, err := loadConfig("chunkdata.example.yaml")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	regs, err := c.Registry.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := c.decoder(regs, nil); err != nil {
		t.Fatalf("decoder: %v", err)
	}
	if id, ok := regs.Blocks.IDFor("minecraft:oak_log[axis=y]"); !ok || id != 77 {
		t.Fatalf("oak log = %d, %v", id, ok)
	}
}

func TestConfigRegistryFile(t *testing.T) {
	dir := t.TempDir()
	regPath := filepath.Join(dir, "registry.yaml")
	if err := os.WriteFile(regPath, []byte("biomes:\n  minecraft:desert: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := loadConfig(writeConfig(t, "registry_file: "+regPath+"\n"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	regs, err := c.registries()
	if err != nil {
		t.Fatalf("registries: %v", err)
	}
	if name, ok := regs.Biomes.IdentifierFor(2); !ok || name != "minecraft:desert" {
		t.Fatalf("biome 2 = %q, %v", name, ok)
	}
}
