package main

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/astei/chunkdata/chunk"
	"github.com/astei/chunkdata/registry"
)

type Config struct {
	MinBitsPerEntry   int    `yaml:"min_bits_per_entry"`
	UnknownBiome      string `yaml:"unknown_biome"`
	FallbackBiome     string `yaml:"fallback_biome"`
	UnknownBlockAsAir bool   `yaml:"unknown_block_as_air"`

	Heightmaps struct {
		MotionBlocking int32 `yaml:"motion_blocking"`
		WorldSurface   int32 `yaml:"world_surface"`
	} `yaml:"heightmaps"`

	// RegistryFile, when set, replaces Registry with a separate registry YAML file.
	RegistryFile string        `yaml:"registry_file"`
	Registry     registry.File `yaml:"registry"`
}

func defaultConfig() Config {
	var c Config
	c.MinBitsPerEntry = 4
	c.UnknownBiome = "fail"
	c.Heightmaps.MotionBlocking = 4
	c.Heightmaps.WorldSurface = 5
	return c
}

// loadConfig reads a YAML config. An empty path returns the defaults with empty registries.
func loadConfig(path string) (Config, error) {
	c := defaultConfig()
	if path == "" {
		return c, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	if c.MinBitsPerEntry < 1 || c.MinBitsPerEntry >= 9 {
		return c, fmt.Errorf("%s: min_bits_per_entry must be between 1 and 8, got %d", path, c.MinBitsPerEntry)
	}
	return c, nil
}

// registries builds the configured registries.
func (c Config) registries() (*registry.Registries, error) {
	if c.RegistryFile != "" {
		return registry.Load(c.RegistryFile)
	}
	return c.Registry.Build()
}

func (c Config) converter(regs *registry.Registries) *anvilChunkConverter {
	return &anvilChunkConverter{
		registries:        regs,
		minBitsPerEntry:   c.MinBitsPerEntry,
		unknownBlockAsAir: c.UnknownBlockAsAir,
		defaultHeightmaps: chunk.UniformHeightmaps(c.Heightmaps.MotionBlocking, c.Heightmaps.WorldSurface),
	}
}

func (c Config) decoder(regs *registry.Registries, logger *log.Logger) (*chunk.Decoder, error) {
	d := &chunk.Decoder{
		MinBitsPerEntry: c.MinBitsPerEntry,
		Errors:          chunk.LogErrorHandler{Logger: logger},
	}
	if regs.Biomes.Len() > 0 {
		d.Biomes = regs.Biomes
	}
	if len(regs.BlockEntities) > 0 {
		d.BlockEntities = regs.BlockEntities
	}

	switch c.UnknownBiome {
	case "", "fail":
		d.UnknownBiome = chunk.FailUnknownBiome
	case "substitute":
		d.UnknownBiome = chunk.SubstituteUnknownBiome
		id, ok := regs.Biomes.IDFor(c.FallbackBiome)
		if !ok {
			return nil, fmt.Errorf("fallback biome %q is not in the registry", c.FallbackBiome)
		}
		d.FallbackBiome = chunk.Biome{ID: id, Identifier: c.FallbackBiome}
	default:
		return nil, fmt.Errorf("unknown_biome must be fail or substitute, got %q", c.UnknownBiome)
	}
	return d, nil
}
