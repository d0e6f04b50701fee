package main

import (
	"fmt"
	"log"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/urfave/cli/v2"

	"github.com/astei/chunkdata/chunk"
	"github.com/astei/chunkdata/registry"
)

func main() {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "YAML config with block, biome and block entity registries",
	}

	app := &cli.App{
		Name:  "chunkdata",
		Usage: "builds and inspects chunk data packets",
		Commands: []*cli.Command{
			{
				Name:      "from-anvil",
				Usage:     "converts every chunk of an Anvil region file or region directory into chunk packets",
				ArgsUsage: "<region.mca | region directory>",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: ".", Usage: "output directory"},
					&cli.BoolFlag{Name: "zstd", Usage: "write zstd-framed packet files"},
				},
				Action: fromAnvil,
			},
			{
				Name:      "inspect",
				Usage:     "decodes a packet file and prints a summary",
				ArgsUsage: "<packet file>",
				Flags:     []cli.Flag{configFlag},
				Action:    inspect,
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func loadConfigAndRegistries(c *cli.Context) (Config, *registry.Registries, error) {
	config, err := loadConfig(c.String("config"))
	if err != nil {
		return config, nil, err
	}
	regs, err := config.registries()
	if err != nil {
		return config, nil, err
	}
	return config, regs, nil
}

func fromAnvil(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("need a region file or directory to work with", 1)
	}
	config, regs, err := loadConfigAndRegistries(c)
	if err != nil {
		return err
	}

	regions, err := discoverRegions(c.Args().Get(0))
	if err != nil {
		return err
	}
	if len(regions) == 0 {
		return cli.Exit("no region files found", 1)
	}
	outDir := c.String("out")
	if err = os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	_, err = convertRegions(regions, config.converter(regs), outDir, c.Bool("zstd"))
	return err
}

func inspect(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("need a packet file to inspect", 1)
	}
	config, regs, err := loadConfigAndRegistries(c)
	if err != nil {
		return err
	}
	decoder, err := config.decoder(regs, log.New(os.Stderr, "", log.LstdFlags))
	if err != nil {
		return err
	}

	data, err := readPacketFile(c.Args().Get(0))
	if err != nil {
		return err
	}
	packet, err := decoder.DecodeBytes(data)
	if err != nil {
		return cli.Exit("packet is unusable", 1)
	}
	printSummary(packet, len(data), xxhash.Sum64(data))
	return nil
}

func printSummary(packet *chunk.Packet, size int, sum uint64) {
	fmt.Printf("chunk %d,%d: %d bytes, xxhash %016x\n", packet.ChunkX, packet.ChunkZ, size, sum)
	for _, index := range packet.Storage.Indices() {
		section := packet.Storage.Section(index)
		fmt.Printf("  section %2d: %2d bits, palette %3d, %4d blocks\n",
			index, section.BitsPerEntry(), len(section.Palette()), section.BlockCount())
	}
	fmt.Printf("  biomes: %d\n", len(packet.Biomes))
	fmt.Printf("  block entities: %d\n", len(packet.BlockEntities))
}
