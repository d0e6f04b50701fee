package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/astei/chunkdata/chunk"
)

type ChunkCoord struct {
	X int32
	Z int32
}

// regionResult is what converting one region file produced.
type regionResult struct {
	name    string
	written map[ChunkCoord]*chunk.Encoded
	err     error
}

// discoverRegions returns the .mca files under root, or root itself when it is a file.
func discoverRegions(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var regions []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".mca") {
			regions = append(regions, filepath.Join(root, entry.Name()))
		}
	}
	return regions, nil
}

// convertRegions converts every chunk of every region concurrently, one goroutine per region,
// and writes each packet into outDir.
func convertRegions(regions []string, converter *anvilChunkConverter, outDir string, compress bool) (map[ChunkCoord]*chunk.Encoded, error) {
	var wg sync.WaitGroup
	wg.Add(len(regions))
	resultChan := make(chan regionResult, len(regions))
	for _, path := range regions {
		go func(path string) {
			defer wg.Done()
			written, err := convertRegionFile(path, converter, outDir, compress)
			resultChan <- regionResult{name: path, written: written, err: err}
		}(path)
	}

	wg.Wait()
	close(resultChan)

	all := make(map[ChunkCoord]*chunk.Encoded)
	var firstErr error
	for res := range resultChan {
		if res.err != nil {
			log.Printf("unable to convert %s: %v", res.name, res.err)
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		for k, v := range res.written {
			all[k] = v
		}
	}
	log.Printf("converted %d chunks from %d regions", len(all), len(regions))
	return all, firstErr
}

func convertRegionFile(path string, converter *anvilChunkConverter, outDir string, compress bool) (map[ChunkCoord]*chunk.Encoded, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	reader, err := NewAnvilReader(file)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	defer reader.Close()

	encoder := chunk.NewEncoder()
	written := make(map[ChunkCoord]*chunk.Encoded)
	for x := 0; x < 32; x++ {
		for z := 0; z < 32; z++ {
			if !reader.ChunkExists(x, z) {
				continue
			}
			root, err := reader.ReadChunk(x, z)
			if err != nil {
				return nil, fmt.Errorf("could not read chunk %d,%d in %s: %w", x, z, reader.Name, err)
			}
			packet, err := converter.convert(root)
			if err != nil {
				return nil, fmt.Errorf("could not convert chunk %d,%d in %s: %w", x, z, reader.Name, err)
			}
			if packet.Storage.Len() == 0 {
				continue
			}

			encoded, err := encoder.Freeze(packet, uuid.New(), time.Now())
			if err != nil {
				return nil, fmt.Errorf("could not encode chunk %d,%d in %s: %w", x, z, reader.Name, err)
			}
			coord := ChunkCoord{X: packet.ChunkX, Z: packet.ChunkZ}
			if err = writePacketFile(filepath.Join(outDir, packetFileName(coord, compress)), encoded, compress); err != nil {
				return nil, err
			}
			written[coord] = encoded
		}
	}
	return written, nil
}

func packetFileName(coord ChunkCoord, compress bool) string {
	name := fmt.Sprintf("chunk.%d.%d.bin", coord.X, coord.Z)
	if compress {
		name += ".zst"
	}
	return name
}
