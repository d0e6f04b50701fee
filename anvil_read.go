package main

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"

	"github.com/astei/chunkdata/nbt"
)

const anvilMaxOffsets = 1024
const anvilSectorSize = 4096

var ErrNoChunk = errors.New("anvil: chunk not found")
var ErrInvalidChunkLength = errors.New("anvil: invalid chunk length")
var ErrInvalidCompression = errors.New("anvil: invalid compression format")

type AnvilCompression byte

const (
	AnvilCompressionGzip         AnvilCompression = 1
	AnvilCompressionDeflate      AnvilCompression = 2
	AnvilCompressionUncompressed AnvilCompression = 3
)

// AnvilReader reads chunks out of one Anvil region file (32x32 chunks). It is not safe for
// concurrent access.
type AnvilReader struct {
	source      io.ReadSeeker
	sectorTable []int32
	Name        string
}

// NewAnvilReader takes ownership of source.
func NewAnvilReader(source io.ReadSeeker) (reader *AnvilReader, err error) {
	reader = &AnvilReader{
		source:      source,
		sectorTable: make([]int32, anvilMaxOffsets),
	}

	if file, ok := source.(*os.File); ok {
		reader.Name = file.Name()
	}
	err = reader.readSectorTable()
	return
}

func (region *AnvilReader) readSectorTable() (err error) {
	if _, err = region.source.Seek(0, io.SeekStart); err != nil {
		return
	}

	rawSectorData := make([]byte, anvilSectorSize)
	if _, err = io.ReadFull(region.source, rawSectorData); err != nil {
		return fmt.Errorf("anvil: reading sector table: %w", err)
	}
	return binary.Read(bytes.NewReader(rawSectorData), binary.BigEndian, region.sectorTable)
}

// ChunkStream returns the decompressed NBT stream of the chunk at region-relative x and z.
func (region *AnvilReader) ChunkStream(x, z int) (chunk io.Reader, err error) {
	offset := region.sectorTable[x+z*32]

	sectorNumber := offset >> 8
	occupiedSectors := offset & 0xff
	if sectorNumber == 0 {
		err = ErrNoChunk
		return
	}

	if _, err = region.source.Seek(int64(sectorNumber)*anvilSectorSize, io.SeekStart); err != nil {
		return
	}

	sectorData := make([]byte, occupiedSectors*anvilSectorSize)
	if _, err = io.ReadFull(region.source, sectorData); err != nil {
		return
	}

	sectorReader := bytes.NewReader(sectorData)
	var sectorHeader struct {
		Length      int32
		Compression AnvilCompression
	}
	if err = binary.Read(sectorReader, binary.BigEndian, &sectorHeader); err != nil {
		return
	}

	// Length counts the compression byte.
	if sectorHeader.Length < 1 || sectorHeader.Length > int32(len(sectorData)-4) {
		return nil, ErrInvalidChunkLength
	}

	chunkStream := io.LimitReader(sectorReader, int64(sectorHeader.Length-1))
	switch sectorHeader.Compression {
	case AnvilCompressionGzip:
		return gzip.NewReader(chunkStream)
	case AnvilCompressionDeflate:
		return zlib.NewReader(chunkStream)
	case AnvilCompressionUncompressed:
		return chunkStream, nil
	default:
		return nil, ErrInvalidCompression
	}
}

// ReadChunk reads and decodes the chunk NBT at region-relative x and z.
func (region *AnvilReader) ReadChunk(x, z int) (nbt.Compound, error) {
	stream, err := region.ChunkStream(x, z)
	if err != nil {
		return nil, err
	}
	if closer, ok := stream.(io.Closer); ok {
		defer closer.Close()
	}
	return nbt.NewDecoder(bufio.NewReader(stream)).Decode()
}

func (region *AnvilReader) ChunkExists(x, z int) bool {
	return region.sectorTable[x+z*32] != 0
}

func (region *AnvilReader) Close() error {
	if closer, ok := region.source.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
