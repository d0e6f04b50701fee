package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/astei/chunkdata/chunk"
)

const maxPacketFileSize = 16 << 20

var ErrInvalidFrame = errors.New("packet file: invalid zstd frame")

// writePacketFile stores an encoded packet, either raw or as a zstd frame prefixed with the
// compressed and uncompressed lengths.
func writePacketFile(path string, encoded *chunk.Encoded, compress bool) (err error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return
	}
	defer func() {
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
	}()

	if !compress {
		_, err = encoded.WriteTo(file)
		return
	}
	var raw bytes.Buffer
	if _, err = encoded.WriteTo(&raw); err != nil {
		return
	}
	return writeZstdCompressed(file, raw)
}

func writeZstdCompressed(w io.Writer, buf bytes.Buffer) (err error) {
	uncompressedSize := buf.Len()

	var compressedOutput bytes.Buffer
	zstdWriter, err := zstd.NewWriter(&compressedOutput)
	if err != nil {
		return
	}
	if _, err = buf.WriteTo(zstdWriter); err != nil {
		return
	}
	if err = zstdWriter.Close(); err != nil {
		return
	}

	if err = binary.Write(w, binary.BigEndian, uint32(compressedOutput.Len())); err != nil {
		return
	}
	if err = binary.Write(w, binary.BigEndian, uint32(uncompressedSize)); err != nil {
		return
	}
	_, err = compressedOutput.WriteTo(w)
	return
}

func readZstdCompressed(r io.Reader) ([]byte, error) {
	var header struct {
		Compressed   uint32
		Uncompressed uint32
	}
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if header.Compressed > maxPacketFileSize || header.Uncompressed > maxPacketFileSize {
		return nil, fmt.Errorf("%w: frame of %d bytes", ErrInvalidFrame, header.Compressed)
	}

	compressed := make([]byte, header.Compressed)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	out, err := decoder.DecodeAll(compressed, make([]byte, 0, header.Uncompressed))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if len(out) != int(header.Uncompressed) {
		return nil, fmt.Errorf("%w: got %d bytes, header says %d", ErrInvalidFrame, len(out), header.Uncompressed)
	}
	return out, nil
}

// readPacketFile loads a packet body written by writePacketFile. Files ending in .zst are framed.
func readPacketFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if strings.HasSuffix(path, ".zst") {
		return readZstdCompressed(file)
	}
	return io.ReadAll(io.LimitReader(file, maxPacketFileSize))
}
