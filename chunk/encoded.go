package chunk

import (
	"io"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// Encoded is a finished packet body for replay to many peers. ID and Timestamp identify it to
// a reuse cache and never affect the bytes.
type Encoded struct {
	ID        uuid.UUID
	Timestamp time.Time

	data []byte
	sum  uint64
}

// NewEncoded wraps a copy of data.
func NewEncoded(id uuid.UUID, timestamp time.Time, data []byte) *Encoded {
	data = append([]byte(nil), data...)
	return &Encoded{
		ID:        id,
		Timestamp: timestamp,
		data:      data,
		sum:       xxhash.Sum64(data),
	}
}

// Freeze encodes p and wraps the result. A nil ID is replaced by a random one.
func (e *Encoder) Freeze(p *Packet, id uuid.UUID, timestamp time.Time) (*Encoded, error) {
	data, err := e.EncodeBytes(p)
	if err != nil {
		return nil, err
	}
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &Encoded{
		ID:        id,
		Timestamp: timestamp,
		data:      data,
		sum:       xxhash.Sum64(data),
	}, nil
}

// Bytes returns a copy of the encoded packet.
func (e *Encoded) Bytes() []byte {
	return append([]byte(nil), e.data...)
}

func (e *Encoded) Len() int {
	return len(e.data)
}

func (e *Encoded) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(e.data)
	return int64(n), err
}

// Sum64 is an xxhash of the encoded bytes.
func (e *Encoded) Sum64() uint64 {
	return e.sum
}

// Expired reports whether the packet is older than ttl at now.
func (e *Encoded) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.Timestamp) > ttl
}
