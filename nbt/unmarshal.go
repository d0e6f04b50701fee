package nbt

import (
	"bytes"
	"fmt"
	"io"
	"math"
)

const (
	maxDepth       = 512
	maxArrayLength = 1 << 24
	// Initial capacity reserved from a length prefix; anything longer grows as elements arrive.
	maxPrealloc = 1024
)

// Unmarshal decodes a single root compound from data.
func Unmarshal(data []byte) (Compound, error) {
	return NewDecoder(bytes.NewReader(data)).Decode()
}

// Decoder reads tags from a stream. It never reads past the end of the tag it decodes.
type Decoder struct {
	r     io.Reader
	buf   [8]byte
	depth int
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Decode reads a root tag, which must be a compound, and discards its name.
func (d *Decoder) Decode() (Compound, error) {
	_, c, err := d.DecodeNamed()
	return c, err
}

func (d *Decoder) DecodeNamed() (name string, c Compound, err error) {
	tagType, err := d.readByte()
	if err != nil {
		return
	}
	if tagType != TagCompound {
		err = fmt.Errorf("%w: root tag type %d is not a compound", ErrMalformed, tagType)
		return
	}
	if name, err = d.readString(); err != nil {
		return
	}
	c, err = d.readCompound()
	return
}

func (d *Decoder) readPayload(tagType byte) (interface{}, error) {
	switch tagType {
	case TagByte:
		b, err := d.readByte()
		return int8(b), err
	case TagShort:
		return d.readInt16()
	case TagInt:
		return d.readInt32()
	case TagLong:
		return d.readInt64()
	case TagFloat:
		n, err := d.readInt32()
		return math.Float32frombits(uint32(n)), err
	case TagDouble:
		n, err := d.readInt64()
		return math.Float64frombits(uint64(n)), err
	case TagByteArray:
		n, err := d.readLength()
		if err != nil {
			return nil, err
		}
		var out bytes.Buffer
		out.Grow(min(n, maxPrealloc))
		if _, err = io.CopyN(&out, d.r, int64(n)); err != nil {
			return nil, malformed(err)
		}
		return out.Bytes(), nil
	case TagString:
		return d.readString()
	case TagList:
		return d.readList()
	case TagCompound:
		return d.readCompound()
	case TagIntArray:
		n, err := d.readLength()
		if err != nil {
			return nil, err
		}
		out := make([]int32, 0, min(n, maxPrealloc))
		for i := 0; i < n; i++ {
			v, err := d.readInt32()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case TagLongArray:
		n, err := d.readLength()
		if err != nil {
			return nil, err
		}
		out := make([]int64, 0, min(n, maxPrealloc))
		for i := 0; i < n; i++ {
			v, err := d.readInt64()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unknown tag type %d", ErrMalformed, tagType)
}

func (d *Decoder) readCompound() (Compound, error) {
	if d.depth++; d.depth > maxDepth {
		return nil, fmt.Errorf("%w: nesting too deep", ErrMalformed)
	}
	defer func() { d.depth-- }()

	c := make(Compound)
	for {
		tagType, err := d.readByte()
		if err != nil {
			return nil, err
		}
		if tagType == TagEnd {
			return c, nil
		}
		name, err := d.readString()
		if err != nil {
			return nil, err
		}
		if c[name], err = d.readPayload(tagType); err != nil {
			return nil, err
		}
	}
}

func (d *Decoder) readList() (List, error) {
	if d.depth++; d.depth > maxDepth {
		return List{}, fmt.Errorf("%w: nesting too deep", ErrMalformed)
	}
	defer func() { d.depth-- }()

	elemType, err := d.readByte()
	if err != nil {
		return List{}, err
	}
	n, err := d.readLength()
	if err != nil {
		return List{}, err
	}
	if elemType == TagEnd && n > 0 {
		return List{}, fmt.Errorf("%w: non-empty list of end tags", ErrMalformed)
	}
	list := List{Type: elemType}
	if n > 0 {
		list.Items = make([]interface{}, 0, min(n, maxPrealloc))
	}
	for i := 0; i < n; i++ {
		item, err := d.readPayload(elemType)
		if err != nil {
			return List{}, err
		}
		list.Items = append(list.Items, item)
	}
	return list, nil
}

func (d *Decoder) readLength() (int, error) {
	n, err := d.readInt32()
	if err != nil {
		return 0, err
	}
	if n < 0 || n > maxArrayLength {
		return 0, fmt.Errorf("%w: invalid length %d", ErrMalformed, n)
	}
	return int(n), nil
}

func (d *Decoder) readString() (string, error) {
	n, err := d.readInt16()
	if err != nil {
		return "", err
	}
	out := make([]byte, uint16(n))
	if _, err = io.ReadFull(d.r, out); err != nil {
		return "", malformed(err)
	}
	return string(out), nil
}

func (d *Decoder) readByte() (byte, error) {
	if _, err := io.ReadFull(d.r, d.buf[:1]); err != nil {
		return 0, malformed(err)
	}
	return d.buf[0], nil
}

func (d *Decoder) readInt16() (int16, error) {
	if _, err := io.ReadFull(d.r, d.buf[:2]); err != nil {
		return 0, malformed(err)
	}
	return int16(d.buf[0])<<8 | int16(d.buf[1]), nil
}

func (d *Decoder) readInt32() (int32, error) {
	if _, err := io.ReadFull(d.r, d.buf[:4]); err != nil {
		return 0, malformed(err)
	}
	b := d.buf
	return int32(b[0])<<24 | int32(b[1])<<16 | int32(b[2])<<8 | int32(b[3]), nil
}

func (d *Decoder) readInt64() (int64, error) {
	if _, err := io.ReadFull(d.r, d.buf[:8]); err != nil {
		return 0, malformed(err)
	}
	b := d.buf
	return int64(b[0])<<56 | int64(b[1])<<48 | int64(b[2])<<40 | int64(b[3])<<32 |
		int64(b[4])<<24 | int64(b[5])<<16 | int64(b[6])<<8 | int64(b[7]), nil
}

func malformed(err error) error {
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}
