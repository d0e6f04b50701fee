package nbt

import (
	"errors"
	"sort"
)

const (
	TagEnd byte = iota
	TagByte
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagByteArray
	TagString
	TagList
	TagCompound
	TagIntArray
	TagLongArray
)

var ErrMalformed = errors.New("nbt: malformed data")

// Compound is a decoded compound tag. Values hold one of int8, int16, int32, int64, float32,
// float64, []byte, string, List, Compound, []int32 or []int64.
type Compound map[string]interface{}

// List is a list tag. Type is the element tag type; Items holds values of the matching Go type.
type List struct {
	Type  byte
	Items []interface{}
}

func (c Compound) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone copies the top level of the compound; nested values are shared.
func (c Compound) Clone() Compound {
	out := make(Compound, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

func (c Compound) GetString(key string) (string, bool) {
	v, ok := c[key].(string)
	return v, ok
}

// GetInt returns an integer tag widened to int32. Byte and short tags are accepted.
func (c Compound) GetInt(key string) (int32, bool) {
	switch v := c[key].(type) {
	case int8:
		return int32(v), true
	case int16:
		return int32(v), true
	case int32:
		return v, true
	}
	return 0, false
}

func (c Compound) GetCompound(key string) (Compound, bool) {
	v, ok := c[key].(Compound)
	return v, ok
}

func (c Compound) GetLongArray(key string) ([]int64, bool) {
	v, ok := c[key].([]int64)
	return v, ok
}

func (c Compound) GetIntArray(key string) ([]int32, bool) {
	v, ok := c[key].([]int32)
	return v, ok
}

// GetList returns the list stored under key. An empty list of any element type is returned as-is.
func (c Compound) GetList(key string) (List, bool) {
	v, ok := c[key].(List)
	return v, ok
}
