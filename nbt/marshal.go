package nbt

import (
	"errors"
	"io"
	"math"
	"reflect"
	"sort"
)

var listType = reflect.TypeOf(List{})

// Marshal writes v as a root tag with an empty name.
func Marshal(w io.Writer, v interface{}) error {
	return NewEncoder(w).Encode(v)
}

type Encoder struct {
	w io.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

func (e *Encoder) Encode(v interface{}) error {
	return e.EncodeNamed(v, "")
}

func (e *Encoder) EncodeNamed(v interface{}, tagName string) error {
	val := reflect.ValueOf(v)
	if !val.IsValid() {
		return errors.New("nbt: cannot encode nil")
	}
	return e.marshal(val, tagName)
}

func (e *Encoder) marshal(val reflect.Value, tagName string) error {
	tagType, err := typeOf(val)
	if err != nil {
		return errors.New(err.Error() + " whilst serializing " + tagName)
	}
	if err := e.writeTag(tagType, tagName); err != nil {
		return err
	}
	return e.marshalPayload(val)
}

func typeOf(val reflect.Value) (byte, error) {
	switch vk := val.Kind(); vk {
	case reflect.Interface, reflect.Ptr:
		if val.IsNil() {
			return 0, errors.New("nil value")
		}
		return typeOf(val.Elem())
	case reflect.Bool, reflect.Int8, reflect.Uint8:
		return TagByte, nil
	case reflect.Int16, reflect.Uint16:
		return TagShort, nil
	case reflect.Int, reflect.Int32, reflect.Uint32:
		return TagInt, nil
	case reflect.Int64, reflect.Uint64:
		return TagLong, nil
	case reflect.Float32:
		return TagFloat, nil
	case reflect.Float64:
		return TagDouble, nil
	case reflect.String:
		return TagString, nil
	case reflect.Struct:
		if val.Type() == listType {
			return TagList, nil
		}
		return TagCompound, nil
	case reflect.Map:
		if val.Type().Key().Kind() != reflect.String {
			return 0, errors.New("unknown key type " + val.Type().String() + " for map")
		}
		return TagCompound, nil
	case reflect.Array, reflect.Slice:
		switch val.Type().Elem().Kind() {
		case reflect.Int8, reflect.Uint8:
			return TagByteArray, nil
		case reflect.Int32:
			return TagIntArray, nil
		case reflect.Int64:
			return TagLongArray, nil
		}
		return TagList, nil
	default:
		return 0, errors.New("unknown type " + vk.String())
	}
}

func (e *Encoder) marshalPayload(val reflect.Value) error {
	switch val.Kind() {
	case reflect.Interface, reflect.Ptr:
		return e.marshalPayload(val.Elem())

	case reflect.Bool:
		if val.Bool() {
			return e.writeByte(1)
		}
		return e.writeByte(0)

	case reflect.Int8:
		return e.writeByte(byte(val.Int()))
	case reflect.Uint8:
		return e.writeByte(byte(val.Uint()))

	case reflect.Int16:
		return e.writeInt16(int16(val.Int()))
	case reflect.Uint16:
		return e.writeInt16(int16(val.Uint()))

	case reflect.Int, reflect.Int32:
		return e.writeInt32(int32(val.Int()))
	case reflect.Uint32:
		return e.writeInt32(int32(val.Uint()))

	case reflect.Int64:
		return e.writeInt64(val.Int())
	case reflect.Uint64:
		return e.writeInt64(int64(val.Uint()))

	case reflect.Float32:
		return e.writeInt32(int32(math.Float32bits(float32(val.Float()))))
	case reflect.Float64:
		return e.writeInt64(int64(math.Float64bits(val.Float())))

	case reflect.String:
		return e.writeString(val.String())

	case reflect.Struct:
		if val.Type() == listType {
			return e.marshalList(val.Interface().(List))
		}
		return e.marshalStruct(val)

	case reflect.Map:
		return e.marshalMap(val)

	case reflect.Array, reflect.Slice:
		return e.marshalArray(val)
	}
	return errors.New("unknown type " + val.Type().String())
}

func (e *Encoder) marshalArray(val reflect.Value) error {
	n := val.Len()
	switch val.Type().Elem().Kind() {
	case reflect.Int8, reflect.Uint8:
		if err := e.writeInt32(int32(n)); err != nil {
			return err
		}
		buf := make([]byte, n)
		for i := 0; i < n; i++ {
			if val.Index(i).Kind() == reflect.Int8 {
				buf[i] = byte(val.Index(i).Int())
			} else {
				buf[i] = byte(val.Index(i).Uint())
			}
		}
		_, err := e.w.Write(buf)
		return err

	case reflect.Int32:
		if err := e.writeInt32(int32(n)); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := e.writeInt32(int32(val.Index(i).Int())); err != nil {
				return err
			}
		}
		return nil

	case reflect.Int64:
		if err := e.writeInt32(int32(n)); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := e.writeInt64(val.Index(i).Int()); err != nil {
				return err
			}
		}
		return nil
	}

	// Everything else becomes a list. Ensure all elements share a tag type.
	elemType := TagEnd
	for i := 0; i < n; i++ {
		t, err := typeOf(val.Index(i))
		if err != nil {
			return err
		}
		if i == 0 {
			elemType = t
		} else if t != elemType {
			return errors.New("mixed types in slice: found " + val.Index(i).Type().String())
		}
	}
	if err := e.writeByte(elemType); err != nil {
		return err
	}
	if err := e.writeInt32(int32(n)); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := e.marshalPayload(val.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) marshalList(list List) error {
	elemType := list.Type
	if len(list.Items) == 0 && elemType == 0 {
		elemType = TagEnd
	}
	for _, item := range list.Items {
		t, err := typeOf(reflect.ValueOf(item))
		if err != nil {
			return err
		}
		if t != elemType {
			return errors.New("list item does not match list type")
		}
	}
	if err := e.writeByte(elemType); err != nil {
		return err
	}
	if err := e.writeInt32(int32(len(list.Items))); err != nil {
		return err
	}
	for _, item := range list.Items {
		if err := e.marshalPayload(reflect.ValueOf(item)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) marshalStruct(val reflect.Value) error {
	n := val.NumField()
	for i := 0; i < n; i++ {
		f := val.Type().Field(i)
		tag := f.Tag.Get("nbt")
		if (f.PkgPath != "" && !f.Anonymous) || tag == "-" {
			continue // Private field
		}

		tagName := f.Name
		if tag != "" {
			tagName = tag
		}

		err := e.marshal(val.Field(i), tagName)
		if err != nil {
			return err
		}
	}
	return e.writeByte(TagEnd)
}

// marshalMap writes entries in key order so equal compounds always produce equal bytes.
func (e *Encoder) marshalMap(val reflect.Value) error {
	keys := val.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	for _, key := range keys {
		err := e.marshal(val.MapIndex(key), key.String())
		if err != nil {
			return err
		}
	}
	return e.writeByte(TagEnd)
}

func (e *Encoder) writeTag(tagType byte, tagName string) error {
	if err := e.writeByte(tagType); err != nil {
		return err
	}
	return e.writeString(tagName)
}

func (e *Encoder) writeString(s string) error {
	bName := []byte(s)
	if len(bName) > math.MaxUint16 {
		return errors.New("nbt: string too long")
	}
	if err := e.writeInt16(int16(uint16(len(bName)))); err != nil {
		return err
	}
	_, err := e.w.Write(bName)
	return err
}

func (e *Encoder) writeByte(b byte) error {
	_, err := e.w.Write([]byte{b})
	return err
}

func (e *Encoder) writeInt16(n int16) error {
	_, err := e.w.Write([]byte{byte(n >> 8), byte(n)})
	return err
}

func (e *Encoder) writeInt32(n int32) error {
	_, err := e.w.Write([]byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
	return err
}

func (e *Encoder) writeInt64(n int64) error {
	_, err := e.w.Write([]byte{
		byte(n >> 56), byte(n >> 48), byte(n >> 40), byte(n >> 32),
		byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
	return err
}
