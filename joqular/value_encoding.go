package joqular

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// ValueType tags an encoded value
type ValueType byte

const (
	TypeNull ValueType = iota + 1
	TypeFalse
	TypeTrue
	TypeInt
	TypeFloat
	TypeString
	TypeArray
	TypeObject
)

// Type returns the tag a normalised value is encoded under
func Type(v interface{}) (ValueType, error) {
	switch val := v.(type) {
	case nil:
		return TypeNull, nil
	case bool:
		if val {
			return TypeTrue, nil
		}
		return TypeFalse, nil
	case int64:
		return TypeInt, nil
	case float64:
		return TypeFloat, nil
	case string:
		return TypeString, nil
	case []interface{}:
		return TypeArray, nil
	case Object, map[string]interface{}:
		return TypeObject, nil
	}
	return 0, fmt.Errorf("cannot encode value type: %T", v)
}

// EncodeObject serializes an instance for the primary keyspace.
// Properties are written in sorted order so equal objects encode identically.
func EncodeObject(o Object) ([]byte, error) {
	return AppendValue(nil, o)
}

// DecodeObject is the inverse of EncodeObject
func DecodeObject(data []byte) (Object, error) {
	v, rest, err := DecodeValue(data)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%d trailing bytes after object", len(rest))
	}
	obj, ok := v.(Object)
	if !ok {
		return nil, fmt.Errorf("encoded value is %T, not an object", v)
	}
	return obj, nil
}

// AppendValue appends the tagged binary encoding of v to buf
func AppendValue(buf []byte, v interface{}) ([]byte, error) {
	t, err := Type(v)
	if err != nil {
		return nil, err
	}
	buf = append(buf, byte(t))

	switch val := v.(type) {
	case int64:
		buf = binary.BigEndian.AppendUint64(buf, uint64(val))
	case float64:
		buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(val))
	case string:
		buf = binary.AppendUvarint(buf, uint64(len(val)))
		buf = append(buf, val...)
	case []interface{}:
		buf = binary.AppendUvarint(buf, uint64(len(val)))
		for i, e := range val {
			if buf, err = AppendValue(buf, e); err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
		}
	case Object:
		return appendObject(buf, val)
	case map[string]interface{}:
		return appendObject(buf, val)
	}
	return buf, nil
}

func appendObject(buf []byte, o map[string]interface{}) ([]byte, error) {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var err error
	buf = binary.AppendUvarint(buf, uint64(len(keys)))
	for _, k := range keys {
		buf = binary.AppendUvarint(buf, uint64(len(k)))
		buf = append(buf, k...)
		if buf, err = AppendValue(buf, o[k]); err != nil {
			return nil, fmt.Errorf("%q: %w", k, err)
		}
	}
	return buf, nil
}

// DecodeValue decodes one value and returns the remaining bytes
func DecodeValue(data []byte) (interface{}, []byte, error) {
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("unexpected end of value")
	}
	t, data := ValueType(data[0]), data[1:]

	switch t {
	case TypeNull:
		return nil, data, nil
	case TypeFalse:
		return false, data, nil
	case TypeTrue:
		return true, data, nil
	case TypeInt:
		if len(data) < 8 {
			return nil, nil, fmt.Errorf("int value must be 8 bytes, got %d", len(data))
		}
		return int64(binary.BigEndian.Uint64(data)), data[8:], nil
	case TypeFloat:
		if len(data) < 8 {
			return nil, nil, fmt.Errorf("float value must be 8 bytes, got %d", len(data))
		}
		return math.Float64frombits(binary.BigEndian.Uint64(data)), data[8:], nil
	case TypeString:
		s, rest, err := decodeString(data)
		return s, rest, err
	case TypeArray:
		n, rest, err := decodeLength(data)
		if err != nil {
			return nil, nil, err
		}
		arr := make([]interface{}, n)
		for i := range arr {
			if arr[i], rest, err = DecodeValue(rest); err != nil {
				return nil, nil, fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return arr, rest, nil
	case TypeObject:
		n, rest, err := decodeLength(data)
		if err != nil {
			return nil, nil, err
		}
		obj := make(Object, n)
		for i := 0; i < n; i++ {
			var k string
			if k, rest, err = decodeString(rest); err != nil {
				return nil, nil, err
			}
			if obj[k], rest, err = DecodeValue(rest); err != nil {
				return nil, nil, fmt.Errorf("%q: %w", k, err)
			}
		}
		return obj, rest, nil
	}
	return nil, nil, fmt.Errorf("unknown value type: %d", t)
}

func decodeLength(data []byte) (int, []byte, error) {
	n, w := binary.Uvarint(data)
	if w <= 0 {
		return 0, nil, fmt.Errorf("malformed length")
	}
	if n > uint64(len(data)) {
		// every element occupies at least one byte
		return 0, nil, fmt.Errorf("length %d exceeds remaining %d bytes", n, len(data))
	}
	return int(n), data[w:], nil
}

func decodeString(data []byte) (string, []byte, error) {
	n, rest, err := decodeLength(data)
	if err != nil {
		return "", nil, err
	}
	if n > len(rest) {
		return "", nil, fmt.Errorf("string length %d exceeds remaining %d bytes", n, len(rest))
	}
	return string(rest[:n]), rest[n:], nil
}

// Sortable index encoding.
//
// Index values are self-delimiting and order-preserving under bytes.Compare:
// null < false < true < numbers < strings < arrays/objects. Numbers collapse
// to float64 so int64(21) and 21.0 share an index entry. Strings escape 0x00
// as 0x00 0xFF and end with 0x00 0x01. Arrays and objects are indexed by their
// escaped binary encoding; they support exact lookups, not meaningful ranges.
const (
	indexNull    byte = 0x01
	indexFalse   byte = 0x02
	indexTrue    byte = 0x03
	indexNumber  byte = 0x04
	indexString  byte = 0x05
	indexComplex byte = 0x06
)

// EncodeIndexValue returns the sortable encoding of v
func EncodeIndexValue(v interface{}) ([]byte, error) {
	return AppendIndexValue(nil, v)
}

// AppendIndexValue appends the sortable encoding of v to buf
func AppendIndexValue(buf []byte, v interface{}) ([]byte, error) {
	if f, ok := ToFloat(v); ok {
		buf = append(buf, indexNumber)
		return binary.BigEndian.AppendUint64(buf, sortableFloat(f)), nil
	}
	switch val := v.(type) {
	case nil:
		return append(buf, indexNull), nil
	case bool:
		if val {
			return append(buf, indexTrue), nil
		}
		return append(buf, indexFalse), nil
	case string:
		buf = append(buf, indexString)
		return AppendEscaped(buf, []byte(val)), nil
	}
	enc, err := AppendValue(nil, v)
	if err != nil {
		return nil, err
	}
	buf = append(buf, indexComplex)
	return AppendEscaped(buf, enc), nil
}

// DecodeIndexValue decodes one sortable value and returns the remaining bytes
func DecodeIndexValue(data []byte) (interface{}, []byte, error) {
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("unexpected end of index value")
	}
	switch data[0] {
	case indexNull:
		return nil, data[1:], nil
	case indexFalse:
		return false, data[1:], nil
	case indexTrue:
		return true, data[1:], nil
	case indexNumber:
		if len(data) < 9 {
			return nil, nil, fmt.Errorf("number index value must be 8 bytes, got %d", len(data)-1)
		}
		return unsortableFloat(binary.BigEndian.Uint64(data[1:9])), data[9:], nil
	case indexString:
		raw, rest, err := Unescape(data[1:])
		if err != nil {
			return nil, nil, err
		}
		return string(raw), rest, nil
	case indexComplex:
		raw, rest, err := Unescape(data[1:])
		if err != nil {
			return nil, nil, err
		}
		v, _, err := DecodeValue(raw)
		if err != nil {
			return nil, nil, err
		}
		return v, rest, nil
	}
	return nil, nil, fmt.Errorf("unknown index value tag 0x%02x", data[0])
}

// sortableFloat maps a float to a uint64 whose unsigned order matches the
// float order. -0 is folded to +0.
func sortableFloat(f float64) uint64 {
	if f == 0 {
		f = 0
	}
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | (1 << 63)
}

func unsortableFloat(u uint64) float64 {
	if u&(1<<63) != 0 {
		return math.Float64frombits(u &^ (1 << 63))
	}
	return math.Float64frombits(^u)
}

// AppendEscaped appends b with 0x00 escaped as 0x00 0xFF, followed by the
// terminator 0x00 0x01.
func AppendEscaped(buf, b []byte) []byte {
	for _, c := range b {
		buf = append(buf, c)
		if c == 0x00 {
			buf = append(buf, 0xFF)
		}
	}
	return append(buf, 0x00, 0x01)
}

// Unescape reverses AppendEscaped and returns the bytes after the terminator
func Unescape(data []byte) ([]byte, []byte, error) {
	var out []byte
	for i := 0; i < len(data); i++ {
		c := data[i]
		if c != 0x00 {
			out = append(out, c)
			continue
		}
		if i+1 >= len(data) {
			break
		}
		switch data[i+1] {
		case 0xFF:
			out = append(out, 0x00)
			i++
		case 0x01:
			return out, data[i+2:], nil
		default:
			return nil, nil, fmt.Errorf("invalid escape 0x00 0x%02x", data[i+1])
		}
	}
	return nil, nil, fmt.Errorf("unterminated escaped segment")
}

// CompareIndexValues orders two values the way their index encodings sort
func CompareIndexValues(a, b interface{}) (int, error) {
	ea, err := EncodeIndexValue(a)
	if err != nil {
		return 0, err
	}
	eb, err := EncodeIndexValue(b)
	if err != nil {
		return 0, err
	}
	return bytes.Compare(ea, eb), nil
}
