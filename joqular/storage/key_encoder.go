package storage

import (
	"fmt"
	"strings"

	"github.com/wbrown/janus-joqular/joqular"
	"github.com/wbrown/janus-joqular/joqular/codec"
)

// Keyspace is the one-byte prefix that separates the kinds of keys.
type Keyspace byte

const (
	PrimaryKeyspace Keyspace = 0x01 // id -> encoded instance
	IndexKeyspace   Keyspace = 0x02 // entity, property, sortable value, id -> empty
	SchemaKeyspace  Keyspace = 0x03 // entity -> encoded descriptor
)

func (k Keyspace) String() string {
	switch k {
	case PrimaryKeyspace:
		return "P"
	case IndexKeyspace:
		return "I"
	case SchemaKeyspace:
		return "S"
	}
	return fmt.Sprintf("0x%02x", byte(k))
}

// KeyEncoder builds and parses backend keys.
//
// Index keys are laid out as
//
//	0x02 escaped(entity) escaped(property) sortable(value) id
//
// so one index range holds every instance of an entity with a given
// property value, ordered by value and then id.
type KeyEncoder struct{}

// PrimaryKey returns the key of the record for id.
func (KeyEncoder) PrimaryKey(id string) []byte {
	key := make([]byte, 0, 1+len(id))
	key = append(key, byte(PrimaryKeyspace))
	return append(key, id...)
}

// PrimaryRange returns the keys covering identifiers in [start, end). An
// empty end extends to the last identifier.
func (e KeyEncoder) PrimaryRange(start, end string) ([]byte, []byte) {
	if end == "" {
		_, hi := EncodePrefixRange([]byte{byte(PrimaryKeyspace)})
		return e.PrimaryKey(start), hi
	}
	return e.PrimaryKey(start), e.PrimaryKey(end)
}

// DecodePrimaryKey extracts the identifier from a primary key.
func (KeyEncoder) DecodePrimaryKey(key []byte) (string, error) {
	if len(key) == 0 || Keyspace(key[0]) != PrimaryKeyspace {
		return "", fmt.Errorf("not a primary key: %q", key)
	}
	return string(key[1:]), nil
}

// IndexKey returns the index key of one property value of id.
func (e KeyEncoder) IndexKey(entity, property string, value interface{}, id string) ([]byte, error) {
	key, err := e.IndexPrefix(entity, property, value)
	if err != nil {
		return nil, err
	}
	return append(key, id...), nil
}

// IndexPrefix returns the prefix of every index key of entity.property
// holding value. joqular.Any stops the prefix before the value.
func (KeyEncoder) IndexPrefix(entity, property string, value interface{}) ([]byte, error) {
	key := []byte{byte(IndexKeyspace)}
	key = joqular.AppendEscaped(key, []byte(entity))
	key = joqular.AppendEscaped(key, []byte(property))
	if joqular.IsAny(value) {
		return key, nil
	}
	key, err := joqular.AppendIndexValue(key, value)
	if err != nil {
		return nil, fmt.Errorf("index %s.%s: %w", entity, property, err)
	}
	return key, nil
}

// DecodeIndexKey splits an index key into its components.
func (KeyEncoder) DecodeIndexKey(key []byte) (entity, property string, value interface{}, id string, err error) {
	if len(key) == 0 || Keyspace(key[0]) != IndexKeyspace {
		return "", "", nil, "", fmt.Errorf("not an index key: %q", key)
	}
	e, rest, err := joqular.Unescape(key[1:])
	if err != nil {
		return "", "", nil, "", fmt.Errorf("index key entity: %w", err)
	}
	p, rest, err := joqular.Unescape(rest)
	if err != nil {
		return "", "", nil, "", fmt.Errorf("index key property: %w", err)
	}
	value, rest, err = joqular.DecodeIndexValue(rest)
	if err != nil {
		return "", "", nil, "", fmt.Errorf("index key value: %w", err)
	}
	return string(e), string(p), value, string(rest), nil
}

// SchemaKey returns the key of an entity's descriptor.
func (KeyEncoder) SchemaKey(entity string) []byte {
	key := make([]byte, 0, 1+len(entity))
	key = append(key, byte(SchemaKeyspace))
	return append(key, entity...)
}

// EncodePrefixRange creates start and end keys for a prefix scan
func EncodePrefixRange(prefix []byte) (start, end []byte) {
	start = prefix

	// End key is start with last byte incremented
	end = make([]byte, len(start))
	copy(end, start)

	// Increment last byte, dropping trailing 0xFF bytes that would overflow
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return start, end[:i+1]
		}
	}
	// All bytes are 0xFF: no upper bound
	return start, nil
}

// KeyString renders a backend key for display. Identifiers and names are
// printed as text, index values in L85.
func (e KeyEncoder) KeyString(key []byte) string {
	if len(key) == 0 {
		return ""
	}
	switch Keyspace(key[0]) {
	case PrimaryKeyspace, SchemaKeyspace:
		return Keyspace(key[0]).String() + ":" + string(key[1:])
	case IndexKeyspace:
		entity, property, value, id, err := e.DecodeIndexKey(key)
		if err != nil {
			break
		}
		enc, err := joqular.EncodeIndexValue(value)
		if err != nil {
			break
		}
		return strings.Join([]string{"I:" + entity, property, codec.Encode(enc), id}, "/")
	}
	return codec.Encode(key)
}
