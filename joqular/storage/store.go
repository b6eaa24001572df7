package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/wbrown/janus-joqular/joqular"
	"github.com/wbrown/janus-joqular/joqular/annotations"
)

// Store keeps instances in a backend under their identifiers and maintains
// the secondary index of every top-level property. It implements
// executor.Source.
type Store struct {
	backend Backend
	keys    KeyEncoder
	schemas *joqular.Registry
	handler annotations.Handler
}

// NewStore wraps backend and loads the schema descriptors persisted in it.
// Loaded schemas use the default constructor until redefined.
func NewStore(backend Backend, handler annotations.Handler) (*Store, error) {
	s := &Store{
		backend: backend,
		schemas: joqular.NewRegistry(),
		handler: handler,
	}
	if err := s.loadSchemas(); err != nil {
		return nil, err
	}
	return s, nil
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) loadSchemas() error {
	start, end := EncodePrefixRange([]byte{byte(SchemaKeyspace)})
	it, err := s.backend.Scan(start, end)
	if err != nil {
		return fmt.Errorf("load schemas: %w", err)
	}
	defer it.Close()

	for it.Next() {
		desc, err := joqular.DecodeObject(it.Value())
		if err != nil {
			return fmt.Errorf("load schema %q: %w", it.Key()[1:], err)
		}
		name, _ := desc["name"].(string)
		key, _ := desc["identifierKey"].(string)
		shapeName, _ := desc["shape"].(string)
		shape, err := joqular.ParseShape(shapeName)
		if err != nil {
			return fmt.Errorf("load schema %s: %w", name, err)
		}
		if err := s.schemas.Define(joqular.Schema{Name: name, IdentifierKey: key, Shape: shape}); err != nil {
			return fmt.Errorf("load schema %s: %w", name, err)
		}
	}
	return it.Err()
}

// DefineSchema registers an entity and persists its descriptor. Redefining
// an entity with the same descriptor is allowed and attaches a constructor
// to a schema loaded from disk.
func (s *Store) DefineSchema(schema joqular.Schema) error {
	if err := s.schemas.Define(schema); err != nil {
		return err
	}
	schema, _ = s.schemas.Lookup(schema.Name)
	desc, err := joqular.EncodeObject(joqular.Object{
		"name":          schema.Name,
		"identifierKey": schema.IdentifierKey,
		"shape":         schema.Shape.String(),
	})
	if err != nil {
		return err
	}
	return s.backend.Update(func(w Writer) error {
		return w.Set(s.keys.SchemaKey(schema.Name), desc)
	})
}

// GetSchema returns the schema of an entity.
func (s *Store) GetSchema(entity string) (joqular.Schema, bool) {
	return s.schemas.Lookup(entity)
}

// Schemas returns the defined entity names, sorted.
func (s *Store) Schemas() []string {
	return s.schemas.Names()
}

// Get returns the instance stored under id.
func (s *Store) Get(id string) (joqular.Object, bool, error) {
	data, ok, err := s.backend.Get(s.keys.PrimaryKey(id))
	if err != nil {
		s.backendError("get", err)
		return nil, false, fmt.Errorf("get %s: %w", id, err)
	}
	if !ok {
		return nil, false, nil
	}
	obj, err := joqular.DecodeObject(data)
	if err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", id, err)
	}
	return obj, true, nil
}

// GetEntry returns the instance stored under id as an entry.
func (s *Store) GetEntry(id string) (joqular.Entry, bool, error) {
	obj, ok, err := s.Get(id)
	if err != nil || !ok {
		return joqular.Entry{}, false, err
	}
	return joqular.Entry{Key: id, Value: obj}, true, nil
}

// Put writes an instance of entity and returns its identifier. An instance
// without an identifier gets a generated one; a supplied identifier must
// belong to entity. An existing instance with the same identifier is
// replaced.
func (s *Store) Put(entity string, inst joqular.Object) (string, error) {
	start := time.Now()
	schema, ok := s.schemas.Lookup(entity)
	if !ok {
		return "", fmt.Errorf("%w: %s", joqular.ErrUnknownEntity, entity)
	}
	n, err := joqular.Normalize(inst)
	if err != nil {
		return "", fmt.Errorf("put %s: %w", entity, err)
	}
	obj, ok := n.(joqular.Object)
	if !ok {
		obj = joqular.Object{}
	}

	var id string
	switch v := obj[schema.IdentifierKey].(type) {
	case nil:
		id = joqular.NewID(entity)
		obj[schema.IdentifierKey] = id
	case string:
		if err := joqular.CheckID(entity, v); err != nil {
			return "", err
		}
		id = v
	default:
		return "", fmt.Errorf("%w: %s is %T, not a string", joqular.ErrInvalidIdentifier, schema.IdentifierKey, v)
	}

	err = s.backend.Update(func(w Writer) error {
		return s.write(w, entity, id, obj)
	})
	if err != nil {
		s.backendError("put", err)
		return "", fmt.Errorf("put %s: %w", id, err)
	}
	s.annotate(annotations.WriteInsert, start, id)
	return id, nil
}

// Patch merges partial into the stored instance. The identifier can not
// change.
func (s *Store) Patch(id string, partial joqular.Object) (string, error) {
	start := time.Now()
	entity, ok := joqular.EntityOf(id)
	if !ok {
		return "", fmt.Errorf("%w: %q", joqular.ErrInvalidIdentifier, id)
	}
	schema, ok := s.schemas.Lookup(entity)
	if !ok {
		return "", fmt.Errorf("%w: %s", joqular.ErrUnknownEntity, entity)
	}
	n, err := joqular.Normalize(partial)
	if err != nil {
		return "", fmt.Errorf("patch %s: %w", id, err)
	}
	changes, _ := n.(joqular.Object)

	err = s.backend.Update(func(w Writer) error {
		old, found, err := s.read(w, id)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", joqular.ErrNotFound, id)
		}
		merged := old.Clone()
		for k, v := range changes {
			merged[k] = v
		}
		merged[schema.IdentifierKey] = id
		return s.write(w, entity, id, merged)
	})
	if errors.Is(err, joqular.ErrNotFound) {
		return "", err
	}
	if err != nil {
		s.backendError("patch", err)
		return "", fmt.Errorf("patch %s: %w", id, err)
	}
	s.annotate(annotations.WriteUpdate, start, id)
	return id, nil
}

// Remove deletes the instance stored under id and its index entries. It
// reports whether the instance existed.
func (s *Store) Remove(id string) (bool, error) {
	start := time.Now()
	entity, ok := joqular.EntityOf(id)
	if !ok {
		return false, fmt.Errorf("%w: %q", joqular.ErrInvalidIdentifier, id)
	}

	var found bool
	err := s.backend.Update(func(w Writer) error {
		old, ok, err := s.read(w, id)
		if err != nil || !ok {
			return err
		}
		found = true
		if err := s.unindex(w, entity, id, old); err != nil {
			return err
		}
		return w.Delete(s.keys.PrimaryKey(id))
	})
	if err != nil {
		s.backendError("remove", err)
		return false, fmt.Errorf("remove %s: %w", id, err)
	}
	if found {
		s.annotate(annotations.WriteDelete, start, id)
	}
	return found, nil
}

func (s *Store) read(w Writer, id string) (joqular.Object, bool, error) {
	data, ok, err := w.Get(s.keys.PrimaryKey(id))
	if err != nil || !ok {
		return nil, false, err
	}
	obj, err := joqular.DecodeObject(data)
	if err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", id, err)
	}
	return obj, true, nil
}

// write replaces the record of id and moves its index entries.
func (s *Store) write(w Writer, entity, id string, obj joqular.Object) error {
	old, found, err := s.read(w, id)
	if err != nil {
		return err
	}
	if found {
		if err := s.unindex(w, entity, id, old); err != nil {
			return err
		}
	}

	data, err := joqular.EncodeObject(obj)
	if err != nil {
		return fmt.Errorf("encode %s: %w", id, err)
	}
	if err := w.Set(s.keys.PrimaryKey(id), data); err != nil {
		return err
	}
	for property, value := range obj {
		key, err := s.keys.IndexKey(entity, property, value, id)
		if err != nil {
			return err
		}
		if err := w.Set(key, []byte{}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) unindex(w Writer, entity, id string, obj joqular.Object) error {
	for property, value := range obj {
		key, err := s.keys.IndexKey(entity, property, value, id)
		if err != nil {
			return err
		}
		if err := w.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// GetRange scans the instances whose identifiers fall in [start, end). An
// empty end scans to the last identifier.
func (s *Store) GetRange(start, end string) (joqular.Iterator, error) {
	lo, hi := s.keys.PrimaryRange(start, end)
	it, err := s.backend.Scan(lo, hi)
	if err != nil {
		s.backendError("scan", err)
		return nil, err
	}
	return &entryIterator{it: it, decode: s.decodePrimary}, nil
}

func (s *Store) decodePrimary(key, value []byte) (joqular.Entry, error) {
	id, err := s.keys.DecodePrimaryKey(key)
	if err != nil {
		return joqular.Entry{}, err
	}
	obj, err := joqular.DecodeObject(value)
	if err != nil {
		return joqular.Entry{}, fmt.Errorf("decode %s: %w", id, err)
	}
	return joqular.Entry{Key: id, Value: obj}, nil
}

// GetRangeFromIndex scans the index of entity.property for value, or for
// every value when value is joqular.Any. Entries are ordered by value and
// then identifier and carry only the identifier.
func (s *Store) GetRangeFromIndex(entity, property string, value interface{}) (joqular.Iterator, error) {
	if !joqular.IsAny(value) {
		n, err := joqular.Normalize(value)
		if err != nil {
			return nil, fmt.Errorf("index %s.%s: %w", entity, property, err)
		}
		value = n
	}
	prefix, err := s.keys.IndexPrefix(entity, property, value)
	if err != nil {
		return nil, err
	}
	start, end := EncodePrefixRange(prefix)
	it, err := s.backend.Scan(start, end)
	if err != nil {
		s.backendError("scan", err)
		return nil, err
	}
	return &entryIterator{it: it, decode: s.decodeIndex}, nil
}

func (s *Store) decodeIndex(key, _ []byte) (joqular.Entry, error) {
	_, _, _, id, err := s.keys.DecodeIndexKey(key)
	if err != nil {
		return joqular.Entry{}, err
	}
	return joqular.Entry{Key: id}, nil
}

// Keys returns every backend key in display form.
func (s *Store) Keys() ([]string, error) {
	it, err := s.backend.Scan([]byte{}, nil)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var keys []string
	for it.Next() {
		keys = append(keys, s.keys.KeyString(it.Key()))
	}
	return keys, it.Err()
}

func (s *Store) annotate(name string, start time.Time, id string) {
	if s.handler == nil {
		return
	}
	end := time.Now()
	s.handler(annotations.Event{
		Name:    name,
		Start:   start,
		End:     end,
		Latency: end.Sub(start),
		Data:    map[string]interface{}{"id": id},
	})
}

func (s *Store) backendError(op string, err error) {
	if s.handler == nil {
		return
	}
	now := time.Now()
	s.handler(annotations.Event{
		Name:  annotations.ErrorBackend,
		Start: now,
		End:   now,
		Data:  map[string]interface{}{"op": op, "error": err.Error()},
	})
}

// entryIterator decodes backend pairs into entries.
type entryIterator struct {
	it     KVIterator
	decode func(key, value []byte) (joqular.Entry, error)
	entry  joqular.Entry
	err    error
}

func (i *entryIterator) Next() bool {
	if i.err != nil {
		return false
	}
	if !i.it.Next() {
		i.err = i.it.Err()
		return false
	}
	i.entry, i.err = i.decode(i.it.Key(), i.it.Value())
	return i.err == nil
}

func (i *entryIterator) Entry() joqular.Entry { return i.entry }
func (i *entryIterator) Err() error           { return i.err }
func (i *entryIterator) Close() error         { return i.it.Close() }
