package joqular

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Shape is the form an entity's instances take.
type Shape uint8

const (
	// ObjectShape instances are property bags.
	ObjectShape Shape = iota
	// ArrayShape instances are ordered element lists, stored with their
	// elements under the keys "0".."n-1".
	ArrayShape
)

func (s Shape) String() string {
	if s == ArrayShape {
		return "array"
	}
	return "object"
}

// ParseShape parses "object" or "array".
func ParseShape(s string) (Shape, error) {
	switch strings.ToLower(s) {
	case "", "object":
		return ObjectShape, nil
	case "array":
		return ArrayShape, nil
	}
	return ObjectShape, fmt.Errorf("unknown shape %q", s)
}

// Constructor builds an instance from raw caller data.
type Constructor func(raw interface{}) (Object, error)

// Schema describes a registered entity.
type Schema struct {
	Name          string
	IdentifierKey string
	Shape         Shape
	Construct     Constructor
}

// NewSchema returns an object-shaped schema with the default identifier key
// and constructor.
func NewSchema(name string) Schema {
	return Schema{Name: name, IdentifierKey: DefaultIdentifierKey, Shape: ObjectShape}
}

// NewArraySchema returns an array-shaped schema.
func NewArraySchema(name string) Schema {
	return Schema{Name: name, IdentifierKey: DefaultIdentifierKey, Shape: ArrayShape}
}

// Validate checks the schema name and fills in defaults.
func (s *Schema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("schema name is empty")
	}
	if strings.ContainsAny(s.Name, IDSeparator+"\x00") {
		return fmt.Errorf("schema name %q must not contain %q or NUL", s.Name, IDSeparator)
	}
	if s.IdentifierKey == "" {
		s.IdentifierKey = DefaultIdentifierKey
	}
	if strings.Contains(s.IdentifierKey, "\x00") {
		return fmt.Errorf("identifier key %q must not contain NUL", s.IdentifierKey)
	}
	return nil
}

// New constructs an instance through the schema's constructor, falling back
// to the default constructor for the schema's shape.
func (s Schema) New(raw interface{}) (Object, error) {
	if s.Construct != nil {
		obj, err := s.Construct(raw)
		if err != nil {
			return nil, fmt.Errorf("construct %s: %w", s.Name, err)
		}
		return obj, nil
	}
	if s.Shape == ArrayShape {
		return constructArray(raw)
	}
	return constructObject(raw)
}

// Compatible reports whether two descriptors describe the same entity.
func (s Schema) Compatible(other Schema) bool {
	return s.Name == other.Name && s.IdentifierKey == other.IdentifierKey && s.Shape == other.Shape
}

func constructObject(raw interface{}) (Object, error) {
	n, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	obj, ok := n.(Object)
	if !ok {
		return nil, fmt.Errorf("%w: expected an object, got %T", ErrShapeMismatch, raw)
	}
	return obj, nil
}

func constructArray(raw interface{}) (Object, error) {
	n, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	switch v := n.(type) {
	case []interface{}:
		obj := make(Object, len(v)+1)
		for i, e := range v {
			obj[strconv.Itoa(i)] = e
		}
		return obj, nil
	case Object:
		// Already array-shaped, e.g. a stored instance being re-put
		return v, nil
	}
	return nil, fmt.Errorf("%w: expected an array, got %T", ErrShapeMismatch, raw)
}

// Registry maps entity names to schemas. Schemas are immutable once defined.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]Schema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]Schema)}
}

// Define registers a schema. Redefining a name with an identical descriptor
// is a no-op; a different descriptor fails with ErrSchemaConflict.
func (r *Registry) Define(s Schema) error {
	if err := s.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.schemas[s.Name]; ok {
		if !existing.Compatible(s) {
			return fmt.Errorf("%w: %s already defined with identifier key %q and %s shape",
				ErrSchemaConflict, s.Name, existing.IdentifierKey, existing.Shape)
		}
		// Allow a constructor to be attached to a descriptor loaded from disk
		if existing.Construct == nil && s.Construct != nil {
			r.schemas[s.Name] = s
		}
		return nil
	}
	r.schemas[s.Name] = s
	return nil
}

// Lookup returns the schema for an entity.
func (r *Registry) Lookup(name string) (Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[name]
	return s, ok
}

// Names returns all registered entity names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
