package message

import "fmt"

// Shape is the static layout of one message kind: an id and an ordered field
// list. At most one field may be variable-size.
type Shape struct {
	ID     uint8
	Name   string
	Fields []FieldSpec

	varIndex int // index of the variable field, -1 if none
}

// NewShape builds and validates a shape.
func NewShape(id uint8, name string, fields ...FieldSpec) (*Shape, error) {
	s := &Shape{ID: id, Name: name, Fields: fields, varIndex: -1}
	for i, f := range fields {
		if !f.Variable() {
			continue
		}
		if s.varIndex >= 0 {
			return nil, fmt.Errorf("%w: %s", ErrBadShape, name)
		}
		s.varIndex = i
	}
	return s, nil
}

// MustShape is NewShape for statically known layouts; it panics on error.
func MustShape(id uint8, name string, fields ...FieldSpec) *Shape {
	s, err := NewShape(id, name, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// MinBytes returns the smallest serialized payload size.
func (s *Shape) MinBytes() int {
	n := 0
	for _, f := range s.Fields {
		n += f.MinBytes()
	}
	return n
}

// MaxBytes returns the largest serialized payload size.
func (s *Shape) MaxBytes() int {
	n := 0
	for _, f := range s.Fields {
		n += f.MaxBytes()
	}
	return n
}

func (s *Shape) fieldIndex(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Registry maps (layer, id) to a message shape. It is the schema catalog
// boundary: the framing code works against any registry satisfying the field
// invariants, the concrete catalog is supplied by the caller.
type Registry struct {
	shapes map[registryKey]*Shape
}

type registryKey struct {
	layer Layer
	id    uint8
}

// NewRegistry creates an empty shape registry.
func NewRegistry() *Registry {
	return &Registry{shapes: make(map[registryKey]*Shape)}
}

// Register adds a shape under (layer, shape.ID).
// Returns ErrShapeConflict if the slot is taken.
func (r *Registry) Register(layer Layer, s *Shape) error {
	key := registryKey{layer, s.ID}
	if _, ok := r.shapes[key]; ok {
		return fmt.Errorf("%w: %s id %#02x", ErrShapeConflict, layer, s.ID)
	}
	r.shapes[key] = s
	return nil
}

// MustRegister is Register for statically built catalogs; it panics on error.
func (r *Registry) MustRegister(layer Layer, s *Shape) {
	if err := r.Register(layer, s); err != nil {
		panic(err)
	}
}

// Lookup resolves an id to its shape.
// Returns ErrUnknownMessage if no shape is registered.
func (r *Registry) Lookup(layer Layer, id uint8) (*Shape, error) {
	s, ok := r.shapes[registryKey{layer, id}]
	if !ok {
		return nil, fmt.Errorf("%w: %s id %#02x", ErrUnknownMessage, layer, id)
	}
	return s, nil
}
