// Package object provides dynamic attribute objects whose writes can be
// routed through a write-once guard.
//
// An Object is a named bag of attributes. Its Set method hands every write to
// the AttributeWriter it was created with, which is either the plain Writer
// or a guard.Guard wrapping it. Classes pair a guarded class object with a
// guard shared by all of their instances.
package object

import (
	"fmt"
	"maps"
	"slices"

	"github.com/simphotonics/lockattr/internal/guard"
	"github.com/simphotonics/lockattr/internal/ir"
)

// Object is a bag of named attribute values.
//
// Not safe for concurrent use.
type Object struct {
	kind   string
	attrs  map[string]ir.Value
	writes map[string]int
	w      guard.AttributeWriter[Object]
}

// New creates an empty object of the given kind whose writes go through w.
// A nil w means the plain Writer.
func New(kind string, w guard.AttributeWriter[Object]) *Object {
	if w == nil {
		w = Writer{}
	}
	return &Object{
		kind:   kind,
		attrs:  make(map[string]ir.Value),
		writes: make(map[string]int),
		w:      w,
	}
}

// Kind returns the object's kind, e.g. its class name.
func (o *Object) Kind() string {
	return o.kind
}

// Set writes an attribute through the object's writer.
func (o *Object) Set(name string, value any) error {
	return o.w.SetAttr(o, name, value)
}

// Get returns the value of an attribute.
func (o *Object) Get(name string) (ir.Value, bool) {
	v, ok := o.attrs[name]
	return v, ok
}

// Has reports whether the attribute has been assigned.
func (o *Object) Has(name string) bool {
	_, ok := o.attrs[name]
	return ok
}

// Writes returns how many writes of name reached the object.
func (o *Object) Writes(name string) int {
	return o.writes[name]
}

// Attrs returns the assigned attribute names in sorted order.
func (o *Object) Attrs() []string {
	return slices.Sorted(maps.Keys(o.attrs))
}

// Snapshot returns all attributes as an ir.Map.
func (o *Object) Snapshot() ir.Map {
	out := make(ir.Map, len(o.attrs))
	maps.Copy(out, o.attrs)
	return out
}

// Writer is the unguarded attribute writer. It converts the value with
// ir.FromAny and stores it on the object.
type Writer struct{}

// SetAttr implements guard.AttributeWriter.
func (Writer) SetAttr(o *Object, name string, value any) error {
	if name == "" {
		return fmt.Errorf("set attribute: name is required")
	}
	v, err := ir.FromAny(value)
	if err != nil {
		return fmt.Errorf("set attribute %q: %w", name, err)
	}
	o.attrs[name] = v
	o.writes[name]++
	return nil
}
