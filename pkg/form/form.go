package form

import (
	"sort"
	"sync"

	"github.com/wilhg/kit/pkg/jsonv"
	"github.com/wilhg/kit/pkg/schema"
)

// ImageKey is hoisted to the top of every form.
const ImageKey = "image"

// ChangeFunc receives the full merged value after every field change.
type ChangeFunc func(value *jsonv.Object)

// Descriptor is a generated form bound to its current value.
type Descriptor struct {
	mu       sync.Mutex
	schema   *schema.Node
	value    *jsonv.Object
	onChange ChangeFunc
}

// Generate builds a descriptor for the input schema. current may be nil,
// a *jsonv.Object or a map[string]any; it is never mutated.
func Generate(s *schema.Node, current any, onChange ChangeFunc) *Descriptor {
	return &Descriptor{schema: s, value: toObject(current), onChange: onChange}
}

// Fields returns one control per schema property, image first, the rest
// in schema order.
func (d *Descriptor) Fields() []Control {
	d.mu.Lock()
	value := d.value
	d.mu.Unlock()
	return Fields(d.schema, value)
}

// Value returns the current value.
func (d *Descriptor) Value() *jsonv.Object {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value
}

// Change merges one field into the value and notifies the change callback
// with the full merged value. Applying the same change twice yields the
// same value.
func (d *Descriptor) Change(key string, value any) *jsonv.Object {
	if n, ok := jsonv.Normalize(value); ok {
		value = n
	}
	d.mu.Lock()
	patch := jsonv.NewObject()
	patch.Set(key, value)
	next := d.value.Merge(patch)
	d.value = next
	cb := d.onChange
	d.mu.Unlock()
	if cb != nil {
		cb(next)
	}
	return next
}

// Fields classifies every property of s against value.
func Fields(s *schema.Node, value *jsonv.Object) []Control {
	names := s.PropertyNames()
	sort.SliceStable(names, func(i, j int) bool {
		return names[i] == ImageKey && names[j] != ImageKey
	})
	out := make([]Control, 0, len(names))
	for _, name := range names {
		prop, _ := s.Property(name)
		v, present := value.Get(name)
		out = append(out, Build(name, prop, s.IsRequired(name), v, present))
	}
	return out
}

// Missing lists required properties that are absent, null or empty
// strings. It is advisory: forms never block submission on it.
func Missing(s *schema.Node, value any) []string {
	obj := toObject(value)
	var out []string
	for _, name := range s.PropertyNames() {
		if !s.IsRequired(name) {
			continue
		}
		v, ok := obj.Get(name)
		if !ok || v == nil || v == "" {
			out = append(out, name)
		}
	}
	return out
}

func toObject(v any) *jsonv.Object {
	n, ok := jsonv.Normalize(v)
	if !ok {
		return jsonv.NewObject()
	}
	if obj, isObj := n.(*jsonv.Object); isObj {
		return obj.Clone()
	}
	return jsonv.NewObject()
}
