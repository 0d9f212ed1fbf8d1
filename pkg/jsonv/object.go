// Package jsonv holds decoded JSON values that keep object key order.
//
// Objects decode into *Object, arrays into []any, numbers into float64,
// strings, booleans and nil. Key order matters for generated forms and
// default layouts, so map[string]any is never used for decoded documents.
package jsonv

import (
	"bytes"

	json "github.com/goccy/go-json"
)

// Object is a JSON object that remembers the order keys were first set.
type Object struct {
	keys []string
	vals map[string]any
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{vals: map[string]any{}}
}

// Set stores v under k. A new key is appended; an existing key keeps its position.
func (o *Object) Set(k string, v any) {
	if o.vals == nil {
		o.vals = map[string]any{}
	}
	if _, ok := o.vals[k]; !ok {
		o.keys = append(o.keys, k)
	}
	o.vals[k] = v
}

// Get returns the value under k and whether the key is present.
// A present key may hold nil.
func (o *Object) Get(k string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.vals[k]
	return v, ok
}

// Has reports whether k is present.
func (o *Object) Has(k string) bool {
	_, ok := o.Get(k)
	return ok
}

// Delete removes k, preserving the order of the remaining keys.
func (o *Object) Delete(k string) {
	if o == nil {
		return
	}
	if _, ok := o.vals[k]; !ok {
		return
	}
	delete(o.vals, k)
	for i, kk := range o.keys {
		if kk == k {
			o.keys = append(o.keys[:i:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len returns the number of keys.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Range calls fn for each key in order until fn returns false.
func (o *Object) Range(fn func(k string, v any) bool) {
	if o == nil {
		return
	}
	for _, k := range o.keys {
		if !fn(k, o.vals[k]) {
			return
		}
	}
}

// Clone returns a shallow copy; nested values are shared.
func (o *Object) Clone() *Object {
	out := NewObject()
	o.Range(func(k string, v any) bool {
		out.Set(k, v)
		return true
	})
	return out
}

// Merge returns a copy of o with every key of patch set on it.
func (o *Object) Merge(patch *Object) *Object {
	out := o.Clone()
	patch.Range(func(k string, v any) bool {
		out.Set(k, v)
		return true
	})
	return out
}

// MarshalJSON encodes the object with keys in insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.vals[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping document key order.
func (o *Object) UnmarshalJSON(b []byte) error {
	obj, err := DecodeObject(b)
	if err != nil {
		return err
	}
	*o = *obj
	return nil
}

// ToMap converts o into plain Go maps and slices, dropping key order.
// It is meant for libraries that only accept map[string]any.
func (o *Object) ToMap() map[string]any {
	if o == nil {
		return nil
	}
	out := make(map[string]any, len(o.keys))
	for _, k := range o.keys {
		out[k] = Plain(o.vals[k])
	}
	return out
}

// Plain converts a decoded value into map[string]any and []any trees.
func Plain(v any) any {
	switch t := v.(type) {
	case *Object:
		return t.ToMap()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Plain(e)
		}
		return out
	default:
		return v
	}
}
