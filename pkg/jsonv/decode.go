package jsonv

import (
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"sort"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// ErrInvalid reports a payload that is not valid JSON.
var ErrInvalid = errors.New("jsonv: invalid json")

// Decode parses raw JSON into ordered values.
func Decode(raw []byte) (any, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalid
	}
	return fromResult(gjson.ParseBytes(raw)), nil
}

// DecodeObject parses raw JSON that must be an object.
func DecodeObject(raw []byte) (*Object, error) {
	v, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*Object)
	if !ok {
		return nil, fmt.Errorf("jsonv: expected object, got %s", TypeName(v))
	}
	return obj, nil
}

// Encode marshals v, keeping the key order of any *Object inside it.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// EncodeIndent marshals v with two-space indentation.
func EncodeIndent(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

func fromResult(r gjson.Result) any {
	switch r.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		return r.Num
	case gjson.String:
		return r.Str
	case gjson.JSON:
		if r.IsArray() {
			out := []any{}
			r.ForEach(func(_, v gjson.Result) bool {
				out = append(out, fromResult(v))
				return true
			})
			return out
		}
		obj := NewObject()
		r.ForEach(func(k, v gjson.Result) bool {
			obj.Set(k.Str, fromResult(v))
			return true
		})
		return obj
	}
	return nil
}

// Normalize converts arbitrary Go values into the decoded value model.
// Maps become objects with sorted keys so the result is deterministic.
// Objects are copied with their values normalized and key order kept.
// The boolean is false for values that have no JSON meaning (funcs,
// channels); map entries holding such values are dropped.
func Normalize(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case *Object:
		if t == nil {
			return nil, true
		}
		out := NewObject()
		t.Range(func(k string, e any) bool {
			if n, ok := Normalize(e); ok {
				out.Set(k, n)
			}
			return true
		})
		return out, true
	case string, bool, float64:
		return t, true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float32:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, false
		}
		return f, true
	case []byte:
		d, err := Decode(t)
		if err != nil {
			return nil, false
		}
		return d, true
	case []any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			if n, ok := Normalize(e); ok {
				out = append(out, n)
			}
		}
		return out, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := NewObject()
		for _, k := range keys {
			if n, ok := Normalize(t[k]); ok {
				obj.Set(k, n)
			}
		}
		return obj, true
	case encoding.TextMarshaler:
		b, err := t.MarshalText()
		if err != nil {
			return nil, false
		}
		return string(b), true
	}
	return normalizeReflect(reflect.ValueOf(v))
}

func normalizeReflect(rv reflect.Value) (any, bool) {
	switch rv.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return nil, false
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, true
		}
		return Normalize(rv.Elem().Interface())
	case reflect.Int8, reflect.Int16:
		return float64(rv.Int()), true
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return float64(rv.Uint()), true
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return rv.Bool(), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	// Structs and typed containers go through a JSON round trip.
	b, err := json.Marshal(rv.Interface())
	if err != nil {
		return nil, false
	}
	d, err := Decode(b)
	if err != nil {
		return nil, false
	}
	return d, true
}

// TypeName names the JSON type of a decoded value.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case *Object:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	}
	return fmt.Sprintf("%T", v)
}
