package jsonv

import "strings"

// Resolve walks a dot-separated path through nested objects.
//
// The boolean distinguishes an absent path (false) from a present key
// whose value is null (true, nil). The empty path and "." are always
// absent. Only objects are traversed; any other container stops the walk.
func Resolve(data any, path string) (any, bool) {
	if path == "" || path == "." {
		return nil, false
	}
	cur, ok := Normalize(data)
	if !ok {
		return nil, false
	}
	for _, seg := range strings.Split(path, ".") {
		obj, isObj := cur.(*Object)
		if !isObj {
			return nil, false
		}
		v, found := obj.Get(seg)
		if !found {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// Number returns v as a float64 when it is a JSON number.
func Number(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}
