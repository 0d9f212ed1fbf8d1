package render

import (
	"strings"

	"github.com/wilhg/kit/pkg/jsonv"
	"github.com/wilhg/kit/pkg/layout"
	"github.com/wilhg/kit/pkg/schema"
)

// Render lays out data according to its _layout field, or a default
// layout derived from the output schema when the field is missing or
// unusable. It never mutates its inputs and is safe for concurrent use.
func Render(s *schema.Node, data any) Tree {
	norm, ok := jsonv.Normalize(data)
	if !ok {
		return Tree{Rows: []Row{}}
	}
	obj, _ := norm.(*jsonv.Object)

	dsl, defaulted := layoutString(obj)
	if defaulted {
		dsl = layout.Synthesize(s, obj)
	}
	rows := layout.Parse(dsl)
	if len(rows) == 0 && !defaulted {
		dsl, defaulted = layout.Synthesize(s, obj), true
		rows = layout.Parse(dsl)
	}

	tree := Tree{Layout: dsl, Defaulted: defaulted, Rows: make([]Row, 0, len(rows))}
	for _, r := range rows {
		cells := make([]Component, 0, len(r))
		surviving := 0
		for _, key := range r {
			if key == layout.Key {
				continue
			}
			v, present := jsonv.Resolve(obj, key)
			if !present || v == nil {
				continue
			}
			// Keys that resolve still claim a column when they render
			// as nothing.
			surviving++
			if c, rendered := Classify(leaf(key), v, schema.Resolve(s, key)); rendered {
				c.Key = key
				cells = append(cells, c)
			}
		}
		if surviving == 0 {
			continue
		}
		tree.Rows = append(tree.Rows, Row{Columns: layout.Columns(surviving), Cells: cells})
	}
	return tree
}

// layoutString returns the data's layout and whether it must be replaced
// by the default.
func layoutString(obj *jsonv.Object) (string, bool) {
	v, ok := obj.Get(layout.Key)
	if !ok {
		return "", true
	}
	s, isStr := v.(string)
	if !isStr || strings.TrimSpace(s) == "" {
		return "", true
	}
	return s, false
}

// leaf is the last path segment; classification heuristics match on it.
func leaf(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i+1:]
	}
	return path
}
