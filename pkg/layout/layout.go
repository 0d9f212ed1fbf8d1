// Package layout parses and synthesizes the row DSL that arranges output
// fields, e.g. "[[title]] [[calories, protein]] [[notes]]".
package layout

import (
	"regexp"
	"sort"
	"strings"

	"github.com/wilhg/kit/pkg/jsonv"
	"github.com/wilhg/kit/pkg/schema"
)

// Key is the reserved data key carrying a layout string.
const Key = "_layout"

// Row is an ordered list of field paths shown side by side.
type Row []string

var (
	rowPattern   = regexp.MustCompile(`\[\[(.*?)\]\]`)
	loosePattern = regexp.MustCompile(`[\s,]+`)
)

// Parse turns a layout string into rows. Bracketed input yields one row
// per [[...]] group; input without "[[" is read leniently as one field per
// row. Empty groups produce no row.
func Parse(dsl string) []Row {
	if !strings.Contains(dsl, "[[") {
		var rows []Row
		for _, tok := range loosePattern.Split(strings.TrimSpace(dsl), -1) {
			if tok != "" {
				rows = append(rows, Row{tok})
			}
		}
		return rows
	}
	var rows []Row
	for _, m := range rowPattern.FindAllStringSubmatch(dsl, -1) {
		var row Row
		for _, part := range strings.Split(m[1], ",") {
			if p := strings.TrimSpace(part); p != "" {
				row = append(row, p)
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows
}

// Format renders rows back into the DSL.
func Format(rows []Row) string {
	parts := make([]string, 0, len(rows))
	for _, r := range rows {
		parts = append(parts, "[["+strings.Join(r, ", ")+"]]")
	}
	return strings.Join(parts, " ")
}

// Synthesize builds the default layout: one row per output schema
// property in schema order, or when the schema has no properties, one row
// per data key in data order. The reserved layout key is never included.
func Synthesize(s *schema.Node, data any) string {
	return Format(DefaultRows(s, data))
}

// DefaultRows is Synthesize without the final formatting.
func DefaultRows(s *schema.Node, data any) []Row {
	keys := s.PropertyNames()
	if len(keys) == 0 {
		keys = dataKeys(data)
	}
	rows := make([]Row, 0, len(keys))
	for _, k := range keys {
		if k == Key {
			continue
		}
		rows = append(rows, Row{k})
	}
	return rows
}

func dataKeys(data any) []string {
	switch d := data.(type) {
	case *jsonv.Object:
		return d.Keys()
	case map[string]any:
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys
	}
	return nil
}

// Columns maps the number of fields in a row to its grid column count.
func Columns(n int) int {
	switch {
	case n <= 0:
		return 0
	case n >= 4:
		return 4
	default:
		return n
	}
}
