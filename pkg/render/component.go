// Package render maps output values to display components and arranges
// them into rows according to a layout.
package render

// Kind is the display component chosen for one value.
type Kind string

const (
	KindMetric      Kind = "metric"
	KindImage       Kind = "image"
	KindList        Kind = "list"
	KindTable       Kind = "table"
	KindMetricGroup Kind = "metric_group"
	KindJSON        Kind = "json"
	KindTitle       Kind = "title"
	KindBadge       Kind = "badge"
	KindText        Kind = "text"
	KindProse       Kind = "prose"
)

// Color is a badge color.
type Color string

const (
	ColorGreen   Color = "green"
	ColorAmber   Color = "amber"
	ColorRed     Color = "red"
	ColorNeutral Color = "neutral"
)

// Component is one rendered value. Only the fields relevant to Kind are set.
type Component struct {
	Kind  Kind   `json:"kind"`
	Key   string `json:"key"`
	Label string `json:"label"`

	// Metric: raw value plus its display form.
	Value any    `json:"value,omitempty"`
	Unit  string `json:"unit,omitempty"`

	// Title, badge, text, prose and json hold their display text here.
	Text  string `json:"text,omitempty"`
	Color Color  `json:"color,omitempty"`

	Src   string   `json:"src,omitempty"`
	Items []string `json:"items,omitempty"`

	Columns []string   `json:"columns,omitempty"`
	Rows    [][]string `json:"rows,omitempty"`

	Metrics []Component `json:"metrics,omitempty"`
}

// Row is one layout row of rendered components.
type Row struct {
	Columns int         `json:"columns"`
	Cells   []Component `json:"cells"`
}

// Tree is the full rendering of one output value.
type Tree struct {
	Layout    string `json:"layout"`
	Defaulted bool   `json:"defaulted"`
	Rows      []Row  `json:"rows"`
}

// Kinds lists the component kinds of each row, for compact comparisons.
func (t Tree) Kinds() [][]Kind {
	out := make([][]Kind, 0, len(t.Rows))
	for _, r := range t.Rows {
		ks := make([]Kind, 0, len(r.Cells))
		for _, c := range r.Cells {
			ks = append(ks, c.Kind)
		}
		out = append(out, ks)
	}
	return out
}

// Cell returns the first component rendered for key.
func (t Tree) Cell(key string) (Component, bool) {
	for _, r := range t.Rows {
		for _, c := range r.Cells {
			if c.Key == key {
				return c, true
			}
		}
	}
	return Component{}, false
}
