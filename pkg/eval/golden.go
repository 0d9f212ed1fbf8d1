// Package eval scores golden render fixtures: each fixture pairs an output
// schema and a data value with the render tree they must produce.
package eval

import (
	"fmt"
	"io/fs"
	"path"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/wilhg/kit/pkg/jsonv"
	"github.com/wilhg/kit/pkg/prompt"
	"github.com/wilhg/kit/pkg/render"
	"github.com/wilhg/kit/pkg/schema"
)

// Fixture is one golden case. Schema and Data keep their key order.
type Fixture struct {
	Name string `json:"name"`
	// SystemPrompt, when set, supplies the layout hint for data without one,
	// the way the run pipeline does.
	SystemPrompt string      `json:"system_prompt,omitempty"`
	Expect       Expectation `json:"expect"`

	Schema *schema.Node `json:"-"`
	Data   any          `json:"-"`
}

// Expectation lists what the rendered tree must look like. Empty fields
// are not checked.
type Expectation struct {
	Layout    string                `json:"layout,omitempty"`
	Defaulted *bool                 `json:"defaulted,omitempty"`
	Kinds     [][]render.Kind       `json:"kinds,omitempty"`
	Cells     map[string]CellExpect `json:"cells,omitempty"`
}

// CellExpect pins fields of the component rendered for one key.
type CellExpect struct {
	Kind  render.Kind  `json:"kind,omitempty"`
	Unit  string       `json:"unit,omitempty"`
	Color render.Color `json:"color,omitempty"`
	Text  string       `json:"text,omitempty"`
	Label string       `json:"label,omitempty"`
}

// Report is the outcome of a fixture run.
type Report struct {
	Total   int      `json:"total"`
	Passed  int      `json:"passed"`
	Details []string `json:"details,omitempty"`
}

// Score is the share of passing fixtures; an empty run scores 1.
func (r Report) Score() float64 {
	if r.Total == 0 {
		return 1
	}
	return float64(r.Passed) / float64(r.Total)
}

// EvaluateRenderFixtures loads every .json fixture in dir, renders it and
// compares the tree against its expectation.
func EvaluateRenderFixtures(fsys fs.FS, dir string) (Report, error) {
	fixtures, err := LoadFixtures(fsys, dir)
	if err != nil {
		return Report{}, err
	}
	rep := Report{Total: len(fixtures)}
	for _, fx := range fixtures {
		problems := Check(fx)
		if len(problems) == 0 {
			rep.Passed++
			continue
		}
		for _, p := range problems {
			rep.Details = append(rep.Details, fx.Name+": "+p)
		}
	}
	return rep, nil
}

// Check renders fx and returns every mismatch.
func Check(fx Fixture) []string {
	data := fx.Data
	if obj, ok := data.(*jsonv.Object); ok && fx.SystemPrompt != "" && !obj.Has("_layout") {
		if hint, found := prompt.LayoutHint(fx.SystemPrompt); found {
			obj = obj.Clone()
			obj.Set("_layout", hint)
			data = obj
		}
	}
	tree := render.Render(fx.Schema, data)

	var out []string
	want := fx.Expect
	if want.Layout != "" && tree.Layout != want.Layout {
		out = append(out, fmt.Sprintf("layout %q, want %q", tree.Layout, want.Layout))
	}
	if want.Defaulted != nil && tree.Defaulted != *want.Defaulted {
		out = append(out, fmt.Sprintf("defaulted %v, want %v", tree.Defaulted, *want.Defaulted))
	}
	if want.Kinds != nil && !sameKinds(tree.Kinds(), want.Kinds) {
		out = append(out, fmt.Sprintf("kinds %v, want %v", tree.Kinds(), want.Kinds))
	}
	for key, ce := range want.Cells {
		c, ok := tree.Cell(key)
		if !ok {
			out = append(out, "no cell for "+key)
			continue
		}
		out = append(out, cellMismatches(key, c, ce)...)
	}
	return out
}

func cellMismatches(key string, c render.Component, want CellExpect) []string {
	var out []string
	check := func(field, got, exp string) {
		if exp != "" && got != exp {
			out = append(out, fmt.Sprintf("%s.%s %q, want %q", key, field, got, exp))
		}
	}
	check("kind", string(c.Kind), string(want.Kind))
	check("unit", c.Unit, want.Unit)
	check("color", string(c.Color), string(want.Color))
	check("text", c.Text, want.Text)
	check("label", c.Label, want.Label)
	return out
}

func sameKinds(a, b [][]render.Kind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}

// LoadFixtures reads the .json fixtures of dir in name order.
func LoadFixtures(fsys fs.FS, dir string) ([]Fixture, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	var out []Fixture
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		b, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		fx, err := ParseFixture(b)
		if err != nil {
			return nil, fmt.Errorf("eval: %s: %w", e.Name(), err)
		}
		if fx.Name == "" {
			fx.Name = strings.TrimSuffix(e.Name(), ".json")
		}
		out = append(out, fx)
	}
	return out, nil
}

// ParseFixture decodes one fixture document.
func ParseFixture(b []byte) (Fixture, error) {
	var fx Fixture
	if err := json.Unmarshal(b, &fx); err != nil {
		return Fixture{}, err
	}
	sch, err := schema.Parse([]byte(gjson.GetBytes(b, "schema").Raw))
	if err != nil {
		return Fixture{}, err
	}
	fx.Schema = sch
	if raw := gjson.GetBytes(b, "data").Raw; raw != "" {
		if fx.Data, err = jsonv.Decode([]byte(raw)); err != nil {
			return Fixture{}, err
		}
	}
	return fx, nil
}
