package render

import (
	"reflect"
	"strings"
	"sync"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/wilhg/kit/pkg/jsonv"
	"github.com/wilhg/kit/pkg/schema"
)

func decode(t *testing.T, s string) *jsonv.Object {
	t.Helper()
	obj, err := jsonv.DecodeObject([]byte(s))
	if err != nil {
		t.Fatalf("decode %s: %v", s, err)
	}
	return obj
}

func TestClassifyDecisionTable(t *testing.T) {
	cases := []struct {
		key   string
		value any
		sub   string
		kind  Kind
	}{
		{"anything", "text", `{"x-component":"metric"}`, KindMetric},
		{"anything", "https://x/y.png", `{"x-component":"image"}`, KindImage},
		{"thumbnail_url", "https://x/y.png", `{}`, KindImage},
		{"blob", "data:image/jpeg;base64,AAAA", `{}`, KindImage},
		{"photo_count", 3.0, `{}`, KindImage},
		{"thumbnail", map[string]any{"url": "https://x/y.png"}, `{}`, KindImage},
		{"image_ok", true, `{}`, KindImage},
		{"count", 3.0, `{}`, KindMetric},
		{"tags", []any{"a", "b"}, `{}`, KindList},
		{"rows", []any{map[string]any{"a": 1}}, `{}`, KindTable},
		{"nums", []any{1.0, 2.0}, `{}`, KindTable},
		{"macros", map[string]any{"protein": 1}, `{}`, KindMetricGroup},
		{"meta", map[string]any{"a": 1, "b": "x"}, `{}`, KindJSON},
		{"food_name", "Apple", `{}`, KindTitle},
		{"grade", "B", `{}`, KindBadge},
		{"summary", "short", `{}`, KindText},
		{"summary", strings.Repeat("x", 100), `{}`, KindProse},
		{"flag", true, `{}`, KindProse},
	}
	for _, tc := range cases {
		c, ok := Classify(tc.key, tc.value, schema.MustParse(tc.sub))
		if !ok || c.Kind != tc.kind {
			t.Fatalf("%s=%v: got %s (ok=%v) want %s", tc.key, tc.value, c.Kind, ok, tc.kind)
		}
	}
}

func TestClassifyRendersNothing(t *testing.T) {
	for _, v := range []any{nil, []any{}, func() {}} {
		if c, ok := Classify("k", v, nil); ok {
			t.Fatalf("%v rendered as %s", v, c.Kind)
		}
	}
}

func TestImageKeyWithoutSource(t *testing.T) {
	c, ok := Classify("image_count", 3.0, nil)
	if !ok || c.Kind != KindImage || c.Src != "" {
		t.Fatalf("image_count: %+v", c)
	}
	c, _ = Classify("cover_photo", "abcd", nil)
	if c.Src != "data:image/png;base64,abcd" {
		t.Fatalf("src=%q", c.Src)
	}
}

func TestEmptyObjectIsMetricGroup(t *testing.T) {
	c, ok := Classify("extra", jsonv.NewObject(), nil)
	if !ok || c.Kind != KindMetricGroup || len(c.Metrics) != 0 {
		t.Fatalf("empty object: ok=%v %+v", ok, c)
	}

	s := schema.MustParse(`{"type":"object","properties":{"title":{"type":"string"},"extra":{"type":"object"}}}`)
	tree := Render(s, decode(t, `{"title":"x","extra":{}}`))
	cells := 0
	for _, r := range tree.Rows {
		cells += len(r.Cells)
	}
	if cells != 2 {
		t.Fatalf("cells=%d tree=%+v", cells, tree)
	}
}

func TestBuiltObjectWithIntsIsMetricGroup(t *testing.T) {
	macros := jsonv.NewObject()
	macros.Set("protein", 12)
	macros.Set("fat", int64(4))
	c, ok := Classify("macros", macros, nil)
	if !ok || c.Kind != KindMetricGroup || len(c.Metrics) != 2 || c.Metrics[0].Value != 12.0 {
		t.Fatalf("macros: %+v", c)
	}
}

func TestRiskInversion(t *testing.T) {
	c, _ := Classify("misfire_risk", "High", nil)
	if c.Kind != KindBadge || c.Color != ColorRed {
		t.Fatalf("misfire_risk: %s %s", c.Kind, c.Color)
	}
	c, _ = Classify("health_rating", "High", nil)
	if c.Kind != KindBadge || c.Color != ColorGreen {
		t.Fatalf("health_rating: %s %s", c.Kind, c.Color)
	}
	if got := BadgeColor("status", "Medium"); got != ColorAmber {
		t.Fatalf("medium=%s", got)
	}
	if got := BadgeColor("verdict", "FF"); got != ColorRed {
		t.Fatalf("FF=%s", got)
	}
	if got := BadgeColor("verdict", "ok"); got != ColorNeutral {
		t.Fatalf("ok=%s", got)
	}
}

func TestImageCoercion(t *testing.T) {
	raw := strings.Repeat("QUJD", 375)
	c, _ := Classify("photo", raw, nil)
	if c.Kind != KindImage || !strings.HasPrefix(c.Src, "data:image/png;base64,") {
		t.Fatalf("photo: %s %.40s", c.Kind, c.Src)
	}
	c, _ = Classify("image", "http://example.com/a.png", nil)
	if c.Src != "http://example.com/a.png" {
		t.Fatalf("http src rewritten: %s", c.Src)
	}
}

func TestUnitInference(t *testing.T) {
	cases := []struct {
		key  string
		sub  string
		unit string
	}{
		{"calories", `{}`, "kcal"},
		{"energy", `{}`, "kcal"},
		{"fiber_total", `{}`, "g"},
		{"confidence_pct", `{}`, "%"},
		{"score", `{}`, "/ 100"},
		{"calories", `{"unit":"kJ"}`, "kJ"},
		{"count", `{}`, ""},
	}
	for _, tc := range cases {
		c, _ := Classify(tc.key, 42, schema.MustParse(tc.sub))
		if c.Kind != KindMetric || c.Unit != tc.unit {
			t.Fatalf("%s: %s unit=%q want %q", tc.key, c.Kind, c.Unit, tc.unit)
		}
	}
	c, _ := Classify("confidence_pct", 0.87, nil)
	if c.Text != "0.87" {
		t.Fatalf("text=%s", c.Text)
	}
}

func TestTableToleratesHeterogeneousRows(t *testing.T) {
	v, err := jsonv.Decode([]byte(`[{"name":"a","meta":{"x":1}},{"other":2}]`))
	if err != nil {
		t.Fatal(err)
	}
	c, _ := Classify("rows", v, nil)
	want := [][]string{{"a", `{"x":1}`}, {"", ""}}
	if !reflect.DeepEqual(c.Columns, []string{"name", "meta"}) || !reflect.DeepEqual(c.Rows, want) {
		t.Fatalf("columns=%v rows=%v", c.Columns, c.Rows)
	}
}

func TestRowSurvivalFilter(t *testing.T) {
	data := decode(t, `{"_layout":"[[a, missing_key]] [[b]]","a":1,"b":2}`)
	tree := Render(nil, data)
	if len(tree.Rows) != 2 {
		t.Fatalf("rows=%d", len(tree.Rows))
	}
	if len(tree.Rows[0].Cells) != 1 || tree.Rows[0].Cells[0].Key != "a" || tree.Rows[0].Columns != 1 {
		t.Fatalf("row0=%+v", tree.Rows[0])
	}
	if len(tree.Rows[1].Cells) != 1 || tree.Rows[1].Cells[0].Key != "b" {
		t.Fatalf("row1=%+v", tree.Rows[1])
	}
}

func TestColumnsCountResolvedKeys(t *testing.T) {
	tree := Render(nil, decode(t, `{"_layout":"[[tags, score]] [[none]]","tags":[],"score":1,"none":[]}`))
	if len(tree.Rows) != 2 {
		t.Fatalf("rows=%+v", tree.Rows)
	}
	if tree.Rows[0].Columns != 2 || len(tree.Rows[0].Cells) != 1 || tree.Rows[0].Cells[0].Key != "score" {
		t.Fatalf("row0=%+v", tree.Rows[0])
	}
	if tree.Rows[1].Columns != 1 || len(tree.Rows[1].Cells) != 0 {
		t.Fatalf("row1=%+v", tree.Rows[1])
	}
}

func TestRenderDropsNullAndReservedKeys(t *testing.T) {
	data := decode(t, `{"_layout":"[[_layout, gone, n]] [[ok]]","n":null,"ok":"yes"}`)
	tree := Render(nil, data)
	if len(tree.Rows) != 1 || tree.Rows[0].Cells[0].Key != "ok" {
		t.Fatalf("tree=%+v", tree)
	}
}

func TestRenderFallsBackToDefaultLayout(t *testing.T) {
	s := schema.MustParse(`{"type":"object","properties":{"title":{"type":"string"},"score":{"type":"number"}}}`)
	for _, layoutValue := range []string{`"[[]]"`, `42`, `""`} {
		data := decode(t, `{"_layout":`+layoutValue+`,"title":"T","score":3}`)
		tree := Render(s, data)
		if !tree.Defaulted || tree.Layout != "[[title]] [[score]]" || len(tree.Rows) != 2 {
			t.Fatalf("_layout=%s: %+v", layoutValue, tree)
		}
	}
	lenient := Render(s, decode(t, `{"_layout":"score title","title":"T","score":3}`))
	if lenient.Defaulted || lenient.Rows[0].Cells[0].Key != "score" {
		t.Fatalf("lenient=%+v", lenient)
	}
}

func TestRenderSchemaCompleteOutput(t *testing.T) {
	s := schema.MustParse(`{"type":"object","properties":{"a":{},"b":{},"c":{},"d":{}}}`)
	tree := Render(s, map[string]any{"a": "x", "b": 1, "c": []string{"l"}, "d": map[string]any{"k": "v"}})
	cells := 0
	for _, r := range tree.Rows {
		cells += len(r.Cells)
	}
	if cells != 4 {
		t.Fatalf("cells=%d tree=%+v", cells, tree)
	}
}

func TestRenderNestedPaths(t *testing.T) {
	s := schema.MustParse(`{"type":"object","properties":{"macros":{"type":"object","properties":{"protein":{"unit":"mg","title":"Protein"}}}}}`)
	tree := Render(s, decode(t, `{"_layout":"[[macros.protein, macros.fat]]","macros":{"protein":4,"fat":2}}`))
	if len(tree.Rows) != 1 || tree.Rows[0].Columns != 2 {
		t.Fatalf("tree=%+v", tree)
	}
	p := tree.Rows[0].Cells[0]
	if p.Key != "macros.protein" || p.Unit != "mg" || p.Label != "Protein" {
		t.Fatalf("protein=%+v", p)
	}
	if f := tree.Rows[0].Cells[1]; f.Unit != "g" {
		t.Fatalf("fat=%+v", f)
	}
}

func TestColumnCap(t *testing.T) {
	tree := Render(nil, decode(t, `{"_layout":"[[a,b,c,d,e]]","a":1,"b":2,"c":3,"d":4,"e":5}`))
	if tree.Rows[0].Columns != 4 || len(tree.Rows[0].Cells) != 5 {
		t.Fatalf("row=%+v", tree.Rows[0])
	}
}

func TestScenarioEmptySchema(t *testing.T) {
	tree := Render(schema.MustParse(`{}`), decode(t, `{"summary":"Great job","score":95,"tags":["fast","cheap"]}`))
	if tree.Layout != "[[summary]] [[score]] [[tags]]" {
		t.Fatalf("layout=%q", tree.Layout)
	}
	want := [][]Kind{{KindText}, {KindMetric}, {KindList}}
	if got := tree.Kinds(); !reflect.DeepEqual(got, want) {
		t.Fatalf("kinds=%v", got)
	}
	tags, _ := tree.Cell("tags")
	if !reflect.DeepEqual(tags.Items, []string{"fast", "cheap"}) {
		t.Fatalf("tags=%v", tags.Items)
	}
}

func TestScenarioFoodAnalysis(t *testing.T) {
	data := decode(t, `{
		"_layout": "[[food_name, health_rating]] [[calories]] [[macros]]",
		"food_name": "Apple",
		"health_rating": "A",
		"calories": 95,
		"macros": {"protein": 0.5, "carbs": 25, "fat": 0.3}
	}`)
	tree := Render(nil, data)
	want := [][]Kind{{KindTitle, KindBadge}, {KindMetric}, {KindMetricGroup}}
	if got := tree.Kinds(); !reflect.DeepEqual(got, want) {
		t.Fatalf("kinds=%v", got)
	}
	if title := tree.Rows[0].Cells[0]; title.Text != "Apple" {
		t.Fatalf("title=%+v", title)
	}
	if badge := tree.Rows[0].Cells[1]; badge.Color != ColorGreen || badge.Text != "A" {
		t.Fatalf("badge=%+v", badge)
	}
	if cal := tree.Rows[1].Cells[0]; cal.Value != 95.0 || cal.Unit != "kcal" {
		t.Fatalf("calories=%+v", cal)
	}
	group := tree.Rows[2].Cells[0]
	if len(group.Metrics) != 3 {
		t.Fatalf("metrics=%+v", group.Metrics)
	}
	for i, k := range []string{"protein", "carbs", "fat"} {
		m := group.Metrics[i]
		if m.Key != k || m.Unit != "g" || m.Kind != KindMetric {
			t.Fatalf("metric %d=%+v", i, m)
		}
	}
}

func TestRenderIsDeterministicAndConcurrent(t *testing.T) {
	s := schema.MustParse(`{"type":"object","properties":{"b":{},"a":{}}}`)
	data := map[string]any{"a": 1, "b": map[string]any{"y": "1", "x": 2}}
	first, err := json.Marshal(Render(s, data))
	if err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := json.Marshal(Render(s, data))
			if err != nil || string(b) != string(first) {
				t.Errorf("render differs: %s", b)
			}
		}()
	}
	wg.Wait()
}

func TestRenderNonObjectData(t *testing.T) {
	for _, data := range []any{nil, "text", 4.0, []any{1.0}} {
		if tree := Render(nil, data); len(tree.Rows) != 0 {
			t.Fatalf("%v rendered rows: %+v", data, tree)
		}
	}
}
