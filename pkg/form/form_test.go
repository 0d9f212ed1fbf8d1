package form

import (
	"testing"

	"github.com/wilhg/kit/pkg/jsonv"
	"github.com/wilhg/kit/pkg/schema"
)

func TestClassifyPrecedence(t *testing.T) {
	cases := []struct {
		key  string
		node string
		want Kind
	}{
		{"image", `{"type":"string"}`, KindImageUpload},
		{"photo", `{"type":"string","format":"data-url"}`, KindImageUpload},
		{"photo", `{"type":"string","x-component":"image"}`, KindImageUpload},
		{"image", `{"type":"boolean"}`, KindImageUpload},
		{"ok", `{"type":"boolean"}`, KindCheckbox},
		{"level", `{"type":"integer","minimum":1,"maximum":10}`, KindSlider},
		{"level", `{"type":"integer","minimum":1}`, KindTextInput},
		{"tags", `{"type":"array","items":{"enum":["a","b"]}}`, KindMultiSelect},
		{"size", `{"type":"string","enum":["s","m","l"]}`, KindRadioGroup},
		{"level", `{"type":"integer","minimum":0,"maximum":3,"enum":["0","3"]}`, KindSlider},
		{"bio", `{"type":"string","maxLength":500}`, KindTextArea},
		{"cv_text", `{"type":"string"}`, KindTextArea},
		{"job_description", `{"type":"string"}`, KindTextArea},
		{"summary", `{"type":"string","description":"A long answer"}`, KindTextArea},
		{"notes", `{"type":"number"}`, KindTextInput},
		{"temperature", `{"type":"number","minimum":0,"maximum":1}`, KindTextInput},
		{"name", `{"type":"string","maxLength":100}`, KindTextInput},
		{"anything", `{}`, KindTextInput},
	}
	for _, tc := range cases {
		if got := Classify(tc.key, schema.MustParse(tc.node)); got != tc.want {
			t.Fatalf("%s %s: got %s want %s", tc.key, tc.node, got, tc.want)
		}
	}
}

func TestRadioOrientation(t *testing.T) {
	cases := []struct {
		enum string
		want string
	}{
		{`["s","m","l"]`, Horizontal},
		{`["xs","s","m","l"]`, Horizontal},
		{`["xs","s","m","l","xl"]`, Vertical},
	}
	for _, tc := range cases {
		c := Build("size", schema.MustParse(`{"type":"string","enum":`+tc.enum+`}`), false, nil, false)
		if c.Orientation != tc.want {
			t.Fatalf("%s -> %s want %s", tc.enum, c.Orientation, tc.want)
		}
	}
}

func TestBuildParameters(t *testing.T) {
	sl := Build("intensity", schema.MustParse(`{"type":"integer","minimum":2,"maximum":8,"unit":"kg","description":"How hard"}`), false, nil, false)
	if sl.Kind != KindSlider || sl.Value != 2.0 || *sl.Min != 2 || *sl.Max != 8 || sl.Unit != "kg" || sl.HelpText != "How hard" {
		t.Fatalf("slider=%+v", sl)
	}
	ratio := Build("temperature", schema.MustParse(`{"type":"number","minimum":0,"maximum":1}`), false, nil, false)
	if ratio.Kind != KindTextInput || ratio.InputType != "number" || ratio.Min != nil {
		t.Fatalf("bounded number=%+v", ratio)
	}
	ta := Build("cv_text", schema.MustParse(`{"type":"string"}`), true, nil, false)
	if ta.Rows != 10 || ta.Placeholder != "Enter Cv Text..." || !ta.Required || ta.HelpText != "" {
		t.Fatalf("textarea=%+v", ta)
	}
	num := Build("age", schema.MustParse(`{"type":"integer","title":"Your age"}`), false, 31.0, true)
	if num.InputType != "number" || num.Label != "Your age" || num.Value != 31.0 {
		t.Fatalf("number=%+v", num)
	}
}

func TestFieldsHoistImage(t *testing.T) {
	s := schema.MustParse(`{"type":"object","properties":{"a":{"type":"string"},"b":{"type":"string"},"image":{"type":"string"},"c":{"type":"string"}}}`)
	fields := Fields(s, nil)
	want := []string{"image", "a", "b", "c"}
	if len(fields) != len(want) {
		t.Fatalf("len=%d", len(fields))
	}
	for i, w := range want {
		if fields[i].Key != w {
			t.Fatalf("pos %d: %s want %s", i, fields[i].Key, w)
		}
	}
}

func TestChangeMergesAndIsIdempotent(t *testing.T) {
	s := schema.MustParse(`{"type":"object","properties":{"a":{"type":"string"},"b":{"type":"number"}}}`)
	initial := map[string]any{"a": "x"}
	var calls []*jsonv.Object
	d := Generate(s, initial, func(v *jsonv.Object) { calls = append(calls, v) })

	first := d.Change("b", 3)
	second := d.Change("b", 3)
	if len(calls) != 2 {
		t.Fatalf("callbacks=%d", len(calls))
	}
	for _, v := range []*jsonv.Object{first, second} {
		a, _ := v.Get("a")
		b, _ := v.Get("b")
		if a != "x" || b != 3.0 || v.Len() != 2 {
			t.Fatalf("merged=%v/%v len=%d", a, b, v.Len())
		}
	}
	if _, ok := initial["b"]; ok {
		t.Fatal("initial value mutated")
	}
	if got := d.Fields()[1].Value; got != 3.0 {
		t.Fatalf("field b value=%v", got)
	}
}

func TestMissingIsAdvisory(t *testing.T) {
	s := schema.MustParse(`{"type":"object","required":["a","b"],"properties":{"a":{"type":"string"},"b":{"type":"string"},"c":{"type":"string"}}}`)
	got := Missing(s, map[string]any{"a": "set", "b": ""})
	if len(got) != 1 || got[0] != "b" {
		t.Fatalf("missing=%v", got)
	}
}
