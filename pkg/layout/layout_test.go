package layout

import (
	"reflect"
	"testing"

	"github.com/wilhg/kit/pkg/jsonv"
	"github.com/wilhg/kit/pkg/schema"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want []Row
	}{
		{"[[title]] [[calories, protein]] [[notes]]", []Row{{"title"}, {"calories", "protein"}, {"notes"}}},
		{"[[ a ,, b ]][[c]]", []Row{{"a", "b"}, {"c"}}},
		{"[[]] [[ , ]] [[x]]", []Row{{"x"}}},
		{"noise [[a]] more [[b.c]]", []Row{{"a"}, {"b.c"}}},
		{"a, b  c", []Row{{"a"}, {"b"}, {"c"}}},
		{"   ", nil},
		{"", nil},
	}
	for _, tc := range cases {
		if got := Parse(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%q: got %v want %v", tc.in, got, tc.want)
		}
	}
}

func TestSynthesizeFromSchema(t *testing.T) {
	s := schema.MustParse(`{"type":"object","properties":{"title":{},"_layout":{},"score":{}}}`)
	if got := Synthesize(s, nil); got != "[[title]] [[score]]" {
		t.Fatalf("got %q", got)
	}
}

func TestSynthesizeFromData(t *testing.T) {
	data, err := jsonv.Decode([]byte(`{"z":1,"_layout":"x","a":2}`))
	if err != nil {
		t.Fatal(err)
	}
	if got := Synthesize(nil, data); got != "[[z]] [[a]]" {
		t.Fatalf("got %q", got)
	}
	if got := Synthesize(&schema.Node{}, map[string]any{"b": 1, "a": 2}); got != "[[a]] [[b]]" {
		t.Fatalf("map data got %q", got)
	}
	if got := Synthesize(nil, "scalar"); got != "" {
		t.Fatalf("scalar got %q", got)
	}
}

func TestSynthesizeRoundTrip(t *testing.T) {
	s := schema.MustParse(`{"type":"object","properties":{"a":{},"b":{},"c":{}}}`)
	rows := Parse(Synthesize(s, nil))
	if len(rows) != 3 {
		t.Fatalf("rows=%v", rows)
	}
	for i, k := range []string{"a", "b", "c"} {
		if len(rows[i]) != 1 || rows[i][0] != k {
			t.Fatalf("row %d=%v", i, rows[i])
		}
	}
}

func TestColumns(t *testing.T) {
	for n, want := range map[int]int{0: 0, 1: 1, 2: 2, 3: 3, 4: 4, 9: 4} {
		if got := Columns(n); got != want {
			t.Fatalf("Columns(%d)=%d want %d", n, got, want)
		}
	}
}
