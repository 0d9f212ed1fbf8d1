package schema

import (
	"strings"
	"testing"
)

const nutrition = `{
  "type": "object",
  "required": ["meal"],
  "properties": {
    "meal": {"type": "string", "title": "Meal"},
    "calories": {"type": "number", "unit": "kcal", "minimum": 0},
    "macros": {
      "type": "object",
      "properties": {"protein": {"type": "number", "unit": "g"}}
    },
    "items": {
      "type": "array",
      "items": {"type": "object", "properties": {"name": {"type": "string", "x-component": "title"}}}
    },
    "rating": {"type": "string", "enum": ["A", "B", "C"]}
  }
}`

func TestParseKeepsPropertyOrder(t *testing.T) {
	n := MustParse(nutrition)
	if got := strings.Join(n.PropertyNames(), ","); got != "meal,calories,macros,items,rating" {
		t.Fatalf("order=%s", got)
	}
	if !n.IsRequired("meal") || n.IsRequired("calories") {
		t.Fatal("required set mismatch")
	}
	cal, _ := n.Property("calories")
	if cal.Unit != "kcal" || cal.Minimum == nil || *cal.Minimum != 0 || cal.Maximum != nil {
		t.Fatalf("calories=%+v", cal)
	}
	rating, _ := n.Property("rating")
	if len(rating.Enum) != 3 {
		t.Fatalf("enum=%v", rating.Enum)
	}
}

func TestResolveWalksItems(t *testing.T) {
	n := MustParse(nutrition)
	if got := Resolve(n, "macros.protein"); got.Unit != "g" {
		t.Fatalf("macros.protein=%+v", got)
	}
	if got := Resolve(n, "items.name"); got.Component != "title" {
		t.Fatalf("items.name=%+v", got)
	}
	for _, p := range []string{"missing", "macros.fat", "", "meal.deeper"} {
		got := Resolve(n, p)
		if got == nil || got.Type != "" || got.HasProperties() {
			t.Fatalf("%q should resolve to the empty schema, got %+v", p, got)
		}
	}
	if got := Resolve(nil, "a"); got == nil {
		t.Fatal("nil root must yield empty schema")
	}
}

func TestNullableTypeArray(t *testing.T) {
	n := MustParse(`{"type":["null","integer"]}`)
	if n.Type != "integer" {
		t.Fatalf("type=%q", n.Type)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	n := MustParse(nutrition)
	b, err := n.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != nutrition {
		t.Fatal("parsed schema should marshal back to its source")
	}
	lo := 1.0
	built := &Node{Type: "object", Properties: []Property{{Name: "x", Node: &Node{Type: "number", Minimum: &lo}}}}
	b, err = built.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"type":"object","properties":{"x":{"type":"number","minimum":1}}}` {
		t.Fatalf("built=%s", b)
	}
}
