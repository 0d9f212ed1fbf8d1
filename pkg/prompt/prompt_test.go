package prompt

import (
	"strings"
	"testing"

	"github.com/wilhg/kit/pkg/jsonv"
)

func TestSystemLayout(t *testing.T) {
	got := System("You analyze food.", "\n\n[[MEMORY CONTEXT]]\n- likes apples\n", []byte(`{"type":"object"}`))
	want := "You analyze food.\n\n[[MEMORY CONTEXT]]\n- likes apples\n\n\nCRITICAL: Output strict JSON matching this schema:\n{\"type\":\"object\"}"
	if got != want {
		t.Fatalf("system=%q", got)
	}
	if got := System("p", "", nil); !strings.HasSuffix(got, "schema:\n{}") {
		t.Fatalf("empty schema=%q", got)
	}
}

func TestMessagesKeepInputOrder(t *testing.T) {
	in, err := jsonv.DecodeObject([]byte(`{"z":1,"a":"x"}`))
	if err != nil {
		t.Fatal(err)
	}
	msgs, err := Messages("sys", in)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Role != "system" || msgs[1].Content != `{"z":1,"a":"x"}` {
		t.Fatalf("msgs=%+v", msgs)
	}
}

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```":         `{"a":1}`,
		"```\n{\"a\":1}```":               `{"a":1}`,
		"  {\"a\":1}  ":                   `{"a":1}`,
		"Sure! Here it is: {\"a\":{}} ok": `{"a":{}}`,
		"no json here":                    "no json here",
	}
	for in, want := range cases {
		if got := StripFences(in); got != want {
			t.Fatalf("%q: got %q want %q", in, got, want)
		}
	}
}

func TestLayoutHint(t *testing.T) {
	sp := "You are a coach.\nLAYOUT INSTRUCTIONS: Return a _layout field: [[title, grade]] [[tips]]\nBe kind."
	got, ok := LayoutHint(sp)
	if !ok || got != "[[title, grade]] [[tips]]" {
		t.Fatalf("hint=%q ok=%v", got, ok)
	}
	got, ok = LayoutHint("layout instructions: [[a]]")
	if !ok || got != "[[a]]" {
		t.Fatalf("case-insensitive hint=%q ok=%v", got, ok)
	}
	if _, ok := LayoutHint("no hints"); ok {
		t.Fatal("unexpected hint")
	}
}

func TestLint(t *testing.T) {
	if issues := Lint("", " "); len(issues) != 2 {
		t.Fatalf("issues=%+v", issues)
	}
	issues := Lint("ok", "use key sk-abc123")
	if len(issues) != 1 || issues[0].Rule != "security.secrets" {
		t.Fatalf("issues=%+v", issues)
	}
	if issues := Lint("ok", "Analyze the meal."); len(issues) != 0 {
		t.Fatalf("issues=%+v", issues)
	}
}
