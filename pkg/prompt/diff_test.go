package prompt

import (
	"testing"
)

func TestUnifiedDiff(t *testing.T) {
	a := "You are a nutritionist.\nBe brief.\nLAYOUT INSTRUCTIONS: [[food_name]]"
	b := "You are a nutritionist.\nBe thorough.\nLAYOUT INSTRUCTIONS: [[food_name]]"
	want := "--- stored\n+++ file\n You are a nutritionist.\n-Be brief.\n+Be thorough.\n LAYOUT INSTRUCTIONS: [[food_name]]\n"
	if got := UnifiedDiff("stored", "file", a, b); got != want {
		t.Fatalf("diff=%q\nwant=%q", got, want)
	}
	if UnifiedDiff("x", "y", a, a) != "" {
		t.Fatal("identical inputs should not diff")
	}
}

func TestUnifiedDiffAppendAndDrop(t *testing.T) {
	got := UnifiedDiff("a", "b", "one\ntwo", "two\nthree")
	want := "--- a\n+++ b\n-one\n two\n+three\n"
	if got != want {
		t.Fatalf("diff=%q\nwant=%q", got, want)
	}
}
