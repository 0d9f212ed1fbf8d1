// Package storetest is the conformance suite every store backend runs.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/wilhg/kit/pkg/store"
	"github.com/wilhg/kit/pkg/tool"
)

// Run exercises s. The store must be empty.
func Run(t *testing.T, s store.Store) {
	t.Helper()
	t.Run("tools", func(t *testing.T) { testTools(t, s) })
	t.Run("interactions", func(t *testing.T) { testInteractions(t, s) })
	t.Run("recycle", func(t *testing.T) { testRecycle(t, s) })
}

func def(slug, name, owner string) *tool.Definition {
	return &tool.Definition{
		ID:           "id-" + slug,
		Slug:         slug,
		Name:         name,
		SystemPrompt: "prompt for " + slug,
		InputSchema:  []byte(`{"type":"object","properties":{"z":{"type":"string"},"a":{"type":"number"}}}`),
		OutputSchema: []byte(`{"type":"object","properties":{"score":{"type":"number"}}}`),
		Model:        "m",
		Owner:        owner,
		Icon:         "Zap",
		Color:        "c",
	}
}

func testTools(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, d := range []*tool.Definition{
		def("beta", "Beta", ""),
		def("alpha", "Alpha", ""),
		def("mine", "Mine", "alice"),
		def("theirs", "Theirs", "bob"),
	} {
		if err := s.CreateTool(ctx, d); err != nil {
			t.Fatalf("create %s: %v", d.Slug, err)
		}
		if d.CreatedAt.IsZero() || d.UpdatedAt.IsZero() {
			t.Fatalf("timestamps not set on %s", d.Slug)
		}
	}
	if err := s.CreateTool(ctx, def("alpha", "Again", "")); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("duplicate slug err=%v", err)
	}

	got, err := s.GetTool(ctx, "alpha")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "id-alpha" || got.Name != "Alpha" || got.Owner != "" || got.Model != "m" {
		t.Fatalf("got %+v", got)
	}
	if string(got.InputSchema) != `{"type":"object","properties":{"z":{"type":"string"},"a":{"type":"number"}}}` {
		t.Fatalf("schema bytes changed: %s", got.InputSchema)
	}
	if _, err := s.GetTool(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing err=%v", err)
	}

	list, err := s.ListTools(ctx, store.ToolFilter{Session: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if got := slugs(list); got != "alpha,beta,mine" {
		t.Fatalf("visible to alice=%s", got)
	}
	list, _ = s.ListTools(ctx, store.ToolFilter{})
	if got := slugs(list); got != "alpha,beta" {
		t.Fatalf("visible to anonymous=%s", got)
	}
	list, _ = s.ListTools(ctx, store.ToolFilter{All: true})
	if got := slugs(list); got != "alpha,beta,mine,theirs" {
		t.Fatalf("all=%s", got)
	}

	upd := def("mine", "Mine v2", "alice")
	upd.ID = "ignored"
	upd.SystemPrompt = "new prompt"
	if err := s.UpdateTool(ctx, upd); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = s.GetTool(ctx, "mine")
	if got.Name != "Mine v2" || got.SystemPrompt != "new prompt" || got.ID != "id-mine" {
		t.Fatalf("after update %+v", got)
	}
	if err := s.UpdateTool(ctx, def("nope", "Nope", "")); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("update missing err=%v", err)
	}

	if err := s.DeleteTool(ctx, "theirs"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteTool(ctx, "theirs"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete err=%v", err)
	}
}

func testInteractions(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	for i := 0; i < 25; i++ {
		in := store.Interaction{
			ID:        fmt.Sprintf("i-%02d", i),
			ToolSlug:  "alpha",
			Input:     []byte(`{"q":1}`),
			Output:    []byte(`{"b":2,"a":1}`),
			Owner:     "alice",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.AddInteraction(ctx, in); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	if err := s.AddInteraction(ctx, store.Interaction{ID: "other", ToolSlug: "beta", Owner: "bob", CreatedAt: base}); err != nil {
		t.Fatal(err)
	}

	list, err := s.ListInteractions(ctx, store.InteractionFilter{Owner: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != store.DefaultInteractionLimit || list[0].ID != "i-24" {
		t.Fatalf("len=%d first=%s", len(list), list[0].ID)
	}
	if string(list[0].Output) != `{"b":2,"a":1}` || !list[0].CreatedAt.Equal(base.Add(24*time.Minute)) {
		t.Fatalf("round trip %+v", list[0])
	}
	list, _ = s.ListInteractions(ctx, store.InteractionFilter{Owner: "alice", Limit: 3})
	if len(list) != 3 || list[2].ID != "i-22" {
		t.Fatalf("limited list=%v", list)
	}
	list, _ = s.ListInteractions(ctx, store.InteractionFilter{Owner: "bob", ToolSlug: "alpha"})
	if len(list) != 0 {
		t.Fatalf("tool filter leaked %v", list)
	}

	got, err := s.GetInteraction(ctx, "other")
	if err != nil || got.Owner != "bob" {
		t.Fatalf("get=%+v err=%v", got, err)
	}
	if err := s.DeleteInteraction(ctx, "other"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetInteraction(ctx, "other"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("deleted get err=%v", err)
	}
	if err := s.DeleteInteraction(ctx, "other"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("deleted delete err=%v", err)
	}
}

func testRecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	recs := []store.RecycleRecord{
		{ID: "r1", ItemType: store.ItemTool, OriginalID: "a", DisplayText: "A", Data: []byte(`{"x":1}`), DeletedAt: base},
		{ID: "r2", ItemType: store.ItemInteraction, OriginalID: "b", DisplayText: "B", Owner: "alice", DeletedAt: base.Add(time.Hour)},
		{ID: "r3", ItemType: store.ItemTool, OriginalID: "c", DisplayText: "C", Owner: "bob", DeletedAt: base.Add(2 * time.Hour)},
	}
	for _, r := range recs {
		if err := s.AddRecycle(ctx, r); err != nil {
			t.Fatalf("add %s: %v", r.ID, err)
		}
	}
	list, err := s.ListRecycle(ctx, "alice", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != "r2" || list[1].ID != "r1" {
		t.Fatalf("alice recycle=%+v", list)
	}
	if string(list[1].Data) != `{"x":1}` || list[1].ItemType != store.ItemTool {
		t.Fatalf("record=%+v", list[1])
	}
	list, _ = s.ListRecycle(ctx, "bob", 1)
	if len(list) != 1 || list[0].ID != "r3" {
		t.Fatalf("bob recycle=%+v", list)
	}
}

func slugs(ds []*tool.Definition) string {
	out := ""
	for i, d := range ds {
		if i > 0 {
			out += ","
		}
		out += d.Slug
	}
	return out
}
