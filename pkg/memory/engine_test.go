package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	fakeembed "github.com/wilhg/kit/pkg/adapters/embedding/fake"
	fakellm "github.com/wilhg/kit/pkg/adapters/llm/fake"
	vsmemory "github.com/wilhg/kit/pkg/adapters/vectorstore/memory"
	"github.com/wilhg/kit/pkg/errmodel"
)

func newEngine(opts ...Option) *Engine {
	return New(fakeembed.New(64), vsmemory.New(), opts...)
}

func TestRetrieveBuildsContextBlock(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	if _, err := e.Remember(ctx, "alice", "User prefers vegetarian meals", "diet", 0.8); err != nil {
		t.Fatalf("remember: %v", err)
	}
	if _, err := e.Remember(ctx, "bob", "User prefers vegetarian meals and fish", "diet", 0.8); err != nil {
		t.Fatalf("remember: %v", err)
	}

	block, err := e.Retrieve(ctx, "alice", "vegetarian meals for dinner")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if block != "\n\n[[MEMORY CONTEXT]]\n- User prefers vegetarian meals\n" {
		t.Fatalf("block=%q", block)
	}
	if block, _ := e.Retrieve(ctx, "", "vegetarian"); block != "" {
		t.Fatalf("anonymous block=%q", block)
	}
	if block, _ := e.Retrieve(ctx, "carol", "vegetarian"); block != "" {
		t.Fatalf("empty owner block=%q", block)
	}
}

func TestRetrieveRespectsThreshold(t *testing.T) {
	ctx := context.Background()
	e := newEngine(WithThreshold(0.99))
	if _, err := e.Remember(ctx, "alice", "User lives in Berlin", "", 0); err != nil {
		t.Fatal(err)
	}
	block, err := e.Retrieve(ctx, "alice", "favourite colour")
	if err != nil {
		t.Fatal(err)
	}
	if block != "" {
		t.Fatalf("unrelated query matched: %q", block)
	}
}

func TestUpdateForgetList(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	f, err := e.Remember(ctx, "alice", "User is a nurse", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if f.Category != "general" || f.Importance != 0.5 {
		t.Fatalf("defaults not applied: %+v", f)
	}
	if _, err := e.Update(ctx, "alice", f.ID, "User is a head nurse", "work", 0.9); err != nil {
		t.Fatalf("update: %v", err)
	}
	facts, err := e.List(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(facts) != 1 || facts[0].Content != "User is a head nurse" || facts[0].Category != "work" {
		t.Fatalf("facts=%+v", facts)
	}
	if err := e.Forget(ctx, "bob", f.ID); !errmodel.IsCode(err, errmodel.CodeNotFound) {
		t.Fatalf("foreign forget err=%v", err)
	}
	if err := e.Forget(ctx, "alice", f.ID); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if facts, _ := e.List(ctx, "alice"); len(facts) != 0 {
		t.Fatalf("facts after forget=%+v", facts)
	}
	if _, err := e.Update(ctx, "alice", "missing", "x", "", 0); !errmodel.IsCode(err, errmodel.CodeNotFound) {
		t.Fatalf("update missing err=%v", err)
	}
}

func TestReflectStoresFacts(t *testing.T) {
	ctx := context.Background()
	model := fakellm.New("```json\n{\"facts\":[{\"content\":\"User trains for a marathon\",\"category\":\"health\",\"confidence\":0.9},{\"content\":\" \"}]}\n```")
	e := newEngine(WithReflector(model, "reflect-model"))

	facts, err := e.Reflect(ctx, "alice", map[string]any{"goal": "marathon"}, map[string]any{"plan": "run"})
	if err != nil {
		t.Fatalf("reflect: %v", err)
	}
	if len(facts) != 1 || facts[0].Category != "health" {
		t.Fatalf("facts=%+v", facts)
	}
	calls := model.Calls()
	if len(calls) != 1 || calls[0].Opts["model"] != "reflect-model" {
		t.Fatalf("calls=%+v", calls)
	}
	if !strings.HasPrefix(calls[0].Messages[1].Content, `User Input: {"goal":"marathon"}`) {
		t.Fatalf("user message=%q", calls[0].Messages[1].Content)
	}
	if none, err := newEngine().Reflect(ctx, "alice", nil, nil); none != nil || err != nil {
		t.Fatal("reflect without reflector should be a no-op")
	}
}

func TestReflectSurfacesModelErrors(t *testing.T) {
	ctx := context.Background()
	e := newEngine(WithReflector(fakellm.Failing(errors.New("boom")), ""))
	if _, err := e.Reflect(ctx, "alice", "in", "out"); !errmodel.IsCategory(err, errmodel.CategoryModel) {
		t.Fatalf("err=%v", err)
	}
	e = newEngine(WithReflector(fakellm.New("not json"), ""))
	if _, err := e.Reflect(ctx, "alice", "in", "out"); !errmodel.IsCode(err, errmodel.CodeBadOutput) {
		t.Fatalf("err=%v", err)
	}
}
