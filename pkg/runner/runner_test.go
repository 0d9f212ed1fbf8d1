package runner

import (
	"context"
	"errors"
	"strings"
	"testing"

	fakeembed "github.com/wilhg/kit/pkg/adapters/embedding/fake"
	fakellm "github.com/wilhg/kit/pkg/adapters/llm/fake"
	vsmemory "github.com/wilhg/kit/pkg/adapters/vectorstore/memory"
	"github.com/wilhg/kit/pkg/errmodel"
	"github.com/wilhg/kit/pkg/memory"
	"github.com/wilhg/kit/pkg/registry"
	"github.com/wilhg/kit/pkg/render"
	"github.com/wilhg/kit/pkg/store/memstore"
	"github.com/wilhg/kit/pkg/tool"
)

const foodPrompt = "You are a nutritionist.\nLAYOUT INSTRUCTIONS: Return a _layout field: [[food_name]] [[calories, protein]] [[health_grade]]"

func setup(t *testing.T) *registry.Service {
	t.Helper()
	reg := registry.New(memstore.New(), registry.WithDefaultModel("default-model"))
	defs := []*tool.Definition{
		{
			Slug:         "food-analyzer",
			Name:         "Food Analyzer",
			SystemPrompt: foodPrompt,
			InputSchema:  []byte(`{"type":"object","properties":{"meal":{"type":"string"}}}`),
			OutputSchema: []byte(`{"type":"object","properties":{"food_name":{"type":"string"},"calories":{"type":"number"},"protein":{"type":"number"},"health_grade":{"type":"string"}},"required":["food_name"]}`),
			Model:        "food-model",
		},
		{
			Slug:         tool.ForgeSlug,
			Name:         "Tool Forge",
			SystemPrompt: "Design a tool.",
			OutputSchema: []byte(`{"type":"object","properties":{"slug":{"type":"string"}}}`),
		},
	}
	if _, err := reg.Seed(context.Background(), defs); err != nil {
		t.Fatal(err)
	}
	return reg
}

func TestRunPipeline(t *testing.T) {
	ctx := context.Background()
	reg := setup(t)
	model := fakellm.New("Sure! ```json\n{\"food_name\":\"Salad\",\"calories\":320,\"protein\":12,\"health_grade\":\"A\"}\n```")
	r := New(reg, model)

	res, err := r.Run(ctx, Request{Slug: "food-analyzer", Input: map[string]any{"meal": "salad"}, Session: "alice"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got, _ := res.Output.Get("_layout"); got != "[[food_name]] [[calories, protein]] [[health_grade]]" {
		t.Fatalf("layout not injected: %v", got)
	}
	want := [][]render.Kind{{render.KindTitle}, {render.KindMetric, render.KindMetric}, {render.KindBadge}}
	if got := res.Tree.Kinds(); !equalKinds(got, want) {
		t.Fatalf("kinds=%v", got)
	}
	if c, _ := res.Tree.Cell("calories"); c.Unit != "kcal" {
		t.Fatalf("calories=%+v", c)
	}
	if res.Model != "food-model" || len(res.Warnings) != 0 || res.InteractionID == "" || res.Usage.PromptEstimate == 0 {
		t.Fatalf("result=%+v", res)
	}

	calls := model.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls=%d", len(calls))
	}
	c := calls[0]
	if c.Opts["model"] != "food-model" || c.Opts["json"] != true {
		t.Fatalf("opts=%v", c.Opts)
	}
	if !strings.HasPrefix(c.Messages[0].Content, foodPrompt+"\n\nCRITICAL: Output strict JSON matching this schema:\n{\"type\":\"object\"") {
		t.Fatalf("system=%q", c.Messages[0].Content)
	}
	if c.Messages[1].Content != `{"meal":"salad"}` {
		t.Fatalf("user=%q", c.Messages[1].Content)
	}

	logged, _ := reg.Interactions(ctx, "alice", "", 0)
	if len(logged) != 1 || !strings.Contains(string(logged[0].Output), `"_layout"`) {
		t.Fatalf("logged=%+v", logged)
	}
}

func TestRunKeepsModelLayoutAndWarnsOnSchemaMismatch(t *testing.T) {
	reg := setup(t)
	r := New(reg, fakellm.New(`{"calories":"lots","_layout":"[[calories]]"}`))
	res, err := r.Run(context.Background(), Request{Slug: "food-analyzer", Input: map[string]any{}})
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := res.Output.Get("_layout"); got != "[[calories]]" {
		t.Fatalf("layout overwritten: %v", got)
	}
	if len(res.Warnings) != 1 || !strings.HasPrefix(res.Warnings[0], "output_schema:") {
		t.Fatalf("warnings=%v", res.Warnings)
	}
}

func TestRunErrors(t *testing.T) {
	ctx := context.Background()
	reg := setup(t)
	cases := []struct {
		name  string
		model *fakellm.LLM
		req   Request
		code  string
	}{
		{"missing input", fakellm.New(`{}`), Request{Slug: "food-analyzer"}, errmodel.CodeBadInput},
		{"unknown tool", fakellm.New(`{}`), Request{Slug: "nope", Input: map[string]any{}}, errmodel.CodeNotFound},
		{"model failure", fakellm.Failing(errors.New("down")), Request{Slug: "food-analyzer", Input: map[string]any{}}, errmodel.CodeLLMFailed},
		{"not json", fakellm.New("I cannot help"), Request{Slug: "food-analyzer", Input: map[string]any{}}, errmodel.CodeBadOutput},
		{"array reply", fakellm.New(`[1,2]`), Request{Slug: "food-analyzer", Input: map[string]any{}}, errmodel.CodeBadOutput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(reg, tc.model).Run(ctx, tc.req)
			if !errmodel.IsCode(err, tc.code) {
				t.Fatalf("err=%v want %s", err, tc.code)
			}
		})
	}
	r := New(reg, fakellm.New(`{}`), WithMaxPromptTokens(5))
	if _, err := r.Run(ctx, Request{Slug: "food-analyzer", Input: map[string]any{}}); !errmodel.IsCode(err, errmodel.CodeBadInput) {
		t.Fatalf("token limit err=%v", err)
	}
}

func TestToolForgeSavesGeneratedTool(t *testing.T) {
	ctx := context.Background()
	reg := setup(t)
	generated := `{"slug":"pizza-rater","name":"Pizza Rater","system_prompt":"Rate pizza.","input_schema":{"type":"object","properties":{"photo":{"type":"string"}}},"output_schema":{"type":"object","properties":{"score":{"type":"number"}}}}`
	r := New(reg, fakellm.New(generated, generated))

	res, err := r.Run(ctx, Request{Slug: tool.ForgeSlug, Input: map[string]any{"idea": "rate pizza"}, Session: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if st, _ := res.Output.Get(ForgeStatusKey); st != "success" {
		t.Fatalf("status=%v output=%v", st, res.Output.Keys())
	}
	d, err := reg.Get(ctx, "alice", "pizza-rater")
	if err != nil {
		t.Fatalf("forged tool missing: %v", err)
	}
	if d.Owner != "alice" || d.Icon != tool.DefaultIcon || d.Color != tool.DefaultColor || d.Model != "default-model" {
		t.Fatalf("forged=%+v", d)
	}

	// a second session asking for the same slug cannot take it over
	res, err = r.Run(ctx, Request{Slug: tool.ForgeSlug, Input: map[string]any{"idea": "rate pizza"}, Session: "bob"})
	if err != nil {
		t.Fatal(err)
	}
	if st, _ := res.Output.Get(ForgeStatusKey); st != "error" {
		t.Fatalf("status=%v", st)
	}
	if msg, _ := res.Output.Get(ForgeErrorKey); msg == "" {
		t.Fatal("missing forge error message")
	}
}

func TestToolForgeReportsInvalidDefinition(t *testing.T) {
	reg := setup(t)
	r := New(reg, fakellm.New(`{"name":"No Slug"}`))
	res, err := r.Run(context.Background(), Request{Slug: tool.ForgeSlug, Input: map[string]any{"idea": "x"}})
	if err != nil {
		t.Fatal(err)
	}
	if st, _ := res.Output.Get(ForgeStatusKey); st != "error" {
		t.Fatalf("status=%v", st)
	}
	msg, _ := res.Output.Get(ForgeErrorKey)
	if s, _ := msg.(string); !strings.Contains(s, "slug:required") {
		t.Fatalf("error=%v", msg)
	}
}

func TestMemoryContextAndReflection(t *testing.T) {
	ctx := context.Background()
	reg := setup(t)
	reflector := fakellm.New(`{"facts":[{"content":"User eats salad often","category":"diet","confidence":0.7}]}`)
	mem := memory.New(fakeembed.New(64), vsmemory.New(), memory.WithReflector(reflector, ""))
	if _, err := mem.Remember(ctx, "alice", "User is vegetarian and eats salad", "diet", 0.9); err != nil {
		t.Fatal(err)
	}
	model := fakellm.New(`{"food_name":"Salad"}`)
	r := New(reg, model, WithMemory(mem))

	if _, err := r.Run(ctx, Request{Slug: "food-analyzer", Input: map[string]any{"meal": "salad"}, Session: "alice"}); err != nil {
		t.Fatal(err)
	}
	r.Wait()

	system := model.Calls()[0].Messages[0].Content
	if !strings.Contains(system, "[[MEMORY CONTEXT]]\n- User is vegetarian and eats salad\n") {
		t.Fatalf("context block missing: %q", system)
	}
	if idx := strings.Index(system, "CRITICAL"); idx < strings.Index(system, "[[MEMORY CONTEXT]]") {
		t.Fatal("context block must precede the schema directive")
	}
	if len(reflector.Calls()) != 1 {
		t.Fatalf("reflector calls=%d", len(reflector.Calls()))
	}
	facts, _ := mem.List(ctx, "alice")
	if len(facts) != 2 {
		t.Fatalf("facts=%+v", facts)
	}

	// anonymous runs neither retrieve nor reflect
	if _, err := r.Run(ctx, Request{Slug: "food-analyzer", Input: map[string]any{"meal": "salad"}}); err != nil {
		t.Fatal(err)
	}
	r.Wait()
	if len(reflector.Calls()) != 1 {
		t.Fatal("anonymous run triggered reflection")
	}
}

func equalKinds(a, b [][]render.Kind) bool {
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
