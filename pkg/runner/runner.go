// Package runner executes one tool run: resolve the tool, assemble the
// prompt, call the model, clean up its reply, log the interaction and
// render the result.
package runner

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wilhg/kit/pkg/adapters/llm"
	"github.com/wilhg/kit/pkg/errmodel"
	"github.com/wilhg/kit/pkg/jsonv"
	"github.com/wilhg/kit/pkg/layout"
	"github.com/wilhg/kit/pkg/memory"
	"github.com/wilhg/kit/pkg/prompt"
	"github.com/wilhg/kit/pkg/registry"
	"github.com/wilhg/kit/pkg/render"
	"github.com/wilhg/kit/pkg/tool"
)

// Keys the runner adds to tool forge output.
const (
	ForgeStatusKey = "_tool_forge_status"
	ForgeErrorKey  = "_tool_forge_error"
	ForgeSlugKey   = "_tool_forge_slug"
)

const reflectTimeout = 30 * time.Second

// Request is one tool invocation.
type Request struct {
	Slug    string `json:"tool_slug"`
	Input   any    `json:"input"`
	Session string `json:"session_id,omitempty"`
}

// Usage reports token counts.
type Usage struct {
	PromptEstimate int `json:"prompt_estimate"`
	Prompt         int `json:"prompt,omitempty"`
	Output         int `json:"output,omitempty"`
	Total          int `json:"total,omitempty"`
}

// Result is the outcome of a run.
type Result struct {
	Tool          *tool.Definition `json:"-"`
	Output        *jsonv.Object    `json:"output"`
	Tree          render.Tree      `json:"tree"`
	Model         string           `json:"model"`
	InteractionID string           `json:"interaction_id,omitempty"`
	Warnings      []string         `json:"warnings,omitempty"`
	Usage         Usage            `json:"usage"`
}

// Runner is safe for concurrent use. Call Wait before exiting so pending
// memory reflections finish.
type Runner struct {
	reg       *registry.Service
	model     llm.LLM
	memory    *memory.Engine
	log       *slog.Logger
	estimate  memory.TokenEstimator
	maxTokens int
	wg        sync.WaitGroup
}

// Option configures the Runner.
type Option func(*Runner)

// WithMemory enables context retrieval and reflection for sessions.
func WithMemory(e *memory.Engine) Option { return func(r *Runner) { r.memory = e } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithTokenEstimator sets the estimator used for prompt sizes.
func WithTokenEstimator(est memory.TokenEstimator) Option {
	return func(r *Runner) {
		if est != nil {
			r.estimate = est
		}
	}
}

// WithMaxPromptTokens rejects runs whose prompt is estimated above n
// tokens. Zero disables the check.
func WithMaxPromptTokens(n int) Option { return func(r *Runner) { r.maxTokens = n } }

// New builds a Runner.
func New(reg *registry.Service, model llm.LLM, opts ...Option) *Runner {
	r := &Runner{reg: reg, model: model, log: slog.Default(), estimate: memory.RuneEstimator}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Registry returns the tool registry the runner resolves tools from.
func (r *Runner) Registry() *registry.Service { return r.reg }

// Run executes req.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	ctx, span := otel.Tracer("kit/runner").Start(ctx, "Runner.Run", trace.WithAttributes(
		attribute.String("tool.slug", req.Slug),
		attribute.Bool("session.present", req.Session != ""),
	))
	defer span.End()

	res, err := r.run(ctx, span, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (r *Runner) run(ctx context.Context, span trace.Span, req Request) (*Result, error) {
	if strings.TrimSpace(req.Slug) == "" || req.Input == nil {
		return nil, errmodel.Validation(errmodel.CodeBadInput, "tool_slug and input are required", nil)
	}
	d, err := r.reg.Get(ctx, req.Session, req.Slug)
	if err != nil {
		return nil, err
	}
	model := d.Model
	if model == "" {
		model = r.reg.DefaultModel()
	}
	span.SetAttributes(attribute.String("llm.model", model))

	input, ok := jsonv.Normalize(req.Input)
	if !ok {
		return nil, errmodel.Validation(errmodel.CodeBadInput, "input is not JSON", nil)
	}
	encodedInput, err := jsonv.Encode(input)
	if err != nil {
		return nil, errmodel.Validation(errmodel.CodeBadInput, "input is not JSON", map[string]any{"error": err.Error()})
	}

	contextBlock := ""
	if r.memory != nil && req.Session != "" {
		contextBlock, err = r.memory.Retrieve(ctx, req.Session, string(encodedInput))
		if err != nil {
			r.log.WarnContext(ctx, "memory retrieval failed", "tool", d.Slug, "error", err)
			contextBlock = ""
		}
	}

	system := prompt.System(d.SystemPrompt, contextBlock, d.OutputSchema)
	msgs, err := prompt.Messages(system, input)
	if err != nil {
		return nil, errmodel.Validation(errmodel.CodeBadInput, "input is not JSON", map[string]any{"error": err.Error()})
	}
	res := &Result{Tool: d, Model: model}
	for _, m := range msgs {
		res.Usage.PromptEstimate += r.estimate(m.Content)
	}
	span.SetAttributes(attribute.Int("prompt.tokens_estimate", res.Usage.PromptEstimate))
	if r.maxTokens > 0 && res.Usage.PromptEstimate > r.maxTokens {
		return nil, errmodel.Validation(errmodel.CodeBadInput, "prompt exceeds the token limit", map[string]any{
			"tokens": res.Usage.PromptEstimate, "limit": r.maxTokens,
		})
	}

	gen, err := r.model.Generate(ctx, msgs, map[string]any{llm.OptModel: model, llm.OptJSON: true})
	if err != nil {
		return nil, errmodel.Model(errmodel.CodeLLMFailed, "model call failed", map[string]any{"tool": d.Slug, "model": model}, err)
	}
	if gen.Model != "" {
		res.Model = gen.Model
	}
	res.Usage.Prompt, res.Usage.Output, res.Usage.Total = gen.PromptTokens, gen.OutputTokens, gen.TotalTokens

	out, err := jsonv.DecodeObject([]byte(prompt.StripFences(gen.Text)))
	if err != nil {
		return nil, errmodel.Model(errmodel.CodeBadOutput, "model returned invalid JSON", map[string]any{"tool": d.Slug}, err)
	}

	if err := tool.ValidateData(d.OutputSchema, withoutReserved(out)); err != nil {
		r.log.WarnContext(ctx, "output does not match schema", "tool", d.Slug, "error", err)
		res.Warnings = append(res.Warnings, "output_schema: "+err.Error())
	}

	if v, ok := out.Get(layout.Key); !ok || v == nil || v == "" {
		if hint, found := prompt.LayoutHint(d.SystemPrompt); found {
			out.Set(layout.Key, hint)
		}
	}

	if rec, err := r.reg.LogInteraction(ctx, req.Session, d.Slug, input, out); err != nil {
		r.log.ErrorContext(ctx, "failed to log interaction", "tool", d.Slug, "error", err)
	} else {
		res.InteractionID = rec.ID
	}

	if r.memory != nil && req.Session != "" {
		r.reflect(ctx, req.Session, input, out.Clone())
	}

	if tool.IsForge(d.Slug) {
		r.forge(ctx, req.Session, out)
	}

	res.Output = out
	res.Tree = render.Render(d.Output(), out)
	if res.Tree.Defaulted && out.Has(layout.Key) {
		r.log.WarnContext(ctx, "layout unusable, using default", "tool", d.Slug, "layout", res.Tree.Layout)
	}
	span.SetAttributes(attribute.Int("render.rows", len(res.Tree.Rows)))
	return res, nil
}

// forge saves the tool definition contained in out and records the
// outcome in out itself.
func (r *Runner) forge(ctx context.Context, session string, out *jsonv.Object) {
	fail := func(err error) {
		r.log.WarnContext(ctx, "tool forge save failed", "error", err)
		out.Set(ForgeStatusKey, "error")
		out.Set(ForgeErrorKey, errmodel.From(err).Message+contextSuffix(err))
	}
	raw, err := jsonv.Encode(withoutReserved(out))
	if err != nil {
		fail(err)
		return
	}
	d, err := tool.ParseJSON(raw)
	if err != nil {
		fail(errmodel.Validation(errmodel.CodeInvalidDef, "generated tool is not a definition", map[string]any{"error": err.Error()}))
		return
	}
	d.ID, d.Owner = "", ""
	d.CreatedAt, d.UpdatedAt = time.Time{}, time.Time{}
	saved, err := r.reg.Save(ctx, session, d)
	if err != nil {
		fail(err)
		return
	}
	out.Set(ForgeStatusKey, "success")
	out.Set(ForgeSlugKey, saved.Tool.Slug)
}

func contextSuffix(err error) string {
	ce := errmodel.From(err)
	if f, ok := ce.Context["fields"].(string); ok && f != "" {
		return " (" + f + ")"
	}
	if e, ok := ce.Context["error"].(string); ok && e != "" {
		return ": " + e
	}
	return ""
}

// reflect extracts facts from the run in the background.
func (r *Runner) reflect(ctx context.Context, session string, input any, out *jsonv.Object) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reflectTimeout)
		defer cancel()
		facts, err := r.memory.Reflect(rctx, session, input, out)
		if err != nil {
			r.log.WarnContext(rctx, "memory reflection failed", "error", err)
			return
		}
		if len(facts) > 0 {
			r.log.DebugContext(rctx, "memory reflection stored facts", "count", len(facts))
		}
	}()
}

// Wait blocks until background reflections finish.
func (r *Runner) Wait() { r.wg.Wait() }

// withoutReserved returns out minus the keys the pipeline adds itself.
func withoutReserved(out *jsonv.Object) *jsonv.Object {
	c := out.Clone()
	for _, k := range []string{layout.Key, ForgeStatusKey, ForgeErrorKey, ForgeSlugKey} {
		c.Delete(k)
	}
	return c
}
