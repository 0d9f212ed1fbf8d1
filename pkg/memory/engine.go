// Package memory keeps per-user facts in a vector store and turns the
// relevant ones into a context block for tool prompts.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wilhg/kit/pkg/adapters/embedding"
	"github.com/wilhg/kit/pkg/adapters/llm"
	"github.com/wilhg/kit/pkg/adapters/vectorstore"
	"github.com/wilhg/kit/pkg/errmodel"
	"github.com/wilhg/kit/pkg/jsonv"
	"github.com/wilhg/kit/pkg/prompt"
)

const (
	defaultLimit     = 5
	defaultThreshold = 0.3
	defaultCategory  = "general"
	defaultImportant = 0.5

	contextHeader = "\n\n[[MEMORY CONTEXT]]\n"
)

const reflectorPrompt = `You read one user <-> tool interaction and extract persistent facts about the user.

Rules:
1. Only extract enduring truths (traits, preferences, goals, employment history, names).
2. Ignore transient requests (e.g. "rewrite this email", "fix this typo").
3. Output strict JSON.
4. If nothing is worth saving, return {"facts": []}.

Output schema:
{"facts": [{"content": "User is a Senior PM at TechCorp", "category": "work", "confidence": 0.9}]}`

// Engine stores and retrieves facts. The zero value is not usable; use New.
type Engine struct {
	embed     embedding.Embedder
	store     vectorstore.VectorStore
	reflector llm.LLM
	model     string
	estimate  TokenEstimator
	maxTokens int
	limit     int
	threshold float32
	log       *slog.Logger
	now       func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithReflector enables Reflect using m; model may be empty.
func WithReflector(m llm.LLM, model string) Option {
	return func(e *Engine) { e.reflector, e.model = m, model }
}

// WithTokenEstimator sets the estimator used for the context budget.
func WithTokenEstimator(est TokenEstimator) Option {
	return func(e *Engine) {
		if est != nil {
			e.estimate = est
		}
	}
}

// WithMaxTokens caps the size of the context block. Zero means unlimited.
func WithMaxTokens(n int) Option {
	return func(e *Engine) { e.maxTokens = n }
}

// WithLimit sets how many facts a query may return.
func WithLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.limit = n
		}
	}
}

// WithThreshold sets the minimum similarity for a fact to be used.
func WithThreshold(v float32) Option {
	return func(e *Engine) { e.threshold = v }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New builds an Engine over an embedder and a vector store.
func New(embed embedding.Embedder, store vectorstore.VectorStore, opts ...Option) *Engine {
	e := &Engine{
		embed:     embed,
		store:     store,
		estimate:  RuneEstimator,
		limit:     defaultLimit,
		threshold: defaultThreshold,
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Retrieve returns the context block for a query, or "" when the owner is
// anonymous or nothing relevant is stored.
func (e *Engine) Retrieve(ctx context.Context, owner, query string) (string, error) {
	if owner == "" || strings.TrimSpace(query) == "" {
		return "", nil
	}
	ctx, span := otel.Tracer("kit/memory").Start(ctx, "memory.retrieve")
	defer span.End()

	vecs, err := e.embed.Embed(ctx, []string{query}, map[string]any{embedding.OptTask: embedding.TaskQuery})
	if err != nil {
		return "", fmt.Errorf("memory: embed query: %w", err)
	}
	if len(vecs) == 0 {
		return "", nil
	}
	matches, err := e.store.Query(ctx, vectorstore.Vector(vecs[0]), e.limit, vectorstore.Filter{Namespace: owner})
	if err != nil {
		return "", fmt.Errorf("memory: query: %w", err)
	}
	facts := make([]Fact, 0, len(matches))
	for _, m := range matches {
		if m.Score < e.threshold {
			continue
		}
		f := factFromItem(m.Item)
		f.Score = m.Score
		facts = append(facts, f)
	}
	selected, sel := Select(facts, e.maxTokens, e.estimate)
	span.SetAttributes(
		attribute.Int("memory.matches", len(matches)),
		attribute.Int("memory.selected", len(selected)),
		attribute.Int("memory.tokens", sel.IncludedTokens),
	)
	if len(selected) == 0 {
		return "", nil
	}
	var b strings.Builder
	b.WriteString(contextHeader)
	for _, f := range selected {
		b.WriteString("- ")
		b.WriteString(f.Content)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// Remember stores a new fact.
func (e *Engine) Remember(ctx context.Context, owner, content, category string, importance float64) (Fact, error) {
	f := Fact{ID: uuid.NewString(), Owner: owner, Content: content, Category: category, Importance: importance}
	return f, e.put(ctx, &f)
}

// Update replaces the content of an existing fact.
func (e *Engine) Update(ctx context.Context, owner, id, content, category string, importance float64) (Fact, error) {
	existing, err := e.get(ctx, owner, id)
	if err != nil {
		return Fact{}, err
	}
	f := Fact{ID: id, Owner: owner, Content: content, Category: category, Importance: importance, CreatedAt: existing.CreatedAt}
	return f, e.put(ctx, &f)
}

// Forget deletes a fact owned by owner.
func (e *Engine) Forget(ctx context.Context, owner, id string) error {
	if _, err := e.get(ctx, owner, id); err != nil {
		return err
	}
	return e.store.Delete(ctx, owner, id)
}

// List returns every fact of owner ordered by ID.
func (e *Engine) List(ctx context.Context, owner string) ([]Fact, error) {
	if owner == "" {
		return nil, errmodel.Validation(errmodel.CodeBadInput, "owner is required", nil)
	}
	items, err := e.store.List(ctx, vectorstore.Filter{Namespace: owner})
	if err != nil {
		return nil, err
	}
	out := make([]Fact, 0, len(items))
	for _, it := range items {
		out = append(out, factFromItem(it))
	}
	return out, nil
}

type reflection struct {
	Facts []struct {
		Content    string  `json:"content"`
		Category   string  `json:"category"`
		Confidence float64 `json:"confidence"`
	} `json:"facts"`
}

// Reflect asks the reflector model for enduring facts in one interaction
// and stores them. It is a no-op without a reflector or an owner.
func (e *Engine) Reflect(ctx context.Context, owner string, input, output any) ([]Fact, error) {
	if e.reflector == nil || owner == "" {
		return nil, nil
	}
	ctx, span := otel.Tracer("kit/memory").Start(ctx, "memory.reflect")
	defer span.End()

	in, err := jsonv.Encode(input)
	if err != nil {
		return nil, err
	}
	out, err := jsonv.Encode(output)
	if err != nil {
		return nil, err
	}
	msgs := []llm.Message{
		{Role: "system", Content: reflectorPrompt},
		{Role: "user", Content: "User Input: " + string(in) + "\nTool Output: " + string(out)},
	}
	opts := map[string]any{llm.OptJSON: true}
	if e.model != "" {
		opts[llm.OptModel] = e.model
	}
	res, err := e.reflector.Generate(ctx, msgs, opts)
	if err != nil {
		return nil, errmodel.Model(errmodel.CodeLLMFailed, "reflection failed", nil, err)
	}
	var r reflection
	if err := json.Unmarshal([]byte(prompt.StripFences(res.Text)), &r); err != nil {
		return nil, errmodel.Model(errmodel.CodeBadOutput, "reflection returned invalid json", nil, err)
	}
	var stored []Fact
	for _, f := range r.Facts {
		if strings.TrimSpace(f.Content) == "" {
			continue
		}
		fact, err := e.Remember(ctx, owner, f.Content, f.Category, f.Confidence)
		if err != nil {
			return stored, err
		}
		e.log.DebugContext(ctx, "memory learned fact", "owner", owner, "id", fact.ID, "category", fact.Category)
		stored = append(stored, fact)
	}
	span.SetAttributes(attribute.Int("memory.learned", len(stored)))
	return stored, nil
}

func (e *Engine) put(ctx context.Context, f *Fact) error {
	if f.Owner == "" || strings.TrimSpace(f.Content) == "" {
		return errmodel.Validation(errmodel.CodeBadInput, "owner and content are required", nil)
	}
	if f.Category == "" {
		f.Category = defaultCategory
	}
	if f.Importance <= 0 {
		f.Importance = defaultImportant
	}
	if f.CreatedAt == 0 {
		f.CreatedAt = e.now().UnixMilli()
	}
	vecs, err := e.embed.Embed(ctx, []string{f.Content}, map[string]any{embedding.OptTask: embedding.TaskDocument})
	if err != nil {
		return fmt.Errorf("memory: embed fact: %w", err)
	}
	if len(vecs) == 0 {
		return fmt.Errorf("memory: embedder returned no vector")
	}
	return e.store.Upsert(ctx, []vectorstore.Item{{
		ID:        f.ID,
		Namespace: f.Owner,
		Vector:    vectorstore.Vector(vecs[0]),
		Metadata: map[string]any{
			"content":    f.Content,
			"category":   f.Category,
			"importance": f.Importance,
			"created_at": f.CreatedAt,
		},
	}})
}

func (e *Engine) get(ctx context.Context, owner, id string) (Fact, error) {
	facts, err := e.List(ctx, owner)
	if err != nil {
		return Fact{}, err
	}
	for _, f := range facts {
		if f.ID == id {
			return f, nil
		}
	}
	return Fact{}, errmodel.NotFound("memory not found", map[string]any{"id": id})
}

func factFromItem(it vectorstore.Item) Fact {
	f := Fact{ID: it.ID, Owner: it.Namespace}
	f.Content, _ = it.Metadata["content"].(string)
	f.Category, _ = it.Metadata["category"].(string)
	f.Importance, _ = it.Metadata["importance"].(float64)
	switch ts := it.Metadata["created_at"].(type) {
	case int64:
		f.CreatedAt = ts
	case float64:
		// Remote stores hand metadata back as JSON numbers.
		f.CreatedAt = int64(ts)
	}
	return f
}
