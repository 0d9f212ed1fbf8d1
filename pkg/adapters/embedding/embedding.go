package embedding

import (
	"context"

	"github.com/wilhg/kit/pkg/adapters"
)

// Option keys understood by the bundled embedders.
const (
	// OptModel overrides the embedder's default model for one call.
	OptModel = "model"
	// OptTask hints what the vectors are for; see TaskQuery and TaskDocument.
	OptTask = "task"
)

// Task hints.
const (
	TaskQuery    = "query"
	TaskDocument = "document"
)

// Vector represents a single embedding vector.
type Vector []float32

// Embedder produces embedding vectors from text inputs.
//
// Implementations should be deterministic for the same input unless options specify
// non-deterministic behavior. All network or I/O operations must honor ctx.
type Embedder interface {
	// Name returns a short provider name (e.g., "openai", "gemini").
	Name() string
	// Embed returns one vector per input string, in order.
	Embed(ctx context.Context, inputs []string, opts map[string]any) ([]Vector, error)
}

// Factory constructs an Embedder from a provider-specific configuration map.
type Factory func(ctx context.Context, cfg map[string]any) (Embedder, error)

var providers = adapters.NewRegistry[Factory]("embedding")

// Register registers a factory under a provider name.
func Register(name string, f Factory) error { return providers.Register(name, f) }

// Resolve gets a registered factory by name.
func Resolve(name string) (Factory, bool) { return providers.Resolve(name) }

// Providers lists the registered provider names, sorted.
func Providers() []string { return providers.Names() }

// New builds an Embedder from a registered provider.
func New(ctx context.Context, provider string, cfg map[string]any) (Embedder, error) {
	f, ok := providers.Resolve(provider)
	if !ok {
		return nil, providers.Unknown(provider)
	}
	return f(ctx, cfg)
}
