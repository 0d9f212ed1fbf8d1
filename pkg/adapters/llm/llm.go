package llm

import (
	"context"

	"github.com/wilhg/kit/pkg/adapters"
)

// Option keys understood by the bundled providers.
const (
	// OptModel overrides the provider's default model for one call.
	OptModel = "model"
	// OptJSON asks the provider for a JSON object reply when set to true.
	OptJSON = "json"
)

// Message represents a chat message with a role and content.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateResult contains the model's text output and token usage if available.
type GenerateResult struct {
	Text         string
	PromptTokens int
	OutputTokens int
	TotalTokens  int
	Model        string
}

// LLM defines a minimal chat/text generation interface.
type LLM interface {
	// Name returns provider name (e.g., "openai").
	Name() string
	// Generate creates a completion from a list of messages. Implementations may ignore messages except the latest user if they are pure-completion models.
	Generate(ctx context.Context, messages []Message, opts map[string]any) (GenerateResult, error)
}

// Factory constructs an LLM from provider-specific config.
type Factory func(ctx context.Context, cfg map[string]any) (LLM, error)

var providers = adapters.NewRegistry[Factory]("llm")

// Register registers a factory under a provider name.
func Register(name string, f Factory) error { return providers.Register(name, f) }

// Resolve gets a registered factory by name.
func Resolve(name string) (Factory, bool) { return providers.Resolve(name) }

// Providers lists the registered provider names, sorted.
func Providers() []string { return providers.Names() }

// New builds an LLM from a registered provider.
func New(ctx context.Context, provider string, cfg map[string]any) (LLM, error) {
	f, ok := providers.Resolve(provider)
	if !ok {
		return nil, providers.Unknown(provider)
	}
	return f(ctx, cfg)
}
