package openai

import (
	"context"
	"fmt"
	"os"

	oa "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/wilhg/kit/pkg/adapters/llm"
)

const (
	defaultModel = "gpt-5-nano"

	openRouterBaseURL = "https://openrouter.ai/api/v1"
	openRouterModel   = "google/gemini-2.0-flash-lite-001"
)

type clientWrapper struct {
	client oa.Client
	name   string
	model  string
}

func (c *clientWrapper) Name() string { return c.name }

func (c *clientWrapper) Generate(ctx context.Context, messages []llm.Message, opts map[string]any) (llm.GenerateResult, error) {
	model := c.model
	if v, ok := opts[llm.OptModel].(string); ok && v != "" {
		model = v
	}

	// Map our messages to SDK union type
	mm := make([]oa.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "user":
			mm = append(mm, oa.UserMessage(m.Content))
		case "system":
			mm = append(mm, oa.SystemMessage(m.Content))
		case "assistant":
			mm = append(mm, oa.AssistantMessage(m.Content))
		default:
			mm = append(mm, oa.UserMessage(m.Content))
		}
	}

	params := oa.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: mm,
	}
	if v, ok := opts[llm.OptJSON].(bool); ok && v {
		params.ResponseFormat = oa.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return llm.GenerateResult{}, err
	}
	var out string
	if len(resp.Choices) > 0 {
		out = resp.Choices[0].Message.Content
	}
	usage := resp.Usage
	return llm.GenerateResult{
		Text:         out,
		PromptTokens: int(usage.PromptTokens),
		OutputTokens: int(usage.CompletionTokens),
		TotalTokens:  int(usage.TotalTokens),
		Model:        model,
	}, nil
}

// Factory registers the OpenAI LLM provider: cfg keys: api_key, model, base_url
func Factory(ctx context.Context, cfg map[string]any) (llm.LLM, error) { // nolint: revive
	_ = ctx
	apiKey := os.Getenv("OPENAI_API_KEY")
	if v, ok := cfg["api_key"].(string); ok && v != "" {
		apiKey = v
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openai: missing API key; set OPENAI_API_KEY or cfg.api_key")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if v, ok := cfg["base_url"].(string); ok && v != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(v))
	}
	return &clientWrapper{client: oa.NewClient(reqOpts...), name: "openai", model: stringOr(cfg, "model", defaultModel)}, nil
}

// OpenRouterFactory talks to OpenRouter's OpenAI-compatible endpoint:
// cfg keys: api_key, model, base_url, referer, title
func OpenRouterFactory(ctx context.Context, cfg map[string]any) (llm.LLM, error) { // nolint: revive
	_ = ctx
	apiKey := os.Getenv("OPENROUTER_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("KIT_OPENROUTER_API_KEY")
	}
	if v, ok := cfg["api_key"].(string); ok && v != "" {
		apiKey = v
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openrouter: missing API key; set OPENROUTER_API_KEY or cfg.api_key")
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(stringOr(cfg, "base_url", openRouterBaseURL)),
		option.WithHeader("X-Title", stringOr(cfg, "title", "Kit")),
	}
	if v, ok := cfg["referer"].(string); ok && v != "" {
		reqOpts = append(reqOpts, option.WithHeader("HTTP-Referer", v))
	}
	return &clientWrapper{client: oa.NewClient(reqOpts...), name: "openrouter", model: stringOr(cfg, "model", openRouterModel)}, nil
}

func stringOr(cfg map[string]any, key, def string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return def
}

func init() {
	_ = llm.Register("openai", Factory)
	_ = llm.Register("openrouter", OpenRouterFactory)
}
