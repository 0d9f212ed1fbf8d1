package gemini

import (
	"context"
	"fmt"
	"os"

	genai "google.golang.org/genai"

	"github.com/wilhg/kit/pkg/adapters/embedding"
)

const defaultEmbeddingModel = "gemini-embedding-001"

var taskTypes = map[string]string{
	embedding.TaskQuery:    "RETRIEVAL_QUERY",
	embedding.TaskDocument: "RETRIEVAL_DOCUMENT",
}

type embedClient struct {
	client *genai.Client
	model  string
}

func (e *embedClient) Name() string { return "gemini" }

func (e *embedClient) Embed(ctx context.Context, inputs []string, opts map[string]any) ([]embedding.Vector, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	model := e.model
	if v, ok := opts[embedding.OptModel].(string); ok && v != "" {
		model = v
	}
	var cfg *genai.EmbedContentConfig
	if task, ok := opts[embedding.OptTask].(string); ok && taskTypes[task] != "" {
		cfg = &genai.EmbedContentConfig{TaskType: taskTypes[task]}
	}
	contents := make([]*genai.Content, 0, len(inputs))
	for _, s := range inputs {
		contents = append(contents, &genai.Content{Parts: []*genai.Part{{Text: s}}})
	}
	res, err := e.client.Models.EmbedContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, err
	}
	out := make([]embedding.Vector, 0, len(res.Embeddings))
	for _, emb := range res.Embeddings {
		out = append(out, embedding.Vector(append([]float32(nil), emb.Values...)))
	}
	return out, nil
}

// Factory creates a Gemini embedder using GOOGLE_API_KEY by default.
func Factory(ctx context.Context, cfg map[string]any) (embedding.Embedder, error) { // nolint: revive
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if v, ok := cfg["api_key"].(string); ok && v != "" {
		apiKey = v
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: missing API key; set GOOGLE_API_KEY or cfg.api_key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	model := defaultEmbeddingModel
	if v, ok := cfg["model"].(string); ok && v != "" {
		model = v
	}
	return &embedClient{client: client, model: model}, nil
}

func init() {
	_ = embedding.Register("gemini", Factory)
}
