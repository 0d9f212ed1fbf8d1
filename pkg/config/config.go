// Package config loads kit settings from defaults, an optional YAML file
// and KIT_* environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/wilhg/kit/pkg/tool"
)

// EnvPrefix prefixes every environment variable, e.g. KIT_LLM_PROVIDER.
const EnvPrefix = "KIT"

type Config struct {
	Addr            string `mapstructure:"addr" validate:"required"`
	Store           string `mapstructure:"store" validate:"oneof=memory ent gorm"`
	DatabaseURL     string `mapstructure:"database_url" validate:"required_unless=Store memory"`
	ToolsDir        string `mapstructure:"tools_dir"`
	MaxPromptTokens int    `mapstructure:"max_prompt_tokens" validate:"gte=0"`

	LLM    LLM    `mapstructure:"llm"`
	Memory Memory `mapstructure:"memory"`
	Log    Log    `mapstructure:"log"`
	OTel   OTel   `mapstructure:"otel"`
}

type LLM struct {
	Provider string `mapstructure:"provider" validate:"oneof=openai openrouter gemini fake"`
	Model    string `mapstructure:"model" validate:"required"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url" validate:"omitempty,url"`
}

type Memory struct {
	Enabled     bool     `mapstructure:"enabled"`
	Embedder    string   `mapstructure:"embedder" validate:"oneof=openai gemini fake"`
	MaxTokens   int      `mapstructure:"max_tokens" validate:"gte=0"`
	VectorStore string   `mapstructure:"vectorstore" validate:"oneof=memory chromadb"`
	Chroma      ChromaDB `mapstructure:"chromadb"`
}

type ChromaDB struct {
	URL        string `mapstructure:"url" validate:"omitempty,url"`
	Collection string `mapstructure:"collection"`
}

type Log struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

type OTel struct {
	Stdout      bool    `mapstructure:"stdout"`
	SampleRatio float64 `mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
}

var defaults = map[string]any{
	"addr":                       ":8080",
	"store":                      "memory",
	"database_url":               "",
	"tools_dir":                  "examples/tools",
	"max_prompt_tokens":          0,
	"llm.provider":               "openrouter",
	"llm.model":                  tool.DefaultModel,
	"llm.api_key":                "",
	"llm.base_url":               "",
	"memory.enabled":             false,
	"memory.embedder":            "openai",
	"memory.max_tokens":          500,
	"memory.vectorstore":         "memory",
	"memory.chromadb.url":        "",
	"memory.chromadb.collection": "kit_memory",
	"log.level":                  "info",
	"log.format":                 "text",
	"otel.stdout":                false,
	"otel.sample_ratio":          1.0,
}

// providerKeys lists the well-known variables consulted when llm.api_key
// is unset.
var providerKeys = map[string][]string{
	"openai":     {"OPENAI_API_KEY"},
	"openrouter": {"OPENROUTER_API_KEY"},
	"gemini":     {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
}

// Load reads the configuration. path may be empty.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("database_url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		for _, env := range providerKeys[cfg.LLM.Provider] {
			if key := os.Getenv(env); key != "" {
				cfg.LLM.APIKey = key
				break
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation error: %w", err)
	}
	return nil
}

// LLMOptions is the factory config for the LLM adapter registry.
func (c *Config) LLMOptions() map[string]any {
	opts := map[string]any{"model": c.LLM.Model}
	if c.LLM.APIKey != "" {
		opts["api_key"] = c.LLM.APIKey
	}
	if c.LLM.BaseURL != "" {
		opts["base_url"] = c.LLM.BaseURL
	}
	return opts
}

// VectorStoreOptions is the factory config for the vector store registry.
func (c *Config) VectorStoreOptions() map[string]any {
	if c.Memory.VectorStore != "chromadb" {
		return nil
	}
	opts := map[string]any{"collection": c.Memory.Chroma.Collection}
	if c.Memory.Chroma.URL != "" {
		opts["base_url"] = c.Memory.Chroma.URL
	}
	return opts
}

// Handler builds the slog handler described by the log settings.
func (l Log) Handler(w io.Writer) slog.Handler {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
