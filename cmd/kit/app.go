package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/wilhg/kit/pkg/adapters/embedding"
	_ "github.com/wilhg/kit/pkg/adapters/embedding/fake"
	_ "github.com/wilhg/kit/pkg/adapters/embedding/gemini"
	_ "github.com/wilhg/kit/pkg/adapters/embedding/openai"
	"github.com/wilhg/kit/pkg/adapters/llm"
	_ "github.com/wilhg/kit/pkg/adapters/llm/fake"
	_ "github.com/wilhg/kit/pkg/adapters/llm/gemini"
	_ "github.com/wilhg/kit/pkg/adapters/llm/openai"
	"github.com/wilhg/kit/pkg/adapters/vectorstore"
	_ "github.com/wilhg/kit/pkg/adapters/vectorstore/chromadb"
	_ "github.com/wilhg/kit/pkg/adapters/vectorstore/memory"
	"github.com/wilhg/kit/pkg/config"
	"github.com/wilhg/kit/pkg/memory"
	"github.com/wilhg/kit/pkg/registry"
	"github.com/wilhg/kit/pkg/runner"
	"github.com/wilhg/kit/pkg/store"
	"github.com/wilhg/kit/pkg/store/entstore"
	"github.com/wilhg/kit/pkg/store/gormstore"
	"github.com/wilhg/kit/pkg/store/memstore"
	"github.com/wilhg/kit/pkg/tool"
)

// estimatorModel picks the tiktoken encoding for prompt budgets.
const estimatorModel = "gpt-4o"

// app is the wired service graph behind every command.
type app struct {
	store  store.Store
	reg    *registry.Service
	runner *runner.Runner
	memory *memory.Engine
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store {
	case "ent":
		st, err := entstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open ent store: %w", err)
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("migrate ent store: %w", err)
		}
		return st, nil
	case "gorm":
		st, err := gormstore.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open gorm store: %w", err)
		}
		return st, nil
	default:
		return memstore.New(), nil
	}
}

// newApp opens the store, seeds the tools directory and wires the runner.
// The LLM is only built when withModel is set so offline commands work
// without credentials.
func (c *cli) newApp(ctx context.Context, withModel bool) (*app, error) {
	st, err := openStore(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	a := &app{store: st}
	a.reg = registry.New(st, registry.WithDefaultModel(c.cfg.LLM.Model), registry.WithLogger(c.log))

	if err := c.seed(ctx, a.reg); err != nil {
		_ = st.Close()
		return nil, err
	}
	if !withModel {
		return a, nil
	}

	model, err := llm.New(ctx, c.cfg.LLM.Provider, c.cfg.LLMOptions())
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("llm %s: %w", c.cfg.LLM.Provider, err)
	}
	est := c.estimator()

	opts := []runner.Option{
		runner.WithLogger(c.log),
		runner.WithTokenEstimator(est),
		runner.WithMaxPromptTokens(c.cfg.MaxPromptTokens),
	}
	if c.cfg.Memory.Enabled {
		embed, err := embedding.New(ctx, c.cfg.Memory.Embedder, map[string]any{})
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("embedder %s: %w", c.cfg.Memory.Embedder, err)
		}
		vs, err := vectorstore.New(ctx, c.cfg.Memory.VectorStore, c.cfg.VectorStoreOptions())
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("vectorstore %s: %w", c.cfg.Memory.VectorStore, err)
		}
		a.memory = memory.New(embed, vs,
			memory.WithReflector(model, c.cfg.LLM.Model),
			memory.WithTokenEstimator(est),
			memory.WithMaxTokens(c.cfg.Memory.MaxTokens),
			memory.WithLogger(c.log),
		)
		opts = append(opts, runner.WithMemory(a.memory))
	}
	a.runner = runner.New(a.reg, model, opts...)
	return a, nil
}

// estimator counts tokens with tiktoken when a budget applies and falls
// back to counting runes otherwise.
func (c *cli) estimator() memory.TokenEstimator {
	if c.cfg.MaxPromptTokens == 0 && !c.cfg.Memory.Enabled {
		return memory.RuneEstimator
	}
	est, err := memory.NewTikTokenEstimator(estimatorModel)
	if err != nil {
		c.log.Warn("tiktoken unavailable, counting runes", "error", err)
		return memory.RuneEstimator
	}
	return est
}

func (c *cli) seed(ctx context.Context, reg *registry.Service) error {
	if c.cfg.ToolsDir == "" {
		return nil
	}
	defs, err := tool.LoadDir(c.cfg.ToolsDir)
	if errors.Is(err, os.ErrNotExist) {
		c.log.Warn("tools directory missing, nothing seeded", "dir", c.cfg.ToolsDir)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load tools: %w", err)
	}
	n, err := reg.Seed(ctx, defs)
	if err != nil {
		return fmt.Errorf("seed tools: %w", err)
	}
	c.log.Debug("tools seeded", "dir", c.cfg.ToolsDir, "created", n)
	return nil
}

// Close waits for background work and releases the store.
func (a *app) Close() error {
	if a.runner != nil {
		a.runner.Wait()
	}
	return a.store.Close()
}
