// Package fake is a scripted LLM for tests and offline runs.
package fake

import (
	"context"
	"errors"
	"sync"

	"github.com/wilhg/kit/pkg/adapters/llm"
)

// Call records one Generate invocation.
type Call struct {
	Messages []llm.Message
	Opts     map[string]any
}

// LLM replies with scripted responses in order, repeating the last one.
type LLM struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     []Call
}

// New returns a fake that answers with responses in order.
func New(responses ...string) *LLM {
	return &LLM{responses: responses}
}

// Failing returns a fake whose every call fails with err.
func Failing(err error) *LLM {
	return &LLM{err: err}
}

func (f *LLM) Name() string { return "fake" }

func (f *LLM) Generate(ctx context.Context, messages []llm.Message, opts map[string]any) (llm.GenerateResult, error) {
	if err := ctx.Err(); err != nil {
		return llm.GenerateResult{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Messages: append([]llm.Message(nil), messages...), Opts: opts})
	if f.err != nil {
		return llm.GenerateResult{}, f.err
	}
	if len(f.responses) == 0 {
		return llm.GenerateResult{}, errors.New("fake llm: no scripted response")
	}
	text := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	model, _ := opts[llm.OptModel].(string)
	return llm.GenerateResult{Text: text, Model: model}, nil
}

// Calls returns the recorded invocations.
func (f *LLM) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Factory builds a fake from cfg key "response".
func Factory(ctx context.Context, cfg map[string]any) (llm.LLM, error) { // nolint: revive
	_ = ctx
	resp, _ := cfg["response"].(string)
	if resp == "" {
		resp = `{}`
	}
	return New(resp), nil
}

func init() {
	_ = llm.Register("fake", Factory)
}
