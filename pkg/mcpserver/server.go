// Package mcpserver exposes the tools visible to one session as MCP tools.
// Calling an MCP tool runs it through the same pipeline as the HTTP API.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wilhg/kit/pkg/errmodel"
	"github.com/wilhg/kit/pkg/jsonv"
	"github.com/wilhg/kit/pkg/runner"
	"github.com/wilhg/kit/pkg/tool"
)

const sessionHeader = "X-Session-ID"

type Server struct {
	srv     *mcp.Server
	runner  *runner.Runner
	session string
	log     *slog.Logger

	mu       sync.Mutex
	exported map[string]bool
}

type Option func(*Server)

// WithSession exports the tools of session instead of global tools only.
func WithSession(id string) Option { return func(s *Server) { s.session = id } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates an MCP server backed by r. Call Sync to export tools.
func New(r *runner.Runner, version string, opts ...Option) *Server {
	s := &Server{runner: r, log: slog.Default(), exported: map[string]bool{}}
	for _, o := range opts {
		o(s)
	}
	s.srv = mcp.NewServer(&mcp.Implementation{Name: "kit", Version: version}, nil)
	return s
}

// Sync exports every tool visible to the session and withdraws tools that
// are gone. It returns the number of exported tools.
func (s *Server) Sync(ctx context.Context) (int, error) {
	defs, err := s.runner.Registry().List(ctx, s.session)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		in, err := inputSchema(d)
		if err != nil {
			s.log.WarnContext(ctx, "tool not exported over MCP", "slug", d.Slug, "error", err)
			continue
		}
		s.srv.AddTool(&mcp.Tool{
			Name:        d.Slug,
			Title:       d.Name,
			Description: d.Description,
			InputSchema: in,
		}, s.handler(d.Slug))
		seen[d.Slug] = true
	}
	var stale []string
	for name := range s.exported {
		if !seen[name] {
			stale = append(stale, name)
		}
	}
	if len(stale) > 0 {
		s.srv.RemoveTools(stale...)
	}
	s.exported = seen
	return len(seen), nil
}

func inputSchema(d *tool.Definition) (*jsonschema.Schema, error) {
	sch := &jsonschema.Schema{}
	if len(d.InputSchema) > 0 {
		if err := json.Unmarshal(d.InputSchema, sch); err != nil {
			return nil, err
		}
	}
	if sch.Type == "" {
		sch.Type = "object"
	}
	if sch.Type != "object" {
		return nil, fmt.Errorf("input schema type %q is not object", sch.Type)
	}
	return sch, nil
}

func (s *Server) handler(slug string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var input any = jsonv.NewObject()
		if raw := req.Params.Arguments; len(raw) > 0 && string(raw) != "null" {
			v, err := jsonv.Decode(raw)
			if err != nil {
				return errorResult(errmodel.Validation(errmodel.CodeBadInput, "arguments are not valid JSON", nil)), nil
			}
			input = v
		}
		res, err := s.runner.Run(ctx, runner.Request{Slug: slug, Input: input, Session: s.session})
		if err != nil {
			s.log.WarnContext(ctx, "MCP tool call failed", "slug", slug, "error", err)
			return errorResult(err), nil
		}
		text, err := jsonv.Encode(res.Output)
		if err != nil {
			return errorResult(err), nil
		}
		return &mcp.CallToolResult{
			Content:           []mcp.Content{&mcp.TextContent{Text: string(text)}},
			StructuredContent: res.Output,
		}, nil
	}
}

func errorResult(err error) *mcp.CallToolResult {
	b, _ := json.Marshal(errmodel.From(err))
	return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: string(b)}}}
}

// Run serves MCP over stdin/stdout until ctx is done or the client leaves.
func (s *Server) Run(ctx context.Context) error {
	return s.srv.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves one client over t.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.srv.Connect(ctx, t, nil)
}

// HTTPHandler serves MCP over streamable HTTP. Each MCP session exports the
// tools visible to the X-Session-ID header of its first request.
func HTTPHandler(r *runner.Runner, version string, opts ...Option) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(req *http.Request) *mcp.Server {
		s := New(r, version, append(opts, WithSession(req.Header.Get(sessionHeader)))...)
		if _, err := s.Sync(req.Context()); err != nil {
			s.log.ErrorContext(req.Context(), "MCP tool export failed", "error", err)
		}
		return s.srv
	}, nil)
}
