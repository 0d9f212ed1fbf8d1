// Package api is the HTTP surface used by the UI shell. Every route reads
// the caller's session from the X-Session-ID header; an absent header is
// the anonymous session and only sees global tools.
package api

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wilhg/kit/pkg/errmodel"
	"github.com/wilhg/kit/pkg/memory"
	"github.com/wilhg/kit/pkg/registry"
	"github.com/wilhg/kit/pkg/runner"
)

// SessionHeader carries the caller's session id.
const SessionHeader = "X-Session-ID"

// maxBody bounds request bodies; image inputs arrive as data URLs.
const maxBody = 10 << 20

// Server wires the registry, runner and memory engine to HTTP routes.
type Server struct {
	reg    *registry.Service
	runner *runner.Runner
	memory *memory.Engine
	mcp    http.Handler
	log    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithMemory exposes the memory routes.
func WithMemory(e *memory.Engine) Option { return func(s *Server) { s.memory = e } }

// WithMCP mounts an MCP handler under /mcp.
func WithMCP(h http.Handler) Option { return func(s *Server) { s.mcp = h } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// New builds a Server around r and its registry.
func New(r *runner.Runner, opts ...Option) *Server {
	s := &Server{reg: r.Registry(), runner: r, log: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/tools", func(r chi.Router) {
			r.Get("/", s.listTools)
			r.Post("/", s.saveTool)
			r.Get("/{slug}", s.getTool)
			r.Delete("/{slug}", s.deleteTool)
			r.Get("/{slug}/form", s.toolForm)
		})
		r.Post("/run-tool", s.runTool)
		r.Post("/render", s.renderTree)
		r.Post("/form", s.formFields)
		r.Post("/bootstrap", s.bootstrap)
		r.Get("/interactions", s.listInteractions)
		r.Delete("/interactions/{id}", s.deleteInteraction)
		r.Get("/recycle-bin", s.recycleBin)
		r.Route("/memories", func(r chi.Router) {
			r.Get("/", s.listMemories)
			r.Post("/", s.createMemory)
			r.Put("/{id}", s.updateMemory)
			r.Delete("/{id}", s.deleteMemory)
		})
	})

	if s.mcp != nil {
		r.Mount("/mcp", s.mcp)
	}
	return otelhttp.NewHandler(r, "kit.api")
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.DebugContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

func session(r *http.Request) string { return r.Header.Get(SessionHeader) }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// readBody returns the raw request body, rejecting empty and oversized ones.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		return nil, errmodel.Validation(errmodel.CodeBadInput, "request body unreadable", map[string]any{"error": err.Error()})
	}
	if len(b) == 0 {
		return nil, errmodel.Validation(errmodel.CodeBadInput, "request body is empty", nil)
	}
	return b, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	b, err := readBody(w, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return errmodel.Validation(errmodel.CodeBadInput, "request body is not valid JSON", map[string]any{"error": err.Error()})
	}
	return nil
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
