package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/wilhg/kit/pkg/api"
	"github.com/wilhg/kit/pkg/jsonv"
	"github.com/wilhg/kit/pkg/mcpserver"
	"github.com/wilhg/kit/pkg/otel"
	"github.com/wilhg/kit/pkg/runner"
	"github.com/wilhg/kit/pkg/termview"
)

const shutdownTimeout = 10 * time.Second

func (c *cli) initTracing(ctx context.Context) (func(context.Context) error, error) {
	return otel.Init(ctx, otel.Config{
		ServiceVersion: version,
		UseStdout:      c.cfg.OTel.Stdout,
		SampleRatio:    c.cfg.OTel.SampleRatio,
	})
}

// handler builds the HTTP surface: the JSON API with MCP mounted at /mcp.
func (c *cli) handler(a *app) http.Handler {
	opts := []api.Option{
		api.WithLogger(c.log),
		api.WithMCP(mcpserver.HTTPHandler(a.runner, version, mcpserver.WithLogger(c.log))),
	}
	if a.memory != nil {
		opts = append(opts, api.WithMemory(a.memory))
	}
	return api.New(a.runner, opts...).Handler()
}

func (c *cli) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and MCP endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if addr == "" {
				addr = c.cfg.Addr
			}
			shutdownTracing, err := c.initTracing(ctx)
			if err != nil {
				return fmt.Errorf("tracing: %w", err)
			}
			a, err := c.newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := &http.Server{Addr: addr, Handler: c.handler(a), ReadHeaderTimeout: 10 * time.Second}
			errc := make(chan error, 1)
			go func() {
				c.log.Info("listening", "addr", addr, "store", c.cfg.Store, "llm", c.cfg.LLM.Provider)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
				close(errc)
			}()

			select {
			case err := <-errc:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
			case <-ctx.Done():
			}
			c.log.Info("shutting down")
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				return err
			}
			return shutdownTracing(sctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func (c *cli) mcpCmd() *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve tools over MCP on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := mcpserver.New(a.runner, version, mcpserver.WithSession(session), mcpserver.WithLogger(c.log))
			n, err := srv.Sync(ctx)
			if err != nil {
				return err
			}
			c.log.Info("MCP tools exported", "count", n, "session", session)
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "session whose private tools are exported")
	return cmd
}

func (c *cli) runCmd() *cobra.Command {
	var (
		session string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "run <tool-slug> [input.json|-]",
		Short: "Run a tool once and render its output",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var input any = jsonv.NewObject()
			if len(args) == 2 {
				b, err := readInput(cmd, args[1])
				if err != nil {
					return err
				}
				if input, err = jsonv.Decode(b); err != nil {
					return fmt.Errorf("input: %w", err)
				}
			}
			a, err := c.newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.runner.Run(ctx, runner.Request{Slug: args[0], Input: input, Session: session})
			if err != nil {
				return err
			}
			for _, w := range res.Warnings {
				c.log.Warn(w)
			}
			if asJSON {
				return writeJSON(cmd, res)
			}
			fmt.Fprintln(cmd.OutOrStdout(), termview.New(0).Tree(res.Tree))
			return nil
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "session id for private tools and memory")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

// readInput reads path, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
