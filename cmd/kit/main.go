package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wilhg/kit/pkg/adapters/embedding"
	"github.com/wilhg/kit/pkg/adapters/llm"
	"github.com/wilhg/kit/pkg/config"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "kit: %v\n", err)
		os.Exit(1)
	}
}

// cli carries state shared by every subcommand.
type cli struct {
	configPath string
	cfg        *config.Config
	log        *slog.Logger
	out        io.Writer
	errOut     io.Writer
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut}
	root := &cobra.Command{
		Use:   "kit",
		Short: "Generative UI toolkit for AI tools",
		Long: `kit stores AI tool definitions, runs them against an LLM and turns
their JSON output into layout trees and input forms. It serves the tools
over HTTP and MCP and renders trees in the terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.log = slog.New(cfg.Log.Handler(c.errOut))
			slog.SetDefault(c.log)
			return nil
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(
		c.serveCmd(),
		c.mcpCmd(),
		c.runCmd(),
		c.renderCmd(),
		c.formCmd(),
		c.toolsCmd(),
		c.evalCmd(),
		versionCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "kit %s (commit=%s, date=%s)\n", version, commit, date)
			fmt.Fprintf(out, "llm providers: %s\n", strings.Join(llm.Providers(), ", "))
			fmt.Fprintf(out, "embedders: %s\n", strings.Join(embedding.Providers(), ", "))
		},
	}
}
