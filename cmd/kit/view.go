package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wilhg/kit/pkg/eval"
	"github.com/wilhg/kit/pkg/form"
	"github.com/wilhg/kit/pkg/jsonv"
	"github.com/wilhg/kit/pkg/render"
	"github.com/wilhg/kit/pkg/schema"
	"github.com/wilhg/kit/pkg/termview"
)

func loadSchema(path string) (*schema.Node, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := schema.Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func (c *cli) renderCmd() *cobra.Command {
	var (
		schemaPath string
		width      int
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "render <data.json|->",
		Short: "Render tool output JSON as a layout tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSchema(schemaPath)
			if err != nil {
				return err
			}
			b, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			data, err := jsonv.Decode(b)
			if err != nil {
				return fmt.Errorf("data: %w", err)
			}
			tree := render.Render(s, data)
			if asJSON {
				return writeJSON(cmd, tree)
			}
			fmt.Fprintln(cmd.OutOrStdout(), termview.New(width).Tree(tree))
			return nil
		},
	}
	cmd.Flags().StringVarP(&schemaPath, "schema", "s", "", "output schema used for the default layout and labels")
	cmd.Flags().IntVarP(&width, "width", "w", 0, "terminal width")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the tree as JSON")
	return cmd
}

func (c *cli) formCmd() *cobra.Command {
	var (
		valuePath string
		sets      []string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "form <input-schema.json>",
		Short: "Describe the input form generated from a schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSchema(args[0])
			if err != nil {
				return err
			}
			var value any
			if valuePath != "" {
				b, err := os.ReadFile(valuePath)
				if err != nil {
					return err
				}
				if value, err = jsonv.Decode(b); err != nil {
					return fmt.Errorf("value: %w", err)
				}
			}
			d := form.Generate(s, value, nil)
			for _, kv := range sets {
				key, raw, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("--set %q: want key=value", kv)
				}
				d.Change(key, setValue(raw))
			}
			fields := d.Fields()
			missing := form.Missing(s, d.Value())
			if asJSON {
				return writeJSON(cmd, map[string]any{"fields": fields, "missing": missing})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, termview.New(0).Form(fields))
			if len(missing) > 0 {
				fmt.Fprintf(out, "\nmissing: %v\n", missing)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&valuePath, "value", "", "JSON file with the current form value")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "change one field, key=value (value may be JSON)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the controls as JSON")
	return cmd
}

// setValue decodes raw as JSON and falls back to the plain string.
func setValue(raw string) any {
	if v, err := jsonv.Decode([]byte(raw)); err == nil {
		return v
	}
	return raw
}

func (c *cli) evalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eval <fixtures-dir>",
		Short: "Check render fixtures against their expected trees",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := eval.EvaluateRenderFixtures(os.DirFS(args[0]), ".")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, d := range rep.Details {
				fmt.Fprintln(out, "FAIL", d)
			}
			fmt.Fprintf(out, "%d/%d fixtures passed (score %.2f)\n", rep.Passed, rep.Total, rep.Score())
			if rep.Passed != rep.Total {
				return errors.New("render fixtures failed")
			}
			return nil
		},
	}
}
