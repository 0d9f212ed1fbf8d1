package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wilhg/kit/pkg/prompt"
	"github.com/wilhg/kit/pkg/tool"
)

func (c *cli) toolsCmd() *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Manage tool definitions",
	}
	cmd.PersistentFlags().StringVar(&session, "session", "", "act on behalf of a session; empty means global")

	ls := &cobra.Command{
		Use:   "ls",
		Short: "List the tools visible to the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()
			defs, err := a.reg.List(cmd.Context(), session)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SLUG\tNAME\tOWNER\tMODEL")
			for _, d := range defs {
				owner := d.Owner
				if owner == "" {
					owner = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Slug, d.Name, owner, d.Model)
			}
			return w.Flush()
		},
	}

	get := &cobra.Command{
		Use:   "get <slug>",
		Short: "Print a tool definition as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()
			d, err := a.reg.Get(cmd.Context(), session, args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd, d)
		},
	}

	apply := &cobra.Command{
		Use:   "apply <file.yaml|file.json>",
		Short: "Create or update a tool from a definition file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := tool.LoadFile(args[0])
			if err != nil {
				return err
			}
			a, err := c.newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()
			res, err := a.reg.Save(cmd.Context(), session, d)
			if err != nil {
				return err
			}
			for _, w := range res.Warnings {
				c.log.Warn(w, "slug", d.Slug)
			}
			out := cmd.OutOrStdout()
			if res.Created {
				fmt.Fprintf(out, "created %s\n", res.Tool.Slug)
				return nil
			}
			fmt.Fprintf(out, "updated %s\n", res.Tool.Slug)
			if res.Previous != nil {
				fmt.Fprint(out, prompt.UnifiedDiff(res.Tool.Slug+" (stored)", args[0], res.Previous.SystemPrompt, res.Tool.SystemPrompt))
			}
			return nil
		},
	}

	var force bool
	rm := &cobra.Command{
		Use:   "rm <slug>",
		Short: "Move a tool to the recycle bin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()
			if force {
				err = a.reg.Remove(cmd.Context(), args[0])
			} else {
				err = a.reg.Delete(cmd.Context(), session, args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
	rm.Flags().BoolVarP(&force, "force", "f", false, "delete any tool, global ones included")

	cmd.AddCommand(ls, get, apply, rm)
	return cmd
}
