package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/cyclelog/internal/engine"
)

// NewCycleCommand creates the cycle command group.
func NewCycleCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Manage work cycles",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Start a new cycle, completing the active one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				id, err := e.CreateCycle(ctx)
				if err != nil {
					return failed("failed to start cycle", err)
				}
				c, err := e.GetCycle(ctx, id)
				if err != nil {
					return failed("failed to read cycle", err)
				}
				return out.Message(c, "%s", cycleLine(c))
			})
		},
	})
	cmd.AddCommand(cycleIDCommand(opts, "complete", "Complete a cycle", "failed to complete cycle",
		func(ctx context.Context, e *engine.Engine, id int64) error { return e.CompleteCycle(ctx, id) }))
	cmd.AddCommand(cycleIDCommand(opts, "activate", "Make a cycle the only active one", "failed to activate cycle",
		func(ctx context.Context, e *engine.Engine, id int64) error { return e.ActivateCycle(ctx, id) }))
	cmd.AddCommand(cycleIDCommand(opts, "delete", "Delete a cycle and everything recorded in it", "failed to delete cycle",
		func(ctx context.Context, e *engine.Engine, id int64) error { return e.DeleteCycle(ctx, id) }))
	cmd.AddCommand(&cobra.Command{
		Use:   "current",
		Short: "Show the active cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				id, err := e.CurrentCycleID(ctx)
				if err != nil {
					return failed("failed to read cycles", err)
				}
				if id == nil {
					return out.Message(nil, "no active cycle")
				}
				c, err := e.GetCycle(ctx, *id)
				if err != nil {
					return failed("failed to read cycle", err)
				}
				return out.Message(c, "%s", cycleLine(c))
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List cycles, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				cycles, err := e.ListCycles(ctx)
				if err != nil {
					return failed("failed to read cycles", err)
				}
				return out.Records(cycles, mapLines(cycles, cycleLine))
			})
		},
	})
	return cmd
}

// cycleIDCommand builds a "<verb> <id>" subcommand that prints the cycle
// after run succeeds.
func cycleIDCommand(opts *RootOptions, use, short, failure string, run func(context.Context, *engine.Engine, int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "cycle id")
			if err != nil {
				return err
			}
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				if err := run(ctx, e, id); err != nil {
					return failed(failure, err)
				}
				if use == "delete" {
					return out.Message(map[string]int64{"id": id}, "deleted cycle #%d", id)
				}
				c, err := e.GetCycle(ctx, id)
				if err != nil {
					return failed("failed to read cycle", err)
				}
				return out.Message(c, "%s", cycleLine(c))
			})
		},
	}
}
