package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/cyclelog/internal/engine"
)

// NewRestCommand creates the rest command group for unconscious periods.
func NewRestCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rest",
		Short: "Track unconscious periods between cycles",
	}

	var (
		previous int64
		reason   string
	)
	start := &cobra.Command{
		Use:   "start",
		Short: "Open an unconscious period",
		Long: `Open an unconscious period. Only one period may be open at a time;
starting a second one fails until the first is ended.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				prev := optionalID(previous)
				if prev == nil && !cmd.Flags().Changed("previous-cycle") {
					current, err := e.CurrentCycleID(ctx)
					if err != nil {
						return failed("failed to read cycles", err)
					}
					prev = current
				}
				id, err := e.StartRest(ctx, prev, optionalString(cmd, "reason", reason))
				if err != nil {
					return failed("failed to start rest", err)
				}
				return out.Message(map[string]int64{"id": id}, "started unconscious period #%d", id)
			})
		},
	}
	start.Flags().Int64Var(&previous, "previous-cycle", 0, "cycle being left (default: active cycle)")
	start.Flags().StringVar(&reason, "reason", "", "why the period started")
	cmd.AddCommand(start)

	var (
		next       int64
		exitReason string
	)
	end := &cobra.Command{
		Use:   "end [id]",
		Short: "Close an unconscious period (default: the open one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id int64
			if len(args) == 1 {
				var err error
				if id, err = parseID(args[0], "period id"); err != nil {
					return err
				}
			}
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				if id == 0 {
					open, err := e.CurrentRest(ctx)
					if err != nil {
						return failed("failed to read rest", err)
					}
					if open == nil {
						return NewExitError(ExitCommandError, "no unconscious period is open")
					}
					id = open.ID
				}
				if err := e.EndRest(ctx, id, optionalID(next), optionalString(cmd, "reason", exitReason)); err != nil {
					return failed("failed to end rest", err)
				}
				return out.Message(map[string]int64{"id": id}, "ended unconscious period #%d", id)
			})
		},
	}
	end.Flags().Int64Var(&next, "next-cycle", 0, "cycle being entered")
	end.Flags().StringVar(&exitReason, "reason", "", "why the period ended")
	cmd.AddCommand(end)

	cmd.AddCommand(&cobra.Command{
		Use:   "current",
		Short: "Show the open unconscious period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				p, err := e.CurrentRest(ctx)
				if err != nil {
					return failed("failed to read rest", err)
				}
				if p == nil {
					return out.Message(nil, "no open unconscious period")
				}
				return out.Message(p, "%s", periodLine(*p))
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List unconscious periods, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				periods, err := e.ListRests(ctx)
				if err != nil {
					return failed("failed to read rests", err)
				}
				return out.Records(periods, mapLines(periods, periodLine))
			})
		},
	})
	return cmd
}
