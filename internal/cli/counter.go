package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/cyclelog/internal/engine"
)

// NewCounterCommand creates the counter command group.
func NewCounterCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "counter",
		Short: "Inspect and reset transition counters",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List transition counters by key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				counters, err := e.ListCounters(ctx)
				if err != nil {
					return failed("failed to read counters", err)
				}
				return out.Records(counters, mapLines(counters, counterLine))
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reset <key>",
		Short: "Zero a counter, e.g. Planning->Implementing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				if err := e.ResetCounter(ctx, args[0]); err != nil {
					return failed("failed to reset counter", err)
				}
				c, err := e.Counter(ctx, args[0])
				if err != nil {
					return failed("failed to read counter", err)
				}
				return out.Message(c, "%s", counterLine(c))
			})
		},
	})
	return cmd
}
