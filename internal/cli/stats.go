package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/cyclelog/internal/engine"
	"github.com/roach88/cyclelog/internal/store"
)

// NewStatsCommand creates the stats command group.
func NewStatsCommand(opts *RootOptions) *cobra.Command {
	var r store.DateRange
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Time statistics in whole minutes",
		Long: `Time statistics over closed transitions and unconscious periods.

Dates are YYYY-MM-DD in the configured stats.timezone; both bounds are
inclusive and optional.`,
	}
	cmd.PersistentFlags().StringVar(&r.Start, "from", "", "first date, YYYY-MM-DD")
	cmd.PersistentFlags().StringVar(&r.End, "to", "", "last date, YYYY-MM-DD")

	cmd.AddCommand(&cobra.Command{
		Use:   "daily",
		Short: "Conscious and unconscious minutes per day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				days, err := e.DailyStatistics(ctx, r)
				if err != nil {
					return failed("failed to compute statistics", err)
				}
				return out.Records(days, mapLines(days, dailyLine))
			})
		},
	})

	var cycle int64
	states := &cobra.Command{
		Use:   "states",
		Short: "Count, total, average, min and max minutes per situation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				stats, err := e.StateTimeStatistics(ctx, r, optionalID(cycle))
				if err != nil {
					return failed("failed to compute statistics", err)
				}
				return out.Records(stats, mapLines(stats, stateStatLine))
			})
		},
	}
	states.Flags().Int64Var(&cycle, "cycle", 0, "only transitions in this cycle")
	cmd.AddCommand(states)

	cmd.AddCommand(&cobra.Command{
		Use:   "daily-states",
		Short: "Minutes per day per situation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				rows, err := e.DailyStateStatistics(ctx, r)
				if err != nil {
					return failed("failed to compute statistics", err)
				}
				return out.Records(rows, mapLines(rows, dailyStateLine))
			})
		},
	})
	return cmd
}
