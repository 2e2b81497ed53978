package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/cyclelog/internal/engine"
	"github.com/roach88/cyclelog/internal/model"
	"github.com/roach88/cyclelog/internal/store"
)

// NewStateCommand creates the state command group.
func NewStateCommand(opts *RootOptions) *cobra.Command {
	var cycle int64
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Track entering and leaving situations",
	}
	cmd.PersistentFlags().Int64Var(&cycle, "cycle", 0, "cycle id (default: active cycle)")

	cmd.AddCommand(&cobra.Command{
		Use:   "enter <situation>",
		Short: "Enter a situation, closing the open one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sit, err := model.ParseSituation(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid situation", err)
			}
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				if _, err := e.EnterState(ctx, sit, optionalID(cycle)); err != nil {
					return failed("failed to enter state", err)
				}
				tr, err := e.CurrentState(ctx, optionalID(cycle))
				if err != nil {
					return failed("failed to read state", err)
				}
				return out.Message(tr, "%s", transitionLine(*tr))
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "exit <situation>",
		Short: "Leave a situation without entering another",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sit, err := model.ParseSituation(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid situation", err)
			}
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				closed, err := e.ExitState(ctx, sit, optionalID(cycle))
				if err != nil {
					return failed("failed to exit state", err)
				}
				if !closed {
					return out.Message(map[string]bool{"closed": false}, "%s was not open", sit)
				}
				return out.Message(map[string]bool{"closed": true}, "left %s", sit)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "current",
		Short: "Show the open situation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				tr, err := e.CurrentState(ctx, optionalID(cycle))
				if err != nil {
					return failed("failed to read state", err)
				}
				if tr == nil {
					return out.Message(nil, "no open situation")
				}
				return out.Message(tr, "%s", transitionLine(*tr))
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List transitions in entry order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				transitions, err := e.ListTransitions(ctx, store.TransitionFilter{CycleID: optionalID(cycle)})
				if err != nil {
					return failed("failed to read transitions", err)
				}
				return out.Records(transitions, mapLines(transitions, transitionLine))
			})
		},
	})
	return cmd
}
