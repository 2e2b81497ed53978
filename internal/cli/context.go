package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/cyclelog/internal/engine"
)

// NewContextCommand creates the context command group.
func NewContextCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Pin answers from earlier cycles into a cycle",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <cycle-id> <answer-id>",
		Short: "Pin an answer into a cycle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cycleID, err := parseID(args[0], "cycle id")
			if err != nil {
				return err
			}
			answerID, err := parseID(args[1], "answer id")
			if err != nil {
				return err
			}
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				id, err := e.PinAnswer(ctx, cycleID, answerID)
				if err != nil {
					return failed("failed to pin answer", err)
				}
				return out.Message(map[string]int64{"id": id}, "pinned answer #%d into cycle #%d (context #%d)", answerID, cycleID, id)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove <id>",
		Short: "Unpin a context row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "context id")
			if err != nil {
				return err
			}
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				if err := e.RemoveContext(ctx, id); err != nil {
					return failed("failed to remove context", err)
				}
				return out.Message(map[string]int64{"id": id}, "removed context #%d", id)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list <cycle-id>",
		Short: "List answers pinned into a cycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cycleID, err := parseID(args[0], "cycle id")
			if err != nil {
				return err
			}
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				rows, err := e.GetContext(ctx, cycleID)
				if err != nil {
					return failed("failed to read context", err)
				}
				return out.Records(rows, mapLines(rows, contextLine))
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "previous <cycle-id>",
		Short: "List text answers from every other cycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cycleID, err := parseID(args[0], "cycle id")
			if err != nil {
				return err
			}
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				groups, err := e.PreviousCyclesAnswers(ctx, cycleID)
				if err != nil {
					return failed("failed to read answers", err)
				}
				return out.Records(groups, cycleAnswersLines(groups))
			})
		},
	})
	return cmd
}
