package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/cyclelog/internal/engine"
	"github.com/roach88/cyclelog/internal/model"
)

// NewSnapshotCommand creates the snapshot command group.
func NewSnapshotCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save and restore copies of all answers",
	}

	var description string
	save := &cobra.Command{
		Use:   "save <situation>",
		Short: "Save every answer under a new snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sit, err := model.ParseSituation(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid situation", err)
			}
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				id, err := e.SaveSnapshot(ctx, sit, optionalString(cmd, "description", description))
				if err != nil {
					return failed("failed to save snapshot", err)
				}
				return out.Message(map[string]int64{"id": id}, "saved snapshot #%d", id)
			})
		},
	}
	save.Flags().StringVarP(&description, "description", "d", "", "snapshot description")
	cmd.AddCommand(save)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				snaps, err := e.ListSnapshots(ctx)
				if err != nil {
					return failed("failed to read snapshots", err)
				}
				return out.Records(snaps, mapLines(snaps, snapshotLine))
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a snapshot and the answers it holds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "snapshot id")
			if err != nil {
				return err
			}
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				details, err := e.GetSnapshot(ctx, id)
				if err != nil {
					return failed("failed to read snapshot", err)
				}
				lines := append([]string{snapshotLine(details.Snapshot)}, mapLines(details.Answers, func(a model.Answer) string {
					return "  " + answerLine(a)
				})...)
				return out.Records(details, lines)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "restore <id>",
		Short: "Replace every answer with a snapshot's",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "snapshot id")
			if err != nil {
				return err
			}
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				sit, err := e.RestoreSnapshot(ctx, id)
				if err != nil {
					return failed("failed to restore snapshot", err)
				}
				return out.Message(map[string]any{"id": id, "situation": sit}, "restored snapshot #%d (situation %s)", id, sit)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "snapshot id")
			if err != nil {
				return err
			}
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				if err := e.DeleteSnapshot(ctx, id); err != nil {
					return failed("failed to delete snapshot", err)
				}
				return out.Message(map[string]int64{"id": id}, "deleted snapshot #%d", id)
			})
		},
	})
	return cmd
}
