package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/cyclelog/internal/backend"
	"github.com/roach88/cyclelog/internal/engine"
	"github.com/roach88/cyclelog/internal/store"
)

// initResult is the JSON payload of `cyclelog init`.
type initResult struct {
	WorkPath  string                `json:"work_path"`
	Migration store.MigrationReport `json:"migration"`
	Backend   backend.Status        `json:"backend"`
}

// NewInitCommand creates the init command.
func NewInitCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or upgrade the database and save it",
		Long: `Load the newest image, create missing tables and columns, and save the
result to the active backend. Safe to run repeatedly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				if err := e.Save(ctx); err != nil {
					return failed("failed to save database", err)
				}
				res := initResult{
					WorkPath:  e.WorkPath(),
					Migration: e.Migration(),
					Backend:   e.BackendStatus(ctx),
				}
				return out.Message(res, "initialized schema v%d (%d tables created, %d columns added); saving to %s",
					res.Migration.ToVersion, len(res.Migration.CreatedTables), len(res.Migration.AddedColumns), res.Backend.Active)
			})
		},
	}
}
