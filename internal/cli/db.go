package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/cyclelog/internal/engine"
)

// NewDBCommand creates the db command group.
func NewDBCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Inspect backends and manage the remote path",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Show where images are loaded from and saved to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := newSelector(opts.config).Status(contextOf(cmd))
			remote := st.RemoteURL
			if remote == "" {
				remote = "(none)"
			}
			return opts.formatter(cmd).Records(st, []string{
				fmt.Sprintf("active: %s", st.Active),
				fmt.Sprintf("remote: %s reachable=%t configured=%t path=%s", remote, st.Reachable, st.Configured, st.RemotePath),
				fmt.Sprintf("local: %s", st.LocalPath),
				fmt.Sprintf("work: %s", opts.config.Store.WorkPath),
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the remote storage path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := newSelector(opts.config).RemotePath(contextOf(cmd))
			if err != nil {
				return failed("failed to read remote path", err)
			}
			if path == nil {
				return opts.formatter(cmd).Message(map[string]any{"path": nil}, "no remote path configured")
			}
			return opts.formatter(cmd).Message(map[string]string{"path": *path}, "%s", *path)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set-path <path>",
		Short: "Set the remote storage path",
		Long: `Set the path the remote backend stores the image at. Relative paths
resolve against the server's data directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextOf(cmd)
			sel := newSelector(opts.config)
			if err := sel.SetRemotePath(ctx, args[0]); err != nil {
				return failed("failed to set remote path", err)
			}
			path, err := sel.RemotePath(ctx)
			if err != nil || path == nil {
				return failed("failed to read remote path", err)
			}
			return opts.formatter(cmd).Message(map[string]string{"path": *path}, "remote path set to %s", *path)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear-path",
		Short: "Clear the remote storage path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newSelector(opts.config).ClearRemotePath(contextOf(cmd)); err != nil {
				return failed("failed to clear remote path", err)
			}
			return opts.formatter(cmd).Message(map[string]any{"path": nil}, "remote path cleared")
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "export <file>",
		Short: "Write the current database image to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				image, err := e.Export(ctx)
				if err != nil {
					return failed("failed to export database", err)
				}
				if err := os.WriteFile(args[0], image, 0o600); err != nil {
					return WrapExitError(ExitFailure, "failed to write export", err)
				}
				return out.Message(map[string]any{"path": args[0], "bytes": len(image)}, "wrote %d bytes to %s", len(image), args[0])
			})
		},
	})
	return cmd
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
