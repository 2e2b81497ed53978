package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/cyclelog/internal/backend"
	"github.com/roach88/cyclelog/internal/config"
	"github.com/roach88/cyclelog/internal/engine"
	"github.com/roach88/cyclelog/internal/policy"
	"github.com/roach88/cyclelog/internal/store"
)

// newSelector builds the backend selector described by cfg.
func newSelector(cfg *config.Config) *backend.Selector {
	var remote backend.Remote
	if cfg.Remote.URL != "" {
		remote = backend.NewClient(cfg.Remote.URL,
			backend.WithProbeTimeout(cfg.Remote.ProbeTimeout),
			backend.WithRequestTimeout(cfg.Remote.RequestTimeout),
		)
	}
	return backend.NewSelector(remote, backend.NewLocalBlob(cfg.Local.BlobPath), nil)
}

// loadPolicy returns the configured edge policy, or the built-in workflow.
func loadPolicy(cfg *config.Config) (*policy.Policy, error) {
	p := policy.Default()
	if cfg.Policy.File != "" {
		loaded, err := policy.Load(cfg.Policy.File)
		if err != nil {
			return nil, err
		}
		p = loaded
	}
	if cfg.Policy.Strict {
		p = p.WithStrict(true)
	}
	return p, nil
}

// openEngine opens the engine described by the loaded config.
func (o *RootOptions) openEngine(ctx context.Context) (*engine.Engine, error) {
	cfg := o.config
	loc, err := cfg.Location()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	p, err := loadPolicy(cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load policy", err)
	}

	e, err := engine.Open(ctx, cfg.Store.WorkPath, newSelector(cfg),
		store.WithLocation(loc),
		store.WithPolicy(p),
	)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "failed to open store", err)
	}
	return e, nil
}

// withEngine opens the engine, runs fn and closes the engine.
func (o *RootOptions) withEngine(cmd *cobra.Command, fn func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := o.openEngine(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := e.Close(); closeErr != nil {
			slog.Error("error closing store", "error", closeErr)
		}
	}()
	return fn(ctx, e, o.formatter(cmd))
}

// parseID parses a positional row id.
func parseID(arg, name string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid %s %q: must be a positive integer", name, arg))
	}
	return id, nil
}

// optionalID maps an unset (zero) id flag to nil.
func optionalID(v int64) *int64 {
	if v <= 0 {
		return nil
	}
	return &v
}

// optionalString maps an unchanged string flag to nil.
func optionalString(cmd *cobra.Command, name, v string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}
