package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/cyclelog/internal/backend"
	"github.com/roach88/cyclelog/internal/store"
)

// Engine composes the store and the backend selector.
type Engine struct {
	mu       sync.Mutex
	store    *store.Store
	selector *backend.Selector
	workPath string
	report   *store.MigrationReport
	closed   bool
}

// Open loads the current image through sel, writes it to workPath and opens
// the store there with opts. A failed schema upgrade closes the store and
// returns the migration error; the engine does not start on a broken schema.
//
// When the schema had to be created or upgraded the result is saved right
// away so the backends hold a current image.
func Open(ctx context.Context, workPath string, sel *backend.Selector, opts ...store.Option) (*Engine, error) {
	if workPath == "" {
		return nil, fmt.Errorf("open engine: work path is empty")
	}
	if sel == nil {
		return nil, fmt.Errorf("open engine: selector is nil")
	}

	image, err := sel.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("open engine: load image: %w", err)
	}
	if err := store.WriteImage(workPath, image); err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}

	st, err := store.Open(workPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}
	report, err := st.EnsureSchema(ctx)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open engine: %w", err)
	}

	e := &Engine{store: st, selector: sel, workPath: workPath, report: report}
	slog.Debug("engine opened", "work_path", workPath, "image_bytes", len(image), "schema_changed", report.Changed())

	if len(image) == 0 || report.Changed() {
		if err := e.persist(ctx, "open"); err != nil {
			st.Close()
			return nil, err
		}
	}
	return e, nil
}

// Close closes the working database. The last image has already been
// saved by the mutation that produced it.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.store.Close()
}

// Migration returns what the schema upgrade at Open changed.
func (e *Engine) Migration() store.MigrationReport {
	return *e.report
}

// WorkPath returns the working database file path.
func (e *Engine) WorkPath() string {
	return e.workPath
}

// persist exports the image and hands it to the selector. Callers hold mu.
func (e *Engine) persist(ctx context.Context, op string) error {
	image, err := e.store.Export(ctx)
	if err != nil {
		return &PersistError{Op: op, Err: err}
	}
	if err := e.selector.Save(ctx, image); err != nil {
		return &PersistError{Op: op, Err: err}
	}
	return nil
}

// mutate runs fn under the lock and saves the image when fn succeeds.
func (e *Engine) mutate(ctx context.Context, op string, fn func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if err := fn(); err != nil {
		return err
	}
	return e.persist(ctx, op)
}

// view runs fn under the lock without saving.
func (e *Engine) view(fn func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	return fn()
}

// Save forces a full image save.
func (e *Engine) Save(ctx context.Context) error {
	return e.mutate(ctx, "save", func() error { return nil })
}

// Export returns the current image without saving it anywhere.
func (e *Engine) Export(ctx context.Context) ([]byte, error) {
	var image []byte
	err := e.view(func() error {
		var err error
		image, err = e.store.Export(ctx)
		return err
	})
	return image, err
}

// ClearAll wipes every table and saves the empty image.
func (e *Engine) ClearAll(ctx context.Context) error {
	return e.mutate(ctx, "clear all", func() error {
		return e.store.ClearAll(ctx)
	})
}

// BackendStatus reports which backend images currently go to.
func (e *Engine) BackendStatus(ctx context.Context) backend.Status {
	return e.selector.Status(ctx)
}
