package engine

import "context"

// query runs a read under the engine lock.
func query[T any](e *Engine, fn func() (T, error)) (T, error) {
	var out T
	err := e.view(func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}

// change runs a mutation that yields a value and saves the image.
func change[T any](ctx context.Context, e *Engine, op string, fn func() (T, error)) (T, error) {
	var out T
	err := e.mutate(ctx, op, func() error {
		var err error
		out, err = fn()
		return err
	})
	if err != nil && !IsPersistError(err) {
		var zero T
		return zero, err
	}
	return out, err
}
