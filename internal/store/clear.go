package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ClearAll deletes every row of every table. The schema and its version
// are kept, so the store stays ready.
func (s *Store) ClearAll(ctx context.Context) error {
	const op = "clear all"
	if err := s.ensureReady(op); err != nil {
		return err
	}
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		for _, name := range TableNames() {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+name); err != nil {
				return fmt.Errorf("%s: %s: %w", op, name, err)
			}
		}
		// Restart AUTOINCREMENT sequences; the table is absent until the
		// first insert into an AUTOINCREMENT table.
		var seq int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE name = 'sqlite_sequence'`).Scan(&seq)
		if err != nil {
			return fmt.Errorf("%s: sqlite_sequence: %w", op, err)
		}
		if seq > 0 {
			if _, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence`); err != nil {
				return fmt.Errorf("%s: sqlite_sequence: %w", op, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.Info("store cleared")
	return nil
}
