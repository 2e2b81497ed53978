package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// MigrationReport lists what EnsureSchema changed.
type MigrationReport struct {
	CreatedTables []string `json:"created_tables"`
	AddedColumns  []string `json:"added_columns"`
	FromVersion   int      `json:"from_version"`
	ToVersion     int      `json:"to_version"`
}

// Changed reports whether EnsureSchema modified the database.
func (r MigrationReport) Changed() bool {
	return len(r.CreatedTables) > 0 || len(r.AddedColumns) > 0 || r.FromVersion != r.ToVersion
}

// EnsureSchema creates or additively upgrades the schema. Safe to call on
// every startup.
//
// Missing tables are created, missing columns are added (defaulting to
// NULL), and indexes are created IF NOT EXISTS. Nothing is dropped or
// renamed and no existing row is rewritten. All steps run in a single
// transaction; on failure the store stays not ready and the error carries
// CodeMigrationFailure.
func (s *Store) EnsureSchema(ctx context.Context) (*MigrationReport, error) {
	if s == nil || s.db == nil {
		return nil, &Error{Code: CodeNotInitialized, Op: "ensure schema", Message: "store is closed"}
	}
	s.ready = false

	report := &MigrationReport{ToVersion: currentSchemaVersion}
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&report.FromVersion); err != nil {
		return nil, migrationFailure("read user_version", err)
	}

	err := s.withTx(ctx, "ensure schema", func(tx *sql.Tx) error {
		for _, t := range schemaTables {
			if err := migrateTable(ctx, tx, t, report); err != nil {
				return err
			}
		}
		for _, stmt := range schemaIndexes {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return migrationFailure("create index", err)
			}
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return migrationFailure("set user_version", err)
		}
		return nil
	})
	if err != nil {
		if IsMigrationFailure(err) {
			return nil, err
		}
		return nil, migrationFailure("transaction", err)
	}

	s.ready = true
	if report.Changed() {
		slog.Info("schema migrated",
			"from_version", report.FromVersion,
			"to_version", report.ToVersion,
			"created_tables", report.CreatedTables,
			"added_columns", report.AddedColumns,
		)
	}
	return report, nil
}

// migrateTable creates t if absent, otherwise adds its missing columns.
func migrateTable(ctx context.Context, tx *sql.Tx, t table, report *MigrationReport) error {
	var name string
	err := tx.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", t.name,
	).Scan(&name)
	if err == sql.ErrNoRows {
		if _, err := tx.ExecContext(ctx, t.createStatement()); err != nil {
			return migrationFailure("create table "+t.name, err)
		}
		report.CreatedTables = append(report.CreatedTables, t.name)
		return nil
	}
	if err != nil {
		return migrationFailure("inspect table "+t.name, err)
	}

	existing, err := tableColumns(ctx, tx, t.name)
	if err != nil {
		return err
	}
	for _, c := range t.columns {
		if existing[c.name] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", t.name, c.name, c.typ)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return migrationFailure("add column "+t.name+"."+c.name, err)
		}
		report.AddedColumns = append(report.AddedColumns, t.name+"."+c.name)
	}
	return nil
}

// tableColumns returns the set of column names present in a table.
func tableColumns(ctx context.Context, q querier, tableName string) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return nil, migrationFailure("table_info "+tableName, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var cid, notNull, pk int
		var name, typ string
		var defaultValue any
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultValue, &pk); err != nil {
			return nil, migrationFailure("scan table_info "+tableName, err)
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, migrationFailure("iterate table_info "+tableName, err)
	}
	return cols, nil
}

func migrationFailure(step string, err error) *Error {
	return &Error{Code: CodeMigrationFailure, Op: "ensure schema", Message: step, Err: err}
}

// IsMigrationFailure returns true if err is a MIGRATION_FAILURE store error.
func IsMigrationFailure(err error) bool {
	return errors.Is(err, ErrMigrationFailure)
}
