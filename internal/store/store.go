package store

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/cyclelog/internal/model"
)

// sqliteHeader is the magic string every SQLite database file starts with.
var sqliteHeader = []byte("SQLite format 3\x00")

// EdgePolicy decides whether moving between two situations is allowed.
// A nil policy allows every edge.
type EdgePolicy interface {
	Allows(from, to model.Situation) bool
	Strict() bool
}

// Store is the working database. It is not safe for concurrent mutation;
// callers serialize access (the engine holds a lock around every call).
type Store struct {
	db     *sql.DB
	path   string
	ready  bool
	now    func() time.Time
	loc    *time.Location
	policy EdgePolicy
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the wall clock used for generated timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the time zone used to derive calendar dates in statistics.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithPolicy installs an edge policy consulted by RecordStateEntry.
func WithPolicy(p EdgePolicy) Option {
	return func(s *Store) {
		s.policy = p
	}
}

// Open connects to the SQLite database at path, creating the file if needed.
// The schema is not touched; call EnsureSchema before using the store.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	s := &Store{
		db:   db,
		path: path,
		now:  time.Now,
		loc:  time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	s.ready = false
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the working database file path.
func (s *Store) Path() string {
	return s.path
}

// Ready reports whether EnsureSchema has succeeded.
func (s *Store) Ready() bool {
	return s.ready
}

// Export returns a consistent byte image of the whole database.
// VACUUM INTO writes a compacted copy, so pending WAL frames are included.
func (s *Store) Export(ctx context.Context) ([]byte, error) {
	if err := s.ensureReady("export"); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".cyclelog-export-*.db")
	if err != nil {
		return nil, fmt.Errorf("export: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	// VACUUM INTO refuses to overwrite an existing file
	os.Remove(tmpPath)
	defer os.Remove(tmpPath)

	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", tmpPath); err != nil {
		return nil, fmt.Errorf("export: vacuum into: %w", err)
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("export: read image: %w", err)
	}
	return data, nil
}

// WriteImage replaces the database file at path with image.
// An empty image leaves no file behind, so the next Open starts fresh.
// The store at path must be closed before calling WriteImage.
func WriteImage(path string, image []byte) error {
	if len(image) > 0 && !bytes.HasPrefix(image, sqliteHeader) {
		return &Error{Code: CodeSerializationFailure, Op: "write image", Message: "image is not a SQLite database"}
	}

	for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
		if err := os.Remove(path + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("write image: remove %s: %w", path+suffix, err)
		}
	}
	if len(image) == 0 {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write image: create directory: %w", err)
	}
	if err := os.WriteFile(path, image, 0o600); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

func (s *Store) ensureReady(op string) error {
	if s == nil || s.db == nil || !s.ready {
		return &Error{Code: CodeNotInitialized, Op: op, Message: "store not initialized"}
	}
	return nil
}

func (s *Store) timestamp() time.Time {
	return model.Truncate(s.now())
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn in a transaction, committing only if fn returns nil.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}
