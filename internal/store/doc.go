// Package store provides the SQLite-backed working database for cyclelog.
//
// The store holds every entity of the workflow log:
//   - question_answers: append-only answer log, linked to intent/problem anchors
//   - cycles: numbered passes through the workflow, at most one active
//   - state_transitions: enter/exit intervals per situation per cycle
//   - unconscious_periods: rest intervals between cycles
//   - workflow_states: immutable snapshots of the answer log
//   - transition_counters: per-edge firing counts
//   - cycle_context: historical answers pinned into a cycle
//
// # Lifecycle
//
// Open only connects to the database file. EnsureSchema must succeed before
// any other operation; until then every call fails with ErrNotInitialized.
// EnsureSchema is additive: it creates missing tables, columns and indexes
// and never drops, renames or rewrites anything.
//
// # Images
//
// The whole database is persisted as one byte image (Export / WriteImage).
// The engine loads an image into the working file at startup and exports a
// fresh image after every mutation.
//
// # Ordering
//
// "Most recent" always means ORDER BY julianday(<timestamp>) DESC, id DESC:
// timestamps first, insertion order as the tie-break. Ordering goes through
// julianday because rows written by older tools may carry other RFC 3339
// precisions or offsets, which do not sort correctly as text.
//
// # Database Configuration
//
//   - WAL mode
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - a single connection (single writer)
package store
