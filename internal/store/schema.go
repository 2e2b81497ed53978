package store

import (
	"fmt"
	"strings"
)

// currentSchemaVersion is written to PRAGMA user_version after EnsureSchema.
//
//	1 - answers, cycles (with legacy unconscious columns), transitions, snapshots
//	2 - unconscious_periods, transition_counters, cycle_context
//	3 - answer relationship columns (intent_id, problem_id, parent_id, cycle_id)
const currentSchemaVersion = 3

// column is one column of a table definition.
// decl is used for CREATE TABLE; typ alone is used for ALTER TABLE ADD
// COLUMN so that added columns default to NULL.
type column struct {
	name string
	typ  string
	decl string
}

type table struct {
	name    string
	columns []column
}

func col(name, typ string, constraints ...string) column {
	decl := name + " " + typ
	if len(constraints) > 0 {
		decl += " " + strings.Join(constraints, " ")
	}
	return column{name: name, typ: typ, decl: decl}
}

// schemaTables is the current table set. Order matters only for readability.
var schemaTables = []table{
	{
		name: "question_answers",
		columns: []column{
			col("id", "INTEGER", "PRIMARY KEY AUTOINCREMENT"),
			col("question_id", "TEXT", "NOT NULL"),
			col("answer", "TEXT", "NOT NULL"),
			col("answered_at", "TEXT", "NOT NULL"),
			col("situation", "TEXT", "NOT NULL"),
			col("intent_id", "INTEGER"),
			col("problem_id", "INTEGER"),
			col("parent_id", "INTEGER"),
			col("cycle_id", "INTEGER"),
		},
	},
	{
		name: "cycles",
		columns: []column{
			col("id", "INTEGER", "PRIMARY KEY AUTOINCREMENT"),
			col("cycle_number", "INTEGER", "NOT NULL"),
			col("started_at", "TEXT", "NOT NULL"),
			col("completed_at", "TEXT"),
			col("status", "TEXT", "NOT NULL DEFAULT 'active'"),
			// Legacy rest tracking, superseded by unconscious_periods.
			col("unconscious_entered_at", "TEXT"),
			col("unconscious_exited_at", "TEXT"),
			col("unconscious_entry_reason", "TEXT"),
		},
	},
	{
		name: "state_transitions",
		columns: []column{
			col("id", "INTEGER", "PRIMARY KEY AUTOINCREMENT"),
			col("cycle_id", "INTEGER"),
			col("situation", "TEXT", "NOT NULL"),
			col("entered_at", "TEXT", "NOT NULL"),
			col("exited_at", "TEXT"),
		},
	},
	{
		name: "unconscious_periods",
		columns: []column{
			col("id", "INTEGER", "PRIMARY KEY AUTOINCREMENT"),
			col("started_at", "TEXT", "NOT NULL"),
			col("ended_at", "TEXT"),
			col("entry_reason", "TEXT"),
			col("exit_reason", "TEXT"),
			col("previous_cycle_id", "INTEGER"),
			col("next_cycle_id", "INTEGER"),
		},
	},
	{
		name: "workflow_states",
		columns: []column{
			col("id", "INTEGER", "PRIMARY KEY AUTOINCREMENT"),
			col("current_situation", "TEXT", "NOT NULL"),
			col("saved_at", "TEXT", "NOT NULL"),
			col("description", "TEXT"),
			col("snapshot_data", "TEXT", "NOT NULL"),
		},
	},
	{
		name: "transition_counters",
		columns: []column{
			col("id", "INTEGER", "PRIMARY KEY AUTOINCREMENT"),
			col("transition_key", "TEXT", "NOT NULL"),
			col("count", "INTEGER", "NOT NULL DEFAULT 0"),
			col("last_reset_at", "TEXT"),
			col("updated_at", "TEXT", "NOT NULL"),
		},
	},
	{
		name: "cycle_context",
		columns: []column{
			col("id", "INTEGER", "PRIMARY KEY AUTOINCREMENT"),
			col("cycle_id", "INTEGER", "NOT NULL"),
			col("source_cycle_id", "INTEGER", "NOT NULL"),
			col("source_answer_id", "INTEGER", "NOT NULL"),
			col("question_id", "TEXT", "NOT NULL"),
			col("answer_text", "TEXT", "NOT NULL"),
			col("situation", "TEXT", "NOT NULL"),
			col("added_at", "TEXT", "NOT NULL"),
		},
	},
}

// schemaIndexes are applied after every table has all of its columns.
// Uniqueness lives in indexes rather than table constraints so older
// databases pick it up through migration.
var schemaIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_answers_question ON question_answers(question_id, answered_at)`,
	`CREATE INDEX IF NOT EXISTS idx_answers_situation ON question_answers(situation, answered_at)`,
	`CREATE INDEX IF NOT EXISTS idx_answers_cycle ON question_answers(cycle_id)`,
	`CREATE INDEX IF NOT EXISTS idx_answers_intent ON question_answers(intent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_answers_problem ON question_answers(problem_id)`,
	`CREATE INDEX IF NOT EXISTS idx_cycles_status ON cycles(status, cycle_number)`,
	`CREATE INDEX IF NOT EXISTS idx_transitions_cycle_open ON state_transitions(cycle_id, exited_at)`,
	`CREATE INDEX IF NOT EXISTS idx_transitions_entered ON state_transitions(entered_at)`,
	`CREATE INDEX IF NOT EXISTS idx_unconscious_ended ON unconscious_periods(ended_at)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_saved ON workflow_states(saved_at)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_transition_counters_key ON transition_counters(transition_key)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_cycle_context_source ON cycle_context(cycle_id, source_answer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_cycle_context_added ON cycle_context(cycle_id, added_at)`,
}

func (t table) createStatement() string {
	decls := make([]string, len(t.columns))
	for i, c := range t.columns {
		decls[i] = c.decl
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", t.name, strings.Join(decls, ",\n\t"))
}

// TableNames returns the names of every table in the current schema.
func TableNames() []string {
	names := make([]string, len(schemaTables))
	for i, t := range schemaTables {
		names[i] = t.name
	}
	return names
}
