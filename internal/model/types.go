package model

import "time"

// Answer is one user submission recorded at a situation.
// Boolean answers are stored as the literal strings "true" and "false".
type Answer struct {
	ID         int64     `json:"id"`
	QuestionID string    `json:"question_id"`
	Situation  Situation `json:"situation"`
	Text       string    `json:"answer"`
	AnsweredAt time.Time `json:"answered_at"`
	IntentID   *int64    `json:"intent_id"`
	ProblemID  *int64    `json:"problem_id"`
	ParentID   *int64    `json:"parent_id"`
	CycleID    *int64    `json:"cycle_id"`
}

// IsBoolean reports whether the answer holds a yes/no value.
func (a Answer) IsBoolean() bool {
	return IsBoolText(a.Text)
}

// BoolText renders b the way boolean answers are stored.
func BoolText(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// IsBoolText reports whether text is a stored boolean answer.
func IsBoolText(text string) bool {
	return text == "true" || text == "false"
}

// CycleStatus is the lifecycle state of a cycle.
type CycleStatus string

const (
	CycleActive    CycleStatus = "active"
	CycleCompleted CycleStatus = "completed"
)

// Cycle is one numbered pass through the workflow.
//
// The Unconscious* fields are the legacy per-cycle rest columns. New data is
// written to UnconsciousPeriod instead; the fields are kept so statistics can
// still account for older stores.
type Cycle struct {
	ID                     int64       `json:"id"`
	Number                 int64       `json:"cycle_number"`
	StartedAt              time.Time   `json:"started_at"`
	CompletedAt            *time.Time  `json:"completed_at"`
	Status                 CycleStatus `json:"status"`
	UnconsciousEnteredAt   *time.Time  `json:"unconscious_entered_at,omitempty"`
	UnconsciousExitedAt    *time.Time  `json:"unconscious_exited_at,omitempty"`
	UnconsciousEntryReason *string     `json:"unconscious_entry_reason,omitempty"`
}

// StateTransition is one contiguous interval spent in a situation.
// ExitedAt is nil while the interval is still open.
type StateTransition struct {
	ID        int64      `json:"id"`
	CycleID   *int64     `json:"cycle_id"`
	Situation Situation  `json:"situation"`
	EnteredAt time.Time  `json:"entered_at"`
	ExitedAt  *time.Time `json:"exited_at"`
}

// Duration returns the closed interval length, clamped at zero.
// Open intervals report zero.
func (t StateTransition) Duration() time.Duration {
	if t.ExitedAt == nil {
		return 0
	}
	d := t.ExitedAt.Sub(t.EnteredAt)
	if d < 0 {
		return 0
	}
	return d
}

// UnconsciousPeriod is a rest interval between cycles.
type UnconsciousPeriod struct {
	ID              int64      `json:"id"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at"`
	EntryReason     *string    `json:"entry_reason"`
	ExitReason      *string    `json:"exit_reason"`
	PreviousCycleID *int64     `json:"previous_cycle_id"`
	NextCycleID     *int64     `json:"next_cycle_id"`
}

// DurationMs returns endedAt - startedAt in milliseconds, or nil while the
// period is open.
func (p UnconsciousPeriod) DurationMs() *int64 {
	if p.EndedAt == nil {
		return nil
	}
	ms := p.EndedAt.Sub(p.StartedAt).Milliseconds()
	return &ms
}

// Snapshot is a named, restorable copy of the answer log.
type Snapshot struct {
	ID               int64     `json:"id"`
	CurrentSituation Situation `json:"current_situation"`
	SavedAt          time.Time `json:"saved_at"`
	Description      *string   `json:"description"`
	Payload          []byte    `json:"-"`
}

// SnapshotDetails is a snapshot with its payload decoded.
type SnapshotDetails struct {
	Snapshot
	Answers []Answer `json:"answers"`
}

// CycleContext is a historical answer pinned into a cycle's working context.
type CycleContext struct {
	ID             int64     `json:"id"`
	CycleID        int64     `json:"cycle_id"`
	SourceCycleID  int64     `json:"source_cycle_id"`
	SourceAnswerID int64     `json:"source_answer_id"`
	QuestionID     string    `json:"question_id"`
	AnswerText     string    `json:"answer_text"`
	Situation      Situation `json:"situation"`
	AddedAt        time.Time `json:"added_at"`
}

// CycleAnswers groups the answers recorded in one cycle.
type CycleAnswers struct {
	CycleID     int64    `json:"cycle_id"`
	CycleNumber int64    `json:"cycle_number"`
	Answers     []Answer `json:"answers"`
}

// TransitionCounter counts firings of one situation-to-situation edge.
type TransitionCounter struct {
	Key         string     `json:"transition_key"`
	Count       int64      `json:"count"`
	LastResetAt *time.Time `json:"last_reset_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// DailyStat is one row of the per-day conscious/unconscious rollup.
type DailyStat struct {
	Date               string `json:"date"`
	ConsciousMinutes   int64  `json:"conscious_minutes"`
	UnconsciousMinutes int64  `json:"unconscious_minutes"`
}

// StateStat summarises closed intervals for one situation.
type StateStat struct {
	Situation      Situation `json:"situation"`
	Count          int64     `json:"count"`
	TotalMinutes   int64     `json:"total_minutes"`
	AverageMinutes int64     `json:"average_minutes"`
	MinMinutes     int64     `json:"min_minutes"`
	MaxMinutes     int64     `json:"max_minutes"`
}

// DailyStateStat is minutes spent in one situation on one date.
type DailyStateStat struct {
	Date      string    `json:"date"`
	Situation Situation `json:"situation"`
	Minutes   int64     `json:"minutes"`
}
