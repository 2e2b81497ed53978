package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/roach88/cyclelog/internal/model"
)

// DateRange bounds statistics by calendar date (inclusive, "2006-01-02").
// Empty bounds are open.
type DateRange struct {
	Start string
	End   string
}

func (r DateRange) validate(op string) error {
	for _, d := range []string{r.Start, r.End} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(model.DateLayout, d); err != nil {
			return invalidInput(op, "invalid date %q", d)
		}
	}
	if r.Start != "" && r.End != "" && r.Start > r.End {
		return invalidInput(op, "start %s is after end %s", r.Start, r.End)
	}
	return nil
}

func (r DateRange) contains(date string) bool {
	if r.Start != "" && date < r.Start {
		return false
	}
	if r.End != "" && date > r.End {
		return false
	}
	return true
}

// interval is a closed stretch of time attributed to one calendar date.
type interval struct {
	date      string
	situation model.Situation
	duration  time.Duration
}

// DailyStatistics returns conscious and unconscious minutes per date in
// ascending date order.
//
// Conscious time is every closed non-Unconscious transition, dated by its
// entry. Unconscious time comes from closed unconscious periods (dated by
// start) and from the legacy per-cycle columns, the latter only for cycles
// no period references as its previous cycle so nothing is counted twice.
func (s *Store) DailyStatistics(ctx context.Context, r DateRange) ([]model.DailyStat, error) {
	const op = "daily statistics"
	if err := s.ensureReady(op); err != nil {
		return nil, err
	}
	if err := r.validate(op); err != nil {
		return nil, err
	}

	transitions, err := s.closedTransitions(ctx, op, nil)
	if err != nil {
		return nil, err
	}
	rest, err := s.unconsciousIntervals(ctx, op)
	if err != nil {
		return nil, err
	}

	conscious := map[string]time.Duration{}
	unconscious := map[string]time.Duration{}
	for _, iv := range transitions {
		if iv.situation == model.SituationUnconscious || !r.contains(iv.date) {
			continue
		}
		conscious[iv.date] += iv.duration
	}
	for _, iv := range rest {
		if !r.contains(iv.date) {
			continue
		}
		unconscious[iv.date] += iv.duration
	}

	dates := map[string]bool{}
	for d := range conscious {
		dates[d] = true
	}
	for d := range unconscious {
		dates[d] = true
	}

	stats := make([]model.DailyStat, 0, len(dates))
	for d := range dates {
		stats = append(stats, model.DailyStat{
			Date:               d,
			ConsciousMinutes:   model.RoundMinutes(conscious[d]),
			UnconsciousMinutes: model.RoundMinutes(unconscious[d]),
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Date < stats[j].Date })
	return stats, nil
}

// StateTimeStatistics summarises closed transitions per situation, ordered
// by total minutes descending then situation name. cycleID narrows to one
// cycle when set.
func (s *Store) StateTimeStatistics(ctx context.Context, r DateRange, cycleID *int64) ([]model.StateStat, error) {
	const op = "state time statistics"
	if err := s.ensureReady(op); err != nil {
		return nil, err
	}
	if err := r.validate(op); err != nil {
		return nil, err
	}
	transitions, err := s.closedTransitions(ctx, op, cycleID)
	if err != nil {
		return nil, err
	}

	type acc struct {
		count    int64
		total    time.Duration
		min, max time.Duration
	}
	bySituation := map[model.Situation]*acc{}
	for _, iv := range transitions {
		if !r.contains(iv.date) {
			continue
		}
		a, ok := bySituation[iv.situation]
		if !ok {
			a = &acc{min: iv.duration, max: iv.duration}
			bySituation[iv.situation] = a
		}
		a.count++
		a.total += iv.duration
		a.min = min(a.min, iv.duration)
		a.max = max(a.max, iv.duration)
	}

	stats := make([]model.StateStat, 0, len(bySituation))
	for sit, a := range bySituation {
		stats = append(stats, model.StateStat{
			Situation:      sit,
			Count:          a.count,
			TotalMinutes:   model.RoundMinutes(a.total),
			AverageMinutes: model.RoundMinutes(a.total / time.Duration(a.count)),
			MinMinutes:     model.RoundMinutes(a.min),
			MaxMinutes:     model.RoundMinutes(a.max),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].TotalMinutes != stats[j].TotalMinutes {
			return stats[i].TotalMinutes > stats[j].TotalMinutes
		}
		return stats[i].Situation < stats[j].Situation
	})
	return stats, nil
}

// DailyStateStatistics returns minutes per date per situation, ordered by
// date then situation name.
func (s *Store) DailyStateStatistics(ctx context.Context, r DateRange) ([]model.DailyStateStat, error) {
	const op = "daily state statistics"
	if err := s.ensureReady(op); err != nil {
		return nil, err
	}
	if err := r.validate(op); err != nil {
		return nil, err
	}
	transitions, err := s.closedTransitions(ctx, op, nil)
	if err != nil {
		return nil, err
	}

	type key struct {
		date      string
		situation model.Situation
	}
	sums := map[key]time.Duration{}
	for _, iv := range transitions {
		if !r.contains(iv.date) {
			continue
		}
		sums[key{iv.date, iv.situation}] += iv.duration
	}

	stats := make([]model.DailyStateStat, 0, len(sums))
	for k, d := range sums {
		stats = append(stats, model.DailyStateStat{
			Date:      k.date,
			Situation: k.situation,
			Minutes:   model.RoundMinutes(d),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Date != stats[j].Date {
			return stats[i].Date < stats[j].Date
		}
		return stats[i].Situation < stats[j].Situation
	})
	return stats, nil
}

func (s *Store) dateOf(t time.Time) string {
	return t.In(s.loc).Format(model.DateLayout)
}

// closedTransitions loads every closed transition as a dated interval.
// Negative durations clamp to zero.
func (s *Store) closedTransitions(ctx context.Context, op string, cycleID *int64) ([]interval, error) {
	query := `SELECT ` + transitionColumns + ` FROM state_transitions WHERE exited_at IS NOT NULL`
	var args []any
	if cycleID != nil {
		query += ` AND cycle_id = ?`
		args = append(args, *cycleID)
	}
	query += ` ORDER BY julianday(entered_at) ASC, id ASC`

	transitions, err := readTransitions(ctx, s.db, op, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]interval, len(transitions))
	for i, t := range transitions {
		out[i] = interval{date: s.dateOf(t.EnteredAt), situation: t.Situation, duration: t.Duration()}
	}
	return out, nil
}

// unconsciousIntervals collects closed rest time from unconscious_periods
// and from legacy cycle columns not already covered by a period.
func (s *Store) unconsciousIntervals(ctx context.Context, op string) ([]interval, error) {
	var out []interval

	rows, err := s.db.QueryContext(ctx, `
		SELECT started_at, ended_at FROM unconscious_periods
		WHERE ended_at IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("%s: periods: %w", op, err)
	}
	if out, err = appendRestRows(out, rows, s.dateOf); err != nil {
		return nil, fmt.Errorf("%s: periods: %w", op, err)
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT unconscious_entered_at, unconscious_exited_at FROM cycles
		WHERE unconscious_entered_at IS NOT NULL
		  AND unconscious_exited_at IS NOT NULL
		  AND id NOT IN (
			SELECT previous_cycle_id FROM unconscious_periods
			WHERE previous_cycle_id IS NOT NULL
		  )
	`)
	if err != nil {
		return nil, fmt.Errorf("%s: legacy cycles: %w", op, err)
	}
	if out, err = appendRestRows(out, rows, s.dateOf); err != nil {
		return nil, fmt.Errorf("%s: legacy cycles: %w", op, err)
	}
	return out, nil
}

type restRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

func appendRestRows(out []interval, rows restRows, dateOf func(time.Time) string) ([]interval, error) {
	defer rows.Close()
	for rows.Next() {
		var startText, endText string
		if err := rows.Scan(&startText, &endText); err != nil {
			return nil, err
		}
		start, err := parseTime("start", startText)
		if err != nil {
			return nil, err
		}
		end, err := parseTime("end", endText)
		if err != nil {
			return nil, err
		}
		d := end.Sub(start)
		if d < 0 {
			d = 0
		}
		out = append(out, interval{date: dateOf(start), situation: model.SituationUnconscious, duration: d})
	}
	return out, rows.Err()
}
