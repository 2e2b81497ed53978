package cli

import (
	"fmt"
	"time"

	"github.com/roach88/cyclelog/internal/model"
)

func stamp(t time.Time) string {
	return model.FormatTime(t)
}

func optStamp(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return stamp(*t)
}

func optID(v *int64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}

func optText(v *string) string {
	if v == nil {
		return "-"
	}
	return *v
}

func answerLine(a model.Answer) string {
	return fmt.Sprintf("#%d %s [%s] %s cycle=%s intent=%s problem=%s: %s",
		a.ID, stamp(a.AnsweredAt), a.Situation, a.QuestionID,
		optID(a.CycleID), optID(a.IntentID), optID(a.ProblemID), a.Text)
}

func cycleLine(c model.Cycle) string {
	return fmt.Sprintf("#%d cycle %d %s started=%s completed=%s",
		c.ID, c.Number, c.Status, stamp(c.StartedAt), optStamp(c.CompletedAt))
}

func transitionLine(tr model.StateTransition) string {
	line := fmt.Sprintf("#%d %s cycle=%s entered=%s exited=%s",
		tr.ID, tr.Situation, optID(tr.CycleID), stamp(tr.EnteredAt), optStamp(tr.ExitedAt))
	if tr.ExitedAt != nil {
		line += fmt.Sprintf(" (%dm)", model.RoundMinutes(tr.ExitedAt.Sub(tr.EnteredAt)))
	}
	return line
}

func periodLine(p model.UnconsciousPeriod) string {
	return fmt.Sprintf("#%d started=%s ended=%s previous=%s next=%s reason=%s exit=%s",
		p.ID, stamp(p.StartedAt), optStamp(p.EndedAt),
		optID(p.PreviousCycleID), optID(p.NextCycleID), optText(p.EntryReason), optText(p.ExitReason))
}

func snapshotLine(s model.Snapshot) string {
	return fmt.Sprintf("#%d %s [%s] %s", s.ID, stamp(s.SavedAt), s.CurrentSituation, optText(s.Description))
}

func contextLine(c model.CycleContext) string {
	return fmt.Sprintf("#%d cycle=%d from cycle %d answer #%d [%s] %s: %s",
		c.ID, c.CycleID, c.SourceCycleID, c.SourceAnswerID, c.Situation, c.QuestionID, c.AnswerText)
}

func counterLine(c model.TransitionCounter) string {
	return fmt.Sprintf("%s %d reset=%s", c.Key, c.Count, optStamp(c.LastResetAt))
}

func dailyLine(d model.DailyStat) string {
	return fmt.Sprintf("%s conscious=%dm unconscious=%dm", d.Date, d.ConsciousMinutes, d.UnconsciousMinutes)
}

func stateStatLine(s model.StateStat) string {
	return fmt.Sprintf("%s count=%d total=%dm avg=%dm min=%dm max=%dm",
		s.Situation, s.Count, s.TotalMinutes, s.AverageMinutes, s.MinMinutes, s.MaxMinutes)
}

func dailyStateLine(d model.DailyStateStat) string {
	return fmt.Sprintf("%s %s %dm", d.Date, d.Situation, d.Minutes)
}

func cycleAnswersLines(groups []model.CycleAnswers) []string {
	var lines []string
	for _, g := range groups {
		lines = append(lines, fmt.Sprintf("cycle %d (#%d)", g.CycleNumber, g.CycleID))
		for _, a := range g.Answers {
			lines = append(lines, "  "+answerLine(a))
		}
	}
	return lines
}

// mapLines renders each element of items with fn.
func mapLines[T any](items []T, fn func(T) string) []string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, fn(item))
	}
	return lines
}
