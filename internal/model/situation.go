package model

import (
	"fmt"
	"strings"
)

// Situation is one named state of the personal workflow.
type Situation string

const (
	SituationUnconscious      Situation = "Unconscious"
	SituationDefiningIntent   Situation = "DefiningIntent"
	SituationSelectingProblem Situation = "SelectingProblem"
	SituationResearching      Situation = "Researching"
	SituationPlanning         Situation = "Planning"
	SituationImplementing     Situation = "Implementing"
	SituationVerifying        Situation = "Verifying"
	SituationReleasing        Situation = "Releasing"
	SituationReflecting       Situation = "Reflecting"
)

// Situations lists every known situation in workflow order.
var Situations = []Situation{
	SituationUnconscious,
	SituationDefiningIntent,
	SituationSelectingProblem,
	SituationResearching,
	SituationPlanning,
	SituationImplementing,
	SituationVerifying,
	SituationReleasing,
	SituationReflecting,
}

// Question id prefixes that mark intent and problem anchor answers.
const (
	IntentQuestionPrefix  = "intent"
	ProblemQuestionPrefix = "problem"
)

// Valid reports whether s is a known situation.
func (s Situation) Valid() bool {
	for _, known := range Situations {
		if s == known {
			return true
		}
	}
	return false
}

// ParseSituation returns the situation named by s.
// Matching ignores case so CLI input like "implementing" is accepted.
func ParseSituation(s string) (Situation, error) {
	for _, known := range Situations {
		if strings.EqualFold(string(known), s) {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown situation %q", s)
}

// IsIntentQuestion reports whether questionID denotes an intent answer.
func IsIntentQuestion(questionID string) bool {
	return strings.HasPrefix(questionID, IntentQuestionPrefix)
}

// IsProblemQuestion reports whether questionID denotes a problem answer.
func IsProblemQuestion(questionID string) bool {
	return strings.HasPrefix(questionID, ProblemQuestionPrefix)
}

// TransitionKey returns the counter key for the edge from -> to.
func TransitionKey(from, to Situation) string {
	return string(from) + "->" + string(to)
}
