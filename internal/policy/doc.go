// Package policy describes which situation changes are legal.
//
// A policy is a table of allowed edges between situations plus a list of
// situations that may be entered from anywhere. Policies are written in
// YAML or CUE:
//
//	strict: true
//	always: [Unconscious]
//	edges:
//	  DefiningIntent: [SelectingProblem]
//	  SelectingProblem: [Researching, Planning]
//
// Re-entering the current situation is always allowed. A strict policy makes
// the store reject illegal edges; a lenient one only logs them.
package policy
