package policy

import (
	"fmt"
	"sort"

	"github.com/roach88/cyclelog/internal/model"
)

// Policy is an allowed-edge table. The zero value allows nothing but
// self-transitions; use New, Default or Load.
type Policy struct {
	edges  map[model.Situation]map[model.Situation]bool
	always map[model.Situation]bool
	strict bool
}

// Edge is one allowed move.
type Edge struct {
	From model.Situation `json:"from"`
	To   model.Situation `json:"to"`
}

// Definition is the serialized form of a policy, shared by the YAML and
// CUE loaders.
type Definition struct {
	Strict bool                `yaml:"strict" json:"strict"`
	Always []string            `yaml:"always" json:"always"`
	Edges  map[string][]string `yaml:"edges" json:"edges"`
}

// New builds a policy from a definition, rejecting unknown situations.
func New(def Definition) (*Policy, error) {
	p := &Policy{
		edges:  make(map[model.Situation]map[model.Situation]bool),
		always: make(map[model.Situation]bool),
		strict: def.Strict,
	}
	for _, name := range def.Always {
		sit, err := parse("always", name)
		if err != nil {
			return nil, err
		}
		p.always[sit] = true
	}
	for fromName, targets := range def.Edges {
		from, err := parse("edges", fromName)
		if err != nil {
			return nil, err
		}
		if p.edges[from] == nil {
			p.edges[from] = make(map[model.Situation]bool)
		}
		for _, toName := range targets {
			to, err := parse("edges."+fromName, toName)
			if err != nil {
				return nil, err
			}
			p.edges[from][to] = true
		}
	}
	return p, nil
}

func parse(field, name string) (model.Situation, error) {
	sit := model.Situation(name)
	if !sit.Valid() {
		return "", &Error{Field: field, Message: fmt.Sprintf("unknown situation %q", name)}
	}
	return sit, nil
}

// Default returns the lenient workflow policy: the situations in order,
// Reflecting back to DefiningIntent, Verifying back to Implementing, and
// Unconscious reachable from everywhere.
func Default() *Policy {
	def := Definition{
		Always: []string{string(model.SituationUnconscious)},
		Edges:  map[string][]string{},
	}
	order := model.Situations
	for i := 0; i+1 < len(order); i++ {
		def.Edges[string(order[i])] = append(def.Edges[string(order[i])], string(order[i+1]))
	}
	def.Edges[string(model.SituationReflecting)] = []string{string(model.SituationDefiningIntent)}
	def.Edges[string(model.SituationVerifying)] = append(def.Edges[string(model.SituationVerifying)], string(model.SituationImplementing))

	p, err := New(def)
	if err != nil {
		panic(err) // built from model.Situations
	}
	return p
}

// Allows reports whether moving from -> to is legal.
func (p *Policy) Allows(from, to model.Situation) bool {
	if from == to || p.always[to] {
		return true
	}
	return p.edges[from][to]
}

// Strict reports whether illegal edges are rejected rather than logged.
func (p *Policy) Strict() bool {
	return p.strict
}

// WithStrict returns a copy of p with strictness overridden.
func (p *Policy) WithStrict(strict bool) *Policy {
	cp := *p
	cp.strict = strict
	return &cp
}

// Edges lists every explicit edge, sorted by workflow order. Edges implied
// by the always list are not expanded.
func (p *Policy) Edges() []Edge {
	var out []Edge
	for from, targets := range p.edges {
		for to := range targets {
			out = append(out, Edge{From: from, To: to})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return rank(out[i].From) < rank(out[j].From)
		}
		return rank(out[i].To) < rank(out[j].To)
	})
	return out
}

// Always lists the situations enterable from anywhere, in workflow order.
func (p *Policy) Always() []model.Situation {
	var out []model.Situation
	for _, sit := range model.Situations {
		if p.always[sit] {
			out = append(out, sit)
		}
	}
	return out
}

func rank(s model.Situation) int {
	for i, known := range model.Situations {
		if known == s {
			return i
		}
	}
	return len(model.Situations)
}
