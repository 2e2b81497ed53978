package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

// Error is a policy file problem, with a position when one is known.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
	Line    int // YAML line, when Pos is not set
}

func (e *Error) Error() string {
	switch {
	case e.Pos.IsValid():
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	case e.Line > 0:
		return fmt.Sprintf("line %d: %s: %s", e.Line, e.Field, e.Message)
	case e.Field != "":
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	default:
		return e.Message
	}
}

// Load reads a policy from path. The format follows the extension:
// .cue files are evaluated with CUE, anything else is parsed as YAML.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	var p *Policy
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		p, err = ParseCUE(data, path)
	} else {
		p, err = ParseYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("load policy %s: %w", path, err)
	}
	return p, nil
}

// ParseYAML builds a policy from a YAML document.
func ParseYAML(data []byte) (*Policy, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &Error{Message: err.Error()}
	}
	var def Definition
	if err := doc.Decode(&def); err != nil {
		line := 0
		if len(doc.Content) > 0 {
			line = doc.Content[0].Line
		}
		return nil, &Error{Message: err.Error(), Line: line}
	}
	p, err := New(def)
	if err != nil {
		if pe, ok := err.(*Error); ok {
			pe.Line = yamlLine(&doc, pe.Field)
		}
		return nil, err
	}
	return p, nil
}

// yamlLine finds the line of the top-level key that owns field.
func yamlLine(doc *yaml.Node, field string) int {
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return 0
	}
	top, _, _ := strings.Cut(field, ".")
	m := doc.Content[0]
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == top {
			return m.Content[i].Line
		}
	}
	return 0
}

// ParseCUE evaluates a CUE document and builds a policy from it. filename is
// used only in positions.
func ParseCUE(data []byte, filename string) (*Policy, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, cueError(err)
	}

	var def Definition
	if sv := v.LookupPath(cue.ParsePath("strict")); sv.Exists() {
		b, err := sv.Bool()
		if err != nil {
			return nil, &Error{Field: "strict", Message: "must be a bool", Pos: sv.Pos()}
		}
		def.Strict = b
	}
	if av := v.LookupPath(cue.ParsePath("always")); av.Exists() {
		names, err := cueStrings(av, "always")
		if err != nil {
			return nil, err
		}
		def.Always = names
	}
	if ev := v.LookupPath(cue.ParsePath("edges")); ev.Exists() {
		iter, err := ev.Fields()
		if err != nil {
			return nil, &Error{Field: "edges", Message: "must be a struct", Pos: ev.Pos()}
		}
		def.Edges = map[string][]string{}
		for iter.Next() {
			from := iter.Label()
			targets, err := cueStrings(iter.Value(), "edges."+from)
			if err != nil {
				return nil, err
			}
			def.Edges[from] = targets
		}
	}

	p, err := New(def)
	if err != nil {
		if pe, ok := err.(*Error); ok {
			pe.Pos = v.LookupPath(cue.ParsePath(strings.SplitN(pe.Field, ".", 2)[0])).Pos()
		}
		return nil, err
	}
	return p, nil
}

func cueStrings(v cue.Value, field string) ([]string, error) {
	list, err := v.List()
	if err != nil {
		return nil, &Error{Field: field, Message: "must be a list of situations", Pos: v.Pos()}
	}
	var out []string
	for list.Next() {
		s, err := list.Value().String()
		if err != nil {
			return nil, &Error{Field: field, Message: "situations must be strings", Pos: list.Value().Pos()}
		}
		out = append(out, s)
	}
	return out, nil
}

// cueError keeps the first CUE error and its position.
func cueError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Field: "cue", Message: err.Error()}
	}
	first := errs[0]
	pe := &Error{Field: "cue", Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		pe.Pos = positions[0]
	}
	return pe
}
