package harness

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/cyclelog/internal/engine"
	"github.com/roach88/cyclelog/internal/model"
	"github.com/roach88/cyclelog/internal/store"
)

// actionFunc runs one named engine call. The returned map becomes the
// completion result; nil pointers are left out of it.
type actionFunc func(ctx context.Context, e *engine.Engine, a *args) (map[string]any, error)

// actions maps scenario action names to engine calls. Each reads its
// arguments first and returns a.err before touching the engine.
var actions = map[string]actionFunc{
	"Cycle.create": func(ctx context.Context, e *engine.Engine, a *args) (map[string]any, error) {
		id, err := e.CreateCycle(ctx)
		return idResult(id), err
	},
	"Cycle.complete": func(ctx context.Context, e *engine.Engine, a *args) (map[string]any, error) {
		id := a.id("id")
		if a.err != nil {
			return nil, a.err
		}
		return nil, e.CompleteCycle(ctx, id)
	},
	"Cycle.activate": func(ctx context.Context, e *engine.Engine, a *args) (map[string]any, error) {
		id := a.id("id")
		if a.err != nil {
			return nil, a.err
		}
		return nil, e.ActivateCycle(ctx, id)
	},
	"Cycle.delete": func(ctx context.Context, e *engine.Engine, a *args) (map[string]any, error) {
		id := a.id("id")
		if a.err != nil {
			return nil, a.err
		}
		return nil, e.DeleteCycle(ctx, id)
	},

	"Answer.record": func(ctx context.Context, e *engine.Engine, a *args) (map[string]any, error) {
		in := store.AnswerInput{
			QuestionID: a.str("question"),
			Situation:  model.Situation(a.str("situation")),
			Text:       a.str("text"),
			CycleID:    a.optID("cycle"),
			Links: store.Links{
				IntentID:  a.optID("intent"),
				ProblemID: a.optID("problem"),
				ParentID:  a.optID("parent"),
			},
		}
		if a.err != nil {
			return nil, a.err
		}
		id, err := e.RecordAnswer(ctx, in)
		if err != nil {
			return nil, err
		}
		answer, err := e.GetAnswer(ctx, id)
		if err != nil {
			return nil, err
		}
		res := idResult(id)
		putID(res, "cycle_id", answer.CycleID)
		putID(res, "intent_id", answer.IntentID)
		putID(res, "problem_id", answer.ProblemID)
		putID(res, "parent_id", answer.ParentID)
		return res, nil
	},
	"Answer.edit": func(ctx context.Context, e *engine.Engine, a *args) (map[string]any, error) {
		id, text := a.id("id"), a.str("text")
		if a.err != nil {
			return nil, a.err
		}
		return nil, e.EditAnswer(ctx, id, text)
	},
	"Answer.delete": func(ctx context.Context, e *engine.Engine, a *args) (map[string]any, error) {
		id := a.id("id")
		if a.err != nil {
			return nil, a.err
		}
		return nil, e.DeleteAnswer(ctx, id)
	},

	"State.enter": func(ctx context.Context, e *engine.Engine, a *args) (map[string]any, error) {
		sit, cycle := model.Situation(a.str("situation")), a.optID("cycle")
		if a.err != nil {
			return nil, a.err
		}
		id, err := e.EnterState(ctx, sit, cycle)
		return idResult(id), err
	},
	"State.exit": func(ctx context.Context, e *engine.Engine, a *args) (map[string]any, error) {
		sit, cycle := model.Situation(a.str("situation")), a.optID("cycle")
		if a.err != nil {
			return nil, a.err
		}
		closed, err := e.ExitState(ctx, sit, cycle)
		return map[string]any{"closed": closed}, err
	},
	"Counter.reset": func(ctx context.Context, e *engine.Engine, a *args) (map[string]any, error) {
		key := a.str("key")
		if a.err != nil {
			return nil, a.err
		}
		return nil, e.ResetCounter(ctx, key)
	},

	"Rest.start": func(ctx context.Context, e *engine.Engine, a *args) (map[string]any, error) {
		previous, reason := a.optID("previous_cycle"), a.optStr("reason")
		if a.err != nil {
			return nil, a.err
		}
		id, err := e.StartRest(ctx, previous, reason)
		return idResult(id), err
	},
	"Rest.end": func(ctx context.Context, e *engine.Engine, a *args) (map[string]any, error) {
		id, next, reason := a.id("id"), a.optID("next_cycle"), a.optStr("reason")
		if a.err != nil {
			return nil, a.err
		}
		return nil, e.EndRest(ctx, id, next, reason)
	},

	"Snapshot.save": func(ctx context.Context, e *engine.Engine, a *args) (map[string]any, error) {
		sit, description := model.Situation(a.str("situation")), a.optStr("description")
		if a.err != nil {
			return nil, a.err
		}
		id, err := e.SaveSnapshot(ctx, sit, description)
		return idResult(id), err
	},
	"Snapshot.restore": func(ctx context.Context, e *engine.Engine, a *args) (map[string]any, error) {
		id := a.id("id")
		if a.err != nil {
			return nil, a.err
		}
		sit, err := e.RestoreSnapshot(ctx, id)
		return map[string]any{"situation": string(sit)}, err
	},
	"Snapshot.delete": func(ctx context.Context, e *engine.Engine, a *args) (map[string]any, error) {
		id := a.id("id")
		if a.err != nil {
			return nil, a.err
		}
		return nil, e.DeleteSnapshot(ctx, id)
	},

	"Context.pin": func(ctx context.Context, e *engine.Engine, a *args) (map[string]any, error) {
		cycle, answer := a.id("cycle"), a.id("answer")
		if a.err != nil {
			return nil, a.err
		}
		id, err := e.PinAnswer(ctx, cycle, answer)
		return idResult(id), err
	},
	"Context.remove": func(ctx context.Context, e *engine.Engine, a *args) (map[string]any, error) {
		id := a.id("id")
		if a.err != nil {
			return nil, a.err
		}
		return nil, e.RemoveContext(ctx, id)
	},
}

// ActionNames lists every action a scenario may invoke, sorted.
func ActionNames() []string {
	names := make([]string, 0, len(actions))
	for name := range actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func idResult(id int64) map[string]any {
	return map[string]any{"id": id}
}

func putID(m map[string]any, key string, v *int64) {
	if v != nil {
		m[key] = *v
	}
}

// args reads typed values out of a step's YAML arguments. The first
// missing or mistyped argument is kept in err.
type args struct {
	values map[string]any
	err    error
}

func (a *args) fail(format string, v ...any) {
	if a.err == nil {
		a.err = fmt.Errorf(format, v...)
	}
}

func (a *args) str(key string) string {
	v, ok := a.values[key]
	if !ok {
		a.fail("missing argument %q", key)
		return ""
	}
	s, ok := v.(string)
	if !ok {
		a.fail("argument %q must be a string, got %T", key, v)
	}
	return s
}

func (a *args) optStr(key string) *string {
	if v, ok := a.values[key]; !ok || v == nil {
		return nil
	}
	s := a.str(key)
	return &s
}

func (a *args) id(key string) int64 {
	v, ok := a.values[key]
	if !ok {
		a.fail("missing argument %q", key)
		return 0
	}
	n, ok := toInt64(v)
	if !ok {
		a.fail("argument %q must be an integer, got %T", key, v)
	}
	return n
}

func (a *args) optID(key string) *int64 {
	if v, ok := a.values[key]; !ok || v == nil {
		return nil
	}
	n := a.id(key)
	return &n
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}
