package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/cyclelog/internal/engine"
	"github.com/roach88/cyclelog/internal/model"
	"github.com/roach88/cyclelog/internal/store"
)

// NewAnswerCommand creates the answer command group.
func NewAnswerCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "answer",
		Short: "Record and query answers",
	}
	cmd.AddCommand(newAnswerRecordCommand(opts))
	cmd.AddCommand(newAnswerEditCommand(opts))
	cmd.AddCommand(newAnswerDeleteCommand(opts))
	cmd.AddCommand(newAnswerLatestCommand(opts))
	cmd.AddCommand(newAnswerHistoryCommand(opts))
	cmd.AddCommand(newAnswerListCommand(opts))
	cmd.AddCommand(newAnswerRelatedCommand(opts))
	return cmd
}

func newAnswerRecordCommand(opts *RootOptions) *cobra.Command {
	var (
		cycle, intent, problem, parent int64
		at                             string
	)
	cmd := &cobra.Command{
		Use:   "record <question-id> <situation> <text>",
		Short: "Record an answer",
		Long: `Record an answer to a question in a situation.

Intent and problem links are resolved from the most recent intent and problem
answers unless --intent or --problem is given. The answer joins the active
cycle unless --cycle is given.

Example:
  cyclelog answer record intent-goal DefiningIntent "ship the importer"
  cyclelog answer record notes Implementing "parser done" --parent 12`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			situation, err := model.ParseSituation(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid situation", err)
			}
			in := store.AnswerInput{
				QuestionID: args[0],
				Situation:  situation,
				Text:       args[2],
				CycleID:    optionalID(cycle),
				Links: store.Links{
					IntentID:  optionalID(intent),
					ProblemID: optionalID(problem),
					ParentID:  optionalID(parent),
				},
			}
			if at != "" {
				in.AnsweredAt, err = model.ParseTime(at)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid --at", err)
				}
			}

			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				id, err := e.RecordAnswer(ctx, in)
				if err != nil {
					return failed("failed to record answer", err)
				}
				a, err := e.GetAnswer(ctx, id)
				if err != nil {
					return failed("failed to read answer", err)
				}
				return out.Message(a, "%s", answerLine(a))
			})
		},
	}
	cmd.Flags().Int64Var(&cycle, "cycle", 0, "cycle id (default: active cycle)")
	cmd.Flags().Int64Var(&intent, "intent", 0, "intent answer id (default: active intent)")
	cmd.Flags().Int64Var(&problem, "problem", 0, "problem answer id (default: active problem)")
	cmd.Flags().Int64Var(&parent, "parent", 0, "parent answer id")
	cmd.Flags().StringVar(&at, "at", "", "answer time, RFC 3339 (default: now)")
	return cmd
}

func newAnswerEditCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id> <text>",
		Short: "Replace an answer's text",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "answer id")
			if err != nil {
				return err
			}
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				if err := e.EditAnswer(ctx, id, args[1]); err != nil {
					return failed("failed to edit answer", err)
				}
				return out.Message(map[string]int64{"id": id}, "edited answer #%d", id)
			})
		},
	}
}

func newAnswerDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "answer id")
			if err != nil {
				return err
			}
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				if err := e.DeleteAnswer(ctx, id); err != nil {
					return failed("failed to delete answer", err)
				}
				return out.Message(map[string]int64{"id": id}, "deleted answer #%d", id)
			})
		},
	}
}

func newAnswerLatestCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "latest <question-id>",
		Short: "Show the most recent answer to a question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				a, err := e.LatestAnswer(ctx, args[0])
				if err != nil {
					return failed("failed to read answer", err)
				}
				return out.Message(a, "%s", answerLine(a))
			})
		},
	}
}

func newAnswerHistoryCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <question-id>",
		Short: "List every answer to a question, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				answers, err := e.AnswerHistory(ctx, args[0])
				if err != nil {
					return failed("failed to read answers", err)
				}
				return out.Records(answers, mapLines(answers, answerLine))
			})
		},
	}
}

func newAnswerListCommand(opts *RootOptions) *cobra.Command {
	var (
		situation string
		cycle     int64
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List answers, optionally by situation or cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var sit model.Situation
			if situation != "" {
				var err error
				if sit, err = model.ParseSituation(situation); err != nil {
					return WrapExitError(ExitCommandError, "invalid situation", err)
				}
			}
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				var (
					answers []model.Answer
					err     error
				)
				switch {
				case sit != "":
					answers, err = e.AnswersBySituation(ctx, sit, optionalID(cycle))
				case cycle > 0:
					answers, err = e.AnswersByCycle(ctx, cycle)
				default:
					answers, err = e.ListAnswers(ctx)
				}
				if err != nil {
					return failed("failed to read answers", err)
				}
				return out.Records(answers, mapLines(answers, answerLine))
			})
		},
	}
	cmd.Flags().StringVar(&situation, "situation", "", "only answers recorded in this situation")
	cmd.Flags().Int64Var(&cycle, "cycle", 0, "only answers in this cycle")
	return cmd
}

func newAnswerRelatedCommand(opts *RootOptions) *cobra.Command {
	var intent, problem int64
	cmd := &cobra.Command{
		Use:   "related",
		Short: "Show the active intent and problem, or answers linked to one",
		Long: `Without flags, show the intent and problem new answers will link to.
With --intent or --problem, list the answers linked to that anchor.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if intent > 0 && problem > 0 {
				return NewExitError(ExitCommandError, "use only one of --intent and --problem")
			}
			return opts.withEngine(cmd, func(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
				switch {
				case intent > 0:
					answers, err := e.AnswersByIntent(ctx, intent)
					if err != nil {
						return failed("failed to read answers", err)
					}
					return out.Records(answers, mapLines(answers, answerLine))
				case problem > 0:
					answers, err := e.AnswersByProblem(ctx, problem)
					if err != nil {
						return failed("failed to read answers", err)
					}
					return out.Records(answers, mapLines(answers, answerLine))
				}
				return showActiveAnchors(ctx, e, out)
			})
		},
	}
	cmd.Flags().Int64Var(&intent, "intent", 0, "list answers linked to this intent")
	cmd.Flags().Int64Var(&problem, "problem", 0, "list answers linked to this problem")
	return cmd
}

func showActiveAnchors(ctx context.Context, e *engine.Engine, out *OutputFormatter) error {
	anchors := map[string]*model.Answer{}
	var lines []string
	for _, anchor := range []struct {
		name string
		get  func(context.Context) (model.Answer, error)
	}{
		{"intent", e.ActiveIntent},
		{"problem", e.ActiveProblem},
	} {
		a, err := anchor.get(ctx)
		switch {
		case store.IsNotFound(err):
			anchors[anchor.name] = nil
			lines = append(lines, fmt.Sprintf("%s: -", anchor.name))
		case err != nil:
			return failed("failed to read active "+anchor.name, err)
		default:
			anchors[anchor.name] = &a
			lines = append(lines, fmt.Sprintf("%s: %s", anchor.name, answerLine(a)))
		}
	}
	return out.Records(anchors, lines)
}
