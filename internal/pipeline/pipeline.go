// Package pipeline orchestrates one question end to end: route, build or
// generate SQL, execute, and synthesize a grounded answer.
//
// The flow is a small state machine. CLARIFY and REFUSE terminate after
// routing. A routed query prefers the deterministic template; template
// execution failures are fatal because the SQL is ours. Freeform SQL gets
// exactly one model-driven repair after an execution failure, then gives up.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tabularqa/tabularqa/internal/format"
	"github.com/tabularqa/tabularqa/internal/freeform"
	"github.com/tabularqa/tabularqa/internal/observability"
	"github.com/tabularqa/tabularqa/internal/plan"
	"github.com/tabularqa/tabularqa/internal/router"
	"github.com/tabularqa/tabularqa/internal/sqlbuild"
	"github.com/tabularqa/tabularqa/internal/sqlrun"
	"github.com/tabularqa/tabularqa/internal/synth"
)

// Mode records which path produced the executed SQL.
type Mode string

const (
	ModeTemplate Mode = "template"
	ModeFreeform Mode = "freeform"
)

// Response is the outcome of one question.
type Response struct {
	Action plan.Action `json:"action"`
	Answer string      `json:"answer"`

	Intent   plan.Intent    `json:"intent,omitempty"`
	Mode     Mode           `json:"mode,omitempty"`
	SQL      string         `json:"sql,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
	Table    string         `json:"table,omitempty"`
	RowCount int            `json:"row_count"`

	ClarifyingQuestion string   `json:"clarifying_question,omitempty"`
	MissingFields      []string `json:"missing_fields,omitempty"`
	RefusalMessage     string   `json:"refusal_message,omitempty"`

	Repaired bool `json:"repaired"`
	Grounded bool `json:"grounded"`
}

// Executor runs validated SQL. Satisfied by *sqlrun.Agent.
type Executor interface {
	Run(ctx context.Context, sql string, params map[string]any) (*sqlrun.Result, error)
}

// Pipeline wires the stages together.
type Pipeline struct {
	router   *router.Router
	freeform *freeform.Generator
	executor Executor
	synth    *synth.Synthesizer
	logger   *slog.Logger
}

func New(r *router.Router, gen *freeform.Generator, exec Executor, s *synth.Synthesizer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{router: r, freeform: gen, executor: exec, synth: s, logger: logger}
}

// Ask answers question within sessionID.
func (p *Pipeline) Ask(ctx context.Context, sessionID, question string) (*Response, error) {
	routed, err := p.router.Route(ctx, sessionID, question)
	if err != nil {
		observability.ObserveAnswerFailure("route")
		return nil, fmt.Errorf("routing: %w", err)
	}

	switch routed.Action {
	case plan.ActionClarify:
		observability.ObserveAnswer(string(plan.ActionClarify), "")
		resp := &Response{Action: plan.ActionClarify, MissingFields: routed.MissingFields}
		if routed.ClarifyingQuestion != nil {
			resp.ClarifyingQuestion = *routed.ClarifyingQuestion
			resp.Answer = *routed.ClarifyingQuestion
		}
		return resp, nil
	case plan.ActionRefuse:
		observability.ObserveAnswer(string(plan.ActionRefuse), "")
		resp := &Response{Action: plan.ActionRefuse}
		if routed.RefusalMessage != nil {
			resp.RefusalMessage = *routed.RefusalMessage
			resp.Answer = *routed.RefusalMessage
		}
		return resp, nil
	}

	resp, err := p.answerQuery(ctx, question, *routed.Plan)
	if err != nil {
		return nil, err
	}
	observability.ObserveAnswer(string(plan.ActionQuery), string(resp.Mode))
	return resp, nil
}

func (p *Pipeline) answerQuery(ctx context.Context, question string, qp plan.QueryPlan) (*Response, error) {
	mode := ModeTemplate
	var result *sqlrun.Result
	var repaired bool

	built, buildErr := sqlbuild.Build(qp)
	if buildErr == nil {
		var err error
		result, err = p.executor.Run(ctx, built.SQL, built.Params)
		if err != nil {
			// Template SQL is authored here, so a failure is a defect in
			// this codebase, not something a model should paper over.
			observability.ObserveAnswerFailure("execute_template")
			return nil, fmt.Errorf("execute template for %s: %w", qp.Intent, err)
		}
	} else {
		var unsupported *sqlbuild.UnsupportedIntentError
		var missing *sqlbuild.MissingSlotError
		if !errors.As(buildErr, &unsupported) && !errors.As(buildErr, &missing) {
			observability.ObserveAnswerFailure("build")
			return nil, fmt.Errorf("build SQL for %s: %w", qp.Intent, buildErr)
		}
		p.logger.DebugContext(ctx, "falling back to freeform SQL",
			"intent", qp.Intent, "reason", buildErr)

		mode = ModeFreeform
		var err error
		result, repaired, err = p.runFreeform(ctx, question)
		if err != nil {
			return nil, err
		}
	}

	answer, err := p.synth.Answer(ctx, question, result.SQL, result.Rows)
	if err != nil {
		observability.ObserveAnswerFailure("synthesize")
		return nil, fmt.Errorf("synthesize answer: %w", err)
	}

	return &Response{
		Action:   plan.ActionQuery,
		Answer:   answer.Answer,
		Intent:   qp.Intent,
		Mode:     mode,
		SQL:      result.SQL,
		Params:   result.Params,
		Table:    format.RowsToMarkdownTable(result.Rows, nil),
		RowCount: result.RowCount,
		Repaired: repaired,
		Grounded: answer.Grounded,
	}, nil
}

// runFreeform generates SQL, executes it, and on an execution failure asks
// the model for one repaired statement.
func (p *Pipeline) runFreeform(ctx context.Context, question string) (*sqlrun.Result, bool, error) {
	generated, err := p.freeform.Generate(ctx, question)
	if err != nil {
		observability.ObserveAnswerFailure("generate")
		return nil, false, fmt.Errorf("generate SQL: %w", err)
	}

	result, err := p.executor.Run(ctx, generated.SafeSQL, nil)
	if err == nil {
		return result, false, nil
	}

	var execErr *sqlrun.ExecutionError
	if !errors.As(err, &execErr) {
		observability.ObserveAnswerFailure("execute_freeform")
		return nil, false, fmt.Errorf("execute generated SQL: %w", err)
	}

	p.logger.InfoContext(ctx, "generated SQL failed, attempting repair",
		"error", execErr.Err)
	repairedSQL, err := p.freeform.Repair(ctx, question, generated.SafeSQL, execErr.Err.Error())
	if err != nil {
		observability.ObserveAnswerFailure("repair")
		return nil, false, fmt.Errorf("repair SQL: %w", err)
	}

	result, err = p.executor.Run(ctx, repairedSQL.SafeSQL, nil)
	if err != nil {
		observability.ObserveAnswerFailure("execute_repaired")
		return nil, true, fmt.Errorf("execute repaired SQL: %w", err)
	}
	return result, true, nil
}
