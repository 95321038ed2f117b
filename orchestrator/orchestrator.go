// Package orchestrator owns the command lifecycle: it requests a plan from
// the reasoning service, routes the clarification branch, chooses the
// execution mode, drives the interpreter, and records one history entry per
// terminal state.
//
// State machine:
//
//	Idle → AwaitingPlan → {AwaitingClarification → AwaitingPlan} →
//	Executing → {Completed | Failed} → Idle
//
// The clarification branch suspends the pipeline until the user answers or
// cancels; there is no timeout. Once Executing starts the plan runs to
// completion or to the first error — applied mutations are never rolled
// back.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/atelierink/sketchd/engine"
	"github.com/atelierink/sketchd/history"
	"github.com/atelierink/sketchd/plan"
	"github.com/atelierink/sketchd/planner"
	"github.com/atelierink/sketchd/scene"
)

// State is the orchestrator's lifecycle position.
type State string

const (
	StateIdle                  State = "idle"
	StateAwaitingPlan          State = "awaiting_plan"
	StateAwaitingClarification State = "awaiting_clarification"
	StateExecuting             State = "executing"
)

// ExecMode says where a plan was applied.
type ExecMode string

const (
	ModeClient ExecMode = "client"
	ModeServer ExecMode = "server"
)

// serverSideThreshold is the operation count above which plans are handed
// to the reasoning service for server-side application.
const serverSideThreshold = 50

var (
	// ErrBusy is returned when a command is submitted while another is in
	// flight or a clarification is pending.
	ErrBusy = errors.New("a command is already in progress")
	// ErrNoClarification is returned when resolving or cancelling a
	// clarification that isn't pending.
	ErrNoClarification = errors.New("no clarification pending")
)

// Config wires an Orchestrator.
type Config struct {
	Service planner.Service
	Mutator scene.Mutator
	History *history.Store
	Logger  *slog.Logger
	// Progress receives per-operation notifications during client-side
	// execution. Optional.
	Progress engine.Progress
}

// Orchestrator drives commands from prompt to terminal state.
type Orchestrator struct {
	svc      planner.Service
	mut      scene.Mutator
	interp   *engine.Interpreter
	hist     *history.Store
	logger   *slog.Logger
	progress engine.Progress

	mu      sync.Mutex
	state   State
	pending *pendingClarification
}

type pendingClarification struct {
	question       string
	options        []string
	originalPrompt string
}

// New creates an Orchestrator in the Idle state.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		svc:      cfg.Service,
		mut:      cfg.Mutator,
		interp:   engine.New(cfg.Mutator, logger),
		hist:     cfg.History,
		logger:   logger,
		progress: cfg.Progress,
		state:    StateIdle,
	}
}

// Outcome is the result of one submitted command.
type Outcome struct {
	// EntryID is the history entry id, set on terminal outcomes.
	EntryID string `json:"entry_id,omitempty"`
	// Completed is true when every operation applied.
	Completed bool `json:"completed"`
	// Clarification is set when the reasoning service needs the user to
	// disambiguate; nothing was executed.
	Clarification *plan.Clarification `json:"clarification,omitempty"`
	Mode          ExecMode            `json:"mode,omitempty"`
	Rationale     string              `json:"rationale,omitempty"`
	// Summary reports client-side execution effects.
	Summary *engine.Summary `json:"summary,omitempty"`
	// ServerSummary reports server-side execution effects.
	ServerSummary *planner.ExecuteSummary `json:"server_summary,omitempty"`
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Pending returns the clarification waiting for an answer, if any.
func (o *Orchestrator) Pending() (*plan.Clarification, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending == nil {
		return nil, false
	}
	return &plan.Clarification{
		Question: o.pending.question,
		Options:  append([]string(nil), o.pending.options...),
	}, true
}

// SubmitCommand runs one natural-language command. An empty or
// whitespace-only prompt fails immediately with a ValidationError, before
// any service call. A clarification outcome leaves the orchestrator in
// AwaitingClarification; call ResolveClarification or CancelClarification
// next.
func (o *Orchestrator) SubmitCommand(ctx context.Context, prompt string) (*Outcome, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, &plan.ValidationError{Field: "prompt", Msg: "empty prompt"}
	}

	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	o.state = StateAwaitingPlan
	o.mu.Unlock()

	return o.run(ctx, prompt)
}

// ResolveClarification answers a pending clarification and re-enters the
// planning flow with the augmented prompt.
func (o *Orchestrator) ResolveClarification(ctx context.Context, option string) (*Outcome, error) {
	o.mu.Lock()
	if o.state != StateAwaitingClarification || o.pending == nil {
		o.mu.Unlock()
		return nil, ErrNoClarification
	}
	augmented := o.pending.originalPrompt + " " + option
	o.pending = nil
	o.state = StateAwaitingPlan
	o.mu.Unlock()

	return o.run(ctx, augmented)
}

// CancelClarification abandons a pending clarification and returns to Idle.
func (o *Orchestrator) CancelClarification() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateAwaitingClarification {
		return ErrNoClarification
	}
	o.pending = nil
	o.state = StateIdle
	return nil
}

// run drives prompt → plan → execution. The caller has already moved the
// state to AwaitingPlan.
func (o *Orchestrator) run(ctx context.Context, prompt string) (*Outcome, error) {
	start := time.Now()

	doc, err := o.mut.Snapshot(ctx)
	if err != nil {
		return nil, o.fail(ctx, prompt, nil, nil, start, fmt.Errorf("snapshot: %w", err))
	}

	p, err := o.svc.Plan(ctx, planner.Request{Prompt: prompt, Document: doc})
	if err != nil {
		return nil, o.fail(ctx, prompt, nil, nil, start, err)
	}

	if p.Clarification != nil {
		o.mu.Lock()
		o.pending = &pendingClarification{
			question:       p.Clarification.Question,
			options:        p.Clarification.Options,
			originalPrompt: prompt,
		}
		o.state = StateAwaitingClarification
		o.mu.Unlock()
		o.logger.Info("clarification requested", "question", p.Clarification.Question)
		return &Outcome{Clarification: p.Clarification, Rationale: p.Rationale}, nil
	}

	mode := chooseMode(p)
	o.mu.Lock()
	o.state = StateExecuting
	o.mu.Unlock()
	o.logger.Info("executing plan", "operations", len(p.Operations), "mode", mode)

	if mode == ModeServer {
		return o.runServer(ctx, prompt, doc, p, start)
	}
	return o.runClient(ctx, prompt, p, start)
}

func (o *Orchestrator) runClient(ctx context.Context, prompt string, p *plan.Plan, start time.Time) (*Outcome, error) {
	sum, err := o.interp.Execute(ctx, p.Operations, o.progress)
	if err != nil {
		return nil, o.fail(ctx, prompt, p, sum, start, err)
	}

	entry := entryFor(prompt, p, ModeClient, sum, start)
	entry.Success = true
	o.finish(ctx, entry)
	o.touchColors(ctx, p)

	return &Outcome{
		EntryID:   entry.ID,
		Completed: true,
		Mode:      ModeClient,
		Rationale: p.Rationale,
		Summary:   sum,
	}, nil
}

func (o *Orchestrator) runServer(ctx context.Context, prompt string, doc *scene.Document, p *plan.Plan, start time.Time) (*Outcome, error) {
	srv, err := o.svc.Execute(ctx, planner.Request{Prompt: prompt, Document: doc})
	if err != nil {
		return nil, o.fail(ctx, prompt, p, nil, start, err)
	}

	entry := entryFor(prompt, p, ModeServer, nil, start)
	entry.Success = true
	entry.OpsExecuted = srv.OperationsApplied
	entry.Created = srv.ShapeIDs
	o.finish(ctx, entry)
	o.touchColors(ctx, p)

	return &Outcome{
		EntryID:       entry.ID,
		Completed:     true,
		Mode:          ModeServer,
		Rationale:     p.Rationale,
		ServerSummary: srv,
	}, nil
}

// chooseMode routes large plans and grid creation to the server side.
func chooseMode(p *plan.Plan) ExecMode {
	if len(p.Operations) > serverSideThreshold {
		return ModeServer
	}
	for _, op := range p.Operations {
		if op.Kind() == plan.KindCreateGrid {
			return ModeServer
		}
	}
	return ModeClient
}
