package agent

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hupe1980/studycoach/core"
)

// Phase is a state of the turn state machine.
type Phase string

// Turn phases.
const (
	PhaseThink   Phase = "THINK"
	PhaseAct     Phase = "ACT"
	PhaseReflect Phase = "REFLECT"
	PhaseDone    Phase = "DONE"
)

// Outcome is the terminal result of a turn.
type Outcome string

// Turn outcomes.
const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// ToolStatusMessage is shown in Snapshot.Status while tools execute.
const ToolStatusMessage = "**... running tools, please wait ...**"

// Snapshot is one element of a turn's snapshot sequence. Content is the
// cumulative assistant-visible text of the turn. Only the final snapshot
// carries Outcome, Err, Answer, History and Reflection.
type Snapshot struct {
	Phase   Phase
	Content string
	Status  string
	Cycles  int

	Final      bool
	Outcome    Outcome
	Err        error
	Answer     string
	History    []core.Message
	Reflection *ReflectionReport
}

// Display renders Content followed by the status line, if any.
func (s Snapshot) Display() string {
	switch {
	case s.Status == "":
		return s.Content
	case s.Content == "":
		return s.Status
	default:
		return s.Content + "\n\n" + s.Status
	}
}

// turnLogger is implemented by loggers that record turn metrics
// (logging.CoachLogger).
type turnLogger interface {
	LogTurn(outcome string, cycles int, dur time.Duration, err error)
}

// RunTurn returns the lazy snapshot sequence of one turn over prior history
// and the user input. Nothing runs until the sequence is iterated. The
// sequence can be consumed once; a second iteration yields a single failed
// snapshot carrying core.ErrTurnConsumed. Breaking out of the iteration stops
// the turn before the next step.
func (o *Orchestrator) RunTurn(ctx context.Context, prior []core.Message, input string) iter.Seq[Snapshot] {
	var consumed atomic.Bool
	return func(yield func(Snapshot) bool) {
		if !consumed.CompareAndSwap(false, true) {
			yield(Snapshot{Phase: PhaseDone, Final: true, Outcome: OutcomeFailed, Err: core.ErrTurnConsumed})
			return
		}

		readiness := core.IndexPending
		if o.opts.IndexStatus != nil {
			readiness = o.opts.IndexStatus(ctx)
		}
		state := core.NewState(prior, readiness)
		state.Append(core.NewUserMessage(input))
		state.PendingMemoryQuery = input

		t := &turn{
			o:      o,
			ctx:    ctx,
			state:  state,
			budget: core.NewCycleBudget(o.opts.MaxCycles),
			yield:  yield,
			start:  time.Now(),
		}
		t.run()
	}
}

// TurnResult is the drained form of a turn.
type TurnResult struct {
	Answer     string
	History    []core.Message
	Reflection *ReflectionReport
	Cycles     int
	Outcome    Outcome
}

// Run drains RunTurn and returns the final state. The error is the final
// snapshot's Err; the result is returned in every case.
func (o *Orchestrator) Run(ctx context.Context, prior []core.Message, input string) (*TurnResult, error) {
	var last Snapshot
	for snap := range o.RunTurn(ctx, prior, input) {
		last = snap
	}
	return &TurnResult{
		Answer:     last.Answer,
		History:    last.History,
		Reflection: last.Reflection,
		Cycles:     last.Cycles,
		Outcome:    last.Outcome,
	}, last.Err
}

type turn struct {
	o      *Orchestrator
	ctx    context.Context
	state  *core.State
	budget *core.CycleBudget
	yield  func(Snapshot) bool
	start  time.Time

	content []string
	status  string
}

func (t *turn) run() {
	var (
		log        = t.o.opts.Logger
		phase      = PhaseThink
		reflection *ReflectionReport
	)
	for {
		if phase != PhaseDone {
			if err := t.ctx.Err(); err != nil {
				t.finish(OutcomeCancelled, core.NewTurnError(core.KindCancelled, fmt.Errorf("%w: %w", core.ErrCancelled, err)), nil)
				return
			}
		}

		switch phase {
		case PhaseThink:
			if q := t.state.PendingMemoryQuery; q != "" {
				t.state.MemoryContext = t.o.recall(t.ctx, q)
				t.state.PendingMemoryQuery = ""
			}
			msg, err := t.o.Think(t.ctx, t.state)
			if err != nil {
				t.finish(outcomeOf(err), err, nil)
				return
			}
			t.state.Append(msg)
			if msg.Content != "" {
				t.content = append(t.content, msg.Content)
				t.status = ""
				if !t.emit(PhaseThink) {
					return
				}
			}
			decision := Route(t.state)
			log.Debug("agent.route", "decision", decision.String(), "cycle", t.budget.Count())
			if decision == ContinueWithTools {
				phase = PhaseAct
			} else {
				phase = PhaseReflect
			}

		case PhaseAct:
			if err := t.budget.Increment(); err != nil {
				t.finish(OutcomeFailed, core.NewTurnError(core.KindLoopBudget, err), nil)
				return
			}
			t.status = ToolStatusMessage
			if !t.emit(PhaseAct) {
				return
			}
			t.state.Append(t.o.Act(t.ctx, t.state)...)
			phase = PhaseThink

		case PhaseReflect:
			report := t.o.Reflect(t.ctx, t.state)
			reflection = &report
			phase = PhaseDone

		case PhaseDone:
			t.finish(OutcomeSuccess, nil, reflection)
			return
		}
	}
}

// emit yields an intermediate snapshot and reports whether the consumer
// wants more.
func (t *turn) emit(phase Phase) bool {
	if t.yield(t.snapshot(phase)) {
		return true
	}
	t.o.opts.Logger.Info("agent.turn.abandoned", "phase", string(phase), "cycles", t.budget.Count())
	return false
}

func (t *turn) snapshot(phase Phase) Snapshot {
	return Snapshot{
		Phase:   phase,
		Content: strings.Join(t.content, "\n\n"),
		Status:  t.status,
		Cycles:  t.budget.Count(),
	}
}

func (t *turn) finish(outcome Outcome, err error, reflection *ReflectionReport) {
	t.status = ""
	snap := t.snapshot(PhaseDone)
	snap.Final = true
	snap.Outcome = outcome
	snap.Err = err
	snap.History = t.state.Snapshot()
	snap.Reflection = reflection
	if outcome == OutcomeSuccess {
		if last, ok := t.state.LastAssistant(); ok {
			snap.Answer = last.Content
		}
	}

	dur := time.Since(t.start)
	if l, ok := t.o.opts.Logger.(turnLogger); ok {
		l.LogTurn(string(outcome), snap.Cycles, dur, err)
	} else {
		t.o.opts.Logger.Info("agent.turn.complete", "outcome", string(outcome), "cycles", snap.Cycles)
	}
	t.yield(snap)
}

func outcomeOf(err error) Outcome {
	if core.KindOf(err) == core.KindCancelled {
		return OutcomeCancelled
	}
	return OutcomeFailed
}
