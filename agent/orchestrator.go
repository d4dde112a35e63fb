package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/studycoach/core"
	"github.com/hupe1980/studycoach/logging"
	"github.com/hupe1980/studycoach/memory"
	"github.com/hupe1980/studycoach/model"
	"github.com/hupe1980/studycoach/tool"
)

// Options configures an Orchestrator.
type Options struct {
	// Instruction is the reasoning system prompt.
	Instruction Instruction
	// ReflectionInstruction is the reflection system prompt.
	ReflectionInstruction Instruction
	// ReflectionModel overrides the model used for reflection.
	ReflectionModel model.Model
	// MaxCycles bounds THINK/ACT cycles per turn. Values <= 0 disable the bound.
	MaxCycles int
	// MaxParallelTools bounds concurrent tool executions within one ACT step.
	MaxParallelTools int
	// ThinkTools restricts the tools offered to the reasoning model; nil offers all.
	ThinkTools []string
	// MemoryToolName is the only tool reflection may execute.
	MemoryToolName string
	// MemoryRecall, when set, is searched with the user input before the
	// first THINK and rendered into memory_context.
	MemoryRecall core.MemoryStore
	RecallTopK   int
	// IndexStatus reports the retrieval index readiness at turn start.
	IndexStatus func(ctx context.Context) core.IndexReadiness
	Logger      logging.Logger
}

// Orchestrator runs turns. It is safe for concurrent use; each turn owns its
// own core.State.
type Orchestrator struct {
	model      model.Model
	reflector  model.Model
	registry   *tool.Registry
	dispatcher *tool.Dispatcher
	opts       Options
}

// modelCallLogger is implemented by loggers that record model metrics
// (logging.CoachLogger).
type modelCallLogger interface {
	LogModelCall(model string, calls int, dur time.Duration, err error)
}

// New creates an orchestrator. The registry is sealed: tools are fixed for
// the lifetime of the orchestrator.
func New(m model.Model, registry *tool.Registry, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Instruction:           NewInstructionFromText(DefaultInstruction),
		ReflectionInstruction: NewInstructionFromText(DefaultReflectionInstruction),
		MaxCycles:             10,
		MaxParallelTools:      1,
		MemoryToolName:        "write_memory",
		RecallTopK:            3,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.RecallTopK <= 0 {
		opts.RecallTopK = 3
	}
	reflector := opts.ReflectionModel
	if reflector == nil {
		reflector = m
	}
	registry.Seal()

	return &Orchestrator{
		model:     m,
		reflector: reflector,
		registry:  registry,
		dispatcher: tool.NewDispatcher(registry, func(d *tool.DispatcherOptions) {
			d.MaxParallel = opts.MaxParallelTools
			d.Logger = opts.Logger
		}),
		opts: opts,
	}
}

// Registry returns the sealed tool registry.
func (o *Orchestrator) Registry() *tool.Registry { return o.registry }

// MaxCycles returns the configured THINK/ACT bound.
func (o *Orchestrator) MaxCycles() int { return o.opts.MaxCycles }

// Think calls the reasoning model once and returns the assistant message to
// append. Model failures are fatal for the turn and come back as a
// *core.TurnError of kind KindReasoning, or KindCancelled when the failure was
// caused by ctx.
func (o *Orchestrator) Think(ctx context.Context, s *core.State) (core.AssistantMessage, error) {
	defs := o.registry.Definitions(o.opts.ThinkTools...)
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Function.Name
	}

	instructions, err := o.opts.Instruction.Resolve(s, names)
	if err != nil {
		return core.AssistantMessage{}, core.NewTurnError(core.KindReasoning, fmt.Errorf("instruction: %w", err))
	}

	o.opts.Logger.Debug("agent.think.start", "messages", len(s.Messages), "tools", len(defs))
	msg, err := o.generate(ctx, o.model, model.Request{
		Instructions: instructions,
		Messages:     s.Snapshot(),
		Tools:        defs,
	})
	if err != nil {
		return core.AssistantMessage{}, classifyModelError(ctx, err)
	}
	if msg.Content == "" && !msg.HasToolCalls() {
		o.opts.Logger.Warn("agent.think.empty_response", "model", o.model.Info().Name)
	}
	return msg, nil
}

// Act dispatches the tool calls of the latest assistant message and returns
// one result message per call, in call order. Without calls it is a no-op.
func (o *Orchestrator) Act(ctx context.Context, s *core.State) []core.Message {
	last, ok := s.LastAssistant()
	if !ok || !last.HasToolCalls() {
		o.opts.Logger.Warn("agent.act.no_calls", "messages", len(s.Messages))
		return nil
	}

	results, outcomes := o.dispatcher.DispatchAll(ctx, last.ToolCalls)
	delta := make([]core.Message, len(results))
	failed := 0
	for i, r := range results {
		delta[i] = r
		if !outcomes[i].OK {
			failed++
		}
	}
	o.opts.Logger.Debug("agent.act.complete", "calls", len(results), "failed", failed)
	return delta
}

// recall renders past learning records related to query. Failures degrade to
// an empty context.
func (o *Orchestrator) recall(ctx context.Context, query string) string {
	if o.opts.MemoryRecall == nil || query == "" {
		return ""
	}
	results, err := o.opts.MemoryRecall.Search(ctx, query, o.opts.RecallTopK)
	if err != nil {
		o.opts.Logger.Warn("agent.recall.failed", "error", err.Error())
		return ""
	}
	o.opts.Logger.Debug("agent.recall.complete", "results", len(results))
	return memory.FormatContext(results)
}

func (o *Orchestrator) generate(ctx context.Context, m model.Model, req model.Request) (core.AssistantMessage, error) {
	start := time.Now()
	resp, err := m.Generate(ctx, req)

	calls := 0
	if err == nil && resp != nil {
		calls = len(resp.Message.ToolCalls)
	}
	if l, ok := o.opts.Logger.(modelCallLogger); ok {
		l.LogModelCall(m.Info().Name, calls, time.Since(start), err)
	}
	if err != nil {
		return core.AssistantMessage{}, err
	}
	if resp == nil {
		return core.AssistantMessage{}, fmt.Errorf("%w: empty response", core.ErrModelProtocol)
	}
	return normalizeCallIDs(resp.Message), nil
}

func classifyModelError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return core.NewTurnError(core.KindCancelled, fmt.Errorf("%w: %w", core.ErrCancelled, err))
	}
	return core.NewTurnError(core.KindReasoning, err)
}

// normalizeCallIDs assigns fresh ids to calls whose id is empty or repeated
// within the message.
func normalizeCallIDs(msg core.AssistantMessage) core.AssistantMessage {
	if !msg.HasToolCalls() {
		return msg
	}
	seen := make(map[string]struct{}, len(msg.ToolCalls))
	calls := make([]core.ToolCall, len(msg.ToolCalls))
	for i, c := range msg.ToolCalls {
		if _, dup := seen[c.ID]; c.ID == "" || dup {
			c.ID = core.NewCallID()
		}
		seen[c.ID] = struct{}{}
		calls[i] = c
	}
	msg.ToolCalls = calls
	return msg
}
