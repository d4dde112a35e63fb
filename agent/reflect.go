package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/studycoach/core"
	"github.com/hupe1980/studycoach/model"
	"github.com/hupe1980/studycoach/tool"
)

// ReflectionReport describes what the reflection step did. Reflection never
// fails a turn: problems are reported as Anomaly.
type ReflectionReport struct {
	// Executed is true when the memory write was dispatched.
	Executed bool
	Call     *core.ToolCall
	Outcome  *tool.Outcome
	Anomaly  string
}

// Err returns the anomaly as a KindReflection error, or nil.
func (r ReflectionReport) Err() error {
	if r.Anomaly == "" {
		return nil
	}
	return core.NewTurnError(core.KindReflection, errors.New(r.Anomaly))
}

// Reflect asks the reflection model to summarise the finished conversation
// and dispatches the first requested call when it names the memory tool. The
// result message is discarded; s is never modified. A panicking reflection
// model is reported as an anomaly like any other fault.
func (o *Orchestrator) Reflect(ctx context.Context, s *core.State) (report ReflectionReport) {
	defer func() {
		if r := recover(); r != nil {
			report = o.anomaly(report, fmt.Sprintf("reflection panicked: %v", r))
		}
	}()

	name := o.opts.MemoryToolName
	defs := o.registry.Definitions(name)
	if len(defs) == 0 {
		return o.anomaly(ReflectionReport{}, fmt.Sprintf("memory tool %q is not registered", name))
	}

	instructions, err := o.opts.ReflectionInstruction.Resolve(s, []string{name})
	if err != nil {
		return o.anomaly(ReflectionReport{}, fmt.Sprintf("instruction: %v", err))
	}

	msg, err := o.generate(ctx, o.reflector, model.Request{
		Instructions: instructions,
		Messages:     s.Snapshot(),
		Tools:        defs,
	})
	if err != nil {
		return o.anomaly(ReflectionReport{}, fmt.Sprintf("reflection model: %v", err))
	}
	if !msg.HasToolCalls() {
		return o.anomaly(ReflectionReport{}, "no memory write requested")
	}

	call := msg.ToolCalls[0]
	report = ReflectionReport{Call: &call}
	if call.Name != name {
		return o.anomaly(report, fmt.Sprintf("unexpected tool %q requested", call.Name))
	}
	if extra := len(msg.ToolCalls) - 1; extra > 0 {
		o.opts.Logger.Warn("agent.reflect.anomaly", "reason", "extra calls ignored", "count", extra)
	}

	_, out := o.dispatcher.Dispatch(ctx, call)
	report.Executed = true
	report.Outcome = &out
	if !out.OK {
		return o.anomaly(report, "memory write failed: "+out.Error)
	}
	o.opts.Logger.Info("agent.reflect.complete", "call_id", call.ID)
	return report
}

func (o *Orchestrator) anomaly(r ReflectionReport, reason string) ReflectionReport {
	r.Anomaly = reason
	o.opts.Logger.Warn("agent.reflect.anomaly", "reason", reason)
	return r
}
