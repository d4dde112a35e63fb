package tool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/studycoach/core"
	"github.com/hupe1980/studycoach/logging"
)

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	// MaxParallel bounds concurrent executions within one DispatchAll. Values
	// below 2 execute sequentially.
	MaxParallel int
	Logger      logging.Logger
}

// Dispatcher resolves and executes tool calls. It never returns an error and
// never lets a panic escape: every call yields exactly one result message.
type Dispatcher struct {
	registry *Registry
	opts     DispatcherOptions
}

// toolCallLogger is implemented by loggers that record tool metrics
// (logging.CoachLogger).
type toolCallLogger interface {
	LogToolCall(tool string, dur time.Duration, success bool, errText string)
}

// NewDispatcher creates a dispatcher over a registry.
func NewDispatcher(registry *Registry, optFns ...func(o *DispatcherOptions)) *Dispatcher {
	opts := DispatcherOptions{MaxParallel: 1}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Dispatcher{registry: registry, opts: opts}
}

// Registry returns the underlying registry.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Dispatch executes one call.
func (d *Dispatcher) Dispatch(ctx context.Context, call core.ToolCall) (core.ToolResultMessage, Outcome) {
	out := d.execute(ctx, call)
	return out.Message(call), out
}

// DispatchAll executes calls and returns their result messages in call order.
// With MaxParallel > 1 calls run concurrently; results are reassembled by index.
func (d *Dispatcher) DispatchAll(ctx context.Context, calls []core.ToolCall) ([]core.ToolResultMessage, []Outcome) {
	n := len(calls)
	outcomes := make([]Outcome, n)
	if n == 0 {
		return nil, outcomes
	}

	maxPar := d.opts.MaxParallel
	if maxPar > n {
		maxPar = n
	}
	batchStart := time.Now()

	if maxPar <= 1 {
		for i, c := range calls {
			outcomes[i] = d.execute(ctx, c)
		}
	} else {
		var wg sync.WaitGroup
		sem := make(chan struct{}, maxPar)
		for i := range calls {
			wg.Add(1)
			sem <- struct{}{}
			go func(idx int, c core.ToolCall) {
				defer wg.Done()
				defer func() { <-sem }()
				outcomes[idx] = d.execute(ctx, c)
			}(i, calls[i])
		}
		wg.Wait()
	}

	msgs := make([]core.ToolResultMessage, n)
	for i, c := range calls {
		msgs[i] = outcomes[i].Message(c)
	}

	d.opts.Logger.Debug(
		"tool.dispatch.batch.complete",
		"count", n,
		"parallelism", max(maxPar, 1),
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)
	return msgs, outcomes
}

func (d *Dispatcher) execute(ctx context.Context, call core.ToolCall) (out Outcome) {
	start := time.Now()
	defer func() {
		if l, ok := d.opts.Logger.(toolCallLogger); ok {
			l.LogToolCall(call.Name, time.Since(start), out.OK, out.Error)
		}
	}()

	if err := ctx.Err(); err != nil {
		d.opts.Logger.Warn("tool.dispatch.skipped", "tool", call.Name, "call_id", call.ID, "error", err.Error())
		return Failure(core.KindToolExecution, fmt.Sprintf("not executed: %v", err))
	}

	var impl Tool
	switch r := d.registry.Resolve(call.Name).(type) {
	case Unresolved:
		d.opts.Logger.Warn("tool.dispatch.unknown", "tool", r.Name, "call_id", call.ID)
		return Failure(core.KindToolResolution, "unknown tool: "+r.Name)
	case Resolved:
		impl = r.Tool
	}

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	toolCtx := core.NewToolContext(ctx, call, d.opts.Logger)

	var (
		result any
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = panicError(r)
				d.opts.Logger.Error("tool.dispatch.panic", "tool", call.Name, "call_id", call.ID, "recover", r)
			}
		}()
		result, err = impl.Call(toolCtx, args)
	}()

	if err != nil {
		d.opts.Logger.Info("tool.dispatch.error", "tool", call.Name, "call_id", call.ID, "error", err.Error())
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			return Failure(toolErr.Kind(), toolErr.Message)
		}
		return Failure(core.KindToolExecution, err.Error())
	}
	return Success(result)
}

func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("tool panicked: %v", p.val) }
