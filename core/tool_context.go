package core

import (
	"context"

	"github.com/hupe1980/studycoach/logging"
)

// ToolContext provides the scoped surface handed to tool implementations: the
// cancellation context of the turn, the id of the call being answered and a
// logger pre-tagged with the tool name.
type ToolContext struct {
	ctx      context.Context
	callID   string
	toolName string
	logger   logging.Logger
}

// NewToolContext constructs a tool context for one call.
func NewToolContext(ctx context.Context, call ToolCall, logger logging.Logger) *ToolContext {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &ToolContext{
		ctx:      ctx,
		callID:   call.ID,
		toolName: call.Name,
		logger:   logger,
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// CallID returns the id of the tool call being executed.
func (tc *ToolContext) CallID() string { return tc.callID }

// ToolName returns the name of the tool being executed.
func (tc *ToolContext) ToolName() string { return tc.toolName }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }

// Err reports whether the surrounding turn was cancelled.
func (tc *ToolContext) Err() error { return tc.ctx.Err() }

// LogDebug, LogInfo, LogWarn and LogError log through the tool logger with the
// tool name and call id prepended to args.
func (tc *ToolContext) LogDebug(msg string, args ...any) { tc.logger.Debug(msg, tc.tag(args)...) }

func (tc *ToolContext) LogInfo(msg string, args ...any) { tc.logger.Info(msg, tc.tag(args)...) }

func (tc *ToolContext) LogWarn(msg string, args ...any) { tc.logger.Warn(msg, tc.tag(args)...) }

func (tc *ToolContext) LogError(msg string, args ...any) { tc.logger.Error(msg, tc.tag(args)...) }

func (tc *ToolContext) tag(args []any) []any {
	return append([]any{"tool", tc.toolName, "call_id", tc.callID}, args...)
}
