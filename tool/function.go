package tool

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/studycoach/core"
	"github.com/hupe1980/studycoach/internal/util"
)

// FunctionTool exposes a plain Go function taking a free-form argument map.
//
// Arguments are validated against the declared schema before the function
// runs. Failures are normalized to *ToolError:
//
//	VALIDATION_ERROR -> schema / argument mismatch
//	EXECUTION_ERROR  -> the function returned an error (non-ToolError)
//
// A FunctionTool has no mutable state after construction and is safe for
// concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// NewFunctionTool constructs a FunctionTool from explicit schema and function.
//
// Example:
//
//	echo := NewFunctionTool(
//	  "echo",
//	  "Echo the given text",
//	  map[string]any{
//	    "type":       "object",
//	    "properties": map[string]any{"text": map[string]any{"type": "string"}},
//	    "required":   []string{"text"},
//	  },
//	  func(tc *core.ToolContext, args map[string]any) (any, error) {
//	    return args["text"], nil
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
) *FunctionTool {
	if parameters == nil {
		parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return &FunctionTool{name: name, description: description, parameters: parameters, fn: fn}
}

// Name returns the unique tool name.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the short natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call validates args against the schema then invokes the function.
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	return invoke(toolCtx, t.name, t.parameters, args, func() (any, error) { return t.fn(toolCtx, args) })
}

// invoke is the shared validate/execute/log path of FunctionTool and TypedTool.
func invoke(toolCtx *core.ToolContext, name string, schema, args map[string]any, run func() (any, error)) (any, error) {
	start := time.Now()
	toolCtx.LogDebug("tool.call.start")

	if err := util.ValidateParameters(args, schema); err != nil {
		toolCtx.LogWarn("tool.call.validation_failed", "error", err.Error())
		return nil, &ToolError{Tool: name, Message: err.Error(), Code: CodeValidation, Details: err}
	}

	result, err := run()
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			toolCtx.LogWarn("tool.call.error", "error", toolErr.Message)
			return nil, toolErr
		}
		toolCtx.LogWarn("tool.call.error", "error", err.Error())
		return nil, &ToolError{Tool: name, Message: err.Error(), Code: CodeExecution}
	}

	toolCtx.LogDebug("tool.call.success", "duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

// TypedTool is a tool whose arguments are declared by struct type A. The
// schema is derived from A once; calls are validated against it and then
// decoded into A before the function runs.
type TypedTool[A any] struct {
	name        string
	description string
	schema      map[string]any
	fn          func(toolCtx *core.ToolContext, args A) (any, error)
}

// NewTypedTool builds a TypedTool. Field tags on A drive the schema:
//
//	type CalcArgs struct {
//	  Expression string `json:"expression" description:"Arithmetic expression"`
//	}
func NewTypedTool[A any](name, description string, fn func(toolCtx *core.ToolContext, args A) (any, error)) *TypedTool[A] {
	return &TypedTool[A]{name: name, description: description, schema: util.SchemaFor[A](), fn: fn}
}

// Name returns the unique tool name.
func (t *TypedTool[A]) Name() string { return t.name }

// Description returns the description exposed to models.
func (t *TypedTool[A]) Description() string { return t.description }

// Parameters returns the schema derived from A.
func (t *TypedTool[A]) Parameters() map[string]any { return t.schema }

// Call validates, decodes and executes.
func (t *TypedTool[A]) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	return invoke(toolCtx, t.name, t.schema, args, func() (any, error) {
		var typed A
		if err := util.DecodeArguments(args, &typed); err != nil {
			return nil, &ToolError{Tool: t.name, Message: fmt.Sprintf("arguments do not match schema: %v", err), Code: CodeValidation}
		}
		return t.fn(toolCtx, typed)
	})
}
