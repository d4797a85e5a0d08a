package core

import (
	"context"
	"fmt"

	"github.com/hupe1980/toolmesh/logging"
)

// ToolContext is the constrained surface handed to a single tool invocation.
// It exposes the run's cancellation context, the acting user and the function
// call id that correlates the model request with the tool execution.
type ToolContext struct {
	runCtx         *RunContext
	functionCallID string

	*loggerAdapter
}

// NewToolContext constructs a tool context bound to a parent RunContext and a
// unique functionCallID.
func NewToolContext(runCtx *RunContext, functionCallID string) *ToolContext {
	var logger logging.Logger
	if runCtx != nil {
		logger = runCtx.Logger()
	}
	return &ToolContext{
		runCtx:         runCtx,
		functionCallID: functionCallID,
		loggerAdapter:  newLoggerAdapter(logger),
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context {
	if tc.runCtx == nil || tc.runCtx.Context == nil {
		return context.Background()
	}
	return tc.runCtx.Context
}

// UserID returns the user the tool acts on behalf of.
func (tc *ToolContext) UserID() string {
	if tc.runCtx == nil {
		return ""
	}
	return tc.runCtx.UserID
}

// RunID returns the run ID associated with the tool invocation.
func (tc *ToolContext) RunID() string {
	if tc.runCtx == nil {
		return ""
	}
	return tc.runCtx.RunID
}

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// Validate performs a structural sanity check of the context.
func (tc *ToolContext) Validate() error {
	if !tc.IsValid() {
		return fmt.Errorf("invalid ToolContext")
	}
	return nil
}

// IsValid reports whether Validate would succeed (fast path).
func (tc *ToolContext) IsValid() bool {
	return tc.runCtx != nil && tc.functionCallID != ""
}

// InternalRunContext returns the parent run context.
func (tc *ToolContext) InternalRunContext() *RunContext { return tc.runCtx }
