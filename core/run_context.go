package core

import (
	"context"

	"github.com/hupe1980/toolmesh/logging"
)

// RunContext carries the per-run execution scope shared by every tool call of
// one agent run or one server request:
//   - The ambient cancellation Context
//   - Identifiers (UserID on whose behalf tools act, RunID for correlation)
//   - The ModelLimiter bounding model calls of the run
//   - A non-nil logger
type RunContext struct {
	Context context.Context
	UserID  string
	RunID   string
	Limiter *ModelLimiter

	*loggerAdapter
}

// NewRunContext constructs a RunContext. maxModelCalls == 0 means unlimited.
func NewRunContext(ctx context.Context, userID, runID string, maxModelCalls int, logger logging.Logger) *RunContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &RunContext{
		Context:       ctx,
		UserID:        userID,
		RunID:         runID,
		Limiter:       NewModelLimiter(maxModelCalls),
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }
