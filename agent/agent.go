package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/toolmesh/core"
	"github.com/hupe1980/toolmesh/logging"
	"github.com/hupe1980/toolmesh/model"
	"github.com/hupe1980/toolmesh/tool"
)

// DefaultInstruction is used when Options.Instruction is left empty.
const DefaultInstruction = "You are a helpful voice assistant. Keep answers short and use the available tools when they help."

// MemoryRecorder is satisfied by *memory.Adapter.
type MemoryRecorder interface {
	Add(ctx context.Context, turns []core.Turn, userID string) json.RawMessage
}

// Options configure an Agent.
type Options struct {
	Instruction Instruction

	// MaxModelCalls bounds model calls per run. 0 means unlimited.
	MaxModelCalls int

	// MaxParallelTools bounds concurrent tool executions within one model
	// turn. 0 or less runs every call of the turn concurrently.
	MaxParallelTools int

	// ToolTimeout bounds a single tool call. 0 disables the timeout.
	ToolTimeout time.Duration

	// Memory, when set, receives the user prompt and final answer of every
	// successful run.
	Memory MemoryRecorder

	Logger logging.Logger
}

// Result is the outcome of a run.
type Result struct {
	RunID string
	Text  string

	// Contents is the full transcript of the run, including the input.
	Contents []core.Content

	ModelCalls int
	Usage      model.TokenUsage
}

// Agent binds a model, an instruction and a tool registry.
type Agent struct {
	name     string
	llm      model.Model
	registry *tool.Registry
	opts     Options
}

// New creates an Agent. A nil registry means no tools.
func New(name string, llm model.Model, registry *tool.Registry, optFns ...func(o *Options)) *Agent {
	opts := Options{
		Instruction:   NewInstructionFromText(DefaultInstruction),
		MaxModelCalls: 8,
		ToolTimeout:   60 * time.Second,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	opts.Logger = logging.OrNoOp(opts.Logger)

	if registry == nil {
		registry, _ = tool.NewRegistry()
	}

	return &Agent{name: name, llm: llm, registry: registry, opts: opts}
}

// Name returns the agent name.
func (a *Agent) Name() string { return a.name }

// Registry returns the agent's tools.
func (a *Agent) Registry() *tool.Registry { return a.registry }

// Run answers a single user prompt on behalf of userID.
func (a *Agent) Run(ctx context.Context, userID, prompt string) (Result, error) {
	return a.RunContents(ctx, userID, []core.Content{core.NewTextContent(core.RoleUser, prompt)})
}

// RunContents continues a conversation given as contents.
func (a *Agent) RunContents(ctx context.Context, userID string, contents []core.Content) (Result, error) {
	runCtx := core.NewRunContext(ctx, userID, core.NewID(), a.opts.MaxModelCalls, a.opts.Logger)

	res := Result{RunID: runCtx.RunID}

	instructions, err := a.opts.Instruction.Resolve(runCtx)
	if err != nil {
		return res, fmt.Errorf("resolve instruction: %w", err)
	}

	history := append([]core.Content(nil), contents...)
	tools := a.registry.Definitions()

	runCtx.LogDebug("agent.run.start", "agent", a.name, "run", runCtx.RunID, "user_id", userID, "tools", len(tools))

	for {
		if err := runCtx.Err(); err != nil {
			res.Contents = history
			return res, err
		}

		if err := runCtx.Limiter.Increment(); err != nil {
			runCtx.LogWarn("agent.run.limit", "agent", a.name, "run", runCtx.RunID, "model_calls", runCtx.Limiter.Count()-1)
			res.Contents = history
			return res, err
		}

		res.ModelCalls++

		resp, err := a.llm.Generate(runCtx.Context, model.Request{
			Instructions: instructions,
			Contents:     history,
			Tools:        tools,
		})
		if err != nil {
			runCtx.LogError("agent.model.error", "agent", a.name, "run", runCtx.RunID, "error", err.Error())
			res.Contents = history
			return res, fmt.Errorf("model generate: %w", err)
		}

		if resp.Usage != nil {
			res.Usage.PromptTokens += resp.Usage.PromptTokens
			res.Usage.CompletionTokens += resp.Usage.CompletionTokens
			res.Usage.TotalTokens += resp.Usage.TotalTokens
		}

		reply := resp.Content
		reply.Role = core.RoleAssistant
		history = append(history, reply)

		calls := ensureCallIDs(reply.FunctionCalls())
		if len(calls) == 0 {
			res.Text = reply.Text()
			res.Contents = history

			runCtx.LogInfo("agent.run.complete", "agent", a.name, "run", runCtx.RunID, "model_calls", res.ModelCalls)

			a.remember(runCtx, contents, res.Text)

			return res, nil
		}

		history[len(history)-1] = withCallIDs(reply, calls)
		history = append(history, a.executeCalls(runCtx, calls)...)
	}
}

// remember stores the latest user message and the answer.
func (a *Agent) remember(runCtx *core.RunContext, input []core.Content, answer string) {
	if a.opts.Memory == nil || answer == "" {
		return
	}

	var prompt string

	for i := len(input) - 1; i >= 0 && prompt == ""; i-- {
		if input[i].Role == core.RoleUser {
			prompt = input[i].Text()
		}
	}

	if prompt == "" {
		return
	}

	turns := []core.Turn{
		{Role: core.RoleUser, Content: prompt},
		{Role: core.RoleAssistant, Content: answer},
	}

	if a.opts.Memory.Add(runCtx.Context, turns, runCtx.UserID) == nil {
		runCtx.LogWarn("agent.memory.not_stored", "agent", a.name, "run", runCtx.RunID)
	}
}

// executeCalls runs the calls of one model turn and returns one response
// content per call, in call order.
func (a *Agent) executeCalls(runCtx *core.RunContext, calls []core.FunctionCall) []core.Content {
	out := make([]core.Content, len(calls))

	if len(calls) == 1 {
		out[0] = a.executeCall(runCtx, calls[0])
		return out
	}

	maxPar := a.opts.MaxParallelTools
	if maxPar <= 0 || maxPar > len(calls) {
		maxPar = len(calls)
	}

	sem := make(chan struct{}, maxPar)

	var wg sync.WaitGroup

	for i, fc := range calls {
		wg.Add(1)
		sem <- struct{}{}

		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()

			out[idx] = a.executeCall(runCtx, fc)
		}(i, fc)
	}

	wg.Wait()

	return out
}

func (a *Agent) executeCall(runCtx *core.RunContext, fc core.FunctionCall) core.Content {
	start := time.Now()

	callCtx := runCtx
	if a.opts.ToolTimeout > 0 {
		ctx, cancel := context.WithTimeout(runCtx.Context, a.opts.ToolTimeout)
		defer cancel()

		scoped := *runCtx
		scoped.Context = ctx
		callCtx = &scoped
	}

	toolCtx := core.NewToolContext(callCtx, fc.ID)

	var (
		result any
		err    error
	)

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Tool: fc.Name, Value: r, Stack: debug.Stack()}
				runCtx.LogError("agent.function.panic", "agent", a.name, "function", fc.Name, "recover", r)
			}
		}()

		result, err = a.registry.Call(toolCtx, fc.Name, json.RawMessage(fc.Arguments))
	}()

	runCtx.LogInfo(
		"agent.function.executed",
		"agent", a.name,
		"function", fc.Name,
		"function_call_id", fc.ID,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	if tl, ok := a.opts.Logger.(toolCallLogger); ok {
		tl.LogToolCall(fc.Name, time.Since(start), err == nil, err)
	}

	return core.NewFunctionResponseContent(fc.ID, fc.Name, result, err)
}

// toolCallLogger is implemented by loggers that keep per-tool execution records.
type toolCallLogger interface {
	LogToolCall(tool string, dur time.Duration, success bool, err error)
}

// PanicError reports a tool that panicked.
type PanicError struct {
	Tool  string
	Value any
	Stack []byte
}

func (p *PanicError) Error() string { return fmt.Sprintf("tool %s panicked: %v", p.Tool, p.Value) }

// IsPanic reports whether err came from a recovered tool panic.
func IsPanic(err error) bool {
	var p *PanicError
	return errors.As(err, &p)
}

func ensureCallIDs(calls []core.FunctionCall) []core.FunctionCall {
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = "call_" + core.NewID()
		}
	}

	return calls
}

func withCallIDs(c core.Content, calls []core.FunctionCall) core.Content {
	parts := make([]core.Part, 0, len(c.Parts))
	i := 0

	for _, p := range c.Parts {
		if _, ok := p.(core.FunctionCallPart); ok {
			parts = append(parts, core.FunctionCallPart{FunctionCall: calls[i]})
			i++
			continue
		}

		parts = append(parts, p)
	}

	return core.Content{Role: c.Role, Parts: parts}
}
