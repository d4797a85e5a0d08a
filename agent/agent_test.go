package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/toolmesh/core"
	"github.com/hupe1980/toolmesh/logging"
	"github.com/hupe1980/toolmesh/memory"
	"github.com/hupe1980/toolmesh/model"
	"github.com/hupe1980/toolmesh/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cityArgs struct {
	City string `json:"city" description:"City"`
}

func weatherTool(calls *atomic.Int32) tool.Tool {
	return tool.NewFunctionToolFromStruct("get_weather", "Weather", cityArgs{}, func(_ *core.ToolContext, args map[string]any) (any, error) {
		calls.Add(1)
		return args["city"].(string) + ": +15°C", nil
	})
}

func newRegistry(t *testing.T, tools ...tool.Tool) *tool.Registry {
	t.Helper()
	r, err := tool.NewRegistry(tools...)
	require.NoError(t, err)
	return r
}

func TestRun_TextOnly(t *testing.T) {
	m := model.NewMockModel(model.TextResponse("Hello!"))
	a := New("voice", m, nil)

	res, err := a.Run(context.Background(), "Arish", "Hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello!", res.Text)
	assert.Equal(t, 1, res.ModelCalls)
	assert.Len(t, res.Contents, 2)
	assert.NotEmpty(t, res.RunID)

	reqs := m.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, DefaultInstruction, reqs[0].Instructions)
	assert.Empty(t, reqs[0].Tools)
}

func TestRun_ToolLoop(t *testing.T) {
	var calls atomic.Int32

	m := model.NewMockModel(
		model.CallResponse(core.FunctionCall{ID: "c1", Name: "get_weather", Arguments: `{"city":"Paris"}`}),
		model.TextResponse("It is 15 degrees in Paris."),
	)
	a := New("voice", m, newRegistry(t, weatherTool(&calls)))

	res, err := a.Run(context.Background(), "Arish", "Weather in Paris?")
	require.NoError(t, err)
	assert.Equal(t, "It is 15 degrees in Paris.", res.Text)
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, 2, res.ModelCalls)

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	require.Len(t, reqs[0].Tools, 1)
	assert.Equal(t, "get_weather", reqs[0].Tools[0].Function.Name)

	second := reqs[1].Contents
	require.Len(t, second, 3)
	frs := second[2].FunctionResponses()
	require.Len(t, frs, 1)
	assert.Equal(t, "c1", frs[0].ID)
	assert.Equal(t, "Paris: +15°C", frs[0].Response)
	assert.Empty(t, frs[0].Error)
}

func TestRun_ToolFailuresAreReportedToModel(t *testing.T) {
	panicky := tool.NewFunctionTool("explode", "Panics", map[string]any{"type": "object", "properties": map[string]any{}},
		func(*core.ToolContext, map[string]any) (any, error) { panic("kaboom") })

	m := model.NewMockModel(
		model.CallResponse(
			core.FunctionCall{ID: "c1", Name: "unknown_tool", Arguments: `{}`},
			core.FunctionCall{ID: "c2", Name: "explode", Arguments: `{}`},
			core.FunctionCall{ID: "c3", Name: "get_weather", Arguments: `{"city":1}`},
		),
		model.TextResponse("Sorry, something went wrong."),
	)

	var calls atomic.Int32
	a := New("voice", m, newRegistry(t, panicky, weatherTool(&calls)))

	res, err := a.Run(context.Background(), "u", "go")
	require.NoError(t, err)
	assert.Equal(t, "Sorry, something went wrong.", res.Text)

	contents := m.Requests()[1].Contents
	require.Len(t, contents, 5)

	var ids []string
	for _, c := range contents[2:] {
		fr := c.FunctionResponses()[0]
		ids = append(ids, fr.ID)
		assert.NotEmpty(t, fr.Error)
	}
	assert.Equal(t, []string{"c1", "c2", "c3"}, ids)
	assert.Contains(t, contents[3].FunctionResponses()[0].Error, "kaboom")
	assert.Zero(t, calls.Load())
}

func TestRun_ModelCallLimit(t *testing.T) {
	loop := model.CallResponse(core.FunctionCall{Name: "get_weather", Arguments: `{"city":"Paris"}`})
	m := model.NewMockModel(loop, loop, loop, loop)

	var calls atomic.Int32
	a := New("voice", m, newRegistry(t, weatherTool(&calls)), func(o *Options) { o.MaxModelCalls = 2 })

	res, err := a.Run(context.Background(), "u", "loop")
	assert.ErrorIs(t, err, core.ErrModelCallLimit)
	assert.Equal(t, 2, res.ModelCalls)
	assert.EqualValues(t, 2, calls.Load())

	for _, c := range res.Contents {
		for _, fc := range c.FunctionCalls() {
			assert.True(t, strings.HasPrefix(fc.ID, "call_"))
		}
	}
}

func TestRun_ModelError(t *testing.T) {
	a := New("voice", model.NewMockModel(), nil)

	_, err := a.Run(context.Background(), "u", "hi")
	assert.ErrorIs(t, err, model.ErrNoMoreResponses)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New("voice", model.NewMockModel(model.TextResponse("x")), nil).Run(ctx, "u", "hi")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_ParallelCallsKeepOrder(t *testing.T) {
	slow := tool.NewFunctionToolFromStruct("get_weather", "Weather", cityArgs{}, func(_ *core.ToolContext, args map[string]any) (any, error) {
		if args["city"] == "A" {
			time.Sleep(20 * time.Millisecond)
		}
		return args["city"], nil
	})

	m := model.NewMockModel(
		model.CallResponse(
			core.FunctionCall{ID: "a", Name: "get_weather", Arguments: `{"city":"A"}`},
			core.FunctionCall{ID: "b", Name: "get_weather", Arguments: `{"city":"B"}`},
		),
		model.TextResponse("done"),
	)

	_, err := New("voice", m, newRegistry(t, slow)).Run(context.Background(), "u", "both")
	require.NoError(t, err)

	contents := m.Requests()[1].Contents
	assert.Equal(t, "A", contents[2].FunctionResponses()[0].Response)
	assert.Equal(t, "B", contents[3].FunctionResponses()[0].Response)
}

func TestRun_ToolTimeout(t *testing.T) {
	blocking := tool.NewFunctionTool("wait", "Waits", map[string]any{"type": "object", "properties": map[string]any{}},
		func(tc *core.ToolContext, _ map[string]any) (any, error) {
			<-tc.Context().Done()
			return nil, tc.Context().Err()
		})

	m := model.NewMockModel(
		model.CallResponse(core.FunctionCall{ID: "w", Name: "wait"}),
		model.TextResponse("gave up"),
	)

	a := New("voice", m, newRegistry(t, blocking), func(o *Options) { o.ToolTimeout = 10 * time.Millisecond })

	res, err := a.Run(context.Background(), "u", "wait")
	require.NoError(t, err)
	assert.Equal(t, "gave up", res.Text)
	assert.Contains(t, m.Requests()[1].Contents[2].FunctionResponses()[0].Error, "deadline exceeded")
}

func TestRun_RemembersConversation(t *testing.T) {
	adapter := memory.NewAdapter(memory.NewInMemoryStore())

	a := New("voice", model.NewMockModel(model.TextResponse("Noted!")), nil, func(o *Options) {
		o.Memory = adapter
	})

	_, err := a.Run(context.Background(), "Arish", "I really like Linkin Park.")
	require.NoError(t, err)

	out := adapter.SearchJSON(context.Background(), "linkin park", "Arish", 5)

	var records []core.MemoryRecord
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "I really like Linkin Park.", records[0].Memory)
}

func TestInstruction(t *testing.T) {
	rc := core.NewRunContext(context.Background(), "Arish", "run-1", 0, nil)

	got, err := NewInstructionFromText("You are talking to {{.user_id}}.").Resolve(rc)
	require.NoError(t, err)
	assert.Equal(t, "You are talking to Arish.", got)

	inst := NewInstructionFromFunc(func(rc *core.RunContext) (string, error) { return "dyn " + rc.RunID, nil })
	assert.False(t, inst.IsStatic())
	got, err = inst.Resolve(rc)
	require.NoError(t, err)
	assert.Equal(t, "dyn run-1", got)

	_, err = NewInstructionFromFunc(func(*core.RunContext) (string, error) { return "", errors.New("boom") }).Resolve(rc)
	assert.Error(t, err)

	m := model.NewMockModel()
	_, err = New("voice", m, nil, func(o *Options) {
		o.Instruction = NewInstructionFromText("{{.broken")
	}).Run(context.Background(), "u", "hi")
	assert.Error(t, err)
	assert.Empty(t, m.Requests())
}

func TestIsPanic(t *testing.T) {
	assert.True(t, IsPanic(&PanicError{Tool: "x", Value: "boom"}))
	assert.False(t, IsPanic(errors.New("x")))
}

func TestRun_LogsToolCalls(t *testing.T) {
	var calls atomic.Int32

	buf := &bytes.Buffer{}
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "json", Output: buf})

	m := model.NewMockModel(
		model.CallResponse(core.FunctionCall{ID: "c1", Name: "get_weather", Arguments: `{"city":"Paris"}`}),
		model.TextResponse("done"),
	)
	a := New("voice", m, newRegistry(t, weatherTool(&calls)), func(o *Options) {
		o.Logger = logger
	})

	_, err := a.Run(context.Background(), "Arish", "Weather in Paris?")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"msg":"tool.execution.completed"`)
	assert.Contains(t, buf.String(), `"tool_name":"get_weather"`)
}
