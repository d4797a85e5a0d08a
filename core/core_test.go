package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *testLogger) record(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, msg)
}

func (l *testLogger) Debug(msg string, _ ...any) { l.record(msg) }
func (l *testLogger) Info(msg string, _ ...any)  { l.record(msg) }
func (l *testLogger) Warn(msg string, _ ...any)  { l.record(msg) }
func (l *testLogger) Error(msg string, _ ...any) { l.record(msg) }

func TestTurnValidate(t *testing.T) {
	assert.NoError(t, Turn{Role: RoleUser, Content: "hi"}.Validate())
	assert.NoError(t, Turn{Role: RoleAssistant}.Validate())
	assert.Error(t, Turn{Role: "robot", Content: "beep"}.Validate())
}

func TestContentHelpers(t *testing.T) {
	c := Content{Role: RoleAssistant, Parts: []Part{
		TextPart{Text: "Looking "},
		FunctionCallPart{FunctionCall: FunctionCall{ID: "c1", Name: "get_weather", Arguments: `{"city":"Paris"}`}},
		TextPart{Text: "it up"},
	}}

	assert.Equal(t, "Looking it up", c.Text())
	calls := c.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "get_weather", calls[0].Name)
	assert.Empty(t, c.FunctionResponses())

	resp := NewFunctionResponseContent("c1", "get_weather", nil, errors.New("boom"))
	assert.Equal(t, RoleTool, resp.Role)
	frs := resp.FunctionResponses()
	require.Len(t, frs, 1)
	assert.Equal(t, "boom", frs[0].Error)
}

func TestTurnsFromContents(t *testing.T) {
	turns := TurnsFromContents([]Content{
		NewTextContent(RoleSystem, "be nice"),
		NewTextContent(RoleUser, "I really like Linkin Park."),
		NewFunctionResponseContent("c1", "web_search", "x", nil),
		{Role: RoleAssistant, Parts: []Part{FunctionCallPart{FunctionCall: FunctionCall{Name: "noop"}}}},
		NewTextContent(RoleAssistant, "That is a good choice."),
	})

	assert.Equal(t, []Turn{
		{Role: RoleUser, Content: "I really like Linkin Park."},
		{Role: RoleAssistant, Content: "That is a good choice."},
	}, turns)
}

func TestRecords_DropsEntriesWithoutMemory(t *testing.T) {
	ts := "2025-01-01T00:00:00Z"
	recs := Records([]SearchResult{
		{ID: "1", Memory: "Likes Linkin Park", UpdatedAt: &ts},
		{ID: "2"},
		{ID: "3", Memory: "Lives in Paris"},
	})

	require.Len(t, recs, 2)
	assert.Equal(t, "Likes Linkin Park", recs[0].Memory)
	assert.Equal(t, &ts, recs[0].UpdatedAt)
	assert.Nil(t, recs[1].UpdatedAt)

	empty := Records(nil)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestModelLimiter(t *testing.T) {
	ml := NewModelLimiter(2)
	assert.NoError(t, ml.Increment())
	assert.NoError(t, ml.Increment())
	assert.Equal(t, 0, ml.Remaining())

	err := ml.Increment()
	assert.ErrorIs(t, err, ErrModelCallLimit)
	assert.Equal(t, 3, ml.Count())

	unlimited := NewModelLimiter(0)
	for i := 0; i < 10; i++ {
		assert.NoError(t, unlimited.Increment())
	}
	assert.Equal(t, -1, unlimited.Remaining())
}

func TestToolContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	logger := &testLogger{}
	rc := NewRunContext(ctx, "Arish", "run-1", 0, logger)
	tc := NewToolContext(rc, "fc-1")

	require.NoError(t, tc.Validate())
	assert.Equal(t, "Arish", tc.UserID())
	assert.Equal(t, "run-1", tc.RunID())
	assert.Equal(t, "fc-1", tc.FunctionCallID())
	assert.Same(t, rc, tc.InternalRunContext())

	tc.LogInfo("tool.test")
	assert.Equal(t, []string{"tool.test"}, logger.msgs)

	cancel()
	assert.ErrorIs(t, tc.Context().Err(), context.Canceled)
	assert.ErrorIs(t, rc.Err(), context.Canceled)
}

func TestToolContext_Invalid(t *testing.T) {
	tc := NewToolContext(nil, "")
	assert.False(t, tc.IsValid())
	assert.Error(t, tc.Validate())
	assert.NotNil(t, tc.Context())
	assert.NotNil(t, tc.Logger())
	assert.Empty(t, tc.UserID())
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}
