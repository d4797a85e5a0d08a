package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/toolmesh/core"
	"github.com/hupe1980/toolmesh/search"
)

// WeatherReporter is satisfied by *weather.Client.
type WeatherReporter interface {
	Report(ctx context.Context, city string) string
}

// EmailReporter is satisfied by *email.Sender.
type EmailReporter interface {
	Report(ctx context.Context, to, subject, body, cc string) string
}

// MemoryBackend is satisfied by *memory.Adapter.
type MemoryBackend interface {
	Add(ctx context.Context, turns []core.Turn, userID string) json.RawMessage
	SearchJSON(ctx context.Context, query, userID string, limit int) string
}

// Results of add_memory.
const (
	MemoryStored    = "Memory stored."
	MemoryNotStored = "Memory could not be stored."
)

type weatherArgs struct {
	City string `json:"city" description:"Name of the city, e.g. Paris"`
}

type searchArgs struct {
	Query string `json:"query" description:"What to look up on the web"`
}

type emailArgs struct {
	ToEmail string `json:"to_email" description:"Recipient email address"`
	Subject string `json:"subject" description:"Subject line"`
	Message string `json:"message" description:"Plain text body"`
	CCEmail string `json:"cc_email,omitempty" description:"Optional address to copy"`
}

type memorySearchArgs struct {
	Query string `json:"query" description:"What to recall about the user"`
	Limit int    `json:"limit,omitempty" description:"Maximum number of memories, default 5"`
}

// NewWeatherTool returns the get_weather tool.
func NewWeatherTool(w WeatherReporter) *FunctionTool {
	return NewFunctionToolFromStruct(
		"get_weather",
		"Get the current weather for a given city.",
		weatherArgs{},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return w.Report(tc.Context(), stringArg(args, "city")), nil
		},
	)
}

// NewWebSearchTool returns the web_search tool.
func NewWebSearchTool(s search.Searcher) *FunctionTool {
	return NewFunctionToolFromStruct(
		"web_search",
		"Search the web for information using DuckDuckGo.",
		searchArgs{},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return s.Report(tc.Context(), stringArg(args, "query")), nil
		},
	)
}

// NewEmailTool returns the send_email tool.
func NewEmailTool(e EmailReporter) *FunctionTool {
	return NewFunctionToolFromStruct(
		"send_email",
		"Send an email through Gmail, optionally copying another address.",
		emailArgs{},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return e.Report(
				tc.Context(),
				stringArg(args, "to_email"),
				stringArg(args, "subject"),
				stringArg(args, "message"),
				stringArg(args, "cc_email"),
			), nil
		},
	)
}

// NewAddMemoryTool returns the add_memory tool. Memories are stored for the
// user of the calling run.
func NewAddMemoryTool(m MemoryBackend) *FunctionTool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"messages": map[string]any{
				"type":        "array",
				"description": "Conversation turns to remember",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"role":    map[string]any{"type": "string", "enum": []string{"user", "assistant", "system"}},
						"content": map[string]any{"type": "string"},
					},
					"required": []string{"role", "content"},
				},
			},
		},
		"required": []string{"messages"},
	}

	return NewFunctionTool(
		"add_memory",
		"Remember facts from a conversation with the user.",
		schema,
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			turns, err := turnsArg(args["messages"])
			if err != nil {
				return nil, NewToolError("add_memory", err.Error(), CodeValidation)
			}

			if m.Add(tc.Context(), turns, tc.UserID()) == nil {
				return MemoryNotStored, nil
			}

			return MemoryStored, nil
		},
	)
}

// NewSearchMemoryTool returns the search_memory tool. Results are scoped to
// the user of the calling run.
func NewSearchMemoryTool(m MemoryBackend) *FunctionTool {
	return NewFunctionToolFromStruct(
		"search_memory",
		"Recall what is known about the user. Returns a JSON list of memories.",
		memorySearchArgs{},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			limit := 5
			if v, ok := args["limit"].(float64); ok && v > 0 {
				limit = int(v)
			}

			return m.SearchJSON(tc.Context(), stringArg(args, "query"), tc.UserID(), limit), nil
		},
	)
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func turnsArg(v any) ([]core.Turn, error) {
	items, _ := v.([]any)
	if len(items) == 0 {
		return nil, fmt.Errorf("messages must be a non-empty array")
	}

	turns := make([]core.Turn, 0, len(items))

	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("messages[%d] must be an object", i)
		}

		turn := core.Turn{Role: stringArg(obj, "role"), Content: stringArg(obj, "content")}
		if err := turn.Validate(); err != nil {
			return nil, fmt.Errorf("messages[%d]: %w", i, err)
		}

		turns = append(turns, turn)
	}

	return turns, nil
}
