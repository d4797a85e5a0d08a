package tool

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/toolmesh/core"
	"github.com/hupe1980/toolmesh/model"
)

// Registry holds tools by name. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a registry pre-populated with tools.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool)}
	if err := r.Register(tools...); err != nil {
		return nil, err
	}

	return r, nil
}

// Register adds tools. Empty or duplicate names are rejected and nothing from
// the batch is added.
func (r *Registry) Register(tools ...Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(tools))

	for _, t := range tools {
		name := t.Name()
		if name == "" {
			return fmt.Errorf("tool name must not be empty")
		}

		if _, exists := r.tools[name]; exists {
			return fmt.Errorf("tool %q already registered", name)
		}

		if _, dup := seen[name]; dup {
			return fmt.Errorf("tool %q registered twice", name)
		}

		seen[name] = struct{}{}
	}

	for _, t := range tools {
		r.tools[t.Name()] = t
	}

	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]

	return t, ok
}

// List returns all tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })

	return out
}

// Definitions returns the function declarations handed to a model.
func (r *Registry) Definitions() []model.ToolDefinition {
	tools := r.List()

	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	return defs
}

// Call decodes rawArgs and invokes the named tool. An unknown name yields a
// NOT_FOUND ToolError and malformed JSON a VALIDATION_ERROR.
func (r *Registry) Call(toolCtx *core.ToolContext, name string, rawArgs json.RawMessage) (any, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, NewToolError(name, fmt.Sprintf("unknown tool %q", name), CodeNotFound)
	}

	args := map[string]any{}

	if len(rawArgs) > 0 && string(rawArgs) != "null" {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return nil, &ToolError{
				Tool:    name,
				Message: fmt.Sprintf("invalid arguments: %v", err),
				Code:    CodeValidation,
			}
		}
	}

	return t.Call(toolCtx, args)
}
