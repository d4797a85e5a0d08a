// Package agent runs a tool-calling conversation between a model.Model and a
// tool.Registry.
//
// Execution model:
//   - Run resolves the instruction, sends the conversation and the tool
//     declarations to the model, and executes every function call it returns
//   - Tool results are appended to the conversation and the model is asked
//     again until it answers with text only
//   - The number of model calls per run is bounded by core.ModelLimiter
//
// Tool failures, unknown tools and panics inside tools never abort a run; they
// are reported back to the model as error responses.
package agent
