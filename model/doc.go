// Package model defines the provider-agnostic abstraction the agent loop uses
// to talk to language models.
//
// A Request carries the instructions, the conversation so far (text, tool
// calls and tool results as core.Content) and the tool declarations. A
// Response carries the model's next content: text, function calls or both.
//
// Providers live in sub-packages (openai, anthropic). MockModel replays
// scripted responses for tests and offline examples.
package model
