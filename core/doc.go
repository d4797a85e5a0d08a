// Package core provides the foundational domain types, interfaces and execution
// contexts shared by toolmesh packages:
//
//   - Conversation turns and role-based Content with typed Parts
//   - The MemoryStore contract implemented by hosted and in-process backends
//   - RunContext / ToolContext (scoped execution for tool invocations)
//   - ModelLimiter guarding agent loops against runaway model calls
//
// Implementation concerns (HTTP clients, SMTP sessions, model providers) live
// in their own packages and depend on the small interfaces declared here.
package core
