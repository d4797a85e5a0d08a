// Package memory contains core.MemoryStore implementations and the fail-soft
// Adapter tools use to talk to them.
//
//   - Mem0Store talks to the hosted mem0 REST API. mem0 extracts facts from a
//     conversation asynchronously, so memories added a moment ago may not be
//     searchable yet.
//   - InMemoryStore is a process-local store for tests and offline runs.
//
// Depend on core.MemoryStore and pick an implementation at wiring time.
package memory
