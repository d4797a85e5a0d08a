// Package session houses implementations of core.SessionStore.
//
// The tool server uses a store to continue /chat conversations across
// requests. Add durable backends in sub-packages; only the wiring layer
// decides which implementation to instantiate.
package session
