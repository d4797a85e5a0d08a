// Package logging provides the minimal logging interface used across toolmesh
// and adapters for Go's log/slog.
//
// The Logger interface defines the leveled methods (Debug, Info, Warn, Error)
// every adapter, tool and server accepts through its options. This package
// includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping an existing *slog.Logger
//   - ToolMeshLogger, a configurable slog logger with contextual cloning
//   - NoOpLogger for silent operation (tests, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "text", false)
//	client := weather.NewClient(func(o *weather.Options) { o.Logger = logger })
//
// Messages are short dotted event names ("weather.lookup.success") followed by
// slog-style key/value pairs.
package logging
