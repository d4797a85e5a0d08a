package core

import "context"

// SessionStore keeps the transcript of multi-turn conversations, keyed by a
// caller-chosen session id.
type SessionStore interface {
	// Load returns the transcript of sessionID; unknown ids yield an empty one.
	Load(ctx context.Context, sessionID string) ([]Content, error)

	// Save replaces the transcript of sessionID.
	Save(ctx context.Context, sessionID string, contents []Content) error

	// Delete forgets sessionID.
	Delete(ctx context.Context, sessionID string) error
}
