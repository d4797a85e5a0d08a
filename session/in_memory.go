package session

import (
	"context"
	"sync"

	"github.com/hupe1980/toolmesh/core"
)

// InMemoryStore is a volatile SessionStore storing transcripts in a process
// local map. It is safe for concurrent access. Transcripts are copied on the
// way in and out to prevent external mutation of internal state.
type InMemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string][]core.Content
	maxContents int
}

// NewInMemoryStore constructs an empty store. maxContents > 0 bounds every
// transcript; older contents are dropped so the transcript starts with a user
// message.
func NewInMemoryStore(maxContents int) *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string][]core.Content), maxContents: maxContents}
}

var _ core.SessionStore = (*InMemoryStore)(nil)

// Load returns a copy of the transcript.
func (s *InMemoryStore) Load(_ context.Context, sessionID string) ([]core.Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]core.Content(nil), s.sessions[sessionID]...), nil
}

// Save stores a copy of contents, trimmed to the configured bound.
func (s *InMemoryStore) Save(_ context.Context, sessionID string, contents []core.Content) error {
	trimmed := trim(contents, s.maxContents)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sessionID] = append([]core.Content(nil), trimmed...)

	return nil
}

// Delete forgets the session.
func (s *InMemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)

	return nil
}

// Len returns the number of stored sessions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

// trim keeps about max contents and always starts the transcript at a user
// message. When the last max contents hold no user message, the cut moves back
// to the latest user message before them, so one long run is kept whole.
func trim(contents []core.Content, max int) []core.Content {
	if max <= 0 || len(contents) <= max {
		return contents
	}

	cut := len(contents) - max
	for i := cut; i < len(contents); i++ {
		if contents[i].Role == core.RoleUser {
			return contents[i:]
		}
	}

	for i := cut - 1; i >= 0; i-- {
		if contents[i].Role == core.RoleUser {
			return contents[i:]
		}
	}

	return contents
}
