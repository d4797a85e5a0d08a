package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/hupe1980/toolmesh/core"
)

type storedMemory struct {
	ID        string
	UserID    string
	Memory    string
	UpdatedAt time.Time
}

// InMemoryStore is a naive process-local MemoryStore:
//   - Add keeps every user turn verbatim as one memory (no LLM extraction)
//   - Search scores memories by the share of query keywords they contain
//
// Safe for concurrent use. Suitable for tests and offline demos only.
type InMemoryStore struct {
	mu      sync.RWMutex
	byUser  map[string][]storedMemory // userID -> memories in insertion order
	idIndex map[string]string         // memoryID -> userID
	now     func() time.Time
}

var _ core.MemoryStore = (*InMemoryStore)(nil)

// NewInMemoryStore creates a new in-memory memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byUser:  make(map[string][]storedMemory),
		idIndex: make(map[string]string),
		now:     time.Now,
	}
}

// Add stores the user turns of the conversation and returns an
// acknowledgement shaped like the hosted API's.
func (m *InMemoryStore) Add(_ context.Context, userID string, turns []core.Turn) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	type event struct {
		ID     string `json:"id"`
		Memory string `json:"memory"`
		Event  string `json:"event"`
	}

	events := []event{}

	for _, t := range turns {
		if t.Role != core.RoleUser || strings.TrimSpace(t.Content) == "" {
			continue
		}

		sm := storedMemory{
			ID:        core.NewID(),
			UserID:    userID,
			Memory:    strings.TrimSpace(t.Content),
			UpdatedAt: m.now().UTC(),
		}

		m.byUser[userID] = append(m.byUser[userID], sm)
		m.idIndex[sm.ID] = userID

		events = append(events, event{ID: sm.ID, Memory: sm.Memory, Event: "ADD"})
	}

	return json.Marshal(map[string]any{"results": events})
}

// Search returns up to limit memories of the user ranked by keyword overlap.
// An empty query matches every memory.
func (m *InMemoryStore) Search(_ context.Context, userID, query string, limit int) ([]core.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keywords := keywordsOf(query)
	results := []core.SearchResult{}

	for _, sm := range m.byUser[userID] {
		score := 1.0
		if len(keywords) > 0 {
			score = overlap(keywords, sm.Memory)
			if score == 0 {
				continue
			}
		}

		ts := sm.UpdatedAt.Format(time.RFC3339)
		results = append(results, core.SearchResult{
			ID:        sm.ID,
			Memory:    sm.Memory,
			Score:     score,
			UpdatedAt: &ts,
			Metadata:  map[string]any{"user_id": sm.UserID},
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// Delete removes a stored memory by id.
func (m *InMemoryStore) Delete(_ context.Context, memoryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	userID, ok := m.idIndex[memoryID]
	if !ok {
		return fmt.Errorf("memory %s not found", memoryID)
	}

	mems := m.byUser[userID]
	for i, sm := range mems {
		if sm.ID == memoryID {
			m.byUser[userID] = append(mems[:i], mems[i+1:]...)
			break
		}
	}

	delete(m.idIndex, memoryID)

	return nil
}

// keywordsOf lowercases text and keeps words of three or more letters.
func keywordsOf(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	seen := map[string]bool{}
	out := make([]string, 0, len(words))

	for _, w := range words {
		if len([]rune(w)) < 3 || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}

	return out
}

func overlap(keywords []string, memory string) float64 {
	have := map[string]bool{}
	for _, w := range keywordsOf(memory) {
		have[w] = true
	}

	hits := 0
	for _, k := range keywords {
		if have[k] {
			hits++
		}
	}

	return float64(hits) / float64(len(keywords))
}
