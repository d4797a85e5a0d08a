package core

import (
	"context"
	"encoding/json"
)

// MemoryStore persists conversations and answers semantic recall queries on
// behalf of a user. Hosted backends extract facts asynchronously, so a Search
// issued right after Add may not see the new memories yet.
type MemoryStore interface {
	Add(ctx context.Context, userID string, turns []Turn) (json.RawMessage, error)
	Search(ctx context.Context, userID, query string, limit int) ([]SearchResult, error)
	Delete(ctx context.Context, memoryID string) error
}

// SearchResult is a raw memory hit as reported by a backend.
type SearchResult struct {
	ID        string
	Memory    string
	Score     float64
	UpdatedAt *string
	Metadata  map[string]any
}

// MemoryRecord is the projection handed to callers of a memory search.
type MemoryRecord struct {
	Memory    string  `json:"memory"`
	UpdatedAt *string `json:"updated_at"`
}

// Records projects results to MemoryRecords, dropping hits without a memory.
// The returned slice is never nil.
func Records(results []SearchResult) []MemoryRecord {
	records := make([]MemoryRecord, 0, len(results))
	for _, r := range results {
		if r.Memory == "" {
			continue
		}
		records = append(records, MemoryRecord{Memory: r.Memory, UpdatedAt: r.UpdatedAt})
	}
	return records
}
