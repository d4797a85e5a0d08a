package memory

import (
	"context"
	"encoding/json"

	"github.com/hupe1980/toolmesh/core"
	"github.com/hupe1980/toolmesh/logging"
)

// DefaultSearchLimit is the number of memories Search returns when the caller
// passes a non-positive limit.
const DefaultSearchLimit = 5

// AdapterOptions configure an Adapter.
type AdapterOptions struct {
	Logger logging.Logger
}

// Adapter is the fail-soft face of a MemoryStore: errors are logged and
// turned into empty results so callers never have to handle them. As a
// consequence a failed search and a search without hits look the same.
type Adapter struct {
	store  core.MemoryStore
	logger logging.Logger
}

// NewAdapter wraps store. A nil store is allowed and makes every call a no-op.
func NewAdapter(store core.MemoryStore, optFns ...func(o *AdapterOptions)) *Adapter {
	opts := AdapterOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Adapter{store: store, logger: logging.OrNoOp(opts.Logger)}
}

// Enabled reports whether a backing store is configured.
func (a *Adapter) Enabled() bool { return a.store != nil }

// Ping validates the store's credentials when the store supports it. Without
// a store it returns ErrMissingAPIKey.
func (a *Adapter) Ping(ctx context.Context) error {
	if a.store == nil {
		return ErrMissingAPIKey
	}

	if p, ok := a.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}

	return nil
}

// Add sends the conversation to the store and returns its acknowledgement,
// or nil when there is no store, no turns or the call fails.
func (a *Adapter) Add(ctx context.Context, turns []core.Turn, userID string) json.RawMessage {
	if a.store == nil {
		return nil
	}

	if len(turns) == 0 {
		a.logger.Warn("memory.add.empty", "user_id", userID)
		return nil
	}

	for _, t := range turns {
		if err := t.Validate(); err != nil {
			a.logger.Error("memory.add.invalid_turn", "user_id", userID, "error", err.Error())
			return nil
		}
	}

	a.logger.Info("memory.add.start", "user_id", userID, "turns", len(turns))

	resp, err := a.store.Add(ctx, userID, turns)
	if err != nil {
		a.logger.Error("memory.add.error", "user_id", userID, "error", err.Error())
		return nil
	}

	a.logger.Info("memory.add.sent", "user_id", userID, "response", string(resp))

	return resp
}

// Search returns the {memory, updated_at} projection of the hits for query.
// The result is empty (never nil) when nothing matched or the call failed.
func (a *Adapter) Search(ctx context.Context, query, userID string, limit int) []core.MemoryRecord {
	if a.store == nil {
		return []core.MemoryRecord{}
	}

	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	a.logger.Info("memory.search.start", "user_id", userID, "query", query, "limit", limit)

	results, err := a.store.Search(ctx, userID, query, limit)
	if err != nil {
		a.logger.Error("memory.search.error", "user_id", userID, "error", err.Error())
		return []core.MemoryRecord{}
	}

	records := core.Records(results)
	if len(records) == 0 {
		a.logger.Warn("memory.search.empty", "user_id", userID)
		return records
	}

	a.logger.Info("memory.search.success", "user_id", userID, "count", len(records))

	return records
}

// SearchJSON is Search encoded as two-space indented JSON ("[]" when empty).
func (a *Adapter) SearchJSON(ctx context.Context, query, userID string, limit int) string {
	return EncodeRecords(a.Search(ctx, query, userID, limit))
}

// EncodeRecords renders records as two-space indented JSON.
func EncodeRecords(records []core.MemoryRecord) string {
	if len(records) == 0 {
		return "[]"
	}

	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "[]"
	}

	return string(b)
}
