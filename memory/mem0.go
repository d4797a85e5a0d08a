package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hupe1980/toolmesh/core"
	"github.com/hupe1980/toolmesh/logging"
	"github.com/tidwall/gjson"
)

// ErrMissingAPIKey is returned by NewMem0Store when no API key is supplied.
var ErrMissingAPIKey = errors.New("mem0 api key is not set")

// APIError is returned when the mem0 API answers with a non-2xx status.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mem0 %s failed with status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Mem0Options configure the mem0 client.
type Mem0Options struct {
	BaseURL      string
	Timeout      time.Duration
	OutputFormat string
	Logger       logging.Logger
}

// Mem0Store is a core.MemoryStore backed by the hosted mem0 platform.
type Mem0Store struct {
	client *resty.Client
	opts   Mem0Options
}

var _ core.MemoryStore = (*Mem0Store)(nil)

// NewMem0Store creates a mem0 client authenticated with apiKey.
func NewMem0Store(apiKey string, optFns ...func(o *Mem0Options)) (*Mem0Store, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	opts := Mem0Options{
		BaseURL:      "https://api.mem0.ai",
		Timeout:      30 * time.Second,
		OutputFormat: "v1.1",
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	opts.Logger = logging.OrNoOp(opts.Logger)

	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetAuthScheme("Token").
		SetAuthToken(apiKey).
		SetHeader("Accept", "application/json")

	return &Mem0Store{client: client, opts: opts}, nil
}

// Ping validates the API key against the platform.
func (s *Mem0Store) Ping(ctx context.Context) error {
	resp, err := s.client.R().SetContext(ctx).Get("/v1/ping/")
	if err != nil {
		return fmt.Errorf("mem0 ping: %w", err)
	}

	if resp.IsError() {
		return &APIError{Op: "ping", StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	s.opts.Logger.Debug("mem0.ping.success", "status", resp.StatusCode())

	return nil
}

// Add sends a conversation for fact extraction and returns the raw
// acknowledgement body.
func (s *Mem0Store) Add(ctx context.Context, userID string, turns []core.Turn) (json.RawMessage, error) {
	body := map[string]any{
		"messages":      turns,
		"user_id":       userID,
		"output_format": s.opts.OutputFormat,
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/v1/memories/")
	if err != nil {
		return nil, fmt.Errorf("mem0 add: %w", err)
	}

	if resp.IsError() {
		return nil, &APIError{Op: "add", StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	return json.RawMessage(resp.Body()), nil
}

// Search runs a semantic query over the user's memories. Both the v1.1
// {"results": [...]} envelope and a bare array are accepted.
func (s *Mem0Store) Search(ctx context.Context, userID, query string, limit int) ([]core.SearchResult, error) {
	body := map[string]any{
		"query":         query,
		"user_id":       userID,
		"output_format": s.opts.OutputFormat,
	}
	if limit > 0 {
		body["limit"] = limit
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/v1/memories/search/")
	if err != nil {
		return nil, fmt.Errorf("mem0 search: %w", err)
	}

	if resp.IsError() {
		return nil, &APIError{Op: "search", StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	return parseSearchResults(resp.Body())
}

// Delete removes a single memory by id.
func (s *Mem0Store) Delete(ctx context.Context, memoryID string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("id", memoryID).
		Delete("/v1/memories/{id}/")
	if err != nil {
		return fmt.Errorf("mem0 delete: %w", err)
	}

	if resp.IsError() {
		return &APIError{Op: "delete", StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	return nil
}

func parseSearchResults(raw []byte) ([]core.SearchResult, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("mem0 search: invalid json response")
	}

	items := gjson.ParseBytes(raw)
	if items.IsObject() {
		items = items.Get("results")
	}

	if !items.Exists() || items.Type == gjson.Null {
		return []core.SearchResult{}, nil
	}

	if !items.IsArray() {
		return nil, fmt.Errorf("mem0 search: unexpected response shape")
	}

	results := make([]core.SearchResult, 0, len(items.Array()))

	items.ForEach(func(_, item gjson.Result) bool {
		r := core.SearchResult{
			ID:     item.Get("id").String(),
			Memory: item.Get("memory").String(),
			Score:  item.Get("score").Float(),
		}

		if ua := item.Get("updated_at"); ua.Exists() && ua.Type != gjson.Null {
			s := ua.String()
			r.UpdatedAt = &s
		}

		if md := item.Get("metadata"); md.IsObject() {
			r.Metadata, _ = md.Value().(map[string]any)
		}

		results = append(results, r)

		return true
	})

	return results, nil
}
