// Package vectorindex stores chunk embeddings and answers nearest-neighbor
// queries.
//
// Score convention, fixed once for every implementation: scores are cosine
// similarity, higher means more similar, range [-1, 1].
//
// Every entry is namespaced by the embedding model that produced its vector.
// Queries only match entries of the index's own model, so an ingest/query
// model mismatch shows up as zero matches instead of silently meaningless
// rankings.
package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/carepoint/medassist/internal/model"
)

type Entry struct {
	ID     string
	Vector []float32
	Chunk  model.DocumentChunk
}

type Match struct {
	Chunk model.DocumentChunk
	Score float32
}

type Index interface {
	// Upsert is idempotent on entry id; re-ingestion overwrites in place.
	Upsert(ctx context.Context, entries []Entry) error
	// Query returns at most topK matches ordered best-first.
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
	// Count reports how many entries exist for this index's embedding model.
	Count(ctx context.Context) (int64, error)
}

// Factory builds an index bound to one embedding model namespace.
type Factory func(args interface{}, embedModel string) (Index, error)

var registry = map[string]Factory{}

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func New(indexType string, args interface{}, embedModel string) (Index, error) {
	key := strings.ToLower(strings.TrimSpace(indexType))
	if key == "" {
		return nil, fmt.Errorf("vector_index.type is required")
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported vector index type: %s", indexType)
	}
	return factory(args, embedModel)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("vector index config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode vector index config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode vector index config: %w", err)
	}
	return nil
}
