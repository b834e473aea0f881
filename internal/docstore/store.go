// Package docstore abstracts where the medical document corpus lives.
// Ingestion only ever reads from it.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
)

type Store interface {
	// List returns the keys of every document currently in the corpus.
	List(ctx context.Context) ([]string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

type Factory func(args interface{}) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(storeType string, args interface{}) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(storeType))
	if key == "" {
		return nil, fmt.Errorf("docstore.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported docstore type: %s", storeType)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("docstore config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode docstore config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode docstore config: %w", err)
	}
	return nil
}
