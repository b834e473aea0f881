package vectorindex

import (
	"context"
	"math"
	"sort"
	"sync"
)

// memoryIndex keeps everything in process memory. It backs tests and
// index-less development setups; contents do not survive a restart.
type memoryIndex struct {
	mu      sync.RWMutex
	model   string
	entries map[string]Entry
}

func init() {
	Register("memory", createMemoryIndex)
}

func createMemoryIndex(args interface{}, embedModel string) (Index, error) {
	_ = args
	return NewMemory(embedModel), nil
}

// NewMemory is exported for tests that need a concrete in-memory index.
func NewMemory(embedModel string) Index {
	return &memoryIndex{
		model:   embedModel,
		entries: make(map[string]Entry),
	}
}

func (m *memoryIndex) Upsert(ctx context.Context, entries []Entry) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range entries {
		m.entries[entry.ID] = entry
	}
	return nil
}

func (m *memoryIndex) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	_ = ctx
	if topK <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]Match, 0, len(m.entries))
	for _, entry := range m.entries {
		matches = append(matches, Match{
			Chunk: entry.Chunk,
			Score: cosineSimilarity(vector, entry.Vector),
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *memoryIndex) Count(ctx context.Context) (int64, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.entries)), nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
