package vectorstore

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store used for tests and for the helper
// coordinator's fingerprint cache. Writes are atomic per entry
// (spec.md §5): a single map write under the lock.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Record)}
}

func (s *MemoryStore) Add(_ context.Context, id string, embedding []float32, content string, metadata map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = Record{ID: id, Content: content, Embedding: embedding, Metadata: metadata}
	return nil
}

func (s *MemoryStore) Search(_ context.Context, queryEmbedding []float32, k int) ([]Record, error) {
	s.mu.RLock()
	candidates := make([]Record, 0, len(s.data))
	for _, r := range s.data {
		candidates = append(candidates, r)
	}
	s.mu.RUnlock()
	return rankByCosine(queryEmbedding, candidates, k), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.data[id]
	if !ok {
		return nil, false, nil
	}
	return &r, true, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[id]
	delete(s.data, id)
	return ok, nil
}

// Len reports the number of stored records, used by idempotency tests
// (spec.md invariant 5 / §8 testable property 7).
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
