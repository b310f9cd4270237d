package ledger

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory ledger for tests and dry runs.
type MemoryStore struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

var _ Store = (*MemoryStore)(nil)

// NewMemory creates an empty in-memory ledger.
func NewMemory() *MemoryStore {
	return &MemoryStore{seen: make(map[string]struct{})}
}

func key(topic, arxivID string) string {
	return topic + "\x00" + arxivID
}

// HasSeen reports whether the pair is recorded.
func (s *MemoryStore) HasSeen(_ context.Context, topic, arxivID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[key(topic, arxivID)]
	return ok, nil
}

// MarkSeen records the pair.
func (s *MemoryStore) MarkSeen(_ context.Context, topic, arxivID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[key(topic, arxivID)] = struct{}{}
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// ReadOnly wraps a Store so MarkSeen becomes a no-op. Dry runs read the real
// ledger for dedup but must leave it untouched.
type ReadOnly struct {
	Store
}

// NewReadOnly wraps store read-only.
func NewReadOnly(store Store) *ReadOnly {
	return &ReadOnly{Store: store}
}

// MarkSeen does nothing.
func (r *ReadOnly) MarkSeen(context.Context, string, string) error {
	return nil
}
