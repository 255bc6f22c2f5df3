package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is a bounded in-process Store. The least recently used entry
// is evicted when the store is full.
type MemoryStore struct {
	entries *lru.Cache[string, memoryEntry]
	now     func() time.Time

	// mu orders Set against the check-and-remove in PurgeExpired.
	mu sync.Mutex
}

func NewMemoryStore(size int) (*MemoryStore, error) {
	entries, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{entries: entries, now: time.Now}, nil
}

// Get reports expired entries as misses and leaves their removal to
// PurgeExpired, so a concurrent Set of the same key is never dropped.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	entry, ok := s.entries.Get(key)
	if !ok || !s.now().Before(entry.expiresAt) {
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Add(key, memoryEntry{value: stored, expiresAt: s.now().Add(ttl)})
	return nil
}

func (s *MemoryStore) PurgeExpired(_ context.Context) (int, error) {
	now := s.now()
	purged := 0

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range s.entries.Keys() {
		if entry, ok := s.entries.Peek(key); ok && !now.Before(entry.expiresAt) {
			s.entries.Remove(key)
			purged++
		}
	}
	return purged, nil
}
