package cache

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store. Stored bytes are copied on the way in
// and out so callers can never mutate an entry in place.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]map[string]memoryEntry // namespace -> name -> entry
}

type memoryEntry struct {
	key  Key
	data []byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]map[string]memoryEntry)}
}

func (s *MemoryStore) Load(_ context.Context, key Key) ([]byte, error) {
	s.mu.RLock()
	e, ok := s.entries[key.Namespace()][key.Name()]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), e.data...), nil
}

func (s *MemoryStore) Save(_ context.Context, key Key, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.entries[key.Namespace()]
	if !ok {
		ns = make(map[string]memoryEntry)
		s.entries[key.Namespace()] = ns
	}
	ns[key.Name()] = memoryEntry{key: key, data: append([]byte(nil), data...)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.entries[key.Namespace()]
	if !ok {
		return nil
	}
	delete(ns, key.Name())
	if len(ns) == 0 {
		delete(s.entries, key.Namespace())
	}
	return nil
}

func (s *MemoryStore) List(_ context.Context, namespace string) ([]Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Listing, 0, len(s.entries[namespace]))
	for _, e := range s.entries[namespace] {
		out = append(out, Listing{Key: e.key, Size: int64(len(e.data))})
	}
	return out, nil
}

func (s *MemoryStore) Namespaces(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.entries))
	for ns := range s.entries {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
