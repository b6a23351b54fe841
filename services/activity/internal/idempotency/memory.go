package idempotency

import (
	"context"
	"sync"
	"time"
)

// memoryStore is a development-only store. State is lost on restart and
// is not shared between instances.
type memoryStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	seen map[string]time.Time
}

func newMemoryStore(ttl time.Duration) *memoryStore {
	return &memoryStore{ttl: ttl, now: time.Now, seen: make(map[string]time.Time)}
}

func (s *memoryStore) Check(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if exp, ok := s.seen[eventID]; ok && now.Before(exp) {
		return true, nil
	}
	s.seen[eventID] = now.Add(s.ttl)
	if len(s.seen)%1024 == 0 {
		for id, exp := range s.seen {
			if !now.Before(exp) {
				delete(s.seen, id)
			}
		}
	}
	return false, nil
}

func (s *memoryStore) Forget(_ context.Context, eventID string) error {
	s.mu.Lock()
	delete(s.seen, eventID)
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Close() error { return nil }
