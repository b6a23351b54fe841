package userstate

import (
	"context"
	"sync"
)

// MemoryStore keeps encoded state in process. Development and tests only:
// state is lost on restart and not shared between instances.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Load(_ context.Context, userID string) (State, error) {
	m.mu.RLock()
	b, ok := m.data[userID]
	m.mu.RUnlock()
	if !ok {
		return State{}, ErrNotFound
	}
	return decode(b)
}

func (m *MemoryStore) Update(_ context.Context, userID string, fn UpdateFunc) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var s State
	b, found := m.data[userID]
	if found {
		var err error
		if s, err = decode(b); err != nil {
			return State{}, err
		}
	}
	if !fn(&s, found) {
		return s, nil
	}
	b, err := encode(s)
	if err != nil {
		return State{}, err
	}
	m.data[userID] = b
	return s, nil
}

func (m *MemoryStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	delete(m.data, userID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
