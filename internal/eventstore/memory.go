package eventstore

import (
	"context"
	"sync"

	"github.com/roundtable/engine/pkg/types"
)

// MemoryStore is the reference Store implementation: an in-process map
// guarded by a mutex. It is the default for tests and single-process
// deployments that don't need events to survive a restart.
type MemoryStore struct {
	mu   sync.RWMutex
	logs map[string][]types.Event
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{logs: make(map[string][]types.Event)}
}

func (m *MemoryStore) Append(_ context.Context, sessionID string, e types.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[sessionID] = append(m.logs[sessionID], e)
	return nil
}

func (m *MemoryStore) LoadAll(_ context.Context, sessionID string) ([]types.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := m.logs[sessionID]
	out := make([]types.Event, len(events))
	copy(out, events)
	return out, nil
}

func (m *MemoryStore) Overwrite(_ context.Context, sessionID string, events []types.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]types.Event, len(events))
	copy(cp, events)
	m.logs[sessionID] = cp
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.logs, sessionID)
	return nil
}

func (m *MemoryStore) Sessions(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.logs))
	for id := range m.logs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MemoryStore) Close() error { return nil }
