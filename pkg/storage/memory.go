package storage

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// MemoryStorage keeps saves in process memory. It backs tests and the
// "memory" storage backend.
type MemoryStorage struct {
	mu        sync.RWMutex
	saves     map[string]memorySave
	pingError error
}

type memorySave struct {
	data      []byte
	updatedAt time.Time
}

// Ensure MemoryStorage implements Storage interface
var _ Storage = (*MemoryStorage)(nil)

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{saves: make(map[string]memorySave)}
}

// SetPingError configures the storage to fail on ping with the given error
func (m *MemoryStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

func (m *MemoryStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) SaveSession(ctx context.Context, name string, data []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves[name] = memorySave{data: slices.Clone(data), updatedAt: time.Now().UTC()}
	return nil
}

func (m *MemoryStorage) LoadSession(ctx context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.saves[name]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(s.data), nil
}

func (m *MemoryStorage) DeleteSession(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.saves[name]; !ok {
		return ErrNotFound
	}
	delete(m.saves, name)
	return nil
}

func (m *MemoryStorage) ListSessions(ctx context.Context) ([]SaveInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SaveInfo, 0, len(m.saves))
	for name, s := range m.saves {
		out = append(out, SaveInfo{Name: name, Size: len(s.data), UpdatedAt: s.updatedAt})
	}
	SortSaves(out)
	return out, nil
}

// SortSaves orders saves by name.
func SortSaves(saves []SaveInfo) {
	slices.SortFunc(saves, func(a, b SaveInfo) int {
		return strings.Compare(a.Name, b.Name)
	})
}
