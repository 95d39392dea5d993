package prefs

import (
	"context"
	"fmt"
	"sync"
)

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process Store for tests and ephemeral deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	prefs    map[string]string
	watch    []string
	watchSet map[string]bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		prefs:    map[string]string{},
		watchSet: map[string]bool{},
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) GetPreference(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.prefs[key]
	return v, ok, nil
}

func (m *MemoryStore) SetPreference(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[key] = value
	return nil
}

func (m *MemoryStore) AllPreferences(_ context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.prefs))
	for k, v := range m.prefs {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) Watchlist(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.watch))
	copy(out, m.watch)
	return out, nil
}

func (m *MemoryStore) AddSymbol(_ context.Context, symbol string) error {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return fmt.Errorf("prefs: empty symbol")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watchSet[symbol] {
		return nil
	}
	m.watchSet[symbol] = true
	m.watch = append(m.watch, symbol)
	return nil
}

func (m *MemoryStore) RemoveSymbol(_ context.Context, symbol string) error {
	symbol = normalizeSymbol(symbol)
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.watchSet[symbol] {
		return nil
	}
	delete(m.watchSet, symbol)
	for i, s := range m.watch {
		if s == symbol {
			m.watch = append(m.watch[:i], m.watch[i+1:]...)
			break
		}
	}
	return nil
}
