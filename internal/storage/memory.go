package storage

import (
	"context"
	"slices"
	"sync"

	"github.com/bobmcallan/tradeonly/internal/interfaces"
)

// MemoryStore keeps watchlists in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	lists map[string][]string
}

var _ interfaces.WatchlistRepository = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{lists: map[string][]string{}}
}

func (m *MemoryStore) List(_ context.Context, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Clone(m.lists[userID])
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func (m *MemoryStore) Insert(_ context.Context, userID, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !slices.Contains(m.lists[userID], symbol) {
		m.lists[userID] = append(m.lists[userID], symbol)
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, userID, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := slices.Index(m.lists[userID], symbol); i >= 0 {
		m.lists[userID] = slices.Delete(m.lists[userID], i, i+1)
	}
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
