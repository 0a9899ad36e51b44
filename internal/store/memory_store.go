package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/meghshah/paisawatch/internal/account"
	"github.com/meghshah/paisawatch/internal/behavior"
)

// MemoryStore is an in-memory Store for tests and development.
type MemoryStore struct {
	mu        sync.RWMutex
	accounts  map[string]*account.Snapshot
	baselines map[string]*behavior.Baseline
	patterns  map[string][]*behavior.Pattern // accountID → patterns
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:  make(map[string]*account.Snapshot),
		baselines: make(map[string]*behavior.Baseline),
		patterns:  make(map[string][]*behavior.Pattern),
	}
}

func (m *MemoryStore) CreateAccount(_ context.Context, snap *account.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accounts[snap.ID]; exists {
		return ErrConflict
	}
	cp := snap.Clone()
	cp.Version = 1
	m.accounts[snap.ID] = cp
	snap.Version = 1
	return nil
}

func (m *MemoryStore) LoadAccount(_ context.Context, id string) (*account.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.accounts[id]
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	return snap.Clone(), nil
}

func (m *MemoryStore) SaveAccount(_ context.Context, snap *account.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.accounts[snap.ID]
	if !ok {
		return account.ErrAccountNotFound
	}
	if current.Version != snap.Version {
		return ErrConflict
	}
	cp := snap.Clone()
	cp.Version = snap.Version + 1
	m.accounts[snap.ID] = cp
	snap.Version = cp.Version
	return nil
}

func (m *MemoryStore) ListAccounts(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.accounts))
	for id := range m.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) LoadBaseline(_ context.Context, accountID string) (*behavior.Baseline, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.baselines[accountID]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (m *MemoryStore) SaveBaseline(_ context.Context, b *behavior.Baseline) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *b
	m.baselines[b.AccountID] = &cp
	return nil
}

func (m *MemoryStore) SavePattern(_ context.Context, accountID string, p *behavior.Pattern) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.patterns[accountID]
	for i, existing := range list {
		if existing.ID == p.ID {
			cp := *p
			list[i] = &cp
			return nil
		}
	}
	cp := *p
	m.patterns[accountID] = append(list, &cp)
	return nil
}

func (m *MemoryStore) RecentPatterns(_ context.Context, accountID string, since time.Time) ([]*behavior.Pattern, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*behavior.Pattern
	for _, p := range m.patterns[accountID] {
		if !p.LastDetected.Before(since) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastDetected.After(out[j].LastDetected)
	})
	return out, nil
}
