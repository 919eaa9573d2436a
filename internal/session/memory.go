package session

import (
	"context"
	"sync"
	"time"

	"github.com/devforge-org/devforge-backend/internal/logger"
)

const sweepEvery = 128

// MemoryStore keeps sessions in process. Expired entries are dropped on read
// and swept every sweepEvery writes.
type MemoryStore struct {
	log    *logger.Logger
	mu     sync.RWMutex
	items  map[string]*Session
	writes int
	now    func() time.Time
}

func NewMemoryStore(log *logger.Logger) *MemoryStore {
	return &MemoryStore{
		log:   log.With("component", "MemorySessionStore"),
		items: make(map[string]*Session),
		now:   time.Now,
	}
}

func (m *MemoryStore) Put(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.items[s.ID] = &cp
	m.writes++
	if m.writes%sweepEvery == 0 {
		m.sweepLocked()
	}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.items[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if !m.now().Before(s.ExpiresAt) {
		m.mu.Lock()
		delete(m.items, id)
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *MemoryStore) sweepLocked() {
	now := m.now()
	removed := 0
	for id, s := range m.items {
		if !now.Before(s.ExpiresAt) {
			delete(m.items, id)
			removed++
		}
	}
	if removed > 0 {
		m.log.Debug("swept expired sessions", "removed", removed, "remaining", len(m.items))
	}
}
