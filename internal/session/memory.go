package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// sweepInterval is the minimum gap between two full scans for expired
// sessions. Scans piggyback on Create, so an idle server does no work.
const sweepInterval = time.Minute

// MemoryStore keeps sessions in a map. It is the default when no Redis URL
// is configured and is only suitable for a single instance: sessions are
// lost on restart.
//
// Expired entries go away two ways: Get drops the one it reads, and Create
// sweeps the whole map at most once per sweepInterval. Sessions that are
// never presented again therefore do not pile up.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]Session
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		sessions: make(map[string]Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemoryStore) Create(_ context.Context, userID int64) (*Session, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("session: invalid user id %d", userID)
	}
	id, err := newID()
	if err != nil {
		return nil, err
	}

	now := m.now()
	s := Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	m.mu.Lock()
	if now.Sub(m.lastSweep) >= sweepInterval {
		m.sweepLocked(now)
	}
	m.sessions[id] = s
	m.mu.Unlock()

	return &s, nil
}

// Sweep removes every expired session and returns how many it removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(m.now())
}

func (m *MemoryStore) sweepLocked(now time.Time) int {
	m.lastSweep = now
	removed := 0
	for id, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Get expires lazily: a stale entry is removed the first time it is read.
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	if s.Expired(m.now()) {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

// Len returns the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
