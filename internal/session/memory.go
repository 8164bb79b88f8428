package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps sessions for the lifetime of the process. There is no eviction.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	open     Opener
	now      func() time.Time
}

func NewMemoryStore(open Opener) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		open:     open,
		now:      time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Create holds the store lock across the open call so that concurrent creators for the
// same id observe the first insert. Opening a context does not touch the network.
func (m *MemoryStore) Create(ctx context.Context, id string) (*Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s, false, nil
	}

	conv, err := m.open(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open conversation: %w", err)
	}

	s := &Session{ID: id, Conversation: conv, CreatedAt: m.now()}
	m.sessions[id] = s
	return s, true, nil
}

// Save is a no-op: the conversation handle is the state.
func (m *MemoryStore) Save(context.Context, *Session) error {
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Exists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	_, ok := m.sessions[id]
	m.mu.Unlock()
	return ok, nil
}

func (m *MemoryStore) Live(_ context.Context, s *Session) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[s.ID] == s, nil
}

func (m *MemoryStore) Discard(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[s.ID] == s {
		delete(m.sessions, s.ID)
	}
	return nil
}

// Len returns the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
