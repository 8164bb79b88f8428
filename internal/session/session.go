// Package session holds the per-client conversational contexts the relay talks through.
//
// A Session binds a client-supplied id to one remote conversation. Stores decide where
// sessions live (process memory or Redis) and resolve concurrent creation for the same id
// so that exactly one context wins.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"kyro-backend/internal/models"
)

var ErrNotFound = errors.New("session not found")

// Conversation is a handle to a remote conversational context.
// A failed Send must leave History unchanged.
type Conversation interface {
	Send(ctx context.Context, text string) (string, error)
	History() []models.ChatMessage
}

// Opener opens a remote conversational context seeded with history (nil for a new one).
type Opener func(ctx context.Context, history []models.ChatMessage) (Conversation, error)

type Session struct {
	ID           string
	Conversation Conversation
	CreatedAt    time.Time

	token string // identifies this incarnation in shared stores
	mu    sync.Mutex
}

// Lock serialises turns on the session's conversation.
func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// Fresh reports whether no turn has completed on the conversation yet.
func (s *Session) Fresh() bool {
	return len(s.Conversation.History()) == 0
}

type Store interface {
	// Get returns ErrNotFound when no session exists for id.
	Get(ctx context.Context, id string) (*Session, error)
	// Create returns the session for id, opening one if absent. created is true only for
	// the caller whose insert won.
	Create(ctx context.Context, id string) (s *Session, created bool, err error)
	// Save persists the conversation state after a turn.
	Save(ctx context.Context, s *Session) error
	// Delete is a no-op for unknown ids.
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
	// Live reports whether s is still the session stored under its id.
	Live(ctx context.Context, s *Session) (bool, error)
	// Discard deletes s only while it is still the session stored under its id, so a
	// replacement created after a clear is never removed.
	Discard(ctx context.Context, s *Session) error
}

// ScopedID namespaces a client session id by its authenticated owner.
func ScopedID(owner uuid.UUID, id string) string {
	if owner == uuid.Nil {
		return id
	}
	return owner.String() + ":" + id
}
