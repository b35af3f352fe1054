package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a turn index falls outside the current
// transcript range, e.g. feedback arriving after a session reset.
var ErrNotFound = fmt.Errorf("session: turn not found")

// ConversationSession is an append-only log of turns for one provider
// context. Indexes are dense, zero-based, and stable for the lifetime of
// the session; turns are never reordered or deleted.
//
// UI events within a session are serialized by the renderer, but sessions
// are shared between HTTP handlers, so access is guarded anyway.
type ConversationSession struct {
	mu       sync.Mutex
	provider string
	userID   string
	turns    []Turn
}

// New creates an empty session for the given provider. Each session gets a
// stable synthetic user id that is attached to trace metadata.
func New(provider string) *ConversationSession {
	return &ConversationSession{
		provider: provider,
		userID:   "user-" + uuid.NewString()[:8],
	}
}

// Provider returns the provider name this session talks to.
func (s *ConversationSession) Provider() string {
	return s.provider
}

// UserID returns the session-scoped user identifier.
func (s *ConversationSession) UserID() string {
	return s.userID
}

// Append assigns the next dense index to the turn, appends it, and returns
// the assigned index.
func (s *ConversationSession) Append(t Turn) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.Index = len(s.turns)
	s.turns = append(s.turns, t)
	return t.Index
}

// Get returns the turn at index, or ErrNotFound if the index is outside
// the current dense range.
func (s *ConversationSession) Get(index int) (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.turns) {
		return Turn{}, ErrNotFound
	}
	return s.turns[index], nil
}

// SetFeedback records feedback on the turn at index. Repeated writes
// overwrite silently; only one user-visible submission is expected, and
// idempotency for the score itself is handled at the trace layer.
func (s *ConversationSession) SetFeedback(index int, value Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.turns) {
		return ErrNotFound
	}
	s.turns[index].Feedback = value
	return nil
}

// Len returns the number of turns in the transcript.
func (s *ConversationSession) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Turns returns a snapshot copy of the transcript in order.
func (s *ConversationSession) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}
