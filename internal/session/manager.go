package session

import "sync"

// Manager owns every live ConversationSession, keyed by session id and
// provider. Sessions from different users never share state; the manager
// itself is safe for concurrent handlers.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*ConversationSession
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]map[string]*ConversationSession),
	}
}

// Conversation returns the session for (sessionID, provider), creating it
// on first use. Mirrors the per-provider message lists of the UI: each
// provider page has its own transcript.
func (m *Manager) Conversation(sessionID, provider string) *ConversationSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	byProvider, ok := m.sessions[sessionID]
	if !ok {
		byProvider = make(map[string]*ConversationSession)
		m.sessions[sessionID] = byProvider
	}

	conv, ok := byProvider[provider]
	if !ok {
		conv = New(provider)
		byProvider[provider] = conv
	}
	return conv
}

// Reset drops all transcripts for a session id. Feedback arriving for
// dropped turns is silently ignored downstream.
func (m *Manager) Reset(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}
