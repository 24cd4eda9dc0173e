package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hopewhisperer/hope-whisperer/internal/model/chat"
)

var (
	ErrSessionIDRequired = errors.New("session id is required")
	ErrAgentRequired     = errors.New("agent id is required")
	ErrSessionExists     = errors.New("session already recorded")
	ErrSessionNotFound   = errors.New("session not found")
	ErrEmptyMessage      = errors.New("message content is empty")
)

// Service keeps the transcript of every voice session started in this
// process. Nothing is persisted.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	messages map[string][]chat.Message
}

// NewService bootstraps an empty transcript log.
func NewService() *Service {
	return &Service{
		sessions: make(map[string]chat.Session),
		messages: make(map[string][]chat.Message),
	}
}

// CreateSession registers a session under the id the adapter assigned.
func (s *Service) CreateSession(_ context.Context, sessionID, agentID string) (chat.Session, error) {
	if sessionID == "" {
		return chat.Session{}, ErrSessionIDRequired
	}
	if strings.TrimSpace(agentID) == "" {
		return chat.Session{}, ErrAgentRequired
	}

	session := chat.Session{
		ID:        sessionID,
		AgentID:   agentID,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; ok {
		return chat.Session{}, ErrSessionExists
	}
	s.sessions[session.ID] = session
	s.messages[session.ID] = make([]chat.Message, 0, 16)

	return session, nil
}

// SetConversationID records the vendor's id for a session.
func (s *Service) SetConversationID(_ context.Context, sessionID, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	session.ConversationID = conversationID
	s.sessions[sessionID] = session
	return nil
}

// SaveMessage appends a message to the session history.
func (s *Service) SaveMessage(_ context.Context, message chat.Message) error {
	if message.SessionID == "" {
		return ErrSessionNotFound
	}
	if strings.TrimSpace(message.Content) == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[message.SessionID]; !ok {
		return ErrSessionNotFound
	}

	message.ID = uuid.NewString()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	s.messages[message.SessionID] = append(s.messages[message.SessionID], message)
	return nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// LoadTranscript returns stored messages for the provided session.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}
