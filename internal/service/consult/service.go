package consult

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docvisit/backend/internal/model/consult"
)

var (
	// ErrSessionNotFound is returned for any operation on an unknown session.
	ErrSessionNotFound = errors.New("session not found")
)

// Service holds consultation state for the process lifetime. Nothing is
// persisted; a restart forgets every visit.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]consult.Session
	messages map[string][]consult.Message
}

// NewService bootstraps the in-memory consultation store.
func NewService() *Service {
	return &Service{
		sessions: make(map[string]consult.Session),
		messages: make(map[string][]consult.Message),
	}
}

// CreateSession provisions an anonymous consultation. Age fields are
// optional intake hints.
func (s *Service) CreateSession(_ context.Context, age int, ageCategory string) (consult.Session, error) {
	session := consult.Session{
		ID:          uuid.NewString(),
		Age:         age,
		AgeCategory: ageCategory,
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.messages[session.ID] = make([]consult.Message, 0, 16)
	s.mu.Unlock()

	return session, nil
}

// SaveMessage appends a message to the session history. History is
// append-only; stored entries are never updated.
func (s *Service) SaveMessage(_ context.Context, message consult.Message) error {
	if message.SessionID == "" {
		return ErrSessionNotFound
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
func (s *Service) GetSession(_ context.Context, sessionID string) (consult.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return consult.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// LoadTranscript returns a copy of the stored messages for the session, in
// call order.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]consult.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]consult.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}
