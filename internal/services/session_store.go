package services

import (
	"context"
	"cycle-nav-service/internal/domain"
	"cycle-nav-service/internal/ports"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionStore is the in-memory registry of navigation sessions. Sessions
// are not persisted.
type SessionStore struct {
	routes ports.RouteProvider
	tags   ports.TagSource
	config func() NavigatorConfig
	log    *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Navigator
}

// NewSessionStore creates a store. config is consulted for every new session,
// so reloaded settings apply to sessions created afterwards.
func NewSessionStore(
	routes ports.RouteProvider,
	tags ports.TagSource,
	config func() NavigatorConfig,
	log *zap.Logger,
) *SessionStore {
	return &SessionStore{
		routes:   routes,
		tags:     tags,
		config:   config,
		log:      log,
		sessions: make(map[string]*Navigator),
	}
}

// Create plans a route between start and end and registers a new session
// for it. No session is registered if planning fails.
func (s *SessionStore) Create(ctx context.Context, start, end domain.Coordinates) (*Navigator, error) {
	id := uuid.NewString()
	n := NewNavigator(id, s.routes, s.tags, s.config(), s.log)

	if err := n.Plan(ctx, start, end); err != nil {
		n.Close()
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.mu.Lock()
	s.sessions[id] = n
	s.mu.Unlock()

	return n, nil
}

func (s *SessionStore) Get(id string) (*Navigator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("get session %q: %w", id, domain.ErrSessionNotFound)
	}
	return n, nil
}

// Delete closes and forgets a session.
func (s *SessionStore) Delete(id string) error {
	s.mu.Lock()
	n, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("delete session %q: %w", id, domain.ErrSessionNotFound)
	}
	n.Close()
	return nil
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close closes every session.
func (s *SessionStore) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Navigator)
	s.mu.Unlock()

	for _, n := range sessions {
		n.Close()
	}
}
