package service

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aai-storage/mining-dashboard/internal/gateway"
	"github.com/aai-storage/mining-dashboard/internal/metrics"
)

// SessionService keeps one MiningController per open dashboard session
type SessionService struct {
	gw          gateway.Gateway
	metrics     *metrics.Metrics
	idleTimeout time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*MiningController
}

// NewSessionService creates a session registry. Sessions idle for longer
// than idleTimeout are closed the next time a session is created; zero
// keeps them until they are closed explicitly.
func NewSessionService(gw gateway.Gateway, m *metrics.Metrics, idleTimeout time.Duration) *SessionService {
	return &SessionService{
		gw:          gw,
		metrics:     m,
		idleTimeout: idleTimeout,
		now:         time.Now,
		sessions:    make(map[string]*MiningController),
	}
}

// Create opens a new session
func (s *SessionService) Create() *MiningController {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()

	c := newMiningController(uuid.New().String(), s.gw, s.metrics, s.now)
	s.sessions[c.ID()] = c
	s.metrics.ActiveSessions.Set(float64(len(s.sessions)))
	return c
}

// Get returns the controller of an open session
func (s *SessionService) Get(id string) (*MiningController, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return c, nil
}

// Close closes a session and forgets it
func (s *SessionService) Close(id string) error {
	s.mu.Lock()
	c, ok := s.sessions[id]
	delete(s.sessions, id)
	s.metrics.ActiveSessions.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	c.Close()
	return nil
}

// CloseAll closes every session, used on shutdown
func (s *SessionService) CloseAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*MiningController)
	s.metrics.ActiveSessions.Set(0)
	s.mu.Unlock()

	for _, c := range sessions {
		c.Close()
	}
}

func (s *SessionService) expireLocked() {
	if s.idleTimeout <= 0 {
		return
	}
	cutoff := s.now().Add(-s.idleTimeout)
	for id, c := range s.sessions {
		if c.idleSince().Before(cutoff) {
			log.Printf("[SessionService] Closing idle session %s", id)
			c.Close()
			delete(s.sessions, id)
		}
	}
}
