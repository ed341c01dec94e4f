package training

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kdimtricp/lanepilot/internal/media"
	"github.com/kdimtricp/lanepilot/internal/models"
	"github.com/kdimtricp/lanepilot/internal/notify"
	"github.com/rs/zerolog"
)

// Manager owns one training session per browser session.
type Manager struct {
	cfg        ManagerConfig
	sessions   map[string]*Session
	sessionsMu sync.RWMutex
}

type ManagerConfig struct {
	TotalSteps int
	Interval   time.Duration
	Clock      Clock
	// NewRand returns the random source for a new session. Nil means seeded from time.
	NewRand  func() *rand.Rand
	Notifier func(sessionID string) notify.Notifier
	Logger   zerolog.Logger
	Release  func(media.Selection)
	Finished func(*models.TrainingRun)
}

func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Session returns the session for id, creating it on first use. An empty
// id gets a fresh random one.
func (m *Manager) Session(id string) *Session {
	if id == "" {
		id = uuid.New().String()
	}

	m.sessionsMu.RLock()
	s, ok := m.sessions[id]
	m.sessionsMu.RUnlock()
	if ok {
		return s
	}

	m.sessionsMu.Lock()
	defer m.sessionsMu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s
	}

	cfg := Config{
		TotalSteps: m.cfg.TotalSteps,
		Interval:   m.cfg.Interval,
		Clock:      m.cfg.Clock,
		Logger:     m.cfg.Logger,
		Release:    m.cfg.Release,
		Finished:   m.cfg.Finished,
	}
	if m.cfg.NewRand != nil {
		cfg.Rand = m.cfg.NewRand()
	}
	if m.cfg.Notifier != nil {
		cfg.Notifier = m.cfg.Notifier(id)
	}

	s = NewSession(id, cfg)
	m.sessions[id] = s
	return s
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.sessionsMu.RLock()
	defer m.sessionsMu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove closes one session, cancelling its run and releasing its queue.
func (m *Manager) Remove(id string) bool {
	m.sessionsMu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.sessionsMu.Unlock()

	if ok {
		s.Close()
	}
	return ok
}

func (m *Manager) Len() int {
	m.sessionsMu.RLock()
	defer m.sessionsMu.RUnlock()
	return len(m.sessions)
}

// Close stops every session and releases their queued media.
func (m *Manager) Close() {
	m.sessionsMu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.sessionsMu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
