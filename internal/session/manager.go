// Package session keeps one orchestrated conversation per browser session.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/handoff-voice/internal/conversation"
	"github.com/ashureev/handoff-voice/internal/orchestrator"
)

// SinkFactory builds an extra event sink for a session, such as an audit
// log. It may return nil.
type SinkFactory func(sessionID string) orchestrator.Sink

// Manager owns the live sessions.
type Manager struct {
	cfg     orchestrator.Config
	deps    orchestrator.Deps
	sinks   SinkFactory
	logger  *slog.Logger
	mu      sync.RWMutex
	active  map[string]*Session
	nowFunc func() time.Time
}

// NewManager returns a manager that builds machines from cfg and deps.
// Store, Sink and Player in deps are replaced per session.
func NewManager(cfg orchestrator.Config, deps orchestrator.Deps, sinks SinkFactory, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:     cfg,
		deps:    deps,
		sinks:   sinks,
		logger:  logger.With("component", "session"),
		active:  make(map[string]*Session),
		nowFunc: time.Now,
	}
}

// Get returns the session with id, if any.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.active[id]
	return s, ok
}

// GetOrCreate returns the session with id, creating it on first use.
func (m *Manager) GetOrCreate(id string) *Session {
	if s, ok := m.Get(id); ok {
		s.Touch()
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.active[id]; ok {
		s.Touch()
		return s
	}
	s := m.newSession(id)
	m.active[id] = s
	m.logger.Info("session created", "session_id", id)
	return s
}

func (m *Manager) newSession(id string) *Session {
	s := &Session{
		ID:       id,
		logger:   m.logger.With("session_id", id),
		player:   &relayPlayer{},
		lastSeen: m.nowFunc(),
		subs:     make(map[int]chan orchestrator.Event),
	}
	s.machine = m.buildMachine(s)
	return s
}

func (m *Manager) buildMachine(s *Session) *orchestrator.Machine {
	deps := m.deps
	deps.Store = conversation.NewStore()
	deps.Player = s.player
	deps.Logger = s.logger
	var extra orchestrator.Sink
	if m.sinks != nil {
		extra = m.sinks(s.ID)
	}
	deps.Sink = orchestrator.Sinks(s, extra)
	return orchestrator.New(m.cfg, deps)
}

// Reset discards the conversation of session id and starts a fresh one.
// Connected subscribers and the attached player stay in place.
func (m *Manager) Reset(id string) *Session {
	s := m.GetOrCreate(id)
	fresh := m.buildMachine(s)

	s.mu.Lock()
	old := s.machine
	s.machine = fresh
	s.mu.Unlock()

	old.Close()
	s.Publish(orchestrator.Event{Type: orchestrator.EventAgent, Agent: fresh.Store().Active()})
	m.logger.Info("session reset", "session_id", id)
	return s
}

// Close ends and forgets session id.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	s, ok := m.active[id]
	delete(m.active, id)
	m.mu.Unlock()
	if ok {
		s.close()
		m.logger.Info("session closed", "session_id", id)
	}
}

// CloseIdle closes sessions unused for longer than ttl whose machine is
// idle, returning their ids.
func (m *Manager) CloseIdle(ttl time.Duration) []string {
	cutoff := m.nowFunc().Add(-ttl)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.active {
		if s.LastSeen().Before(cutoff) && s.Machine().State() == orchestrator.Idle {
			expired = append(expired, s)
			delete(m.active, id)
		}
	}
	m.mu.Unlock()

	ids := make([]string, 0, len(expired))
	for _, s := range expired {
		s.close()
		ids = append(ids, s.ID)
	}
	return ids
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// CloseAll ends every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.active
	m.active = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range all {
		s.close()
	}
}
