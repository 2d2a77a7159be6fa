package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/handoff-voice/internal/domain"
	"github.com/ashureev/handoff-voice/internal/orchestrator"
	"github.com/ashureev/handoff-voice/internal/speech"
)

// Session is one browser's conversation: its state machine plus the
// connections currently watching it.
type Session struct {
	ID string

	logger *slog.Logger
	player *relayPlayer

	mu       sync.Mutex
	machine  *orchestrator.Machine
	lastSeen time.Time
	subs     map[int]chan orchestrator.Event
	nextSub  int
	closed   bool
}

// Machine returns the session's state machine.
func (s *Session) Machine() *orchestrator.Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine
}

// Touch marks the session as used now.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// LastSeen returns when the session was last used.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Publish implements orchestrator.Sink. Slow subscribers lose events
// rather than stall the machine.
func (s *Session) Publish(e orchestrator.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- e:
		default:
			s.logger.Warn("subscriber too slow, event dropped", "subscriber", id, "event", e.Type)
		}
	}
}

// Subscribe returns a channel of future events and a function that
// unsubscribes. The channel is closed when the session closes.
func (s *Session) Subscribe(buffer int) (<-chan orchestrator.Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan orchestrator.Event, buffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// AttachPlayer routes playback to p until the returned function is called.
// A newer attachment replaces an older one.
func (s *Session) AttachPlayer(p orchestrator.Player) func() {
	return s.player.attach(p)
}

func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	m := s.machine
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.mu.Unlock()
	m.Close()
}

// relayPlayer forwards to whichever player is attached. With none
// attached, clips finish immediately.
type relayPlayer struct {
	mu      sync.Mutex
	current orchestrator.Player
	gen     int
}

func (r *relayPlayer) attach(p orchestrator.Player) func() {
	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.current = p
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.gen == gen {
			r.current = nil
		}
	}
}

func (r *relayPlayer) Play(ctx context.Context, agent domain.AgentID, clip speech.Clip) error {
	r.mu.Lock()
	p := r.current
	r.mu.Unlock()
	if p == nil {
		return ctx.Err()
	}
	return p.Play(ctx, agent, clip)
}
