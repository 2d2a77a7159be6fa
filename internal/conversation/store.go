// Package conversation holds the single shared history of a session.
package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/handoff-voice/internal/domain"
)

// Store is the append-only conversation state of one session: the active
// agent, the message history and the display transcript. It is safe for
// concurrent use; readers always receive copies.
type Store struct {
	mu         sync.RWMutex
	active     domain.AgentID
	messages   []domain.Message
	transcript []domain.TranscriptEntry
	now        func() time.Time
	newID      func() string
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides transcript id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// NewStore returns an empty store with the default agent active.
func NewStore(opts ...Option) *Store {
	s := &Store{
		active: domain.DefaultAgent,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Active returns the agent currently in control.
func (s *Store) Active() domain.AgentID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// SetActive hands control to id.
func (s *Store) SetActive(id domain.AgentID) {
	s.mu.Lock()
	s.active = id
	s.mu.Unlock()
}

// AppendUser records a user utterance as both a message and a transcript entry.
func (s *Store) AppendUser(text string) domain.TranscriptEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.messages = append(s.messages, domain.Message{
		Role:      domain.RoleUser,
		Content:   text,
		CreatedAt: now,
	})
	return s.appendTranscriptLocked(domain.SpeakerUser, text, now)
}

// AppendAssistant records a reply spoken by agent.
func (s *Store) AppendAssistant(agent domain.AgentID, text string) domain.TranscriptEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.messages = append(s.messages, domain.Message{
		Role:      domain.RoleAssistant,
		Content:   text,
		AgentID:   agent,
		CreatedAt: now,
	})
	return s.appendTranscriptLocked(string(agent), text, now)
}

// Handoff records to's intro message, makes to active, then adds the intro
// to the transcript. All three happen under one lock so readers never see
// the intro attributed to an inactive agent.
func (s *Store) Handoff(to domain.AgentID, intro string) domain.TranscriptEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.messages = append(s.messages, domain.Message{
		Role:      domain.RoleAssistant,
		Content:   intro,
		AgentID:   to,
		CreatedAt: now,
	})
	s.active = to
	return s.appendTranscriptLocked(string(to), intro, now)
}

func (s *Store) appendTranscriptLocked(speaker, text string, now time.Time) domain.TranscriptEntry {
	e := domain.TranscriptEntry{
		ID:        s.newID(),
		Speaker:   speaker,
		Text:      text,
		Timestamp: now.UnixMilli(),
	}
	s.transcript = append(s.transcript, e)
	return e
}

// Messages returns a copy of the history.
func (s *Store) Messages() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Transcript returns a copy of the transcript.
func (s *Store) Transcript() []domain.TranscriptEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.TranscriptEntry, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Reset discards all history and reactivates the default agent.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = domain.DefaultAgent
	s.messages = nil
	s.transcript = nil
}
