// Package orchestrator sequences one session's voice loop: recording,
// transcription, intent detection, reasoning, playback and handoff.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ashureev/handoff-voice/internal/conversation"
	"github.com/ashureev/handoff-voice/internal/domain"
	"github.com/ashureev/handoff-voice/internal/reasoning"
	"github.com/ashureev/handoff-voice/internal/speech"
)

const (
	DefaultMinAudioBytes     = 1000
	DefaultStatusRevertDelay = 2 * time.Second
)

var (
	// ErrBusy is returned when an operation is not admitted in the current state.
	ErrBusy = errors.New("orchestrator busy")
	// ErrNotRecording is returned by StopRecording outside Recording.
	ErrNotRecording = errors.New("not recording")
	// ErrEmptyUtterance is returned for blank typed input.
	ErrEmptyUtterance = errors.New("empty utterance")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("orchestrator closed")
)

const tracerName = "github.com/ashureev/handoff-voice/internal/orchestrator"

// Detector finds explicit transfer requests in user text.
type Detector interface {
	Detect(text string, current domain.AgentID) (domain.AgentID, bool)
}

// Reasoner produces the active agent's reply.
type Reasoner interface {
	Complete(ctx context.Context, history []domain.Message, active domain.AgentID) (reasoning.Reply, error)
}

// Config holds tunables.
type Config struct {
	MinAudioBytes     int
	StatusRevertDelay time.Duration
}

// Deps are the collaborators of a Machine. Sink and Logger may be nil.
type Deps struct {
	Store       *conversation.Store
	Detector    Detector
	Reasoner    Reasoner
	Transcriber speech.Transcriber
	Synthesizer speech.Synthesizer
	Player      Player
	Sink        Sink
	Logger      *slog.Logger
}

// Snapshot is a consistent copy of the session for rendering.
type Snapshot struct {
	State      string                   `json:"state"`
	Status     string                   `json:"status"`
	Active     domain.AgentID           `json:"activeAgent"`
	Messages   []domain.Message         `json:"messages"`
	Transcript []domain.TranscriptEntry `json:"transcript"`
}

// Machine is the state machine of one session. Operations may be called
// from any goroutine; at most one utterance pipeline runs at a time.
type Machine struct {
	cfg  Config
	deps Deps
	log  *slog.Logger

	mu          sync.Mutex
	state       State
	status      string
	statusGen   uint64
	statusTimer *time.Timer
	speakGen    uint64
	speakCancel context.CancelFunc
	closed      bool
}

// New returns an idle machine.
func New(cfg Config, deps Deps) *Machine {
	if cfg.MinAudioBytes <= 0 {
		cfg.MinAudioBytes = DefaultMinAudioBytes
	}
	if cfg.StatusRevertDelay <= 0 {
		cfg.StatusRevertDelay = DefaultStatusRevertDelay
	}
	if deps.Store == nil {
		deps.Store = conversation.NewStore()
	}
	if deps.Player == nil {
		deps.Player = NopPlayer{}
	}
	if deps.Sink == nil {
		deps.Sink = SinkFunc(func(Event) {})
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Machine{
		cfg:    cfg,
		deps:   deps,
		log:    deps.Logger.With("component", "orchestrator"),
		state:  Idle,
		status: StatusReady,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Status returns the current status line.
func (m *Machine) Status() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Store returns the conversation the machine drives.
func (m *Machine) Store() *conversation.Store {
	return m.deps.Store
}

// Snapshot returns a copy of the session.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	state, status := m.state, m.status
	m.mu.Unlock()
	return Snapshot{
		State:      state.String(),
		Status:     status,
		Active:     m.deps.Store.Active(),
		Messages:   m.deps.Store.Messages(),
		Transcript: m.deps.Store.Transcript(),
	}
}

// fireLocked applies t to the current state. It is the only place the
// state field is written.
func (m *Machine) fireLocked(t trigger) bool {
	next, ok := transitions[m.state][t]
	if !ok {
		m.log.Debug("transition rejected", "state", m.state.String(), "trigger", t.String())
		return false
	}
	prev := m.state
	m.state = next
	if prev != next {
		m.publishLocked(Event{Type: EventState, State: next.String()})
	}
	return true
}

// publishLocked forwards e to the sink. A closed machine publishes nothing.
func (m *Machine) publishLocked(e Event) {
	if m.closed {
		return
	}
	m.deps.Sink.Publish(e)
}

func (m *Machine) fire(t trigger) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fireLocked(t)
}

// fireWithStatus fires t and, if accepted, sets the status line.
func (m *Machine) fireWithStatus(t trigger, status string, transient bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.fireLocked(t) {
		return false
	}
	m.setStatusLocked(status, transient)
	return true
}

// setStatusLocked publishes status. Transient lines revert to StatusReady
// after the configured delay unless something newer replaced them.
func (m *Machine) setStatusLocked(status string, transient bool) {
	m.statusGen++
	if m.statusTimer != nil {
		m.statusTimer.Stop()
		m.statusTimer = nil
	}
	m.status = status
	m.publishLocked(Event{Type: EventStatus, Status: status})
	if !transient || m.closed {
		return
	}
	gen := m.statusGen
	m.statusTimer = time.AfterFunc(m.cfg.StatusRevertDelay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.statusGen != gen {
			return
		}
		m.statusTimer = nil
		m.status = StatusReady
		m.publishLocked(Event{Type: EventStatus, Status: StatusReady})
	})
}

// StartRecording begins capturing an utterance. While an agent is
// speaking it interrupts playback first. It reports whether recording
// started.
func (m *Machine) StartRecording() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	switch m.state {
	case Idle:
	case Speaking:
		m.interruptLocked()
	default:
		return false
	}
	m.fireLocked(trigRecordStart)
	m.setStatusLocked(StatusRecording, false)
	return true
}

// interruptLocked cancels the playback in flight. The pipeline that owns
// it observes the changed generation and stops without side effects.
func (m *Machine) interruptLocked() {
	m.speakGen++
	if m.speakCancel != nil {
		m.speakCancel()
		m.speakCancel = nil
	}
	m.log.Info("playback interrupted")
}

// StopRecording ends capture and runs the utterance pipeline to completion.
// Payloads shorter than the configured minimum are dropped silently.
func (m *Machine) StopRecording(ctx context.Context, audio []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.state != Recording {
		m.mu.Unlock()
		return ErrNotRecording
	}
	if len(audio) < m.cfg.MinAudioBytes {
		m.fireLocked(trigRecordDiscarded)
		m.setStatusLocked(StatusReady, false)
		m.mu.Unlock()
		m.log.Debug("recording discarded", "bytes", len(audio))
		return nil
	}
	m.fireLocked(trigRecordStop)
	m.setStatusLocked(StatusTranscribing, false)
	m.mu.Unlock()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "orchestrator.utterance")
	defer span.End()
	span.SetAttributes(attribute.Int("audio.bytes", len(audio)))

	text, err := m.deps.Transcriber.Transcribe(ctx, audio)
	if err != nil {
		m.fireWithStatus(trigTranscribeFailed, StatusSTTFailed, true)
		return fmt.Errorf("transcribe: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		m.fireWithStatus(trigTranscribeFailed, StatusNotHeard, true)
		return nil
	}
	return m.handleUtterance(ctx, text)
}

// SubmitText feeds typed text into the pipeline as if it had just been
// transcribed. It is only admitted while idle.
func (m *Machine) SubmitText(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyUtterance
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if !m.fireLocked(trigTextSubmitted) {
		m.mu.Unlock()
		return ErrBusy
	}
	m.mu.Unlock()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "orchestrator.utterance")
	defer span.End()
	span.SetAttributes(attribute.Bool("typed", true))
	return m.handleUtterance(ctx, text)
}

// MicrophoneDenied records that audio capture is unavailable.
func (m *Machine) MicrophoneDenied() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fireLocked(trigMicDenied) {
		m.setStatusLocked(StatusMicDenied, false)
	}
}

func (m *Machine) handleUtterance(ctx context.Context, text string) error {
	store := m.deps.Store
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	entry := store.AppendUser(text)
	m.publishLocked(Event{Type: EventTranscript, Entry: &entry})
	m.mu.Unlock()

	active := store.Active()
	log := m.log.With("agent", active)

	if target, ok := m.deps.Detector.Detect(text, active); ok {
		log.Info("transfer requested by user", "target", target)
		m.transfer(ctx, trigIntentDetected, target)
		return nil
	}

	if !m.fireWithStatus(trigTranscribed, StatusThinking, false) {
		return nil
	}
	reply, err := m.deps.Reasoner.Complete(ctx, store.Messages(), active)
	if err != nil {
		m.fireWithStatus(trigReasoningFailed, StatusFailed, true)
		return fmt.Errorf("reasoning: %w", err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	if !m.fireLocked(trigReplyReady) {
		m.mu.Unlock()
		return nil
	}
	// Recorded even when empty once the directive is stripped.
	entry = store.AppendAssistant(active, reply.Text)
	m.publishLocked(Event{Type: EventTranscript, Entry: &entry})
	m.setStatusLocked(StatusSpeaking, false)
	speakCtx, gen := m.beginSpeakLocked(ctx)
	m.mu.Unlock()

	if !m.speak(ctx, speakCtx, gen, active, reply.Text) {
		return nil
	}

	if reply.HasDirective() && reply.Directive != store.Active() {
		log.Info("transfer requested by agent", "target", reply.Directive)
		m.transfer(ctx, trigHandoff, reply.Directive)
		return nil
	}
	m.fireWithStatus(trigPlaybackDone, StatusReady, false)
	return nil
}

// transfer fires t, which must lead into Transferring, then hands control
// to target and speaks its intro. Nothing changes when t is rejected.
func (m *Machine) transfer(ctx context.Context, t trigger, target domain.AgentID) {
	store := m.deps.Store
	to := domain.MustLookup(target)

	m.mu.Lock()
	if m.closed || !m.fireLocked(t) {
		m.mu.Unlock()
		return
	}
	from := domain.MustLookup(store.Active())
	m.setStatusLocked(StatusTransferring(to), false)
	intro := to.HandoffIntro(from)
	entry := store.Handoff(to.ID, intro)
	m.publishLocked(Event{Type: EventAgent, Agent: to.ID})
	m.publishLocked(Event{Type: EventTranscript, Entry: &entry})
	m.fireLocked(trigIntroReady)
	m.setStatusLocked(StatusSpeaking, false)
	speakCtx, gen := m.beginSpeakLocked(ctx)
	m.mu.Unlock()

	m.log.Info("handoff complete", "from", from.ID, "to", to.ID)

	if m.speak(ctx, speakCtx, gen, to.ID, intro) {
		m.fireWithStatus(trigPlaybackDone, StatusReady, false)
	}
}

// beginSpeakLocked claims playback for the Speaking state just entered.
// It must run in the same critical section as that transition so a
// barge-in always finds something to cancel.
func (m *Machine) beginSpeakLocked(ctx context.Context) (context.Context, uint64) {
	m.speakGen++
	speakCtx, cancel := context.WithCancel(ctx)
	m.speakCancel = cancel
	return speakCtx, m.speakGen
}

// speak synthesizes and plays text in agent's voice under the playback
// claimed by beginSpeakLocked. It reports false when playback was
// interrupted, in which case the caller must not touch state. Synthesis
// and playback failures are logged and count as finished.
func (m *Machine) speak(ctx, speakCtx context.Context, gen uint64, agent domain.AgentID, text string) bool {
	if strings.TrimSpace(text) != "" {
		if err := m.playText(speakCtx, agent, text); err != nil && speakCtx.Err() == nil {
			m.log.Warn("playback failed", "agent", agent, "error", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.speakGen != gen {
		return false
	}
	m.speakCancel()
	m.speakCancel = nil
	if ctx.Err() != nil {
		m.fireLocked(trigPlaybackDone)
		return false
	}
	return true
}

func (m *Machine) playText(ctx context.Context, agent domain.AgentID, text string) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "orchestrator.speak")
	defer span.End()
	span.SetAttributes(attribute.String("agent", string(agent)))

	clip, err := m.deps.Synthesizer.Synthesize(ctx, text, domain.VoiceFor(agent))
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	if err := m.deps.Player.Play(ctx, agent, clip); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	return nil
}

// Close interrupts playback and stops status timers. Pipelines still in
// flight finish their current gateway call and then stop.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	if m.state == Speaking {
		m.interruptLocked()
	}
	if m.statusTimer != nil {
		m.statusTimer.Stop()
		m.statusTimer = nil
	}
}
