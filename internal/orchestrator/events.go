package orchestrator

import (
	"context"
	"fmt"

	"github.com/ashureev/handoff-voice/internal/domain"
	"github.com/ashureev/handoff-voice/internal/speech"
)

// EventType names what changed.
type EventType string

const (
	EventState      EventType = "state"
	EventStatus     EventType = "status"
	EventTranscript EventType = "transcript"
	EventAgent      EventType = "agent"
)

// Event is a notification for whoever renders the session.
type Event struct {
	Type   EventType               `json:"type"`
	State  string                  `json:"state,omitempty"`
	Status string                  `json:"status,omitempty"`
	Entry  *domain.TranscriptEntry `json:"entry,omitempty"`
	Agent  domain.AgentID          `json:"agentId,omitempty"`
}

// Sink receives events in order. Publish is called with the machine lock
// held and must not block.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Publish implements Sink.
func (f SinkFunc) Publish(e Event) { f(e) }

// Sinks fans events out to every non-nil sink.
func Sinks(sinks ...Sink) Sink {
	return SinkFunc(func(e Event) {
		for _, s := range sinks {
			if s != nil {
				s.Publish(e)
			}
		}
	})
}

// Player plays a clip aloud. It returns when playback finishes or when ctx
// is cancelled, in which case it must stop the audio and return ctx.Err().
type Player interface {
	Play(ctx context.Context, agent domain.AgentID, clip speech.Clip) error
}

// NopPlayer finishes every clip immediately.
type NopPlayer struct{}

// Play implements Player.
func (NopPlayer) Play(ctx context.Context, _ domain.AgentID, _ speech.Clip) error {
	return ctx.Err()
}

// Status lines shown to the user.
const (
	StatusReady        = "Press and hold to speak"
	StatusRecording    = "Recording… release to send"
	StatusTranscribing = "Transcribing…"
	StatusThinking     = "Thinking…"
	StatusSpeaking     = "Speaking…"
	StatusNotHeard     = "Couldn't understand. Try again."
	StatusSTTFailed    = "Transcription failed. Try again."
	StatusFailed       = "Error occurred. Try again."
	StatusMicDenied    = "Microphone access denied"
)

// StatusTransferring is shown while handing over to agent.
func StatusTransferring(agent domain.Agent) string {
	return fmt.Sprintf("Transferring to %s…", agent.Name)
}
