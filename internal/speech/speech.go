// Package speech provides the speech-to-text and text-to-speech gateways.
package speech

import (
	"context"
	"errors"
)

var (
	// ErrEmptyText is returned when asked to synthesize nothing.
	ErrEmptyText = errors.New("no text to synthesize")
	// ErrEmptyAudio is returned when asked to transcribe nothing.
	ErrEmptyAudio = errors.New("no audio to transcribe")
)

const tracerName = "github.com/ashureev/handoff-voice/internal/speech"

// MIMEMPEG is the content type of synthesized clips.
const MIMEMPEG = "audio/mpeg"

// Clip is a synthesized audio payload.
type Clip struct {
	Audio []byte
	MIME  string
}

// Transcriber converts recorded audio to text. An empty result means
// nothing intelligible was heard and is not an error.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Synthesizer renders text in the given voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (Clip, error)
}
