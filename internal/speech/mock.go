package speech

import (
	"context"
	"strings"
)

// MIMEText marks clips that carry the text itself; clients speak them with
// a local voice instead of decoding audio.
const MIMEText = "text/plain"

// MockTranscriber pretends every recording said Phrase.
type MockTranscriber struct {
	Phrase string
}

// Transcribe implements Transcriber.
func (m MockTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(audio) == 0 {
		return "", ErrEmptyAudio
	}
	return m.Phrase, nil
}

// MockSynthesizer returns the text as a MIMEText clip.
type MockSynthesizer struct{}

// Synthesize implements Synthesizer.
func (MockSynthesizer) Synthesize(ctx context.Context, text, _ string) (Clip, error) {
	if err := ctx.Err(); err != nil {
		return Clip{}, err
	}
	if strings.TrimSpace(text) == "" {
		return Clip{}, ErrEmptyText
	}
	return Clip{Audio: []byte(text), MIME: MIMEText}, nil
}
