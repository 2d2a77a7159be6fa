// Package providers builds the reasoning and speech gateways selected by
// configuration.
package providers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ashureev/handoff-voice/internal/config"
	"github.com/ashureev/handoff-voice/internal/reasoning"
	"github.com/ashureev/handoff-voice/internal/speech"
)

// Set is one configured gateway of each kind.
type Set struct {
	Backend     reasoning.Backend
	Transcriber speech.Transcriber
	Synthesizer speech.Synthesizer
	speechName  string
}

// Names reports which provider serves each concern.
func (s Set) Names() map[string]string {
	return map[string]string{
		"reasoning": s.Backend.Name(),
		"speech":    s.speechName,
	}
}

// Build constructs the gateways named by cfg. Every HTTP gateway shares a
// client bounded by cfg.GatewayTimeout.
func Build(cfg *config.Config, logger *slog.Logger) (Set, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := &http.Client{Timeout: cfg.GatewayTimeout}

	var set Set
	switch cfg.Reasoning.Provider {
	case config.ProviderOpenAI:
		set.Backend = reasoning.NewOpenAIBackend(reasoning.OpenAIConfig{
			APIKey:     cfg.OpenAI.APIKey,
			Model:      cfg.Reasoning.Model,
			BaseURL:    cfg.OpenAI.BaseURL,
			HTTPClient: client,
		})
	case config.ProviderAnthropic:
		set.Backend = reasoning.NewAnthropicBackend(reasoning.AnthropicConfig{
			APIKey:     cfg.AnthropicKey,
			Model:      cfg.Reasoning.Model,
			HTTPClient: client,
		})
	case config.ProviderMock:
		set.Backend = reasoning.MockBackend{}
	default:
		return Set{}, fmt.Errorf("unknown reasoning provider %q", cfg.Reasoning.Provider)
	}

	switch cfg.Speech.Provider {
	case config.ProviderOpenAI:
		sc := speech.OpenAIConfig{
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			STTModel:   cfg.Speech.STTModel,
			TTSModel:   cfg.Speech.TTSModel,
			Speed:      cfg.Speech.TTSSpeed,
			HTTPClient: client,
		}
		set.Transcriber = speech.NewOpenAITranscriber(sc, logger)
		set.Synthesizer = speech.NewOpenAISynthesizer(sc, logger)
	case config.ProviderMock:
		set.Transcriber = speech.MockTranscriber{Phrase: MockPhrase}
		set.Synthesizer = speech.MockSynthesizer{}
	default:
		return Set{}, fmt.Errorf("unknown speech provider %q", cfg.Speech.Provider)
	}
	set.speechName = cfg.Speech.Provider

	return set, nil
}

// MockPhrase is what the mock transcriber hears in every recording.
const MockPhrase = "I'm planning a kitchen remodel and want to open up a wall."
