package providers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/handoff-voice/internal/config"
	"github.com/ashureev/handoff-voice/internal/reasoning"
	"github.com/ashureev/handoff-voice/internal/speech"
)

func baseConfig() *config.Config {
	return &config.Config{
		GatewayTimeout: time.Second,
		Reasoning:      config.ReasoningConfig{Provider: config.ProviderMock},
		Speech:         config.SpeechConfig{Provider: config.ProviderMock},
	}
}

func TestBuildMock(t *testing.T) {
	set, err := Build(baseConfig(), nil)
	require.NoError(t, err)
	assert.IsType(t, reasoning.MockBackend{}, set.Backend)
	assert.IsType(t, speech.MockSynthesizer{}, set.Synthesizer)
	assert.Equal(t, map[string]string{"reasoning": "mock", "speech": "mock"}, set.Names())
}

func TestBuildRealProviders(t *testing.T) {
	cfg := baseConfig()
	cfg.Reasoning.Provider = config.ProviderAnthropic
	cfg.AnthropicKey = "sk-ant"
	cfg.Speech.Provider = config.ProviderOpenAI
	cfg.OpenAI.APIKey = "sk-oa"

	set, err := Build(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", set.Backend.Name())
	assert.IsType(t, &speech.OpenAITranscriber{}, set.Transcriber)
	assert.IsType(t, &speech.OpenAISynthesizer{}, set.Synthesizer)

	cfg.Reasoning.Provider = config.ProviderOpenAI
	set, err = Build(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "openai", set.Backend.Name())
}

func TestBuildUnknownProvider(t *testing.T) {
	cfg := baseConfig()
	cfg.Reasoning.Provider = "llama"
	_, err := Build(cfg, nil)
	assert.Error(t, err)

	cfg = baseConfig()
	cfg.Speech.Provider = "espeak"
	_, err = Build(cfg, nil)
	assert.Error(t, err)
}
