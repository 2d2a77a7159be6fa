// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider names accepted for REASONING_PROVIDER and SPEECH_PROVIDER.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// Config holds all application configuration.
type Config struct {
	Port                 string
	FrontendURL          string
	LogLevel             slog.Level
	SessionTTL           time.Duration
	SessionSweepInterval time.Duration
	GatewayTimeout       time.Duration
	MinAudioBytes        int
	StatusRevertDelay    time.Duration
	OTLPEndpoint         string

	Reasoning     ReasoningConfig
	Speech        SpeechConfig
	OpenAI        OpenAIConfig
	AnthropicKey  string
	TranscriptLog TranscriptLogConfig
}

// ReasoningConfig selects and tunes the completion backend.
type ReasoningConfig struct {
	Provider    string
	Model       string
	MaxTokens   int
	Temperature float64
}

// SpeechConfig selects and tunes the speech gateways.
type SpeechConfig struct {
	Provider string
	STTModel string
	TTSModel string
	TTSSpeed float64
}

// OpenAIConfig holds credentials shared by the OpenAI gateways.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

// TranscriptLogConfig controls the NDJSON transcript log.
type TranscriptLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		FrontendURL:          getEnv("FRONTEND_URL", ""),
		LogLevel:             getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		SessionTTL:           getEnvDuration("SESSION_TTL", 60*time.Minute),
		SessionSweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
		GatewayTimeout:       getEnvDuration("GATEWAY_TIMEOUT", 60*time.Second),
		MinAudioBytes:        getEnvInt("MIN_AUDIO_BYTES", 1000),
		StatusRevertDelay:    getEnvDuration("STATUS_REVERT_DELAY", 2*time.Second),
		OTLPEndpoint:         getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		Reasoning: ReasoningConfig{
			Provider:    strings.ToLower(getEnv("REASONING_PROVIDER", ProviderOpenAI)),
			Model:       getEnv("REASONING_MODEL", ""),
			MaxTokens:   getEnvInt("REASONING_MAX_TOKENS", 300),
			Temperature: getEnvFloat("REASONING_TEMPERATURE", 0.7),
		},
		Speech: SpeechConfig{
			Provider: strings.ToLower(getEnv("SPEECH_PROVIDER", ProviderOpenAI)),
			STTModel: getEnv("STT_MODEL", "whisper-1"),
			TTSModel: getEnv("TTS_MODEL", "tts-1"),
			TTSSpeed: getEnvFloat("TTS_SPEED", 1.0),
		},
		OpenAI: OpenAIConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		},
		AnthropicKey: getEnv("ANTHROPIC_API_KEY", ""),
		TranscriptLog: TranscriptLogConfig{
			Enabled:   getEnvBool("TRANSCRIPT_LOG_ENABLED", false),
			Dir:       getEnv("TRANSCRIPT_LOG_DIR", "./data/transcripts"),
			QueueSize: getEnvInt("TRANSCRIPT_LOG_QUEUE_SIZE", 1000),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.SessionSweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must be > 0")
	}
	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be > 0")
	}
	if c.MinAudioBytes <= 0 {
		return fmt.Errorf("MIN_AUDIO_BYTES must be > 0")
	}
	if c.StatusRevertDelay <= 0 {
		return fmt.Errorf("STATUS_REVERT_DELAY must be > 0")
	}
	if c.Reasoning.MaxTokens <= 0 {
		return fmt.Errorf("REASONING_MAX_TOKENS must be > 0")
	}
	if c.Reasoning.Temperature < 0 || c.Reasoning.Temperature > 2 {
		return fmt.Errorf("REASONING_TEMPERATURE must be between 0 and 2")
	}
	if c.Speech.TTSSpeed < 0.25 || c.Speech.TTSSpeed > 4 {
		return fmt.Errorf("TTS_SPEED must be between 0.25 and 4")
	}

	switch c.Reasoning.Provider {
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when REASONING_PROVIDER=openai")
		}
	case ProviderAnthropic:
		if c.AnthropicKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when REASONING_PROVIDER=anthropic")
		}
	case ProviderMock:
	default:
		return fmt.Errorf("unknown REASONING_PROVIDER %q", c.Reasoning.Provider)
	}

	switch c.Speech.Provider {
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when SPEECH_PROVIDER=openai")
		}
	case ProviderMock:
	default:
		return fmt.Errorf("unknown SPEECH_PROVIDER %q", c.Speech.Provider)
	}

	if c.TranscriptLog.Enabled {
		if c.TranscriptLog.Dir == "" {
			return fmt.Errorf("TRANSCRIPT_LOG_DIR cannot be empty")
		}
		if c.TranscriptLog.QueueSize <= 0 {
			return fmt.Errorf("TRANSCRIPT_LOG_QUEUE_SIZE must be > 0")
		}
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins for the configured frontend.
func (c *Config) AllowedOrigins() []string {
	if c.IsDevelopment() {
		return []string{"*"}
	}
	return []string{c.FrontendURL}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}
