package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultBaseURL  = "https://api.openai.com/v1"
	DefaultSTTModel = "whisper-1"
	DefaultTTSModel = "tts-1"

	uploadName     = "audio.webm"
	uploadLanguage = "en"
)

// OpenAIConfig configures the OpenAI speech gateways.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	STTModel   string
	TTSModel   string
	Speed      float64
	HTTPClient *http.Client
}

func (c OpenAIConfig) withDefaults() OpenAIConfig {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.STTModel == "" {
		c.STTModel = DefaultSTTModel
	}
	if c.TTSModel == "" {
		c.TTSModel = DefaultTTSModel
	}
	if c.Speed == 0 {
		c.Speed = 1.0
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return c
}

// OpenAITranscriber uses the audio transcriptions endpoint.
type OpenAITranscriber struct {
	cfg    OpenAIConfig
	logger *slog.Logger
}

// NewOpenAITranscriber returns a transcriber with defaults filled in.
func NewOpenAITranscriber(cfg OpenAIConfig, logger *slog.Logger) *OpenAITranscriber {
	return &OpenAITranscriber{
		cfg:    cfg.withDefaults(),
		logger: logger.With("provider", "openai-stt"),
	}
}

// Transcribe uploads audio as a webm file and returns the recognized text.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmptyAudio
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "speech.Transcribe")
	defer span.End()
	span.SetAttributes(attribute.Int("audio.bytes", len(audio)), attribute.String("model", t.cfg.STTModel))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", uploadName)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	if err := mw.WriteField("model", t.cfg.STTModel); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if err := mw.WriteField("language", uploadLanguage); err != nil {
		return "", fmt.Errorf("write language field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.BaseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := t.cfg.HTTPClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return "", fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("transcription: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad status")
		return "", err
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	t.logger.Debug("transcription complete", "audio_bytes", len(audio), "chars", len(out.Text), "duration", time.Since(start))
	return strings.TrimSpace(out.Text), nil
}

// OpenAISynthesizer uses the audio speech endpoint.
type OpenAISynthesizer struct {
	cfg    OpenAIConfig
	logger *slog.Logger
}

// NewOpenAISynthesizer returns a synthesizer with defaults filled in.
func NewOpenAISynthesizer(cfg OpenAIConfig, logger *slog.Logger) *OpenAISynthesizer {
	return &OpenAISynthesizer{
		cfg:    cfg.withDefaults(),
		logger: logger.With("provider", "openai-tts"),
	}
}

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format,omitempty"`
	Speed          float64 `json:"speed,omitempty"`
}

// Synthesize renders text as mp3 audio.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text, voice string) (Clip, error) {
	if strings.TrimSpace(text) == "" {
		return Clip{}, ErrEmptyText
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "speech.Synthesize")
	defer span.End()
	span.SetAttributes(attribute.String("voice", voice), attribute.Int("text.len", len(text)))

	body, err := json.Marshal(speechRequest{
		Model:          s.cfg.TTSModel,
		Input:          text,
		Voice:          voice,
		ResponseFormat: "mp3",
		Speed:          s.cfg.Speed,
	})
	if err != nil {
		return Clip{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return Clip{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return Clip{}, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("speech: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad status")
		return Clip{}, err
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return Clip{}, fmt.Errorf("read response: %w", err)
	}
	s.logger.Debug("synthesis complete", "voice", voice, "audio_bytes", len(audio))
	return Clip{Audio: audio, MIME: MIMEMPEG}, nil
}
