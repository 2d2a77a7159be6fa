// Package api provides the HTTP and WebSocket surface of the assistant.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/handoff-voice/internal/domain"
	"github.com/ashureev/handoff-voice/internal/reasoning"
	"github.com/ashureev/handoff-voice/internal/session"
	"github.com/ashureev/handoff-voice/internal/speech"
)

// Reasoner is the completion gateway used by the stateless chat endpoint.
type Reasoner interface {
	Complete(ctx context.Context, history []domain.Message, active domain.AgentID) (reasoning.Reply, error)
}

// Deps are the collaborators of Handler.
type Deps struct {
	Sessions    *session.Manager
	Reasoner    Reasoner
	Transcriber speech.Transcriber
	Synthesizer speech.Synthesizer
	Providers   map[string]string
	Timeout     time.Duration
	Logger      *slog.Logger
}

// Handler serves the REST endpoints.
type Handler struct {
	sessions  *session.Manager
	reasoner  Reasoner
	stt       speech.Transcriber
	tts       speech.Synthesizer
	providers map[string]string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Timeout <= 0 {
		d.Timeout = 60 * time.Second
	}
	return &Handler{
		sessions:  d.Sessions,
		reasoner:  d.Reasoner,
		stt:       d.Transcriber,
		tts:       d.Synthesizer,
		providers: d.Providers,
		timeout:   d.Timeout,
		logger:    d.Logger.With("component", "api"),
	}
}

// RegisterRoutes registers the REST routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/agents", h.Agents)
		r.Post("/chat", h.Chat)
		r.Post("/transcribe", h.Transcribe)
		r.Post("/tts", h.TTS)

		r.Route("/session", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Post("/utterance", h.Utterance)
			r.Post("/reset", h.ResetSession)
		})
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Health reports liveness and the configured providers.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"providers": h.providers,
		"sessions":  h.sessions.Len(),
	})
}

// Agents lists the agent registry.
func (h *Handler) Agents(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"agents":  domain.Agents,
		"default": domain.DefaultAgent,
	})
}
