package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/ashureev/handoff-voice/internal/domain"
)

const maxAudioUpload = 25 << 20

type chatMessage struct {
	Role    domain.Role `json:"role"`
	Content string      `json:"content"`
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	ActiveAgent string        `json:"activeAgent"`
}

type chatResponse struct {
	Reply    string         `json:"reply"`
	Transfer domain.AgentID `json:"transfer,omitempty"`
}

// Chat runs one stateless completion for the given history and agent.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	active, ok := domain.ParseAgentID(req.ActiveAgent)
	if !ok {
		Error(w, http.StatusBadRequest, "Invalid agent")
		return
	}

	history := make([]domain.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		history = append(history, domain.Message{Role: m.Role, Content: m.Content})
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	reply, err := h.reasoner.Complete(ctx, history, active)
	if err != nil {
		h.logger.Error("chat failed", "agent", active, "error", err)
		Error(w, http.StatusInternalServerError, "Failed to get response")
		return
	}

	resp := chatResponse{Reply: reply.Text}
	if reply.HasDirective() && reply.Directive != active {
		resp.Transfer = reply.Directive
	}
	JSON(w, http.StatusOK, resp)
}

// Transcribe converts an uploaded "audio" form file to text.
func (h *Handler) Transcribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioUpload)
	file, _, err := r.FormFile("audio")
	if err != nil {
		Error(w, http.StatusBadRequest, "No audio file provided")
		return
	}
	defer func() { _ = file.Close() }()

	audio, err := io.ReadAll(file)
	if err != nil {
		Error(w, http.StatusBadRequest, "No audio file provided")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	text, err := h.stt.Transcribe(ctx, audio)
	if err != nil {
		h.logger.Error("transcription failed", "bytes", len(audio), "error", err)
		Error(w, http.StatusInternalServerError, "Failed to transcribe audio")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"text": text})
}

type ttsRequest struct {
	Text    string `json:"text"`
	AgentID string `json:"agentId"`
}

// TTS synthesizes text in the requested agent's voice.
func (h *Handler) TTS(w http.ResponseWriter, r *http.Request) {
	var req ttsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		Error(w, http.StatusBadRequest, "No text provided")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	clip, err := h.tts.Synthesize(ctx, req.Text, domain.VoiceFor(domain.AgentID(req.AgentID)))
	if err != nil {
		h.logger.Error("synthesis failed", "agent", req.AgentID, "error", err)
		Error(w, http.StatusInternalServerError, "Failed to synthesize speech")
		return
	}

	w.Header().Set("Content-Type", clip.MIME)
	w.Header().Set("Content-Length", strconv.Itoa(len(clip.Audio)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(clip.Audio); err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Debug("failed to write audio", "error", err)
	}
}
