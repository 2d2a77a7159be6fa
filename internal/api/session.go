package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ashureev/handoff-voice/internal/identity"
	"github.com/ashureev/handoff-voice/internal/orchestrator"
)

// GetSession returns a snapshot of the caller's conversation.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	key := identity.SessionKey(r.Context())
	sess := h.sessions.GetOrCreate(key)
	JSON(w, http.StatusOK, sess.Machine().Snapshot())
}

type utteranceRequest struct {
	Text string `json:"text"`
}

// Utterance runs a typed utterance through the caller's session. The
// response is written once the pipeline, including any handoff, is done.
func (h *Handler) Utterance(w http.ResponseWriter, r *http.Request) {
	var req utteranceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	key := identity.SessionKey(r.Context())
	sess := h.sessions.GetOrCreate(key)
	m := sess.Machine()

	err := m.SubmitText(r.Context(), req.Text)
	switch {
	case errors.Is(err, orchestrator.ErrEmptyUtterance):
		Error(w, http.StatusBadRequest, "No text provided")
		return
	case errors.Is(err, orchestrator.ErrBusy):
		Error(w, http.StatusConflict, "Session is busy")
		return
	case errors.Is(err, orchestrator.ErrClosed):
		Error(w, http.StatusGone, "Session ended")
		return
	case err != nil:
		// The failure is already reflected in the transcript and status.
		h.logger.Warn("utterance failed", "session_id", key, "error", err)
	}

	sess.Touch()
	JSON(w, http.StatusOK, m.Snapshot())
}

// ResetSession discards the caller's conversation.
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	key := identity.SessionKey(r.Context())
	sess := h.sessions.Reset(key)
	JSON(w, http.StatusOK, sess.Machine().Snapshot())
}
