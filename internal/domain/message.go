package domain

import "time"

// Role is the author role of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry of the shared conversation history.
// AgentID is set on assistant messages only.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	AgentID   AgentID   `json:"agentId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// SpeakerUser marks transcript entries spoken by the user.
const SpeakerUser = "user"

// TranscriptEntry is a display record of something said aloud.
// Speaker is SpeakerUser or an agent id.
type TranscriptEntry struct {
	ID        string `json:"id"`
	Speaker   string `json:"speaker"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}
