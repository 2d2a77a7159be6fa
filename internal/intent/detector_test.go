package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/handoff-voice/internal/domain"
)

func TestDetect(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name    string
		text    string
		current domain.AgentID
		want    domain.AgentID
		wantOK  bool
	}{
		{"transfer to alice", "Transfer me to Alice", domain.Bob, domain.Alice, true},
		{"go back to bob", "Go back to Bob", domain.Alice, domain.Bob, true},
		{"talk to alice", "Let me talk to Alice", domain.Bob, domain.Alice, true},
		{"get alice", "Get Alice", domain.Bob, domain.Alice, true},
		{"switch me to bob", "Switch me to Bob", domain.Alice, domain.Bob, true},
		{"speak with bob", "Speak with Bob please", domain.Alice, domain.Bob, true},
		{"bring me to alice", "can you bring me to alice", domain.Bob, domain.Alice, true},
		{"bare name", "ask alice about the beam", domain.Bob, domain.Alice, true},
		{"token in utterance", "[transfer:bob]", domain.Alice, domain.Bob, true},
		{"greeting bob is not a transfer", "Hi Bob, I want to remodel my kitchen", domain.Bob, "", false},
		{"technical question", "What about permits for the wall?", domain.Alice, "", false},
		{"self transfer bob", "Transfer me to Bob", domain.Bob, "", false},
		{"self transfer alice", "I want to talk to Alice", domain.Alice, "", false},
		{"name followed by punctuation", "Hi Bob, thanks", domain.Alice, "", false},
		{"upper case", "TRANSFER ME TO ALICE", domain.Bob, domain.Alice, true},
		{"mixed case", "go back to BOB", domain.Alice, domain.Bob, true},
		{"empty", "", domain.Bob, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := d.Detect(tt.text, tt.current)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectNeverReturnsCurrent(t *testing.T) {
	d := NewDetector()
	texts := []string{
		"Transfer me to Alice", "Transfer me to Bob", "alice now", "bob please",
		"[TRANSFER:alice] [TRANSFER:bob]", "switch to bob and get alice",
	}
	for _, text := range texts {
		for _, a := range domain.Agents {
			got, ok := d.Detect(text, a.ID)
			if ok {
				assert.NotEqual(t, a.ID, got, "text %q", text)
			}
		}
	}
}

func TestMatchReportsRule(t *testing.T) {
	d := NewDetector()

	r, ok := d.Match("switch me to bob", domain.Alice)
	require.True(t, ok)
	assert.Equal(t, domain.Bob, r.Target)
	assert.Equal(t, "transfer", r.Name)
}

func TestRules(t *testing.T) {
	d := NewDetector()
	assert.Len(t, d.Rules(domain.Alice), 5)
	assert.Len(t, d.Rules(domain.Bob), 5)
	assert.Empty(t, d.Rules("carol"))
}
