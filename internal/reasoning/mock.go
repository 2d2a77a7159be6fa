package reasoning

import (
	"context"
	"strings"

	"github.com/ashureev/handoff-voice/internal/domain"
)

// MockBackend answers with canned replies so the assistant can run without
// provider credentials. It emits transfer tokens on a few keywords so the
// handoff path can be exercised end to end.
type MockBackend struct{}

// Name implements Backend.
func (MockBackend) Name() string { return "mock" }

// Generate implements Backend.
func (MockBackend) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	last := ""
	for i := len(req.Turns) - 1; i >= 0; i-- {
		if req.Turns[i].Role == domain.RoleUser {
			last = strings.ToLower(req.Turns[i].Content)
			break
		}
	}

	switch req.System {
	case domain.MustLookup(domain.Bob).Persona:
		if containsAny(last, "permit", "structural", "load-bearing", "load bearing") {
			return "That's a great question for our specialist. I'll bring in Alice for that. [TRANSFER:alice]", nil
		}
		return "Thanks for sharing that. What's your rough budget, and when would you like the work done?", nil
	case domain.MustLookup(domain.Alice).Persona:
		if containsAny(last, "next steps", "action plan", "summary") {
			return "Bob can help you create that action plan. [TRANSFER:bob]", nil
		}
		return "Typically you'd start with a structural check, then pull permits before any demolition. Please confirm details with a licensed professional.", nil
	}
	return "", nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
