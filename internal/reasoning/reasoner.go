// Package reasoning adapts the conversation to a language-model completion
// service and interprets the transfer directives embedded in its replies.
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ashureev/handoff-voice/internal/domain"
)

const (
	DefaultMaxTokens   = 300
	DefaultTemperature = 0.7

	// FallbackReply replaces an empty completion.
	FallbackReply = "I'm sorry, I didn't catch that."
)

// ErrUnknownAgent is returned when the active agent is not in the registry.
var ErrUnknownAgent = errors.New("unknown agent")

const tracerName = "github.com/ashureev/handoff-voice/internal/reasoning"

// Turn is one prior message replayed to the model.
type Turn struct {
	Role    domain.Role
	Content string
}

// Request is a provider-neutral completion request.
type Request struct {
	System      string
	Turns       []Turn
	MaxTokens   int
	Temperature float64
}

// Backend produces the raw text of a completion. An empty string is a valid
// result. Implementations must not retry.
type Backend interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// Reply is a cleaned completion plus the handoff it asked for, if any.
type Reply struct {
	Text      string
	Directive domain.AgentID
}

// HasDirective reports whether the reply carried a transfer token.
func (r Reply) HasDirective() bool {
	return r.Directive != ""
}

// Reasoner turns conversation history into agent replies.
type Reasoner struct {
	backend     Backend
	maxTokens   int
	temperature float64
	logger      *slog.Logger
}

// Option configures a Reasoner.
type Option func(*Reasoner)

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int) Option {
	return func(r *Reasoner) { r.maxTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(r *Reasoner) { r.temperature = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reasoner) { r.logger = l }
}

// New returns a Reasoner that calls backend.
func New(backend Backend, opts ...Option) *Reasoner {
	r := &Reasoner{
		backend:     backend,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "reasoning", "backend", backend.Name())
	return r
}

// Backend returns the underlying backend.
func (r *Reasoner) Backend() Backend {
	return r.backend
}

// BuildRequest derives the completion request for agent from history.
// System messages in history are dropped; the persona is the only system
// prompt.
func (r *Reasoner) BuildRequest(history []domain.Message, agent domain.Agent) Request {
	turns := make([]Turn, 0, len(history))
	for _, m := range history {
		if m.Role == domain.RoleSystem {
			continue
		}
		turns = append(turns, Turn{Role: m.Role, Content: m.Content})
	}
	return Request{
		System:      agent.Persona,
		Turns:       turns,
		MaxTokens:   r.maxTokens,
		Temperature: r.temperature,
	}
}

// Complete asks the active agent for its next reply.
func (r *Reasoner) Complete(ctx context.Context, history []domain.Message, active domain.AgentID) (Reply, error) {
	agent, ok := domain.Lookup(active)
	if !ok {
		return Reply{}, fmt.Errorf("%w: %q", ErrUnknownAgent, active)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "reasoning.Complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("agent", string(active)),
		attribute.String("backend", r.backend.Name()),
		attribute.Int("history.len", len(history)),
	)

	raw, err := r.backend.Generate(ctx, r.BuildRequest(history, agent))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		return Reply{}, fmt.Errorf("generate reply for %s: %w", active, err)
	}

	if strings.TrimSpace(raw) == "" {
		r.logger.Warn("empty completion, using fallback", "agent", active)
		return Reply{Text: FallbackReply}, nil
	}

	reply := ParseDirective(raw, active)
	if reply.HasDirective() {
		span.SetAttributes(attribute.String("directive", string(reply.Directive)))
	}
	r.logger.Debug("completion received", "agent", active, "chars", len(reply.Text), "directive", reply.Directive)
	return reply, nil
}

var tokenPatterns = func() map[domain.AgentID]*regexp.Regexp {
	m := make(map[domain.AgentID]*regexp.Regexp, len(domain.Agents))
	for _, a := range domain.Agents {
		m[a.ID] = regexp.MustCompile(`(?i)\[TRANSFER:` + regexp.QuoteMeta(string(a.ID)) + `\]`)
	}
	return m
}()

// ParseDirective extracts the transfer directive from raw and strips every
// transfer token. The directive is the first agent, in registry order, that
// has a token and is not active; failing that, active itself if it has a
// token. Text without any token is returned unchanged.
func ParseDirective(raw string, active domain.AgentID) Reply {
	var directive domain.AgentID
	selfToken := false
	for _, a := range domain.Agents {
		if !tokenPatterns[a.ID].MatchString(raw) {
			continue
		}
		if a.ID == active {
			selfToken = true
			continue
		}
		if directive == "" {
			directive = a.ID
		}
	}
	if directive == "" && selfToken {
		directive = active
	}
	if directive == "" {
		return Reply{Text: raw}
	}

	text := raw
	for _, a := range domain.Agents {
		text = tokenPatterns[a.ID].ReplaceAllString(text, "")
	}
	return Reply{Text: strings.TrimSpace(text), Directive: directive}
}
