package reasoning

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/handoff-voice/internal/domain"
)

func sampleRequest() Request {
	return Request{
		System: "be brief",
		Turns: []Turn{
			{Role: domain.RoleUser, Content: "hello"},
			{Role: domain.RoleAssistant, Content: "hi"},
			{Role: domain.RoleUser, Content: "permits?"},
		},
		MaxTokens:   300,
		Temperature: 0.7,
	}
}

func TestOpenAIBackendGenerate(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"Ask Alice. [TRANSFER:alice]"}}]}`)
	}))
	defer srv.Close()

	b := NewOpenAIBackend(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/"})
	out, err := b.Generate(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "Ask Alice. [TRANSFER:alice]", out)

	assert.Equal(t, DefaultOpenAIModel, got.Model)
	assert.Equal(t, 300, got.MaxTokens)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, chatMessage{Role: "system", Content: "be brief"}, got.Messages[0])
	assert.Equal(t, "assistant", got.Messages[2].Role)
}

func TestOpenAIBackendNullContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":null}}]}`)
	}))
	defer srv.Close()

	out, err := NewOpenAIBackend(OpenAIConfig{BaseURL: srv.URL}).Generate(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestOpenAIBackendErrorStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewOpenAIBackend(OpenAIConfig{BaseURL: srv.URL}).Generate(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.EqualValues(t, 1, calls.Load())
}

func TestAnthropicBackendGenerate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-haiku-latest",
			"content": [{"type": "text", "text": "Bob can help. [TRANSFER:bob]"}],
			"stop_reason": "end_turn",
			"stop_sequence": null,
			"usage": {"input_tokens": 12, "output_tokens": 6}
		}`)
	}))
	defer srv.Close()

	b := NewAnthropicBackend(AnthropicConfig{APIKey: "test", BaseURL: srv.URL})
	out, err := b.Generate(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "Bob can help. [TRANSFER:bob]", out)

	assert.Equal(t, DefaultAnthropicModel, body["model"])
	assert.EqualValues(t, 300, body["max_tokens"])
	assert.InDelta(t, 0.7, body["temperature"], 1e-9)
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 3)
	system, ok := body["system"].([]any)
	require.True(t, ok)
	require.Len(t, system, 1)
}

func TestAnthropicBackendDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"api_error","message":"boom"}}`)
	}))
	defer srv.Close()

	_, err := NewAnthropicBackend(AnthropicConfig{APIKey: "test", BaseURL: srv.URL}).Generate(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestMockBackend(t *testing.T) {
	r := New(MockBackend{})
	msgs := []domain.Message{{Role: domain.RoleUser, Content: "Do I need a permit to open the wall?"}}

	reply, err := r.Complete(context.Background(), msgs, domain.Bob)
	require.NoError(t, err)
	assert.Equal(t, domain.Alice, reply.Directive)

	msgs = []domain.Message{{Role: domain.RoleUser, Content: "What are my next steps?"}}
	reply, err = r.Complete(context.Background(), msgs, domain.Alice)
	require.NoError(t, err)
	assert.Equal(t, domain.Bob, reply.Directive)

	msgs = []domain.Message{{Role: domain.RoleUser, Content: "Kitchen remodel"}}
	reply, err = r.Complete(context.Background(), msgs, domain.Bob)
	require.NoError(t, err)
	assert.False(t, reply.HasDirective())
	assert.NotEmpty(t, reply.Text)
}
