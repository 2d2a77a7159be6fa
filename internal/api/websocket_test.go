package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/handoff-voice/internal/domain"
)

type frame struct {
	Type    string                  `json:"type"`
	State   string                  `json:"state"`
	Status  string                  `json:"status"`
	AgentID string                  `json:"agentId"`
	ClipID  uint64                  `json:"clipId"`
	MIME    string                  `json:"mime"`
	Error   string                  `json:"error"`
	Entry   *domain.TranscriptEntry `json:"entry"`
}

type wsClient struct {
	t    *testing.T
	ctx  context.Context
	conn *websocket.Conn
}

func dialSession(t *testing.T, s *testServer) *wsClient {
	t.Helper()
	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/session"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return &wsClient{t: t, ctx: ctx, conn: conn}
}

func (c *wsClient) send(v interface{}) {
	c.t.Helper()
	data, err := json.Marshal(v)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.Write(c.ctx, websocket.MessageText, data))
}

func (c *wsClient) sendBinary(data []byte) {
	c.t.Helper()
	require.NoError(c.t, c.conn.Write(c.ctx, websocket.MessageBinary, data))
}

// next returns the next JSON frame. Audio payloads following audio_start
// are read and returned alongside it.
func (c *wsClient) next() (frame, []byte) {
	c.t.Helper()
	typ, data, err := c.conn.Read(c.ctx)
	require.NoError(c.t, err)
	require.Equal(c.t, websocket.MessageText, typ, "unexpected binary frame")

	var f frame
	require.NoError(c.t, json.Unmarshal(data, &f))
	if f.Type != "audio_start" {
		return f, nil
	}
	typ, audio, err := c.conn.Read(c.ctx)
	require.NoError(c.t, err)
	require.Equal(c.t, websocket.MessageBinary, typ)
	return f, audio
}

// until reads frames, acknowledging playback, until stop returns true.
func (c *wsClient) until(stop func(frame) bool, onAudio func(frame, []byte) bool) []frame {
	c.t.Helper()
	var seen []frame
	for {
		f, audio := c.next()
		seen = append(seen, f)
		if f.Type == "audio_start" {
			ack := true
			if onAudio != nil {
				ack = onAudio(f, audio)
			}
			if ack {
				c.send(map[string]interface{}{"type": "playback_done", "clipId": f.ClipID})
			}
		}
		if stop(f) {
			return seen
		}
	}
}

func states(frames []frame) []string {
	var out []string
	for _, f := range frames {
		if f.Type == "state" {
			out = append(out, f.State)
		}
	}
	return out
}

func TestWebSocketInitialSnapshot(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	c := dialSession(t, s)

	f, _ := c.next()
	assert.Equal(t, "agent", f.Type)
	assert.Equal(t, "bob", f.AgentID)
	f, _ = c.next()
	assert.Equal(t, "state", f.Type)
	assert.Equal(t, "idle", f.State)
	f, _ = c.next()
	assert.Equal(t, "status", f.Type)

	c.send(map[string]string{"type": "ping"})
	f, _ = c.next()
	assert.Equal(t, "pong", f.Type)
}

func TestWebSocketAgentHandoff(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	c := dialSession(t, s)
	c.until(func(f frame) bool { return f.Type == "status" }, nil)

	c.send(map[string]string{"type": "text", "content": "Is this wall load-bearing?"})

	var clips []frame
	var spoken []string
	handedOff := false
	frames := c.until(func(f frame) bool {
		if f.Type == "agent" && f.AgentID == "alice" {
			handedOff = true
		}
		return handedOff && f.Type == "state" && f.State == "idle"
	}, func(f frame, audio []byte) bool {
		clips = append(clips, f)
		spoken = append(spoken, string(audio))
		return true
	})

	assert.Equal(t, []string{"transcribing", "reasoning", "speaking", "transferring", "speaking", "idle"}, states(frames))
	require.Len(t, clips, 2)
	assert.Equal(t, "bob", clips[0].AgentID)
	assert.Equal(t, "alice", clips[1].AgentID)
	assert.NotContains(t, spoken[0], "TRANSFER")
	assert.True(t, strings.HasPrefix(spoken[1], "Hi, I'm Alice"), spoken[1])

	sess, ok := s.sessions.Get(anonymousSession)
	require.True(t, ok)
	snap := sess.Machine().Snapshot()
	assert.Equal(t, domain.Alice, snap.Active)
	assert.Len(t, snap.Messages, 3)
}

func TestWebSocketBargeIn(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	c := dialSession(t, s)
	c.until(func(f frame) bool { return f.Type == "status" }, nil)

	c.send(map[string]string{"type": "text", "content": "Do I need a permit?"})
	c.until(func(f frame) bool { return f.Type == "audio_start" }, func(frame, []byte) bool {
		return false
	})

	c.send(map[string]string{"type": "record_start"})
	gotStop, gotRecording := false, false
	c.until(func(f frame) bool {
		gotStop = gotStop || f.Type == "audio_stop"
		gotRecording = gotRecording || (f.Type == "state" && f.State == "recording")
		return gotStop && gotRecording
	}, nil)

	c.send(map[string]string{"type": "record_stop"})
	c.sendBinary([]byte{1, 2})
	c.until(func(f frame) bool { return f.Type == "state" && f.State == "idle" }, nil)

	sess, ok := s.sessions.Get(anonymousSession)
	require.True(t, ok)
	snap := sess.Machine().Snapshot()
	assert.Equal(t, domain.Bob, snap.Active, "interrupted handoff must not happen")
	assert.Len(t, snap.Messages, 2)
}

func TestWebSocketRecording(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	c := dialSession(t, s)
	c.until(func(f frame) bool { return f.Type == "status" }, nil)

	c.send(map[string]string{"type": "record_start"})
	c.send(map[string]string{"type": "record_stop"})
	c.sendBinary(bytes.Repeat([]byte{7}, 64))

	var user *domain.TranscriptEntry
	frames := c.until(func(f frame) bool {
		if f.Type == "transcript" && f.Entry.Speaker == domain.SpeakerUser {
			user = f.Entry
		}
		return user != nil && f.Type == "state" && f.State == "idle"
	}, nil)

	assert.Equal(t, "I want to remodel my kitchen", user.Text)
	assert.Equal(t, []string{"recording", "transcribing", "reasoning", "speaking", "idle"}, states(frames))
}

func TestWebSocketMicDeniedAndUnknownMessage(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	c := dialSession(t, s)
	c.until(func(f frame) bool { return f.Type == "status" }, nil)

	c.send(map[string]string{"type": "mic_denied"})
	c.until(func(f frame) bool { return f.Type == "status" && f.Status != "" }, nil)

	c.send(map[string]string{"type": "bogus"})
	f := c.until(func(f frame) bool { return f.Type == "error" }, nil)
	assert.Equal(t, "unknown message type", f[len(f)-1].Error)
}
