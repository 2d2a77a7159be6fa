package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/handoff-voice/internal/domain"
	"github.com/ashureev/handoff-voice/internal/identity"
	"github.com/ashureev/handoff-voice/internal/orchestrator"
	"github.com/ashureev/handoff-voice/internal/session"
	"github.com/ashureev/handoff-voice/internal/speech"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsEventBuffer  = 64
	wsReadLimit    = 8 << 20
)

// WebSocketHandler drives a session from a browser: it forwards recordings
// and typed text to the state machine, streams events back and plays
// agent audio on the client.
type WebSocketHandler struct {
	sessions      *session.Manager
	allowedOrigin string
	isDev         bool
	logger        *slog.Logger
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(sessions *session.Manager, allowedOrigin string, isDev bool, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		sessions:      sessions,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		logger:        logger.With("component", "ws"),
	}
}

// wsMessage is a control frame sent by the client.
type wsMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	ClipID  uint64 `json:"clipId,omitempty"`
}

type audioStart struct {
	Type    string         `json:"type"`
	ClipID  uint64         `json:"clipId"`
	AgentID domain.AgentID `json:"agentId"`
	MIME    string         `json:"mime"`
}

type wsError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := identity.SessionKey(r.Context())
	log := h.logger.With("session_id", key)
	log.Info("websocket connection request", "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Error("failed to accept websocket", "error", err)
		return
	}
	ws.SetReadLimit(wsReadLimit)
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			log.Debug("failed to close websocket", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn := &socketConn{ws: ws}
	sess := h.sessions.GetOrCreate(key)

	events, unsubscribe := sess.Subscribe(wsEventBuffer)
	defer unsubscribe()

	player := &socketPlayer{conn: conn, log: log}
	detach := sess.AttachPlayer(player)
	defer detach()

	if err := conn.sendSnapshot(ctx, sess.Machine().Snapshot()); err != nil {
		log.Debug("failed to send snapshot", "error", err)
		return
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		h.outputLoop(ctx, conn, events, log)
	}()

	d := &driver{sess: sess, conn: conn, player: player, log: log}
	d.inputLoop(ctx)
	cancel()
	d.wait()
	wg.Wait()
	log.Info("websocket session ended")
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	h.logger.Warn("websocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) outputLoop(ctx context.Context, conn *socketConn, events <-chan orchestrator.Event, log *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := conn.writeJSON(ctx, e); err != nil {
				if ctx.Err() == nil {
					log.Debug("websocket write error", "error", err)
				}
				return
			}
		}
	}
}

// driver turns client frames into machine operations for one connection.
type driver struct {
	sess   *session.Session
	conn   *socketConn
	player *socketPlayer
	log    *slog.Logger

	wg           sync.WaitGroup
	awaitingClip bool
}

func (d *driver) inputLoop(ctx context.Context) {
	for {
		typ, data, err := d.conn.ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				d.log.Debug("websocket closed by client")
			} else {
				d.log.Warn("websocket read error", "error", err)
			}
			return
		}
		d.sess.Touch()

		if typ == websocket.MessageBinary {
			d.handleRecording(ctx, data)
			continue
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			d.sendError(ctx, "invalid message")
			continue
		}
		d.handle(ctx, msg)
	}
}

func (d *driver) handle(ctx context.Context, msg wsMessage) {
	m := d.sess.Machine()
	switch msg.Type {
	case "record_start":
		if !m.StartRecording() {
			d.sendError(ctx, "busy")
		}
	case "record_stop":
		d.awaitingClip = true
	case "text":
		d.run(ctx, func(ctx context.Context) error {
			return m.SubmitText(ctx, msg.Content)
		})
	case "playback_done":
		d.player.finished(msg.ClipID)
	case "mic_denied":
		m.MicrophoneDenied()
	case "ping":
		if err := d.conn.writeJSON(ctx, map[string]string{"type": "pong"}); err != nil {
			d.log.Debug("failed to send pong", "error", err)
		}
	default:
		d.sendError(ctx, "unknown message type")
	}
}

func (d *driver) handleRecording(ctx context.Context, audio []byte) {
	if !d.awaitingClip {
		d.log.Debug("unexpected binary frame", "bytes", len(audio))
		return
	}
	d.awaitingClip = false
	m := d.sess.Machine()
	d.run(ctx, func(ctx context.Context) error {
		return m.StopRecording(ctx, audio)
	})
}

// run executes a pipeline off the read loop so playback_done and barge-in
// frames keep flowing while it waits.
func (d *driver) run(ctx context.Context, pipeline func(context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		err := pipeline(ctx)
		switch {
		case err == nil:
		case errors.Is(err, orchestrator.ErrBusy), errors.Is(err, orchestrator.ErrNotRecording):
			d.sendError(ctx, "busy")
		case errors.Is(err, orchestrator.ErrEmptyUtterance):
			d.sendError(ctx, "empty utterance")
		case ctx.Err() != nil:
		default:
			d.log.Warn("pipeline failed", "error", err)
			d.sendError(ctx, err.Error())
		}
	}()
}

func (d *driver) wait() {
	d.wg.Wait()
}

func (d *driver) sendError(ctx context.Context, msg string) {
	if err := d.conn.writeJSON(ctx, wsError{Type: "error", Error: msg}); err != nil {
		d.log.Debug("failed to send error", "error", err)
	}
}

// socketConn serializes writes so an audio header and its binary frame are
// never interleaved with events.
type socketConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *socketConn) writeJSON(ctx context.Context, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(ctx, websocket.MessageText, data)
}

func (c *socketConn) writeClip(ctx context.Context, header audioStart, audio []byte) error {
	data, err := json.Marshal(header)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.write(ctx, websocket.MessageText, data); err != nil {
		return err
	}
	return c.write(ctx, websocket.MessageBinary, audio)
}

func (c *socketConn) write(ctx context.Context, typ websocket.MessageType, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return c.ws.Write(ctx, typ, data)
}

// sendSnapshot replays the session so a reconnecting client can render it.
func (c *socketConn) sendSnapshot(ctx context.Context, snap orchestrator.Snapshot) error {
	initial := []orchestrator.Event{
		{Type: orchestrator.EventAgent, Agent: snap.Active},
		{Type: orchestrator.EventState, State: snap.State},
		{Type: orchestrator.EventStatus, Status: snap.Status},
	}
	for i := range snap.Transcript {
		initial = append(initial, orchestrator.Event{Type: orchestrator.EventTranscript, Entry: &snap.Transcript[i]})
	}
	for _, e := range initial {
		if err := c.writeJSON(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// socketPlayer plays clips in the browser. A clip is done when the client
// reports playback_done for it.
type socketPlayer struct {
	conn *socketConn
	log  *slog.Logger

	mu      sync.Mutex
	nextID  uint64
	current uint64
	done    chan struct{}
}

// Play implements orchestrator.Player.
func (p *socketPlayer) Play(ctx context.Context, agent domain.AgentID, clip speech.Clip) error {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	done := make(chan struct{})
	p.current, p.done = id, done
	p.mu.Unlock()

	header := audioStart{Type: "audio_start", ClipID: id, AgentID: agent, MIME: clip.MIME}
	if err := p.conn.writeClip(ctx, header, clip.Audio); err != nil {
		p.finished(id)
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.finished(id)
		// The connection context may be gone already; the stop frame is
		// best effort.
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := p.conn.writeJSON(stopCtx, map[string]interface{}{"type": "audio_stop", "clipId": id}); err != nil {
			p.log.Debug("failed to send audio_stop", "error", err)
		}
		return ctx.Err()
	}
}

// finished marks clip id as played. Zero matches whatever is playing.
func (p *socketPlayer) finished(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil || (id != 0 && id != p.current) {
		return
	}
	close(p.done)
	p.done = nil
}
