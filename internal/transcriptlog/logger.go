// Package transcriptlog writes an operator-facing NDJSON record of what was
// said in each session. It is write-only; nothing reads it back.
package transcriptlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/handoff-voice/internal/orchestrator"
)

// Config controls transcript logging.
type Config struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Event is one line of the log.
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	SessionID  string    `json:"session_id"`
	EventType  string    `json:"event_type"`
	EntryID    string    `json:"entry_id,omitempty"`
	Speaker    string    `json:"speaker,omitempty"`
	Agent      string    `json:"agent,omitempty"`
	ContentRaw string    `json:"content_raw,omitempty"`
	Content    string    `json:"content,omitempty"`
}

// Logger queues events and writes them from a single goroutine so callers
// never wait on disk.
type Logger struct {
	cfg     Config
	logger  *slog.Logger
	queue   chan Event
	done    chan struct{}
	once    sync.Once
	dropped atomic.Int64

	mu     sync.Mutex
	closed bool
}

// New returns a logger. When cfg.Enabled is false the logger discards
// everything.
func New(cfg Config, logger *slog.Logger) (*Logger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Logger{cfg: cfg, logger: logger.With("component", "transcriptlog")}
	if !cfg.Enabled {
		return l, nil
	}
	if cfg.QueueSize <= 0 {
		return nil, fmt.Errorf("queue size must be > 0")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript log dir: %w", err)
	}
	l.queue = make(chan Event, cfg.QueueSize)
	l.done = make(chan struct{})
	go l.run()
	return l, nil
}

// Enabled reports whether events are written.
func (l *Logger) Enabled() bool {
	return l != nil && l.queue != nil
}

// Log queues e. Events are dropped when the queue is full or the logger
// has been closed.
func (l *Logger) Log(e Event) {
	if !l.Enabled() {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Content == "" && e.ContentRaw != "" {
		e.Content = normalizeText(e.ContentRaw)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- e:
	default:
		if n := l.dropped.Add(1); n == 1 || n%100 == 0 {
			l.logger.Warn("transcript log queue full, dropping events", "dropped", n)
		}
	}
}

// Sink returns an orchestrator sink that records transcript entries and
// handoffs for sessionID, or nil when logging is disabled.
func (l *Logger) Sink(sessionID string) orchestrator.Sink {
	if !l.Enabled() {
		return nil
	}
	return orchestrator.SinkFunc(func(e orchestrator.Event) {
		switch e.Type {
		case orchestrator.EventTranscript:
			if e.Entry == nil {
				return
			}
			l.Log(Event{
				Timestamp:  time.UnixMilli(e.Entry.Timestamp).UTC(),
				SessionID:  sessionID,
				EventType:  "transcript",
				EntryID:    e.Entry.ID,
				Speaker:    e.Entry.Speaker,
				ContentRaw: e.Entry.Text,
			})
		case orchestrator.EventAgent:
			l.Log(Event{SessionID: sessionID, EventType: "handoff", Agent: string(e.Agent)})
		}
	})
}

// Close flushes queued events and stops the writer.
func (l *Logger) Close() error {
	if !l.Enabled() {
		return nil
	}
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.queue)
		l.mu.Unlock()
		<-l.done
	})
	return nil
}

func (l *Logger) run() {
	defer close(l.done)
	files := make(map[string]*os.File)
	defer func() {
		for path, f := range files {
			if err := f.Close(); err != nil {
				l.logger.Warn("failed to close transcript log", "path", path, "error", err)
			}
		}
	}()

	for e := range l.queue {
		path := filepath.Join(l.cfg.Dir, safeName(e.SessionID)+".ndjson")
		f, ok := files[path]
		if !ok {
			var err error
			f, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				l.logger.Error("failed to open transcript log", "path", path, "error", err)
				continue
			}
			files[path] = f
		}
		line, err := json.Marshal(e)
		if err != nil {
			l.logger.Error("failed to encode transcript event", "error", err)
			continue
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			l.logger.Error("failed to write transcript log", "path", path, "error", err)
		}
	}
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

func safeName(id string) string {
	id = unsafeChars.ReplaceAllString(id, "_")
	if id == "" || strings.Trim(id, ".") == "" {
		return "unknown"
	}
	return id
}

// normalizeText drops control characters and collapses runs of whitespace.
func normalizeText(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
