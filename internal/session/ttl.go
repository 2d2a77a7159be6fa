package session

import (
	"context"
	"log/slog"
	"time"
)

// CleanupCallback is called for each session the reaper closes.
type CleanupCallback func(sessionID string)

// StartReaper runs a background goroutine that periodically closes
// sessions idle for longer than ttl.
func StartReaper(ctx context.Context, mgr *Manager, ttl, interval time.Duration, onCleanup CleanupCallback) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session reaper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				reap(mgr, ttl, onCleanup)
			case <-ctx.Done():
				slog.Info("Session reaper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func reap(mgr *Manager, ttl time.Duration, onCleanup CleanupCallback) {
	ids := mgr.CloseIdle(ttl)
	if len(ids) == 0 {
		return
	}
	for _, id := range ids {
		if onCleanup != nil {
			onCleanup(id)
		}
	}
	slog.Info("Session reaper cleanup completed", "cleaned", len(ids), "remaining", mgr.Len())
}
