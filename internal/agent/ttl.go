package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/docchat/internal/store"
)

const ttlWorkerInterval = time.Minute

// CleanupCallback is called for every session the TTL worker expires.
type CleanupCallback func(userID, sessionID string)

// StartTTLWorker runs a background goroutine that periodically drops
// conversations idle for longer than ttl and deletes their session rows.
func StartTTLWorker(ctx context.Context, repo store.Repository, svc *Service, ttl time.Duration, onCleanup CleanupCallback) {
	interval := ttlWorkerInterval
	if ttl < interval {
		interval = ttl
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("TTL worker started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				sweepIdleSessions(ctx, repo, svc, ttl, onCleanup)
			case <-ctx.Done():
				slog.Info("TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepIdleSessions(ctx context.Context, repo store.Repository, svc *Service, ttl time.Duration, onCleanup CleanupCallback) {
	dropped := svc.DropIdle(ttl)
	for _, sess := range dropped {
		slog.Info("TTL worker dropped idle conversation",
			"user_id", sess.UserID,
			"session_id", sess.SessionID,
			"conversation_id", sess.ConversationID,
			"turns", sess.TurnCount,
		)
		if onCleanup != nil {
			onCleanup(sess.UserID, sess.SessionID)
		}
	}

	if repo == nil {
		return
	}

	idle, err := repo.GetIdleSessions(ctx, ttl)
	if err != nil {
		slog.Error("TTL worker failed to get idle sessions", "error", err)
		return
	}

	deleted := 0
	for _, sess := range idle {
		// Live conversations were judged by DropIdle above; the row lags
		// behind a turn that is still in flight.
		if _, live := svc.lookup(sess.UserID, sess.SessionID); live {
			continue
		}
		deleted++
		if onCleanup != nil {
			onCleanup(sess.UserID, sess.SessionID)
		}
		if err := repo.DeleteChatSession(ctx, sess.UserID, sess.SessionID); err != nil {
			slog.Warn("TTL worker failed to delete chat session",
				"error", err,
				"user_id", sess.UserID,
				"session_id", sess.SessionID,
			)
		}
	}

	if deleted > 0 || len(dropped) > 0 {
		slog.Info("TTL worker sweep complete", "dropped", len(dropped), "rows_deleted", deleted)
	}
}
