package sessions

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/agent-protocol/contoso-agents/pkg/logging"
)

// Janitor periodically expires idle sessions.
type Janitor struct {
	service  SessionService
	interval time.Duration
	maxAge   time.Duration
	onExpire func(ctx context.Context, session *Session)
	logger   *zap.Logger
}

// NewJanitor creates a janitor. onExpire is called for each expired session,
// typically to delete its thread.
func NewJanitor(service SessionService, interval, maxAge time.Duration, onExpire func(context.Context, *Session), logger *zap.Logger) *Janitor {
	return &Janitor{
		service:  service,
		interval: interval,
		maxAge:   maxAge,
		onExpire: onExpire,
		logger:   logging.OrNop(logger),
	}
}

// Run sweeps until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	if j.interval <= 0 || j.maxAge <= 0 {
		return
	}
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep expires idle sessions once and returns how many were removed.
func (j *Janitor) Sweep(ctx context.Context) int {
	expired, err := j.service.CleanupExpiredSessions(ctx, j.maxAge)
	if err != nil {
		// sessions removed before the failure still need their threads released
		j.logger.Warn("Failed to expire sessions", zap.Error(err))
	}
	for _, s := range expired {
		j.logger.Info("Session expired", zap.String("session_id", s.ID), zap.String("thread_id", s.ThreadID))
		if j.onExpire != nil {
			j.onExpire(ctx, s)
		}
	}
	return len(expired)
}
