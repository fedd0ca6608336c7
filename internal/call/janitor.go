package call

import (
	"context"
	"log/slog"
	"time"

	"github.com/voxgate/voxgate/internal/database"
)

// Janitor periodically force-closes sessions that never received a hangup,
// which happens when the event stream drops mid-call. Closed sessions are
// finalized through the tracker so their records are still written.
type Janitor struct {
	sessions database.CallSessionRepository
	tracker  *Tracker
	logger   *slog.Logger

	interval time.Duration
	maxAge   time.Duration
}

// NewJanitor creates a Janitor sweeping every interval for sessions older
// than maxAge.
func NewJanitor(sessions database.CallSessionRepository, tracker *Tracker, logger *slog.Logger, interval, maxAge time.Duration) *Janitor {
	return &Janitor{
		sessions: sessions,
		tracker:  tracker,
		logger:   logger.With("component", "janitor"),
		interval: interval,
		maxAge:   maxAge,
	}
}

// Run sweeps until the context is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-j.maxAge)
	closed, err := j.sessions.CloseStale(ctx, cutoff, "ORIGINATOR_CANCEL")
	if err != nil {
		j.logger.Error("stale session sweep failed", "error", err)
		return
	}
	for i := range closed {
		session := &closed[i]
		if err := j.tracker.CloseSession(ctx, session); err != nil {
			j.logger.Error("finalizing stale session failed",
				"call_uuid", session.CallUUID, "error", err)
		}
	}
	if len(closed) > 0 {
		j.logger.Warn("closed stale call sessions", "count", len(closed))
	}
}
