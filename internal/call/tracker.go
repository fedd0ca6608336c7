// Package call maintains per-call lifecycle state from the engine's event
// stream and exposes call-control verbs as engine commands.
package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/voxgate/voxgate/internal/database"
	"github.com/voxgate/voxgate/internal/database/models"
	"github.com/voxgate/voxgate/internal/esl"
	"github.com/voxgate/voxgate/internal/voxerr"
)

// Archiver ships finalized call records to long-term storage.
type Archiver interface {
	Archive(ctx context.Context, cdr *models.CDR) error
}

// Tracker drives CallSession rows from channel events. The persisted table
// is the source of truth; the in-memory live table is a derived cache for
// fast active-call listings. All event handlers run on the single dispatch
// goroutine, so the mutex only guards readers from other goroutines.
type Tracker struct {
	sessions database.CallSessionRepository
	cdrs     database.CDRRepository
	tenants  database.TenantRepository
	archiver Archiver
	logger   *slog.Logger

	mu   sync.RWMutex
	live map[string]*models.CallSession

	nowFunc func() time.Time
}

// NewTracker creates a Tracker. archiver may be nil when no long-term
// record store is configured.
func NewTracker(
	sessions database.CallSessionRepository,
	cdrs database.CDRRepository,
	tenants database.TenantRepository,
	archiver Archiver,
	logger *slog.Logger,
) *Tracker {
	return &Tracker{
		sessions: sessions,
		cdrs:     cdrs,
		tenants:  tenants,
		archiver: archiver,
		logger:   logger.With("component", "call"),
		live:     make(map[string]*models.CallSession),
		nowFunc:  time.Now,
	}
}

// Register installs the tracker's handlers on the dispatcher.
func (t *Tracker) Register(d *esl.Dispatcher) {
	d.Handle("CHANNEL_CREATE", t.handleCreate)
	d.Handle("CHANNEL_ANSWER", t.handleAnswer)
	d.Handle("CHANNEL_BRIDGE", t.handleBridge)
	d.Handle("CHANNEL_UNBRIDGE", t.handleUnbridge)
	d.Handle("CHANNEL_HANGUP", t.handleHangup)
	d.Handle("CHANNEL_HANGUP_COMPLETE", t.handleHangup)
}

// ActiveCalls returns a snapshot of the live-call cache.
func (t *Tracker) ActiveCalls() []models.CallSession {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.CallSession, 0, len(t.live))
	for _, s := range t.live {
		out = append(out, *s)
	}
	return out
}

// ActiveCount returns the size of the live-call cache.
func (t *Tracker) ActiveCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.live)
}

func (t *Tracker) handleCreate(ev *esl.Event) error {
	callUUID := ev.UUID()
	if callUUID == "" {
		return errors.New("create event without Unique-ID")
	}
	callContext := ev.Get("Caller-Context")

	ctx := context.Background()
	tenant, err := t.resolveTenant(ctx, callContext)
	if err != nil {
		if errors.Is(err, voxerr.ErrNotFound) {
			// The engine still processes the call; it is simply untracked.
			t.logger.Warn("tenant not found for context, dropping call tracking",
				"context", callContext, "call_uuid", callUUID)
			return nil
		}
		return fmt.Errorf("resolving tenant for %s: %w", callContext, err)
	}

	session := &models.CallSession{
		CallUUID:          callUUID,
		TenantID:          tenant.ID,
		Direction:         ev.Get("Call-Direction"),
		CallerIDName:      ev.Get("Caller-Caller-ID-Name"),
		CallerIDNumber:    ev.Get("Caller-Caller-ID-Number"),
		DestinationNumber: ev.Get("Caller-Destination-Number"),
		Context:           callContext,
		State:             models.StateRinging,
		StartTime:         t.nowFunc().UTC(),
	}
	if err := t.sessions.Upsert(ctx, session); err != nil {
		return err
	}

	// A replayed CREATE upserts into an existing row without resetting it,
	// so the cache must hold what the store holds, not the fresh RINGING
	// copy. Caching the copy would let a replayed ANSWER pass the rank
	// check and overwrite an already-set answer_time.
	stored, err := t.sessions.Get(ctx, callUUID)
	if err != nil {
		return fmt.Errorf("reloading session %s: %w", callUUID, err)
	}
	t.mu.Lock()
	if stored.State != models.StateHangup {
		t.live[callUUID] = stored
	}
	t.mu.Unlock()

	t.logger.Info("call created",
		"call_uuid", callUUID,
		"caller", stored.CallerIDNumber,
		"destination", stored.DestinationNumber,
		"context", callContext,
		"state", stored.State)
	return nil
}

func (t *Tracker) handleAnswer(ev *esl.Event) error {
	return t.transition(ev.UUID(), models.StateAnswered, func(s *models.CallSession) {
		now := t.nowFunc().UTC()
		s.AnswerTime = &now
	})
}

func (t *Tracker) handleBridge(ev *esl.Event) error {
	return t.transition(ev.UUID(), models.StateBridged, nil)
}

func (t *Tracker) handleUnbridge(ev *esl.Event) error {
	// Transitions are monotonic; an unbridge never moves the call backward.
	t.logger.Debug("call unbridged", "call_uuid", ev.UUID())
	return nil
}

// transition advances a call to target unless the stored state already
// ranks at or past it. mutate, if set, runs on the session before the write.
func (t *Tracker) transition(callUUID string, target models.CallState, mutate func(*models.CallSession)) error {
	if callUUID == "" {
		return errors.New("event without Unique-ID")
	}
	ctx := context.Background()

	session, err := t.lookup(ctx, callUUID)
	if err != nil {
		if errors.Is(err, voxerr.ErrNotFound) {
			// Event for a call we never tracked (created before startup,
			// or tenant was unresolvable).
			t.logger.Debug("event for untracked call", "call_uuid", callUUID, "state", target)
			return nil
		}
		return err
	}
	if session.State.Rank() >= target.Rank() {
		return nil
	}

	session.State = target
	if mutate != nil {
		mutate(session)
	}
	if err := t.sessions.Update(ctx, session); err != nil {
		return err
	}

	t.mu.Lock()
	t.live[callUUID] = session
	t.mu.Unlock()

	t.logger.Info("call state changed", "call_uuid", callUUID, "state", target)
	return nil
}

func (t *Tracker) handleHangup(ev *esl.Event) error {
	callUUID := ev.UUID()
	if callUUID == "" {
		return errors.New("hangup event without Unique-ID")
	}
	ctx := context.Background()

	session, err := t.lookup(ctx, callUUID)
	if err != nil {
		if errors.Is(err, voxerr.ErrNotFound) {
			t.logger.Debug("hangup for untracked call", "call_uuid", callUUID)
			return nil
		}
		return err
	}
	// HANGUP is absorbing: CHANNEL_HANGUP_COMPLETE after CHANNEL_HANGUP,
	// or any replayed event, must not touch the row again.
	if session.State == models.StateHangup {
		return nil
	}

	now := t.nowFunc().UTC()
	session.State = models.StateHangup
	session.EndTime = &now
	session.HangupCause = ev.Get("Hangup-Cause")
	session.DurationSec = ev.GetInt("variable_duration", 0)
	session.BillSec = ev.GetInt("variable_billsec", 0)
	if err := t.sessions.Update(ctx, session); err != nil {
		return err
	}

	t.mu.Lock()
	delete(t.live, callUUID)
	t.mu.Unlock()

	if err := t.finalize(ctx, session); err != nil {
		return err
	}

	t.logger.Info("call ended",
		"call_uuid", callUUID,
		"cause", session.HangupCause,
		"duration", session.DurationSec)
	return nil
}

// finalize writes the permanent record for a terminated session.
func (t *Tracker) finalize(ctx context.Context, session *models.CallSession) error {
	cdr := SessionToCDR(session)
	if err := t.cdrs.Create(ctx, cdr); err != nil {
		return fmt.Errorf("writing cdr for %s: %w", session.CallUUID, err)
	}
	if t.archiver != nil {
		if err := t.archiver.Archive(ctx, cdr); err != nil {
			// Archive failures never block hangup processing.
			t.logger.Error("cdr archive failed", "call_uuid", session.CallUUID, "error", err)
		}
	}
	return nil
}

// CloseSession force-terminates a session outside the event stream, used by
// the janitor for calls whose hangup was never seen.
func (t *Tracker) CloseSession(ctx context.Context, session *models.CallSession) error {
	t.mu.Lock()
	delete(t.live, session.CallUUID)
	t.mu.Unlock()
	return t.finalize(ctx, session)
}

func (t *Tracker) lookup(ctx context.Context, callUUID string) (*models.CallSession, error) {
	t.mu.RLock()
	session, ok := t.live[callUUID]
	t.mu.RUnlock()
	if ok {
		copied := *session
		return &copied, nil
	}
	return t.sessions.Get(ctx, callUUID)
}

// resolveTenant maps an engine context name to a tenant: first by exact
// slug, then with the context-type suffix stripped ("acme-internal" → "acme").
func (t *Tracker) resolveTenant(ctx context.Context, callContext string) (*models.Tenant, error) {
	if callContext == "" {
		return nil, voxerr.ErrNotFound
	}
	tenant, err := t.tenants.GetBySlug(ctx, callContext)
	if err == nil {
		return tenant, nil
	}
	if !errors.Is(err, voxerr.ErrNotFound) {
		return nil, err
	}
	if i := strings.LastIndexByte(callContext, '-'); i > 0 {
		return t.tenants.GetBySlug(ctx, callContext[:i])
	}
	return nil, voxerr.ErrNotFound
}

// SessionToCDR builds the permanent record for a terminated session.
func SessionToCDR(s *models.CallSession) *models.CDR {
	end := time.Now().UTC()
	if s.EndTime != nil {
		end = *s.EndTime
	}
	return &models.CDR{
		CallUUID:       s.CallUUID,
		TenantID:       s.TenantID,
		Direction:      s.Direction,
		CallerIDName:   s.CallerIDName,
		CallerIDNumber: s.CallerIDNumber,
		Destination:    s.DestinationNumber,
		Context:        s.Context,
		StartTime:      s.StartTime,
		AnswerTime:     s.AnswerTime,
		EndTime:        end,
		DurationSec:    s.DurationSec,
		BillSec:        s.BillSec,
		HangupCause:    s.HangupCause,
	}
}
