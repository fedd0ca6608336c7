package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/voxgate/voxgate/internal/database/models"
	"github.com/voxgate/voxgate/internal/voxerr"
)

// callSessionRepo implements CallSessionRepository.
type callSessionRepo struct {
	db *DB
}

// NewCallSessionRepository creates a new CallSessionRepository.
func NewCallSessionRepository(db *DB) CallSessionRepository {
	return &callSessionRepo{db: db}
}

const callSessionSelect = `SELECT call_uuid, tenant_id, direction, caller_id_name,
	caller_id_number, destination_number, context, state, start_time, answer_time,
	end_time, duration_sec, billsec, hangup_cause, updated_at FROM call_sessions`

// Upsert inserts the session, or touches updated_at when a row for the
// call_uuid already exists. A replayed insert never resets the existing
// row's state or answer timestamp.
func (r *callSessionRepo) Upsert(ctx context.Context, s *models.CallSession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO call_sessions (call_uuid, tenant_id, direction, caller_id_name,
		 caller_id_number, destination_number, context, state, start_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (call_uuid) DO UPDATE SET updated_at = datetime('now')`,
		s.CallUUID, s.TenantID, s.Direction, s.CallerIDName, s.CallerIDNumber,
		s.DestinationNumber, s.Context, s.State, s.StartTime,
	)
	if err != nil {
		return fmt.Errorf("upserting call session: %w", err)
	}
	return nil
}

func (r *callSessionRepo) Get(ctx context.Context, callUUID string) (*models.CallSession, error) {
	var s models.CallSession
	err := scanCallSession(r.db.QueryRowContext(ctx,
		callSessionSelect+` WHERE call_uuid = ?`, callUUID), &s)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, voxerr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning call session: %w", err)
	}
	return &s, nil
}

func (r *callSessionRepo) Update(ctx context.Context, s *models.CallSession) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE call_sessions SET state = ?, answer_time = ?, end_time = ?,
		 duration_sec = ?, billsec = ?, hangup_cause = ?, updated_at = datetime('now')
		 WHERE call_uuid = ?`,
		s.State, s.AnswerTime, s.EndTime, s.DurationSec, s.BillSec,
		s.HangupCause, s.CallUUID,
	)
	if err != nil {
		return fmt.Errorf("updating call session: %w", err)
	}
	return nil
}

func (r *callSessionRepo) ListActive(ctx context.Context, tenantID string) ([]models.CallSession, error) {
	query := callSessionSelect + ` WHERE state != 'HANGUP'`
	args := []any{}
	if tenantID != "" {
		query += ` AND tenant_id = ?`
		args = append(args, tenantID)
	}
	query += ` ORDER BY start_time DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing active calls: %w", err)
	}
	defer rows.Close()

	var sessions []models.CallSession
	for rows.Next() {
		var s models.CallSession
		if err := scanCallSession(rows, &s); err != nil {
			return nil, fmt.Errorf("scanning call session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *callSessionRepo) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM call_sessions WHERE state != 'HANGUP'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting active calls: %w", err)
	}
	return n, nil
}

// CloseStale force-terminates sessions that never received a hangup, which
// happens when the event stream drops mid-call. The closed rows are returned
// so the caller can archive them.
func (r *callSessionRepo) CloseStale(ctx context.Context, cutoff time.Time, cause string) ([]models.CallSession, error) {
	rows, err := r.db.QueryContext(ctx,
		callSessionSelect+` WHERE state != 'HANGUP' AND start_time < ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("finding stale sessions: %w", err)
	}
	defer rows.Close()

	var stale []models.CallSession
	for rows.Next() {
		var s models.CallSession
		if err := scanCallSession(rows, &s); err != nil {
			return nil, fmt.Errorf("scanning stale session: %w", err)
		}
		stale = append(stale, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for i := range stale {
		s := &stale[i]
		s.State = models.StateHangup
		s.EndTime = &now
		s.HangupCause = cause
		s.DurationSec = int(now.Sub(s.StartTime).Seconds())
		if s.DurationSec < 0 {
			s.DurationSec = 0
		}
		if err := r.Update(ctx, s); err != nil {
			return stale[:i], err
		}
	}
	return stale, nil
}

func scanCallSession(row rowScanner, s *models.CallSession) error {
	return row.Scan(&s.CallUUID, &s.TenantID, &s.Direction, &s.CallerIDName,
		&s.CallerIDNumber, &s.DestinationNumber, &s.Context, &s.State,
		&s.StartTime, &s.AnswerTime, &s.EndTime, &s.DurationSec, &s.BillSec,
		&s.HangupCause, &s.UpdatedAt)
}
