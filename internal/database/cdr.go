package database

import (
	"context"
	"fmt"

	"github.com/voxgate/voxgate/internal/database/models"
)

// cdrRepo implements CDRRepository.
type cdrRepo struct {
	db *DB
}

// NewCDRRepository creates a new CDRRepository.
func NewCDRRepository(db *DB) CDRRepository {
	return &cdrRepo{db: db}
}

const cdrSelect = `SELECT id, call_uuid, tenant_id, direction, caller_id_name,
	caller_id_number, destination, context, start_time, answer_time, end_time,
	duration_sec, billsec, hangup_cause, created_at FROM cdrs`

// Create inserts a new call detail record.
func (r *cdrRepo) Create(ctx context.Context, cdr *models.CDR) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO cdrs (call_uuid, tenant_id, direction, caller_id_name,
		 caller_id_number, destination, context, start_time, answer_time,
		 end_time, duration_sec, billsec, hangup_cause)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cdr.CallUUID, cdr.TenantID, cdr.Direction, cdr.CallerIDName,
		cdr.CallerIDNumber, cdr.Destination, cdr.Context, cdr.StartTime,
		cdr.AnswerTime, cdr.EndTime, cdr.DurationSec, cdr.BillSec,
		cdr.HangupCause,
	)
	if err != nil {
		return fmt.Errorf("inserting cdr: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	cdr.ID = id
	return nil
}

// List returns CDRs matching the filter, along with the total count.
func (r *cdrRepo) List(ctx context.Context, filter CDRListFilter) ([]models.CDR, int, error) {
	where := "1=1"
	args := []any{}

	if filter.TenantID != "" {
		where += " AND tenant_id = ?"
		args = append(args, filter.TenantID)
	}
	if filter.Direction != "" {
		where += " AND direction = ?"
		args = append(args, filter.Direction)
	}
	if filter.Search != "" {
		where += " AND (caller_id_name LIKE ? OR caller_id_number LIKE ? OR destination LIKE ?)"
		s := "%" + filter.Search + "%"
		args = append(args, s, s, s)
	}
	if filter.StartDate != "" {
		where += " AND start_time >= ?"
		args = append(args, filter.StartDate)
	}
	if filter.EndDate != "" {
		where += " AND start_time <= ?"
		args = append(args, filter.EndDate)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cdrs WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting cdrs: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := cdrSelect + ` WHERE ` + where + ` ORDER BY start_time DESC LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing cdrs: %w", err)
	}
	defer rows.Close()

	var cdrs []models.CDR
	for rows.Next() {
		var cdr models.CDR
		if err := scanCDR(rows, &cdr); err != nil {
			return nil, 0, fmt.Errorf("scanning cdr: %w", err)
		}
		cdrs = append(cdrs, cdr)
	}
	return cdrs, total, rows.Err()
}

// CountByDirection returns total CDR counts keyed by call direction.
func (r *cdrRepo) CountByDirection(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT direction, COUNT(*) FROM cdrs GROUP BY direction`)
	if err != nil {
		return nil, fmt.Errorf("counting cdrs by direction: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var direction string
		var n int64
		if err := rows.Scan(&direction, &n); err != nil {
			return nil, fmt.Errorf("scanning cdr count: %w", err)
		}
		counts[direction] = n
	}
	return counts, rows.Err()
}

func scanCDR(row rowScanner, cdr *models.CDR) error {
	return row.Scan(&cdr.ID, &cdr.CallUUID, &cdr.TenantID, &cdr.Direction,
		&cdr.CallerIDName, &cdr.CallerIDNumber, &cdr.Destination, &cdr.Context,
		&cdr.StartTime, &cdr.AnswerTime, &cdr.EndTime, &cdr.DurationSec,
		&cdr.BillSec, &cdr.HangupCause, &cdr.CreatedAt)
}
