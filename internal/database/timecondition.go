package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/voxgate/voxgate/internal/database/models"
	"github.com/voxgate/voxgate/internal/voxerr"
)

// timeConditionRepo implements TimeConditionRepository.
type timeConditionRepo struct {
	db *DB
}

// NewTimeConditionRepository creates a new TimeConditionRepository.
func NewTimeConditionRepository(db *DB) TimeConditionRepository {
	return &timeConditionRepo{db: db}
}

const timeConditionSelect = `SELECT id, tenant_id, name, description, timezone,
	business_hours, holidays, business_hours_action, business_hours_destination,
	after_hours_action, after_hours_destination, holiday_action,
	holiday_destination, enabled, created_at, updated_at FROM time_conditions`

func (r *timeConditionRepo) Create(ctx context.Context, tc *models.TimeCondition) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO time_conditions (id, tenant_id, name, description, timezone,
		 business_hours, holidays, business_hours_action, business_hours_destination,
		 after_hours_action, after_hours_destination, holiday_action,
		 holiday_destination, enabled)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tc.ID, tc.TenantID, tc.Name, tc.Description, tc.Timezone,
		tc.BusinessHours, tc.Holidays, tc.BusinessHoursAction,
		tc.BusinessHoursDestination, tc.AfterHoursAction, tc.AfterHoursDestination,
		tc.HolidayAction, tc.HolidayDestination, tc.Enabled,
	)
	if err != nil {
		return fmt.Errorf("inserting time condition: %w", err)
	}
	return nil
}

func (r *timeConditionRepo) GetByID(ctx context.Context, id string) (*models.TimeCondition, error) {
	var tc models.TimeCondition
	err := scanTimeCondition(r.db.QueryRowContext(ctx, timeConditionSelect+` WHERE id = ?`, id), &tc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, voxerr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning time condition: %w", err)
	}
	return &tc, nil
}

func (r *timeConditionRepo) List(ctx context.Context, tenantID string) ([]models.TimeCondition, error) {
	rows, err := r.db.QueryContext(ctx,
		timeConditionSelect+` WHERE tenant_id = ? ORDER BY name`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing time conditions: %w", err)
	}
	defer rows.Close()

	var tcs []models.TimeCondition
	for rows.Next() {
		var tc models.TimeCondition
		if err := scanTimeCondition(rows, &tc); err != nil {
			return nil, fmt.Errorf("scanning time condition: %w", err)
		}
		tcs = append(tcs, tc)
	}
	return tcs, rows.Err()
}

func (r *timeConditionRepo) Update(ctx context.Context, tc *models.TimeCondition) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE time_conditions SET name = ?, description = ?, timezone = ?,
		 business_hours = ?, holidays = ?, business_hours_action = ?,
		 business_hours_destination = ?, after_hours_action = ?,
		 after_hours_destination = ?, holiday_action = ?, holiday_destination = ?,
		 enabled = ?, updated_at = datetime('now') WHERE id = ?`,
		tc.Name, tc.Description, tc.Timezone, tc.BusinessHours, tc.Holidays,
		tc.BusinessHoursAction, tc.BusinessHoursDestination, tc.AfterHoursAction,
		tc.AfterHoursDestination, tc.HolidayAction, tc.HolidayDestination,
		tc.Enabled, tc.ID,
	)
	if err != nil {
		return fmt.Errorf("updating time condition: %w", err)
	}
	return nil
}

func (r *timeConditionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM time_conditions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting time condition: %w", err)
	}
	return nil
}

func scanTimeCondition(row rowScanner, tc *models.TimeCondition) error {
	return row.Scan(&tc.ID, &tc.TenantID, &tc.Name, &tc.Description, &tc.Timezone,
		&tc.BusinessHours, &tc.Holidays, &tc.BusinessHoursAction,
		&tc.BusinessHoursDestination, &tc.AfterHoursAction,
		&tc.AfterHoursDestination, &tc.HolidayAction, &tc.HolidayDestination,
		&tc.Enabled, &tc.CreatedAt, &tc.UpdatedAt)
}
