package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/voxgate/voxgate/internal/database/models"
	"github.com/voxgate/voxgate/internal/voxerr"
)

// inboundRouteRepo implements InboundRouteRepository.
type inboundRouteRepo struct {
	db *DB
}

// NewInboundRouteRepository creates a new InboundRouteRepository.
func NewInboundRouteRepository(db *DB) InboundRouteRepository {
	return &inboundRouteRepo{db: db}
}

const inboundRouteSelect = `SELECT id, tenant_id, name, description, did_number,
	caller_id_pattern, destination_type, destination_value, time_condition_id,
	enabled, failover_enabled, failover_destination_type,
	failover_destination_value, created_at, updated_at FROM inbound_routes`

func (r *inboundRouteRepo) Create(ctx context.Context, route *models.InboundRoute) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO inbound_routes (id, tenant_id, name, description, did_number,
		 caller_id_pattern, destination_type, destination_value, time_condition_id,
		 enabled, failover_enabled, failover_destination_type, failover_destination_value)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		route.ID, route.TenantID, route.Name, route.Description, route.DIDNumber,
		route.CallerIDPattern, route.DestinationType, route.DestinationValue,
		route.TimeConditionID, route.Enabled, route.FailoverEnabled,
		route.FailoverDestinationType, route.FailoverDestinationValue,
	)
	if err != nil {
		return fmt.Errorf("inserting inbound route: %w", err)
	}
	return nil
}

func (r *inboundRouteRepo) GetByID(ctx context.Context, id string) (*models.InboundRoute, error) {
	var route models.InboundRoute
	err := scanInboundRoute(r.db.QueryRowContext(ctx, inboundRouteSelect+` WHERE id = ?`, id), &route)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, voxerr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning inbound route: %w", err)
	}
	return &route, nil
}

func (r *inboundRouteRepo) ListEnabled(ctx context.Context, tenantID string) ([]models.InboundRoute, error) {
	return r.list(ctx, inboundRouteSelect+` WHERE tenant_id = ? AND enabled = 1 ORDER BY did_number`, tenantID)
}

func (r *inboundRouteRepo) List(ctx context.Context, tenantID string) ([]models.InboundRoute, error) {
	return r.list(ctx, inboundRouteSelect+` WHERE tenant_id = ? ORDER BY name`, tenantID)
}

func (r *inboundRouteRepo) list(ctx context.Context, query string, args ...any) ([]models.InboundRoute, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing inbound routes: %w", err)
	}
	defer rows.Close()

	var routes []models.InboundRoute
	for rows.Next() {
		var route models.InboundRoute
		if err := scanInboundRoute(rows, &route); err != nil {
			return nil, fmt.Errorf("scanning inbound route: %w", err)
		}
		routes = append(routes, route)
	}
	return routes, rows.Err()
}

func (r *inboundRouteRepo) Update(ctx context.Context, route *models.InboundRoute) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE inbound_routes SET name = ?, description = ?, did_number = ?,
		 caller_id_pattern = ?, destination_type = ?, destination_value = ?,
		 time_condition_id = ?, enabled = ?, failover_enabled = ?,
		 failover_destination_type = ?, failover_destination_value = ?,
		 updated_at = datetime('now') WHERE id = ?`,
		route.Name, route.Description, route.DIDNumber, route.CallerIDPattern,
		route.DestinationType, route.DestinationValue, route.TimeConditionID,
		route.Enabled, route.FailoverEnabled, route.FailoverDestinationType,
		route.FailoverDestinationValue, route.ID,
	)
	if err != nil {
		return fmt.Errorf("updating inbound route: %w", err)
	}
	return nil
}

func (r *inboundRouteRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM inbound_routes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting inbound route: %w", err)
	}
	return nil
}

func scanInboundRoute(row rowScanner, route *models.InboundRoute) error {
	return row.Scan(&route.ID, &route.TenantID, &route.Name, &route.Description,
		&route.DIDNumber, &route.CallerIDPattern, &route.DestinationType,
		&route.DestinationValue, &route.TimeConditionID, &route.Enabled,
		&route.FailoverEnabled, &route.FailoverDestinationType,
		&route.FailoverDestinationValue, &route.CreatedAt, &route.UpdatedAt)
}

// outboundRouteRepo implements OutboundRouteRepository.
type outboundRouteRepo struct {
	db *DB
}

// NewOutboundRouteRepository creates a new OutboundRouteRepository.
func NewOutboundRouteRepository(db *DB) OutboundRouteRepository {
	return &outboundRouteRepo{db: db}
}

const outboundRouteSelect = `SELECT id, tenant_id, name, description, dial_pattern,
	trunk_id, prefix, strip_digits, add_digits, priority, enabled,
	failover_trunk_id, created_at, updated_at FROM outbound_routes`

func (r *outboundRouteRepo) Create(ctx context.Context, route *models.OutboundRoute) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO outbound_routes (id, tenant_id, name, description, dial_pattern,
		 trunk_id, prefix, strip_digits, add_digits, priority, enabled, failover_trunk_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		route.ID, route.TenantID, route.Name, route.Description, route.DialPattern,
		route.TrunkID, route.Prefix, route.StripDigits, route.AddDigits,
		route.Priority, route.Enabled, route.FailoverTrunkID,
	)
	if err != nil {
		return fmt.Errorf("inserting outbound route: %w", err)
	}
	return nil
}

func (r *outboundRouteRepo) GetByID(ctx context.Context, id string) (*models.OutboundRoute, error) {
	var route models.OutboundRoute
	err := scanOutboundRoute(r.db.QueryRowContext(ctx, outboundRouteSelect+` WHERE id = ?`, id), &route)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, voxerr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning outbound route: %w", err)
	}
	return &route, nil
}

// ListEnabled returns evaluation order: enabled routes ascending by priority.
func (r *outboundRouteRepo) ListEnabled(ctx context.Context, tenantID string) ([]models.OutboundRoute, error) {
	return r.list(ctx, outboundRouteSelect+` WHERE tenant_id = ? AND enabled = 1 ORDER BY priority ASC`, tenantID)
}

func (r *outboundRouteRepo) List(ctx context.Context, tenantID string) ([]models.OutboundRoute, error) {
	return r.list(ctx, outboundRouteSelect+` WHERE tenant_id = ? ORDER BY priority ASC`, tenantID)
}

func (r *outboundRouteRepo) list(ctx context.Context, query string, args ...any) ([]models.OutboundRoute, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing outbound routes: %w", err)
	}
	defer rows.Close()

	var routes []models.OutboundRoute
	for rows.Next() {
		var route models.OutboundRoute
		if err := scanOutboundRoute(rows, &route); err != nil {
			return nil, fmt.Errorf("scanning outbound route: %w", err)
		}
		routes = append(routes, route)
	}
	return routes, rows.Err()
}

func (r *outboundRouteRepo) Update(ctx context.Context, route *models.OutboundRoute) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbound_routes SET name = ?, description = ?, dial_pattern = ?,
		 trunk_id = ?, prefix = ?, strip_digits = ?, add_digits = ?, priority = ?,
		 enabled = ?, failover_trunk_id = ?, updated_at = datetime('now')
		 WHERE id = ?`,
		route.Name, route.Description, route.DialPattern, route.TrunkID,
		route.Prefix, route.StripDigits, route.AddDigits, route.Priority,
		route.Enabled, route.FailoverTrunkID, route.ID,
	)
	if err != nil {
		return fmt.Errorf("updating outbound route: %w", err)
	}
	return nil
}

func (r *outboundRouteRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM outbound_routes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting outbound route: %w", err)
	}
	return nil
}

func scanOutboundRoute(row rowScanner, route *models.OutboundRoute) error {
	return row.Scan(&route.ID, &route.TenantID, &route.Name, &route.Description,
		&route.DialPattern, &route.TrunkID, &route.Prefix, &route.StripDigits,
		&route.AddDigits, &route.Priority, &route.Enabled, &route.FailoverTrunkID,
		&route.CreatedAt, &route.UpdatedAt)
}
