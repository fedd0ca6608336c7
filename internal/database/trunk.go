package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/voxgate/voxgate/internal/database/models"
	"github.com/voxgate/voxgate/internal/voxerr"
)

// trunkRepo implements TrunkRepository.
type trunkRepo struct {
	db *DB
}

// NewTrunkRepository creates a new TrunkRepository.
func NewTrunkRepository(db *DB) TrunkRepository {
	return &trunkRepo{db: db}
}

const trunkSelect = `SELECT id, tenant_id, name, host, port, transport, username,
	enabled, created_at, updated_at FROM trunks`

func (r *trunkRepo) Create(ctx context.Context, trunk *models.Trunk) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO trunks (id, tenant_id, name, host, port, transport, username, enabled)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		trunk.ID, trunk.TenantID, trunk.Name, trunk.Host, trunk.Port,
		trunk.Transport, trunk.Username, trunk.Enabled,
	)
	if err != nil {
		return fmt.Errorf("inserting trunk: %w", err)
	}
	return nil
}

func (r *trunkRepo) GetByID(ctx context.Context, id string) (*models.Trunk, error) {
	var trunk models.Trunk
	err := scanTrunk(r.db.QueryRowContext(ctx, trunkSelect+` WHERE id = ?`, id), &trunk)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, voxerr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning trunk: %w", err)
	}
	return &trunk, nil
}

func (r *trunkRepo) List(ctx context.Context, tenantID string) ([]models.Trunk, error) {
	rows, err := r.db.QueryContext(ctx, trunkSelect+` WHERE tenant_id = ? ORDER BY name`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing trunks: %w", err)
	}
	defer rows.Close()

	var trunks []models.Trunk
	for rows.Next() {
		var trunk models.Trunk
		if err := scanTrunk(rows, &trunk); err != nil {
			return nil, fmt.Errorf("scanning trunk: %w", err)
		}
		trunks = append(trunks, trunk)
	}
	return trunks, rows.Err()
}

func (r *trunkRepo) Update(ctx context.Context, trunk *models.Trunk) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE trunks SET name = ?, host = ?, port = ?, transport = ?,
		 username = ?, enabled = ?, updated_at = datetime('now') WHERE id = ?`,
		trunk.Name, trunk.Host, trunk.Port, trunk.Transport, trunk.Username,
		trunk.Enabled, trunk.ID,
	)
	if err != nil {
		return fmt.Errorf("updating trunk: %w", err)
	}
	return nil
}

func (r *trunkRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM trunks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting trunk: %w", err)
	}
	return nil
}

func scanTrunk(row rowScanner, trunk *models.Trunk) error {
	return row.Scan(&trunk.ID, &trunk.TenantID, &trunk.Name, &trunk.Host,
		&trunk.Port, &trunk.Transport, &trunk.Username, &trunk.Enabled,
		&trunk.CreatedAt, &trunk.UpdatedAt)
}
