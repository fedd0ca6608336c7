package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/voxgate/voxgate/internal/database/models"
	"github.com/voxgate/voxgate/internal/voxerr"
)

// extensionRepo implements ExtensionRepository.
type extensionRepo struct {
	db *DB
}

// NewExtensionRepository creates a new ExtensionRepository.
func NewExtensionRepository(db *DB) ExtensionRepository {
	return &extensionRepo{db: db}
}

const extensionSelect = `SELECT id, tenant_id, extension, display_name, password,
	voicemail_pin, dnd, call_forward, status, created_at, updated_at FROM extensions`

func (r *extensionRepo) Create(ctx context.Context, ext *models.Extension) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO extensions (id, tenant_id, extension, display_name, password,
		 voicemail_pin, dnd, call_forward, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ext.ID, ext.TenantID, ext.Extension, ext.DisplayName, ext.Password,
		ext.VoicemailPIN, ext.DND, ext.CallForward, ext.Status,
	)
	if err != nil {
		return fmt.Errorf("inserting extension: %w", err)
	}
	return nil
}

func (r *extensionRepo) GetByNumber(ctx context.Context, tenantID, extension string) (*models.Extension, error) {
	var ext models.Extension
	err := scanExtension(r.db.QueryRowContext(ctx,
		extensionSelect+` WHERE tenant_id = ? AND extension = ? AND status = 'active'`,
		tenantID, extension,
	), &ext)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, voxerr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning extension: %w", err)
	}
	return &ext, nil
}

// FindTenantIDByNumber locates the owning tenant of an extension number.
// Used as the fallback tenant lookup when the engine's callback carries no
// usable domain.
func (r *extensionRepo) FindTenantIDByNumber(ctx context.Context, extension string) (string, error) {
	var tenantID string
	err := r.db.QueryRowContext(ctx,
		`SELECT t.id FROM tenants t
		 JOIN extensions e ON e.tenant_id = t.id
		 WHERE e.extension = ? AND t.status = 'active' AND e.status = 'active'
		 LIMIT 1`, extension,
	).Scan(&tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", voxerr.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("finding tenant by extension: %w", err)
	}
	return tenantID, nil
}

func (r *extensionRepo) List(ctx context.Context, tenantID string) ([]models.Extension, error) {
	rows, err := r.db.QueryContext(ctx,
		extensionSelect+` WHERE tenant_id = ? ORDER BY extension`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing extensions: %w", err)
	}
	defer rows.Close()

	var exts []models.Extension
	for rows.Next() {
		var ext models.Extension
		if err := scanExtension(rows, &ext); err != nil {
			return nil, fmt.Errorf("scanning extension: %w", err)
		}
		exts = append(exts, ext)
	}
	return exts, rows.Err()
}

func (r *extensionRepo) Update(ctx context.Context, ext *models.Extension) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE extensions SET extension = ?, display_name = ?, password = ?,
		 voicemail_pin = ?, dnd = ?, call_forward = ?, status = ?,
		 updated_at = datetime('now') WHERE id = ?`,
		ext.Extension, ext.DisplayName, ext.Password, ext.VoicemailPIN,
		ext.DND, ext.CallForward, ext.Status, ext.ID,
	)
	if err != nil {
		return fmt.Errorf("updating extension: %w", err)
	}
	return nil
}

func (r *extensionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM extensions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting extension: %w", err)
	}
	return nil
}

func scanExtension(row rowScanner, ext *models.Extension) error {
	return row.Scan(&ext.ID, &ext.TenantID, &ext.Extension, &ext.DisplayName,
		&ext.Password, &ext.VoicemailPIN, &ext.DND, &ext.CallForward,
		&ext.Status, &ext.CreatedAt, &ext.UpdatedAt)
}
