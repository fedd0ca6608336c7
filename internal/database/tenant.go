package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/voxgate/voxgate/internal/database/models"
	"github.com/voxgate/voxgate/internal/voxerr"
)

// tenantRepo implements TenantRepository.
type tenantRepo struct {
	db *DB
}

// NewTenantRepository creates a new TenantRepository.
func NewTenantRepository(db *DB) TenantRepository {
	return &tenantRepo{db: db}
}

func (r *tenantRepo) Create(ctx context.Context, t *models.Tenant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenants (id, name, slug, sip_domain, country_code, timezone, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Slug, t.SIPDomain, t.CountryCode, t.Timezone, t.Status,
	)
	if err != nil {
		return fmt.Errorf("inserting tenant: %w", err)
	}
	return nil
}

func (r *tenantRepo) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, tenantSelect+` WHERE id = ?`, id))
}

func (r *tenantRepo) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, tenantSelect+` WHERE slug = ?`, slug))
}

func (r *tenantRepo) GetBySIPDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, tenantSelect+` WHERE sip_domain = ?`, domain))
}

func (r *tenantRepo) List(ctx context.Context) ([]models.Tenant, error) {
	rows, err := r.db.QueryContext(ctx, tenantSelect+` ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	defer rows.Close()

	var tenants []models.Tenant
	for rows.Next() {
		var t models.Tenant
		if err := scanTenant(rows, &t); err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (r *tenantRepo) Update(ctx context.Context, t *models.Tenant) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tenants SET name = ?, slug = ?, sip_domain = ?, country_code = ?,
		 timezone = ?, status = ?, updated_at = datetime('now') WHERE id = ?`,
		t.Name, t.Slug, t.SIPDomain, t.CountryCode, t.Timezone, t.Status, t.ID,
	)
	if err != nil {
		return fmt.Errorf("updating tenant: %w", err)
	}
	return nil
}

func (r *tenantRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tenants WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting tenant: %w", err)
	}
	return nil
}

const tenantSelect = `SELECT id, name, slug, sip_domain, country_code, timezone,
	status, created_at, updated_at FROM tenants`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner, t *models.Tenant) error {
	return row.Scan(&t.ID, &t.Name, &t.Slug, &t.SIPDomain, &t.CountryCode,
		&t.Timezone, &t.Status, &t.CreatedAt, &t.UpdatedAt)
}

func (r *tenantRepo) scanOne(row *sql.Row) (*models.Tenant, error) {
	var t models.Tenant
	if err := scanTenant(row, &t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, voxerr.ErrNotFound
		}
		return nil, fmt.Errorf("scanning tenant: %w", err)
	}
	return &t, nil
}
