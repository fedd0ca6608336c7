package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/voxgate/voxgate/internal/database/models"
	"github.com/voxgate/voxgate/internal/voxerr"
)

// dialplanRuleRepo implements DialplanRuleRepository.
type dialplanRuleRepo struct {
	db *DB
}

// NewDialplanRuleRepository creates a new DialplanRuleRepository.
func NewDialplanRuleRepository(db *DB) DialplanRuleRepository {
	return &dialplanRuleRepo{db: db}
}

const dialplanRuleSelect = `SELECT id, tenant_id, context, name, description,
	priority, match_pattern, match_condition, actions, enabled, created_at,
	updated_at FROM dialplan_rules`

func (r *dialplanRuleRepo) Create(ctx context.Context, rule *models.DialplanRule) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO dialplan_rules (id, tenant_id, context, name, description,
		 priority, match_pattern, match_condition, actions, enabled)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.TenantID, rule.Context, rule.Name, rule.Description,
		rule.Priority, rule.MatchPattern, rule.MatchCondition, rule.Actions, rule.Enabled,
	)
	if err != nil {
		return fmt.Errorf("inserting dialplan rule: %w", err)
	}
	return nil
}

func (r *dialplanRuleRepo) GetByID(ctx context.Context, id string) (*models.DialplanRule, error) {
	var rule models.DialplanRule
	err := scanDialplanRule(r.db.QueryRowContext(ctx, dialplanRuleSelect+` WHERE id = ?`, id), &rule)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, voxerr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning dialplan rule: %w", err)
	}
	return &rule, nil
}

// ListEnabledByContext returns the rules the evaluator runs against:
// enabled only, ascending priority.
func (r *dialplanRuleRepo) ListEnabledByContext(ctx context.Context, tenantID, context string) ([]models.DialplanRule, error) {
	rows, err := r.db.QueryContext(ctx,
		dialplanRuleSelect+` WHERE tenant_id = ? AND context = ? AND enabled = 1
		 ORDER BY priority ASC`,
		tenantID, context)
	if err != nil {
		return nil, fmt.Errorf("listing dialplan rules: %w", err)
	}
	defer rows.Close()
	return collectDialplanRules(rows)
}

func (r *dialplanRuleRepo) ListByTenant(ctx context.Context, tenantID string) ([]models.DialplanRule, error) {
	rows, err := r.db.QueryContext(ctx,
		dialplanRuleSelect+` WHERE tenant_id = ? ORDER BY context, priority ASC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing dialplan rules: %w", err)
	}
	defer rows.Close()
	return collectDialplanRules(rows)
}

func (r *dialplanRuleRepo) Update(ctx context.Context, rule *models.DialplanRule) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE dialplan_rules SET name = ?, description = ?, priority = ?,
		 match_pattern = ?, match_condition = ?, actions = ?, enabled = ?,
		 updated_at = datetime('now') WHERE id = ?`,
		rule.Name, rule.Description, rule.Priority, rule.MatchPattern,
		rule.MatchCondition, rule.Actions, rule.Enabled, rule.ID,
	)
	if err != nil {
		return fmt.Errorf("updating dialplan rule: %w", err)
	}
	return nil
}

func (r *dialplanRuleRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM dialplan_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting dialplan rule: %w", err)
	}
	return nil
}

func collectDialplanRules(rows *sql.Rows) ([]models.DialplanRule, error) {
	var rules []models.DialplanRule
	for rows.Next() {
		var rule models.DialplanRule
		if err := scanDialplanRule(rows, &rule); err != nil {
			return nil, fmt.Errorf("scanning dialplan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func scanDialplanRule(row rowScanner, rule *models.DialplanRule) error {
	return row.Scan(&rule.ID, &rule.TenantID, &rule.Context, &rule.Name,
		&rule.Description, &rule.Priority, &rule.MatchPattern,
		&rule.MatchCondition, &rule.Actions, &rule.Enabled,
		&rule.CreatedAt, &rule.UpdatedAt)
}
