package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"certflow/internal/domain"
	"certflow/internal/port"
)

type validationRuleRepo struct {
	db *sqlx.DB
}

// NewValidationRuleRepo creates a new PostgreSQL-backed ValidationRuleRepository.
func NewValidationRuleRepo(db *sqlx.DB) port.ValidationRuleRepository {
	return &validationRuleRepo{db: db}
}

func (r *validationRuleRepo) Create(ctx context.Context, rule *domain.ValidationRule) error {
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	query := `INSERT INTO validation_rules (
		id, org_id, certificate_type, name, description, kind,
		expression, outcome, priority, is_active, is_builtin, builtin_key,
		created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.ExecContext(ctx, query,
		rule.ID, rule.OrgID, rule.CertificateType, rule.Name, rule.Description, rule.Kind,
		rule.Expression, rule.Outcome, rule.Priority, rule.IsActive, rule.IsBuiltin, rule.BuiltinKey,
		rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "validation_rules_builtin_key") {
			return domain.ErrConflict
		}
		return fmt.Errorf("validationRuleRepo.Create: %w", err)
	}
	return nil
}

func (r *validationRuleRepo) GetByID(ctx context.Context, orgID, ruleID uuid.UUID) (*domain.ValidationRule, error) {
	var rule domain.ValidationRule
	err := r.db.GetContext(ctx, &rule,
		"SELECT * FROM validation_rules WHERE id = $1 AND org_id = $2", ruleID, orgID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("validationRuleRepo.GetByID: %w", err)
	}
	return &rule, nil
}

func (r *validationRuleRepo) ListActive(ctx context.Context, orgID uuid.UUID, certType domain.CertificateType) ([]domain.ValidationRule, error) {
	var rules []domain.ValidationRule
	err := r.db.SelectContext(ctx, &rules,
		`SELECT * FROM validation_rules
		 WHERE org_id = $1 AND certificate_type = $2 AND is_active = TRUE
		 ORDER BY priority DESC, name`,
		orgID, certType)
	if err != nil {
		return nil, fmt.Errorf("validationRuleRepo.ListActive: %w", err)
	}
	return rules, nil
}

func (r *validationRuleRepo) ListBuiltinKeys(ctx context.Context, orgID uuid.UUID) ([]string, error) {
	var keys []string
	err := r.db.SelectContext(ctx, &keys,
		"SELECT builtin_key FROM validation_rules WHERE org_id = $1 AND builtin_key IS NOT NULL",
		orgID)
	if err != nil {
		return nil, fmt.Errorf("validationRuleRepo.ListBuiltinKeys: %w", err)
	}
	return keys, nil
}

func (r *validationRuleRepo) Update(ctx context.Context, rule *domain.ValidationRule) error {
	rule.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE validation_rules SET
			name = $1, description = $2, kind = $3, expression = $4,
			outcome = $5, priority = $6, is_active = $7, updated_at = $8
		 WHERE id = $9 AND org_id = $10`,
		rule.Name, rule.Description, rule.Kind, rule.Expression,
		rule.Outcome, rule.Priority, rule.IsActive, rule.UpdatedAt,
		rule.ID, rule.OrgID)
	if err != nil {
		return fmt.Errorf("validationRuleRepo.Update: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
