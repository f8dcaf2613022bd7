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

type suggestionRepo struct {
	db *sqlx.DB
}

// NewSuggestionRepo creates a new PostgreSQL-backed SuggestionRepository.
func NewSuggestionRepo(db *sqlx.DB) port.SuggestionRepository {
	return &suggestionRepo{db: db}
}

func (r *suggestionRepo) GetByID(ctx context.Context, orgID, suggestionID uuid.UUID) (*domain.Suggestion, error) {
	return r.get(ctx, "suggestionRepo.GetByID",
		"SELECT * FROM suggestions WHERE id = $1 AND org_id = $2", suggestionID, orgID)
}

func (r *suggestionRepo) GetByKey(ctx context.Context, orgID uuid.UUID, key string) (*domain.Suggestion, error) {
	return r.get(ctx, "suggestionRepo.GetByKey",
		"SELECT * FROM suggestions WHERE key = $1 AND org_id = $2", key, orgID)
}

func (r *suggestionRepo) get(ctx context.Context, op, query string, args ...any) (*domain.Suggestion, error) {
	var s domain.Suggestion
	if err := r.db.GetContext(ctx, &s, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &s, nil
}

func (r *suggestionRepo) Create(ctx context.Context, s *domain.Suggestion) error {
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	query := `INSERT INTO suggestions (
		id, org_id, key, source, field_name, certificate_type, signature,
		title, description, support, status,
		baseline_value, current_value, target_value, progress,
		dismiss_reason, created_at, updated_at, resolved_at
	) VALUES (
		:id, :org_id, :key, :source, :field_name, :certificate_type, :signature,
		:title, :description, :support, :status,
		:baseline_value, :current_value, :target_value, :progress,
		:dismiss_reason, :created_at, :updated_at, :resolved_at
	)`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		if isUniqueViolation(err, "suggestions_org_key") {
			return domain.ErrConflict
		}
		return fmt.Errorf("suggestionRepo.Create: %w", err)
	}
	return nil
}

func (r *suggestionRepo) Update(ctx context.Context, s *domain.Suggestion, from domain.SuggestionStatus) error {
	s.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE suggestions SET
			support = $1, status = $2, current_value = $3, progress = $4,
			dismiss_reason = $5, updated_at = $6, resolved_at = $7
		 WHERE id = $8 AND org_id = $9 AND status = $10`,
		s.Support, s.Status, s.CurrentValue, s.Progress,
		s.DismissReason, s.UpdatedAt, s.ResolvedAt,
		s.ID, s.OrgID, from)
	if err != nil {
		return fmt.Errorf("suggestionRepo.Update: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *suggestionRepo) List(ctx context.Context, orgID uuid.UUID, status *domain.SuggestionStatus) ([]domain.Suggestion, error) {
	var out []domain.Suggestion
	var err error
	if status != nil {
		err = r.db.SelectContext(ctx, &out,
			"SELECT * FROM suggestions WHERE org_id = $1 AND status = $2 ORDER BY support DESC, created_at",
			orgID, *status)
	} else {
		err = r.db.SelectContext(ctx, &out,
			"SELECT * FROM suggestions WHERE org_id = $1 ORDER BY support DESC, created_at", orgID)
	}
	if err != nil {
		return nil, fmt.Errorf("suggestionRepo.List: %w", err)
	}
	return out, nil
}
