package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"certflow/internal/domain"
	"certflow/internal/port"
)

const insertAttemptQuery = `INSERT INTO tier_attempts (
	id, org_id, run_id, tier, adapter, succeeded, confidence,
	raw_text_ref, structured_fields, error_category, error_message,
	processing_time_ms, estimated_cost, stale, attempted_at
) VALUES (
	:id, :org_id, :run_id, :tier, :adapter, :succeeded, :confidence,
	:raw_text_ref, :structured_fields, :error_category, :error_message,
	:processing_time_ms, :estimated_cost, :stale, :attempted_at
)`

type tierAttemptRepo struct {
	db *sqlx.DB
}

// NewTierAttemptRepo creates a new PostgreSQL-backed TierAttemptRepository.
func NewTierAttemptRepo(db *sqlx.DB) port.TierAttemptRepository {
	return &tierAttemptRepo{db: db}
}

func (r *tierAttemptRepo) Append(ctx context.Context, a *domain.TierAttempt) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if _, err := r.db.NamedExecContext(ctx, insertAttemptQuery, a); err != nil {
		return fmt.Errorf("tierAttemptRepo.Append: %w", err)
	}
	return nil
}

func (r *tierAttemptRepo) ListByRun(ctx context.Context, orgID, runID uuid.UUID) ([]domain.TierAttempt, error) {
	var attempts []domain.TierAttempt
	err := r.db.SelectContext(ctx, &attempts,
		`SELECT * FROM tier_attempts WHERE run_id = $1 AND org_id = $2
		 ORDER BY attempted_at, tier`,
		runID, orgID)
	if err != nil {
		return nil, fmt.Errorf("tierAttemptRepo.ListByRun: %w", err)
	}
	return attempts, nil
}
