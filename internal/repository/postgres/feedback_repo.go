package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"certflow/internal/domain"
	"certflow/internal/port"
)

type feedbackRepo struct {
	db *sqlx.DB
}

// NewFeedbackRepo creates a new PostgreSQL-backed FeedbackRepository.
func NewFeedbackRepo(db *sqlx.DB) port.FeedbackRepository {
	return &feedbackRepo{db: db}
}

func (r *feedbackRepo) Create(ctx context.Context, f *domain.PredictionFeedback) error {
	f.CreatedAt = time.Now().UTC()
	query := `INSERT INTO prediction_feedback (
		id, org_id, prediction_id, outcome, corrected_score, corrected_category,
		notes, submitted_by, used_in_training, created_at
	) VALUES (
		:id, :org_id, :prediction_id, :outcome, :corrected_score, :corrected_category,
		:notes, :submitted_by, :used_in_training, :created_at
	)`
	if _, err := r.db.NamedExecContext(ctx, query, f); err != nil {
		return fmt.Errorf("feedbackRepo.Create: %w", err)
	}
	return nil
}

func (r *feedbackRepo) ListLabeled(ctx context.Context, orgID uuid.UUID) ([]domain.LabeledFeedback, error) {
	var out []domain.LabeledFeedback
	err := r.db.SelectContext(ctx, &out,
		`SELECT f.*, p.factors, p.blended_score
		 FROM prediction_feedback f
		 JOIN risk_predictions p ON p.id = f.prediction_id
		 WHERE f.org_id = $1
		 ORDER BY f.created_at`,
		orgID)
	if err != nil {
		return nil, fmt.Errorf("feedbackRepo.ListLabeled: %w", err)
	}
	return out, nil
}

func (r *feedbackRepo) MarkUsedInTraining(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(
		"UPDATE prediction_feedback SET used_in_training = TRUE WHERE org_id = ? AND id IN (?)", orgID, ids)
	if err != nil {
		return fmt.Errorf("feedbackRepo.MarkUsedInTraining: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("feedbackRepo.MarkUsedInTraining: %w", err)
	}
	return nil
}
