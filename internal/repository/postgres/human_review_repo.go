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

type humanReviewRepo struct {
	db *sqlx.DB
}

// NewHumanReviewRepo creates a new PostgreSQL-backed HumanReviewRepository.
func NewHumanReviewRepo(db *sqlx.DB) port.HumanReviewRepository {
	return &humanReviewRepo{db: db}
}

func (r *humanReviewRepo) Create(ctx context.Context, review *domain.HumanReview) error {
	review.CreatedAt = time.Now().UTC()
	if review.Status == "" {
		review.Status = domain.ReviewStatusPending
	}
	query := `INSERT INTO human_reviews (
		id, org_id, run_id, reason, failed_rule, status, error_tags, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query,
		review.ID, review.OrgID, review.RunID, review.Reason, review.FailedRule,
		review.Status, review.ErrorTags, review.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "human_reviews_open_run") {
			return domain.ErrConflict
		}
		return fmt.Errorf("humanReviewRepo.Create: %w", err)
	}
	return nil
}

func (r *humanReviewRepo) GetByID(ctx context.Context, orgID, reviewID uuid.UUID) (*domain.HumanReview, error) {
	var review domain.HumanReview
	err := r.db.GetContext(ctx, &review,
		"SELECT * FROM human_reviews WHERE id = $1 AND org_id = $2", reviewID, orgID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("humanReviewRepo.GetByID: %w", err)
	}
	return &review, nil
}

func (r *humanReviewRepo) ListPending(ctx context.Context, orgID uuid.UUID, offset, limit int) ([]domain.HumanReview, int, error) {
	var total int
	err := r.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM human_reviews WHERE org_id = $1 AND status <> $2",
		orgID, domain.ReviewStatusCompleted)
	if err != nil {
		return nil, 0, fmt.Errorf("humanReviewRepo.ListPending count: %w", err)
	}

	var reviews []domain.HumanReview
	err = r.db.SelectContext(ctx, &reviews,
		`SELECT * FROM human_reviews WHERE org_id = $1 AND status <> $2
		 ORDER BY created_at LIMIT $3 OFFSET $4`,
		orgID, domain.ReviewStatusCompleted, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("humanReviewRepo.ListPending: %w", err)
	}
	return reviews, total, nil
}

func (r *humanReviewRepo) ListByRun(ctx context.Context, orgID, runID uuid.UUID) ([]domain.HumanReview, error) {
	var reviews []domain.HumanReview
	err := r.db.SelectContext(ctx, &reviews,
		"SELECT * FROM human_reviews WHERE run_id = $1 AND org_id = $2 ORDER BY created_at",
		runID, orgID)
	if err != nil {
		return nil, fmt.Errorf("humanReviewRepo.ListByRun: %w", err)
	}
	return reviews, nil
}

func (r *humanReviewRepo) Claim(ctx context.Context, orgID, reviewID, reviewerID uuid.UUID) (*domain.HumanReview, error) {
	var review domain.HumanReview
	err := r.db.GetContext(ctx, &review,
		`UPDATE human_reviews SET status = $1, reviewer_id = $2, started_at = NOW()
		 WHERE id = $3 AND org_id = $4 AND status = $5
		 RETURNING *`,
		domain.ReviewStatusInReview, reviewerID, reviewID, orgID, domain.ReviewStatusPending)
	if err == nil {
		return &review, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("humanReviewRepo.Claim: %w", err)
	}

	current, err := r.GetByID(ctx, orgID, reviewID)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.ReviewStatusCompleted {
		return nil, domain.ErrReviewClosed
	}
	return nil, domain.ErrConflict
}

func (r *humanReviewRepo) Complete(ctx context.Context, review *domain.HumanReview) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE human_reviews SET
			status = $1, reviewer_id = $2, decision = $3, error_tags = $4,
			started_at = $5, completed_at = $6, duration_ms = $7
		 WHERE id = $8 AND org_id = $9 AND status <> $10`,
		domain.ReviewStatusCompleted, review.ReviewerID, review.Decision, review.ErrorTags,
		review.StartedAt, review.CompletedAt, review.DurationMs,
		review.ID, review.OrgID, domain.ReviewStatusCompleted)
	if err != nil {
		return fmt.Errorf("humanReviewRepo.Complete: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrReviewClosed
	}
	return nil
}

func (r *humanReviewRepo) ListRejectedSince(ctx context.Context, orgID uuid.UUID, since time.Time) ([]port.ReviewRejection, error) {
	var out []port.ReviewRejection
	err := r.db.SelectContext(ctx, &out,
		`SELECT hr.id AS review_id, er.certificate_type, hr.error_tags
		 FROM human_reviews hr
		 JOIN extraction_runs er ON er.id = hr.run_id
		 WHERE hr.org_id = $1 AND hr.decision = $2 AND hr.completed_at >= $3`,
		orgID, domain.ReviewDecisionReject, since)
	if err != nil {
		return nil, fmt.Errorf("humanReviewRepo.ListRejectedSince: %w", err)
	}
	return out, nil
}
