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

type correctionRepo struct {
	db *sqlx.DB
}

// NewCorrectionRepo creates a new PostgreSQL-backed CorrectionRepository.
func NewCorrectionRepo(db *sqlx.DB) port.CorrectionRepository {
	return &correctionRepo{db: db}
}

func (r *correctionRepo) Create(ctx context.Context, c *domain.Correction) error {
	c.CreatedAt = time.Now().UTC()
	query := `INSERT INTO corrections (
		id, org_id, run_id, certificate_id, field_name, original_value, corrected_value,
		correction_type, certificate_type, tier, used_for_improvement, created_by, created_at
	) VALUES (
		:id, :org_id, :run_id, :certificate_id, :field_name, :original_value, :corrected_value,
		:correction_type, :certificate_type, :tier, :used_for_improvement, :created_by, :created_at
	)`
	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("correctionRepo.Create: %w", err)
	}
	return nil
}

func (r *correctionRepo) ListByCertificate(ctx context.Context, orgID, certificateID uuid.UUID) ([]domain.Correction, error) {
	var out []domain.Correction
	err := r.db.SelectContext(ctx, &out,
		`SELECT * FROM corrections WHERE org_id = $1 AND certificate_id = $2
		 ORDER BY created_at DESC`,
		orgID, certificateID)
	if err != nil {
		return nil, fmt.Errorf("correctionRepo.ListByCertificate: %w", err)
	}
	return out, nil
}

func (r *correctionRepo) ListSince(ctx context.Context, orgID uuid.UUID, since time.Time) ([]domain.Correction, error) {
	var out []domain.Correction
	err := r.db.SelectContext(ctx, &out,
		"SELECT * FROM corrections WHERE org_id = $1 AND created_at >= $2 ORDER BY created_at",
		orgID, since)
	if err != nil {
		return nil, fmt.Errorf("correctionRepo.ListSince: %w", err)
	}
	return out, nil
}

func (r *correctionRepo) MarkUsedForImprovement(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(
		"UPDATE corrections SET used_for_improvement = TRUE WHERE org_id = ? AND id IN (?)", orgID, ids)
	if err != nil {
		return fmt.Errorf("correctionRepo.MarkUsedForImprovement: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("correctionRepo.MarkUsedForImprovement: %w", err)
	}
	return nil
}
