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

type trainingRunRepo struct {
	db *sqlx.DB
}

// NewTrainingRunRepo creates a new PostgreSQL-backed TrainingRunRepository.
func NewTrainingRunRepo(db *sqlx.DB) port.TrainingRunRepository {
	return &trainingRunRepo{db: db}
}

func (r *trainingRunRepo) Start(ctx context.Context, run *domain.TrainingRun) error {
	run.Status = domain.TrainingStatusRunning
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO training_runs (id, org_id, status, started_at) VALUES ($1, $2, $3, $4)",
		run.ID, run.OrgID, run.Status, run.StartedAt)
	if err != nil {
		if isUniqueViolation(err, "training_runs_one_running") {
			return domain.ErrTrainingInProgress
		}
		return fmt.Errorf("trainingRunRepo.Start: %w", err)
	}
	return nil
}

func (r *trainingRunRepo) Finish(ctx context.Context, run *domain.TrainingRun) error {
	if run.CompletedAt == nil {
		now := time.Now().UTC()
		run.CompletedAt = &now
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE training_runs SET
			model_id = $1, status = $2, benchmark_score = $3, passed = $4, promoted = $5,
			sample_count = $6, error = $7, completed_at = $8
		 WHERE id = $9 AND org_id = $10`,
		run.ModelID, run.Status, run.BenchmarkScore, run.Passed, run.Promoted,
		run.SampleCount, run.Error, run.CompletedAt,
		run.ID, run.OrgID)
	if err != nil {
		return fmt.Errorf("trainingRunRepo.Finish: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *trainingRunRepo) ListByOrg(ctx context.Context, orgID uuid.UUID, limit int) ([]domain.TrainingRun, error) {
	var runs []domain.TrainingRun
	err := r.db.SelectContext(ctx, &runs,
		"SELECT * FROM training_runs WHERE org_id = $1 ORDER BY started_at DESC LIMIT $2",
		orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("trainingRunRepo.ListByOrg: %w", err)
	}
	return runs, nil
}

func (r *trainingRunRepo) FailStale(ctx context.Context, before time.Time, reason string) ([]domain.TrainingRun, error) {
	var runs []domain.TrainingRun
	err := r.db.SelectContext(ctx, &runs,
		`UPDATE training_runs SET status = $1, error = $2, completed_at = NOW()
		 WHERE status = $3 AND started_at < $4
		 RETURNING *`,
		domain.TrainingStatusFailed, reason, domain.TrainingStatusRunning, before)
	if err != nil {
		return nil, fmt.Errorf("trainingRunRepo.FailStale: %w", err)
	}
	return runs, nil
}
