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

type modelRepo struct {
	db *sqlx.DB
}

// NewModelRepo creates a new PostgreSQL-backed ModelRepository.
func NewModelRepo(db *sqlx.DB) port.ModelRepository {
	return &modelRepo{db: db}
}

func (r *modelRepo) Create(ctx context.Context, m *domain.RiskModel) error {
	m.CreatedAt = time.Now().UTC()
	query := `INSERT INTO risk_models (
		id, org_id, version, hyperparameters, weights, bias,
		benchmark_score, passed, sample_count, created_at
	) VALUES (
		:id, :org_id, :version, :hyperparameters, :weights, :bias,
		:benchmark_score, :passed, :sample_count, :created_at
	)`
	if _, err := r.db.NamedExecContext(ctx, query, m); err != nil {
		if isUniqueViolation(err, "risk_models_org_version") {
			return domain.ErrConflict
		}
		return fmt.Errorf("modelRepo.Create: %w", err)
	}
	return nil
}

func (r *modelRepo) GetByID(ctx context.Context, orgID, modelID uuid.UUID) (*domain.RiskModel, error) {
	var m domain.RiskModel
	err := r.db.GetContext(ctx, &m,
		"SELECT * FROM risk_models WHERE id = $1 AND org_id = $2", modelID, orgID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("modelRepo.GetByID: %w", err)
	}
	return &m, nil
}

func (r *modelRepo) NextVersion(ctx context.Context, orgID uuid.UUID) (int, error) {
	var next int
	err := r.db.GetContext(ctx, &next,
		"SELECT COALESCE(MAX(version), 0) + 1 FROM risk_models WHERE org_id = $1", orgID)
	if err != nil {
		return 0, fmt.Errorf("modelRepo.NextVersion: %w", err)
	}
	return next, nil
}

func (r *modelRepo) GetActive(ctx context.Context, orgID uuid.UUID) (*domain.RiskModel, error) {
	var m domain.RiskModel
	err := r.db.GetContext(ctx, &m,
		`SELECT m.* FROM active_models a
		 JOIN risk_models m ON m.id = a.model_id
		 WHERE a.org_id = $1`,
		orgID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("modelRepo.GetActive: %w", err)
	}
	return &m, nil
}

func (r *modelRepo) SwapActive(ctx context.Context, orgID uuid.UUID, expected *uuid.UUID, next uuid.UUID) error {
	var (
		result sql.Result
		err    error
	)
	if expected == nil {
		result, err = r.db.ExecContext(ctx,
			`INSERT INTO active_models (org_id, model_id, updated_at) VALUES ($1, $2, NOW())
			 ON CONFLICT (org_id) DO NOTHING`,
			orgID, next)
	} else {
		result, err = r.db.ExecContext(ctx,
			`UPDATE active_models SET model_id = $1, updated_at = NOW()
			 WHERE org_id = $2 AND model_id = $3`,
			next, orgID, *expected)
	}
	if err != nil {
		return fmt.Errorf("modelRepo.SwapActive: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrActiveModelChanged
	}
	return nil
}
