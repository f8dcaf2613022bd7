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

type predictionRepo struct {
	db *sqlx.DB
}

// NewPredictionRepo creates a new PostgreSQL-backed PredictionRepository.
func NewPredictionRepo(db *sqlx.DB) port.PredictionRepository {
	return &predictionRepo{db: db}
}

// Create clears the previous latest flag and inserts p in one transaction so
// a property never has two latest predictions.
func (r *predictionRepo) Create(ctx context.Context, p *domain.RiskPrediction) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.IsLatest = true
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"UPDATE risk_predictions SET is_latest = FALSE WHERE org_id = $1 AND property_id = $2 AND is_latest",
			p.OrgID, p.PropertyID); err != nil {
			return fmt.Errorf("predictionRepo.Create clear latest: %w", err)
		}
		query := `INSERT INTO risk_predictions (
			id, org_id, property_id, stat_score, stat_confidence, ml_score, ml_confidence,
			blended_score, blended_confidence, category, predicted_breach_date,
			factors, model_id, is_latest, created_at
		) VALUES (
			:id, :org_id, :property_id, :stat_score, :stat_confidence, :ml_score, :ml_confidence,
			:blended_score, :blended_confidence, :category, :predicted_breach_date,
			:factors, :model_id, :is_latest, :created_at
		)`
		if _, err := tx.NamedExecContext(ctx, query, p); err != nil {
			return fmt.Errorf("predictionRepo.Create: %w", err)
		}
		return nil
	})
}

func (r *predictionRepo) GetByID(ctx context.Context, orgID, predictionID uuid.UUID) (*domain.RiskPrediction, error) {
	var p domain.RiskPrediction
	err := r.db.GetContext(ctx, &p,
		"SELECT * FROM risk_predictions WHERE id = $1 AND org_id = $2", predictionID, orgID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("predictionRepo.GetByID: %w", err)
	}
	return &p, nil
}

func (r *predictionRepo) GetLatest(ctx context.Context, orgID, propertyID uuid.UUID) (*domain.RiskPrediction, error) {
	var p domain.RiskPrediction
	err := r.db.GetContext(ctx, &p,
		"SELECT * FROM risk_predictions WHERE org_id = $1 AND property_id = $2 AND is_latest",
		orgID, propertyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("predictionRepo.GetLatest: %w", err)
	}
	return &p, nil
}
