package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"certflow/internal/domain"
	"certflow/internal/port"
)

type propertyRepo struct {
	db *sqlx.DB
}

// NewPropertyRepo creates a new PostgreSQL-backed PropertyRepository.
func NewPropertyRepo(db *sqlx.DB) port.PropertyRepository {
	return &propertyRepo{db: db}
}

func (r *propertyRepo) GetByID(ctx context.Context, orgID, propertyID uuid.UUID) (*domain.Property, error) {
	var p domain.Property
	err := r.db.GetContext(ctx, &p,
		"SELECT * FROM properties WHERE id = $1 AND org_id = $2", propertyID, orgID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("propertyRepo.GetByID: %w", err)
	}
	return &p, nil
}

func (r *propertyRepo) ListIDs(ctx context.Context, orgID uuid.UUID, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids,
		"SELECT id FROM properties WHERE org_id = $1 ORDER BY reference LIMIT $2", orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("propertyRepo.ListIDs: %w", err)
	}
	return ids, nil
}
