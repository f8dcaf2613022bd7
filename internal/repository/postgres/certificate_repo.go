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

type certificateRepo struct {
	db *sqlx.DB
}

// NewCertificateRepo creates a new PostgreSQL-backed CertificateRepository.
func NewCertificateRepo(db *sqlx.DB) port.CertificateRepository {
	return &certificateRepo{db: db}
}

func (r *certificateRepo) GetByID(ctx context.Context, orgID, certificateID uuid.UUID) (*domain.Certificate, error) {
	var c domain.Certificate
	err := r.db.GetContext(ctx, &c,
		"SELECT * FROM certificates WHERE id = $1 AND org_id = $2", certificateID, orgID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("certificateRepo.GetByID: %w", err)
	}
	return &c, nil
}

func (r *certificateRepo) GetOwner(ctx context.Context, certificateID uuid.UUID) (uuid.UUID, error) {
	var orgID uuid.UUID
	err := r.db.GetContext(ctx, &orgID, "SELECT org_id FROM certificates WHERE id = $1", certificateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, domain.ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("certificateRepo.GetOwner: %w", err)
	}
	return orgID, nil
}

func (r *certificateRepo) ListByProperty(ctx context.Context, orgID, propertyID uuid.UUID) ([]domain.Certificate, error) {
	var certs []domain.Certificate
	err := r.db.SelectContext(ctx, &certs,
		`SELECT * FROM certificates WHERE org_id = $1 AND property_id = $2
		 ORDER BY certificate_type, created_at DESC`,
		orgID, propertyID)
	if err != nil {
		return nil, fmt.Errorf("certificateRepo.ListByProperty: %w", err)
	}
	return certs, nil
}

func (r *certificateRepo) ApplyExtraction(ctx context.Context, orgID, certificateID uuid.UUID, ext port.CertificateExtraction) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE certificates SET
			issue_date = $1, expiry_date = $2, outcome = $3, defect_count = $4, updated_at = NOW()
		 WHERE id = $5 AND org_id = $6 AND version = $7 AND deleted_at IS NULL`,
		ext.IssueDate, ext.ExpiryDate, ext.Outcome, ext.DefectCount,
		certificateID, orgID, ext.Version)
	if err != nil {
		return fmt.Errorf("certificateRepo.ApplyExtraction: %w", err)
	}
	return nil
}
