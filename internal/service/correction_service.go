package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"certflow/internal/certificate"
	"certflow/internal/domain"
	"certflow/internal/port"
)

// CorrectionInput is one field-level fix submitted by a reviewer.
type CorrectionInput struct {
	FieldName      string                `json:"field_name"`
	OriginalValue  string                `json:"original_value"`
	CorrectedValue string                `json:"corrected_value"`
	CorrectionType domain.CorrectionType `json:"correction_type"`
}

// CorrectionItemError rejects one submitted correction.
type CorrectionItemError struct {
	Index   int    `json:"index"`
	Field   string `json:"field_name,omitempty"`
	Message string `json:"message"`
}

// RecordCorrectionsResult reports a partially successful submission.
type RecordCorrectionsResult struct {
	RunID    uuid.UUID             `json:"run_id"`
	Recorded []domain.Correction   `json:"recorded"`
	Rejected []CorrectionItemError `json:"rejected"`
}

// CorrectionService captures human corrections against extraction runs.
type CorrectionService interface {
	// RecordCorrections stores corrections against targetID, which is either a
	// run id or a certificate id (meaning its latest run). On a storage error
	// the result is returned with the error and lists what was already stored.
	RecordCorrections(ctx context.Context, orgID, userID, targetID uuid.UUID, items []CorrectionInput) (*RecordCorrectionsResult, error)
	ListByCertificate(ctx context.Context, orgID, certificateID uuid.UUID) ([]domain.Correction, error)
}

type correctionService struct {
	corrections port.CorrectionRepository
	runs        port.ExtractionRunRepository
	certs       port.CertificateRepository
	now         func() time.Time
}

// NewCorrectionService creates a new CorrectionService.
func NewCorrectionService(
	corrections port.CorrectionRepository,
	runs port.ExtractionRunRepository,
	certs port.CertificateRepository,
) CorrectionService {
	return &correctionService{
		corrections: corrections,
		runs:        runs,
		certs:       certs,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *correctionService) RecordCorrections(ctx context.Context, orgID, userID, targetID uuid.UUID, items []CorrectionInput) (*RecordCorrectionsResult, error) {
	run, err := s.resolveRun(ctx, orgID, targetID)
	if err != nil {
		return nil, err
	}

	result := &RecordCorrectionsResult{
		RunID:    run.ID,
		Recorded: []domain.Correction{},
		Rejected: []CorrectionItemError{},
	}
	now := s.now()
	for i, in := range items {
		field := strings.TrimSpace(in.FieldName)
		if msg := validateCorrection(run.CertificateType, field, in); msg != "" {
			result.Rejected = append(result.Rejected, CorrectionItemError{Index: i, Field: field, Message: msg})
			continue
		}
		c := domain.Correction{
			ID:              uuid.New(),
			OrgID:           orgID,
			RunID:           run.ID,
			CertificateID:   run.CertificateID,
			FieldName:       field,
			OriginalValue:   in.OriginalValue,
			CorrectedValue:  in.CorrectedValue,
			CorrectionType:  in.CorrectionType,
			CertificateType: run.CertificateType,
			Tier:            run.FinalTier,
			CreatedBy:       userID,
			CreatedAt:       now,
		}
		if err := s.corrections.Create(ctx, &c); err != nil {
			zap.L().Error("correctionService.RecordCorrections: storing correction",
				zap.String("run_id", run.ID.String()),
				zap.Int("index", i),
				zap.Int("recorded", len(result.Recorded)),
				zap.Error(err))
			return result, eris.Wrapf(err, "saving correction %d for %s", i, field)
		}
		result.Recorded = append(result.Recorded, c)
	}

	zap.L().Info("correctionService.RecordCorrections: stored",
		zap.String("org_id", orgID.String()),
		zap.String("run_id", run.ID.String()),
		zap.Int("recorded", len(result.Recorded)),
		zap.Int("rejected", len(result.Rejected)))
	return result, nil
}

func (s *correctionService) ListByCertificate(ctx context.Context, orgID, certificateID uuid.UUID) ([]domain.Correction, error) {
	if err := s.checkCertificateOwner(ctx, orgID, certificateID); err != nil {
		return nil, err
	}
	return s.corrections.ListByCertificate(ctx, orgID, certificateID)
}

// resolveRun looks targetID up as a run first and as a certificate second.
// Owner lookups are unscoped so that another organization's id reads as
// forbidden rather than missing.
func (s *correctionService) resolveRun(ctx context.Context, orgID, targetID uuid.UUID) (*domain.ExtractionRun, error) {
	owner, err := s.runs.GetOwner(ctx, targetID)
	switch {
	case err == nil:
		if owner != orgID {
			return nil, eris.Wrapf(domain.ErrForbidden, "run %s belongs to another organization", targetID)
		}
		return s.runs.GetByID(ctx, orgID, targetID)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, eris.Wrap(err, "resolving run owner")
	}

	if err := s.checkCertificateOwner(ctx, orgID, targetID); err != nil {
		return nil, err
	}
	run, err := s.runs.GetLatestByCertificate(ctx, orgID, targetID)
	if err != nil {
		return nil, eris.Wrapf(err, "no extraction run for certificate %s", targetID)
	}
	return run, nil
}

func (s *correctionService) checkCertificateOwner(ctx context.Context, orgID, certificateID uuid.UUID) error {
	owner, err := s.certs.GetOwner(ctx, certificateID)
	if err != nil {
		return err
	}
	if owner != orgID {
		return eris.Wrapf(domain.ErrForbidden, "certificate %s belongs to another organization", certificateID)
	}
	return nil
}

func validateCorrection(certType domain.CertificateType, field string, in CorrectionInput) string {
	switch {
	case field == "":
		return "field_name is required"
	case !certificate.HasField(certType, field):
		return fmt.Sprintf("%s has no field %q", certType, field)
	case !in.CorrectionType.Valid():
		return fmt.Sprintf("unknown correction_type %q", in.CorrectionType)
	case strings.TrimSpace(in.CorrectedValue) == "":
		return "corrected_value is required"
	case in.CorrectionType == domain.CorrectionTypeMissing && strings.TrimSpace(in.OriginalValue) != "":
		return "original_value must be empty for a MISSING correction"
	}
	return ""
}
