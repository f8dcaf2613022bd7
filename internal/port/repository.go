package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"certflow/internal/domain"
)

// PropertyRepository reads the property boundary entity.
type PropertyRepository interface {
	GetByID(ctx context.Context, orgID, propertyID uuid.UUID) (*domain.Property, error)
	ListIDs(ctx context.Context, orgID uuid.UUID, limit int) ([]uuid.UUID, error)
}

// CertificateExtraction is what an approved run writes back to its certificate.
type CertificateExtraction struct {
	Version     int
	IssueDate   *time.Time
	ExpiryDate  *time.Time
	Outcome     *domain.Outcome
	DefectCount int
}

// CertificateRepository reads certificates and records approved extractions.
type CertificateRepository interface {
	GetByID(ctx context.Context, orgID, certificateID uuid.UUID) (*domain.Certificate, error)
	// GetOwner returns the organization owning a certificate without organization scoping.
	GetOwner(ctx context.Context, certificateID uuid.UUID) (uuid.UUID, error)
	ListByProperty(ctx context.Context, orgID, propertyID uuid.UUID) ([]domain.Certificate, error)
	// ApplyExtraction is a no-op when the certificate has moved past ext.Version.
	ApplyExtraction(ctx context.Context, orgID, certificateID uuid.UUID, ext CertificateExtraction) error
}

// ExtractionRunRepository persists extraction runs.
type ExtractionRunRepository interface {
	Create(ctx context.Context, run *domain.ExtractionRun) error
	GetByID(ctx context.Context, orgID, runID uuid.UUID) (*domain.ExtractionRun, error)
	// GetOwner returns the organization owning a run without organization scoping.
	GetOwner(ctx context.Context, runID uuid.UUID) (uuid.UUID, error)
	GetLatestByCertificate(ctx context.Context, orgID, certificateID uuid.UUID) (*domain.ExtractionRun, error)
	// Transition writes run only if the stored status still equals from.
	// It returns domain.ErrStaleRun otherwise.
	Transition(ctx context.Context, run *domain.ExtractionRun, from domain.RunStatus) error
	// CommitAttempt appends att and transitions run in one transaction, with
	// the run row locked. When the stored status is no longer from, att is
	// stored with Stale set, run is left alone and domain.ErrStaleRun is
	// returned.
	CommitAttempt(ctx context.Context, run *domain.ExtractionRun, from domain.RunStatus, att *domain.TierAttempt) error
	// ClaimPending atomically claims up to limit unclaimed PENDING runs across organizations.
	ClaimPending(ctx context.Context, limit int) ([]domain.ExtractionRun, error)
	// SupersedeByCertificate marks every non-terminal run of a certificate SUPERSEDED.
	SupersedeByCertificate(ctx context.Context, orgID, certificateID uuid.UUID) (int64, error)
	// SweepStale marks runs in the given statuses untouched since before as FAILED.
	SweepStale(ctx context.Context, statuses []domain.RunStatus, before time.Time, reason string) ([]domain.ExtractionRun, error)
	CountByTypeSince(ctx context.Context, orgID uuid.UUID, since time.Time) (map[domain.CertificateType]int, error)
}

// TierAttemptRepository is append-only.
type TierAttemptRepository interface {
	Append(ctx context.Context, attempt *domain.TierAttempt) error
	ListByRun(ctx context.Context, orgID, runID uuid.UUID) ([]domain.TierAttempt, error)
}

// ReviewRejection is a rejected review joined to its run's certificate type.
type ReviewRejection struct {
	ReviewID        uuid.UUID              `db:"review_id"`
	CertificateType domain.CertificateType `db:"certificate_type"`
	ErrorTags       domain.StringList      `db:"error_tags"`
}

// HumanReviewRepository persists the tier-3 work queue.
type HumanReviewRepository interface {
	Create(ctx context.Context, review *domain.HumanReview) error
	GetByID(ctx context.Context, orgID, reviewID uuid.UUID) (*domain.HumanReview, error)
	ListPending(ctx context.Context, orgID uuid.UUID, offset, limit int) ([]domain.HumanReview, int, error)
	ListByRun(ctx context.Context, orgID, runID uuid.UUID) ([]domain.HumanReview, error)
	// Claim moves a PENDING review to IN_REVIEW for reviewerID.
	Claim(ctx context.Context, orgID, reviewID, reviewerID uuid.UUID) (*domain.HumanReview, error)
	// Complete records the decision unless the review is already COMPLETED.
	Complete(ctx context.Context, review *domain.HumanReview) error
	ListRejectedSince(ctx context.Context, orgID uuid.UUID, since time.Time) ([]ReviewRejection, error)
}

// CorrectionRepository persists field corrections.
type CorrectionRepository interface {
	Create(ctx context.Context, correction *domain.Correction) error
	ListByCertificate(ctx context.Context, orgID, certificateID uuid.UUID) ([]domain.Correction, error)
	ListSince(ctx context.Context, orgID uuid.UUID, since time.Time) ([]domain.Correction, error)
	MarkUsedForImprovement(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) error
}

// SuggestionRepository persists improvement suggestions.
type SuggestionRepository interface {
	GetByID(ctx context.Context, orgID, suggestionID uuid.UUID) (*domain.Suggestion, error)
	GetByKey(ctx context.Context, orgID uuid.UUID, key string) (*domain.Suggestion, error)
	Create(ctx context.Context, s *domain.Suggestion) error
	// Update writes s only if the stored status still equals from and
	// returns domain.ErrConflict otherwise.
	Update(ctx context.Context, s *domain.Suggestion, from domain.SuggestionStatus) error
	List(ctx context.Context, orgID uuid.UUID, status *domain.SuggestionStatus) ([]domain.Suggestion, error)
}

// PredictionRepository persists risk predictions.
type PredictionRepository interface {
	// Create inserts p as the latest prediction for its property.
	Create(ctx context.Context, p *domain.RiskPrediction) error
	GetByID(ctx context.Context, orgID, predictionID uuid.UUID) (*domain.RiskPrediction, error)
	GetLatest(ctx context.Context, orgID, propertyID uuid.UUID) (*domain.RiskPrediction, error)
}

// FeedbackRepository persists prediction feedback.
type FeedbackRepository interface {
	Create(ctx context.Context, f *domain.PredictionFeedback) error
	ListLabeled(ctx context.Context, orgID uuid.UUID) ([]domain.LabeledFeedback, error)
	MarkUsedInTraining(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) error
}

// ModelRepository persists trained models and the per-organization active pointer.
type ModelRepository interface {
	Create(ctx context.Context, m *domain.RiskModel) error
	GetByID(ctx context.Context, orgID, modelID uuid.UUID) (*domain.RiskModel, error)
	NextVersion(ctx context.Context, orgID uuid.UUID) (int, error)
	GetActive(ctx context.Context, orgID uuid.UUID) (*domain.RiskModel, error)
	// SwapActive points the organization at next if the current pointer equals
	// expected (nil meaning no active model). It returns
	// domain.ErrActiveModelChanged otherwise.
	SwapActive(ctx context.Context, orgID uuid.UUID, expected *uuid.UUID, next uuid.UUID) error
}

// TrainingRunRepository persists training runs.
type TrainingRunRepository interface {
	// Start inserts a RUNNING run and returns domain.ErrTrainingInProgress if
	// the organization already has one.
	Start(ctx context.Context, run *domain.TrainingRun) error
	Finish(ctx context.Context, run *domain.TrainingRun) error
	ListByOrg(ctx context.Context, orgID uuid.UUID, limit int) ([]domain.TrainingRun, error)
	// FailStale marks RUNNING runs started before the cutoff FAILED and
	// returns them.
	FailStale(ctx context.Context, before time.Time, reason string) ([]domain.TrainingRun, error)
}

// ValidationRuleRepository persists rules as data.
type ValidationRuleRepository interface {
	Create(ctx context.Context, rule *domain.ValidationRule) error
	GetByID(ctx context.Context, orgID, ruleID uuid.UUID) (*domain.ValidationRule, error)
	// ListActive returns active rules for a certificate type ordered by priority descending.
	ListActive(ctx context.Context, orgID uuid.UUID, certType domain.CertificateType) ([]domain.ValidationRule, error)
	ListBuiltinKeys(ctx context.Context, orgID uuid.UUID) ([]string, error)
	Update(ctx context.Context, rule *domain.ValidationRule) error
}
