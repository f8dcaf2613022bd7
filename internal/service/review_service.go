package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"certflow/internal/domain"
	"certflow/internal/extraction"
	"certflow/internal/port"
)

// DecideInput is a reviewer's verdict with optional inline field corrections.
type DecideInput struct {
	OrgID       uuid.UUID
	ReviewID    uuid.UUID
	ReviewerID  uuid.UUID
	Decision    domain.ReviewDecision
	ErrorTags   []string
	Corrections []CorrectionInput
}

// DecideResult is the settled run and any corrections recorded with the decision.
type DecideResult struct {
	Run         *domain.ExtractionRun    `json:"run"`
	Corrections *RecordCorrectionsResult `json:"corrections,omitempty"`
}

// ReviewService is the tier-3 work queue.
type ReviewService interface {
	ListPending(ctx context.Context, orgID uuid.UUID, offset, limit int) ([]domain.HumanReview, int, error)
	Claim(ctx context.Context, orgID, reviewID, reviewerID uuid.UUID) (*domain.HumanReview, error)
	Decide(ctx context.Context, input *DecideInput) (*DecideResult, error)
}

type reviewService struct {
	reviews      port.HumanReviewRepository
	orchestrator extraction.Orchestrator
	corrections  CorrectionService
}

// NewReviewService creates a new ReviewService.
func NewReviewService(reviews port.HumanReviewRepository, orchestrator extraction.Orchestrator, corrections CorrectionService) ReviewService {
	return &reviewService{reviews: reviews, orchestrator: orchestrator, corrections: corrections}
}

func (s *reviewService) ListPending(ctx context.Context, orgID uuid.UUID, offset, limit int) ([]domain.HumanReview, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.reviews.ListPending(ctx, orgID, offset, limit)
}

func (s *reviewService) Claim(ctx context.Context, orgID, reviewID, reviewerID uuid.UUID) (*domain.HumanReview, error) {
	review, err := s.reviews.Claim(ctx, orgID, reviewID, reviewerID)
	if err != nil {
		return nil, err
	}
	zap.L().Info("reviewService.Claim: review claimed",
		zap.String("review_id", reviewID.String()),
		zap.String("reviewer_id", reviewerID.String()))
	return review, nil
}

// Decide settles the review first. Corrections are recorded afterwards against
// the same run; a failure there does not undo the decision.
func (s *reviewService) Decide(ctx context.Context, input *DecideInput) (*DecideResult, error) {
	run, err := s.orchestrator.CompleteReview(ctx, &extraction.ReviewDecisionInput{
		OrgID:      input.OrgID,
		ReviewID:   input.ReviewID,
		ReviewerID: input.ReviewerID,
		Decision:   input.Decision,
		ErrorTags:  input.ErrorTags,
	})
	if err != nil {
		return nil, err
	}

	result := &DecideResult{Run: run}
	if len(input.Corrections) == 0 {
		return result, nil
	}
	recorded, err := s.corrections.RecordCorrections(ctx, input.OrgID, input.ReviewerID, run.ID, input.Corrections)
	result.Corrections = recorded
	if err != nil {
		return result, eris.Wrap(err, "review decided but corrections were not all recorded")
	}
	return result, nil
}
