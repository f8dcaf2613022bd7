package risk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"certflow/internal/domain"
)

// FeedbackInput is one human judgement on a prediction.
type FeedbackInput struct {
	PredictionID      uuid.UUID              `json:"prediction_id" binding:"required"`
	Outcome           domain.FeedbackOutcome `json:"outcome" binding:"required"`
	CorrectedScore    *float64               `json:"corrected_score,omitempty"`
	CorrectedCategory *domain.RiskCategory   `json:"corrected_category,omitempty"`
	Notes             string                 `json:"notes"`
}

// ItemError rejects a single submitted item.
type ItemError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// FeedbackResult reports a partially successful submission.
type FeedbackResult struct {
	Accepted []domain.PredictionFeedback `json:"accepted"`
	Rejected []ItemError                 `json:"rejected"`
}

func validateFeedback(in FeedbackInput) string {
	var problems []string
	if in.PredictionID == uuid.Nil {
		problems = append(problems, "prediction_id is required")
	}
	if !in.Outcome.Valid() {
		problems = append(problems, fmt.Sprintf("unknown outcome %q", in.Outcome))
	}
	if in.CorrectedScore != nil && (*in.CorrectedScore < 0 || *in.CorrectedScore > 100) {
		problems = append(problems, "corrected_score must be within [0,100]")
	}
	if in.CorrectedCategory != nil && !in.CorrectedCategory.Valid() {
		problems = append(problems, fmt.Sprintf("unknown corrected_category %q", *in.CorrectedCategory))
	}
	return strings.Join(problems, "; ")
}

// SubmitFeedback stores each valid item and rejects the rest individually.
// Only infrastructure failures abort the batch.
func (s *service) SubmitFeedback(ctx context.Context, orgID, userID uuid.UUID, items []FeedbackInput) (*FeedbackResult, error) {
	result := &FeedbackResult{Accepted: []domain.PredictionFeedback{}, Rejected: []ItemError{}}
	for i, in := range items {
		if msg := validateFeedback(in); msg != "" {
			result.Rejected = append(result.Rejected, ItemError{Index: i, Message: msg})
			continue
		}
		if _, err := s.predictions.GetByID(ctx, orgID, in.PredictionID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				result.Rejected = append(result.Rejected, ItemError{Index: i, Message: "prediction not found"})
				continue
			}
			return nil, err
		}
		f := domain.PredictionFeedback{
			ID:                uuid.New(),
			OrgID:             orgID,
			PredictionID:      in.PredictionID,
			Outcome:           in.Outcome,
			CorrectedScore:    in.CorrectedScore,
			CorrectedCategory: in.CorrectedCategory,
			Notes:             strings.TrimSpace(in.Notes),
			SubmittedBy:       userID,
			CreatedAt:         s.now(),
		}
		if err := s.feedback.Create(ctx, &f); err != nil {
			return nil, err
		}
		result.Accepted = append(result.Accepted, f)
	}
	zap.L().Info("risk.SubmitFeedback: stored",
		zap.String("org_id", orgID.String()),
		zap.Int("accepted", len(result.Accepted)),
		zap.Int("rejected", len(result.Rejected)))
	return result, nil
}
