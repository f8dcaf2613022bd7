package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"certflow/internal/domain"
	"certflow/internal/extraction"
	"certflow/internal/service"
	"certflow/mocks"
)

func newReviewService() (service.ReviewService, *mocks.MockHumanReviewRepo, *mocks.MockOrchestrator, *mocks.MockCorrectionService) {
	reviews := new(mocks.MockHumanReviewRepo)
	orch := new(mocks.MockOrchestrator)
	corrections := new(mocks.MockCorrectionService)
	return service.NewReviewService(reviews, orch, corrections), reviews, orch, corrections
}

func TestReviewService_ListPending_ClampsPaging(t *testing.T) {
	svc, reviews, _, _ := newReviewService()
	orgID := uuid.New()
	reviews.On("ListPending", mock.Anything, orgID, 0, 20).Return([]domain.HumanReview{{ID: uuid.New()}}, 1, nil)

	items, total, err := svc.ListPending(context.Background(), orgID, -5, 1000)

	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, total)
}

func TestReviewService_Claim(t *testing.T) {
	svc, reviews, _, _ := newReviewService()
	orgID, reviewID, reviewer := uuid.New(), uuid.New(), uuid.New()
	claimed := &domain.HumanReview{ID: reviewID, Status: domain.ReviewStatusInReview, ReviewerID: &reviewer}
	reviews.On("Claim", mock.Anything, orgID, reviewID, reviewer).Return(claimed, nil)

	got, err := svc.Claim(context.Background(), orgID, reviewID, reviewer)

	require.NoError(t, err)
	assert.Equal(t, domain.ReviewStatusInReview, got.Status)
}

func TestReviewService_Decide_WithoutCorrections(t *testing.T) {
	svc, _, orch, corrections := newReviewService()
	input := &service.DecideInput{
		OrgID: uuid.New(), ReviewID: uuid.New(), ReviewerID: uuid.New(),
		Decision: domain.ReviewDecisionReject, ErrorTags: []string{"illegible_scan"},
	}
	run := &domain.ExtractionRun{ID: uuid.New(), Status: domain.RunStatusRejected}
	orch.On("CompleteReview", mock.Anything, mock.MatchedBy(func(in *extraction.ReviewDecisionInput) bool {
		return in.ReviewID == input.ReviewID &&
			in.Decision == domain.ReviewDecisionReject &&
			assert.ObjectsAreEqual([]string{"illegible_scan"}, in.ErrorTags)
	})).Return(run, nil)

	res, err := svc.Decide(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, run, res.Run)
	assert.Nil(t, res.Corrections)
	corrections.AssertNotCalled(t, "RecordCorrections", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReviewService_Decide_RecordsInlineCorrectionsAgainstRun(t *testing.T) {
	svc, _, orch, corrections := newReviewService()
	items := []service.CorrectionInput{{FieldName: "expiry_date", CorrectedValue: "2026-01-01", CorrectionType: domain.CorrectionTypeWrong}}
	input := &service.DecideInput{
		OrgID: uuid.New(), ReviewID: uuid.New(), ReviewerID: uuid.New(),
		Decision: domain.ReviewDecisionApprove, Corrections: items,
	}
	run := &domain.ExtractionRun{ID: uuid.New(), Status: domain.RunStatusApproved}
	recorded := &service.RecordCorrectionsResult{RunID: run.ID, Recorded: []domain.Correction{{FieldName: "expiry_date"}}}
	orch.On("CompleteReview", mock.Anything, mock.Anything).Return(run, nil)
	corrections.On("RecordCorrections", mock.Anything, input.OrgID, input.ReviewerID, run.ID, items).Return(recorded, nil)

	res, err := svc.Decide(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, recorded, res.Corrections)
}

func TestReviewService_Decide_CorrectionFailureKeepsDecision(t *testing.T) {
	svc, _, orch, corrections := newReviewService()
	input := &service.DecideInput{
		OrgID: uuid.New(), ReviewID: uuid.New(), ReviewerID: uuid.New(),
		Decision:    domain.ReviewDecisionApprove,
		Corrections: []service.CorrectionInput{{FieldName: "expiry_date", CorrectedValue: "x", CorrectionType: domain.CorrectionTypeWrong}},
	}
	run := &domain.ExtractionRun{ID: uuid.New(), Status: domain.RunStatusApproved}
	orch.On("CompleteReview", mock.Anything, mock.Anything).Return(run, nil)
	corrections.On("RecordCorrections", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("db down"))

	res, err := svc.Decide(context.Background(), input)

	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, domain.RunStatusApproved, res.Run.Status)
}

func TestReviewService_Decide_PropagatesOrchestratorErrors(t *testing.T) {
	svc, _, orch, _ := newReviewService()
	orch.On("CompleteReview", mock.Anything, mock.Anything).Return(nil, domain.ErrReviewClosed)

	_, err := svc.Decide(context.Background(), &service.DecideInput{Decision: domain.ReviewDecisionApprove})

	assert.True(t, errors.Is(err, domain.ErrReviewClosed))
}
