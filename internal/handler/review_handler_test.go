package handler_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"certflow/internal/domain"
	"certflow/internal/handler"
	"certflow/internal/service"
	"certflow/mocks"
)

func TestReviewHandler_ListPending_Paginates(t *testing.T) {
	svc := new(mocks.MockReviewService)
	h := handler.NewReviewHandler(svc)
	svc.On("ListPending", mock.Anything, testOrgID, 0, 20).
		Return([]domain.HumanReview{{ID: uuid.New()}}, 1, nil)

	c, w := authedContext(http.MethodGet, "/api/v1/reviews?limit=500", nil)
	h.ListPending(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, 1, resp.Meta.Total)
	assert.Equal(t, 20, resp.Meta.Limit)
}

func TestReviewHandler_Claim_Conflict(t *testing.T) {
	svc := new(mocks.MockReviewService)
	h := handler.NewReviewHandler(svc)
	reviewID := uuid.New()
	svc.On("Claim", mock.Anything, testOrgID, reviewID, testUserID).Return(nil, domain.ErrReviewClosed)

	c, w := authedContext(http.MethodPost, "/", nil, idParam(reviewID))
	h.Claim(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestReviewHandler_Decide(t *testing.T) {
	svc := new(mocks.MockReviewService)
	h := handler.NewReviewHandler(svc)
	reviewID := uuid.New()

	svc.On("Decide", mock.Anything, mock.MatchedBy(func(in *service.DecideInput) bool {
		return in.ReviewID == reviewID && in.ReviewerID == testUserID &&
			in.Decision == domain.ReviewDecisionReject && len(in.ErrorTags) == 1 && len(in.Corrections) == 1
	})).Return(&service.DecideResult{Run: &domain.ExtractionRun{Status: domain.RunStatusRejected}}, nil)

	body := map[string]interface{}{
		"decision":   "REJECT",
		"error_tags": []string{"wrong_expiry_date"},
		"corrections": []map[string]string{
			{"field_name": "expiry_date", "original_value": "2024-01-01", "corrected_value": "2025-01-01", "correction_type": "WRONG"},
		},
	}
	c, w := authedContext(http.MethodPost, "/", body, idParam(reviewID))
	h.Decide(c)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestReviewHandler_Decide_CorrectionsFailedAfterDecision(t *testing.T) {
	svc := new(mocks.MockReviewService)
	h := handler.NewReviewHandler(svc)
	reviewID := uuid.New()
	svc.On("Decide", mock.Anything, mock.Anything).
		Return(&service.DecideResult{Run: &domain.ExtractionRun{Status: domain.RunStatusApproved}}, errors.New("db down"))

	c, w := authedContext(http.MethodPost, "/", map[string]string{"decision": "APPROVE"}, idParam(reviewID))
	h.Decide(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "CORRECTIONS_FAILED", resp.Error.Code)
}

func TestReviewHandler_Decide_MissingDecision(t *testing.T) {
	h := handler.NewReviewHandler(new(mocks.MockReviewService))
	c, w := authedContext(http.MethodPost, "/", map[string]string{}, idParam(uuid.New()))

	h.Decide(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCorrectionHandler_Record(t *testing.T) {
	svc := new(mocks.MockCorrectionService)
	h := handler.NewCorrectionHandler(svc)
	target := uuid.New()

	svc.On("RecordCorrections", mock.Anything, testOrgID, testUserID, target, mock.MatchedBy(func(items []service.CorrectionInput) bool {
		return len(items) == 2 && items[1].CorrectionType == domain.CorrectionTypeHallucinated
	})).Return(&service.RecordCorrectionsResult{
		Recorded: []domain.Correction{{FieldName: "result"}},
		Rejected: []service.CorrectionItemError{{Index: 0, Message: "unknown field"}},
	}, nil)

	body := map[string]interface{}{"corrections": []map[string]string{
		{"field_name": "nope", "corrected_value": "x", "correction_type": "WRONG"},
		{"field_name": "result", "original_value": "PASS", "correction_type": "HALLUCINATED"},
	}}
	c, w := authedContext(http.MethodPost, "/", body, idParam(target))
	h.Record(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"rejected":[{"index":0`)
}

func TestCorrectionHandler_Record_PartialStorageFailure(t *testing.T) {
	svc := new(mocks.MockCorrectionService)
	h := handler.NewCorrectionHandler(svc)
	svc.On("RecordCorrections", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&service.RecordCorrectionsResult{
			Recorded: []domain.Correction{{FieldName: "expiry_date"}},
			Rejected: []service.CorrectionItemError{},
		}, errors.New("db down"))

	body := map[string]interface{}{"corrections": []map[string]string{
		{"field_name": "expiry_date", "corrected_value": "2025-01-01", "correction_type": "WRONG"},
		{"field_name": "issue_date", "corrected_value": "2024-01-01", "correction_type": "WRONG"},
	}}
	c, w := authedContext(http.MethodPost, "/", body, idParam(uuid.New()))
	h.Record(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"field_name":"expiry_date"`)
	assert.Contains(t, w.Body.String(), "CORRECTIONS_INCOMPLETE")
}

func TestCorrectionHandler_Record_StorageFailureBeforeAnyItem(t *testing.T) {
	svc := new(mocks.MockCorrectionService)
	h := handler.NewCorrectionHandler(svc)
	svc.On("RecordCorrections", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&service.RecordCorrectionsResult{Recorded: []domain.Correction{}}, errors.New("db down"))

	body := map[string]interface{}{"corrections": []map[string]string{
		{"field_name": "expiry_date", "corrected_value": "2025-01-01", "correction_type": "WRONG"},
	}}
	c, w := authedContext(http.MethodPost, "/", body, idParam(uuid.New()))
	h.Record(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCorrectionHandler_Record_CrossOrg(t *testing.T) {
	svc := new(mocks.MockCorrectionService)
	h := handler.NewCorrectionHandler(svc)
	svc.On("RecordCorrections", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, domain.ErrForbidden)

	body := map[string]interface{}{"corrections": []map[string]string{
		{"field_name": "result", "corrected_value": "FAIL", "correction_type": "WRONG"},
	}}
	c, w := authedContext(http.MethodPost, "/", body, idParam(uuid.New()))
	h.Record(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCorrectionHandler_Record_EmptyList(t *testing.T) {
	h := handler.NewCorrectionHandler(new(mocks.MockCorrectionService))
	c, w := authedContext(http.MethodPost, "/", map[string]interface{}{"corrections": []string{}}, idParam(uuid.New()))

	h.Record(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
