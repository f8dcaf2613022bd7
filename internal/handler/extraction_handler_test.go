package handler_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"certflow/internal/domain"
	"certflow/internal/handler"
	"certflow/mocks"
)

func sampleRun(id uuid.UUID) *domain.ExtractionRun {
	return &domain.ExtractionRun{
		ID:              id,
		OrgID:           testOrgID,
		CertificateID:   uuid.New(),
		CertificateType: domain.CertificateTypeGasSafety,
		Status:          domain.RunStatusApproved,
		Confidence:      0.91,
		FinalTier:       1,
		ExtractedFields: domain.FieldSet{"result": {Value: "PASS", Confidence: 0.91, Tier: 1}},
		CreatedAt:       time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
	}
}

func TestExtractionHandler_Start_QueuesByDefault(t *testing.T) {
	orch := new(mocks.MockOrchestrator)
	h := handler.NewExtractionHandler(orch, new(mocks.MockExtractionRunRepo))
	certID := uuid.New()

	orch.On("Start", mock.Anything, testOrgID, certID).
		Return(&domain.ExtractionRun{ID: uuid.New(), Status: domain.RunStatusPending}, nil)

	c, w := authedContext(http.MethodPost, "/api/v1/certificates/x/extractions", nil, idParam(certID))
	h.Start(c)

	assert.Equal(t, http.StatusAccepted, w.Code)
	orch.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
	orch.AssertExpectations(t)
}

func TestExtractionHandler_Start_Sync(t *testing.T) {
	orch := new(mocks.MockOrchestrator)
	h := handler.NewExtractionHandler(orch, new(mocks.MockExtractionRunRepo))
	certID := uuid.New()

	orch.On("Run", mock.Anything, testOrgID, certID).Return(sampleRun(uuid.New()), nil)

	c, w := authedContext(http.MethodPost, "/api/v1/certificates/x/extractions?sync=true", nil, idParam(certID))
	h.Start(c)

	assert.Equal(t, http.StatusOK, w.Code)
	orch.AssertExpectations(t)
}

func TestExtractionHandler_Start_InvalidID(t *testing.T) {
	h := handler.NewExtractionHandler(new(mocks.MockOrchestrator), new(mocks.MockExtractionRunRepo))
	c, w := authedContext(http.MethodPost, "/", nil, gin.Param{Key: "id", Value: "not-a-uuid"})

	h.Start(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExtractionHandler_GetByID_IncludesGoldenThread(t *testing.T) {
	orch := new(mocks.MockOrchestrator)
	runs := new(mocks.MockExtractionRunRepo)
	h := handler.NewExtractionHandler(orch, runs)
	runID := uuid.New()

	runs.On("GetByID", mock.Anything, testOrgID, runID).Return(sampleRun(runID), nil)
	orch.On("GoldenThread", mock.Anything, testOrgID, runID).Return([]domain.TierAttempt{
		{RunID: runID, Tier: 1, Adapter: "layout", Succeeded: true, Confidence: 0.91},
	}, nil)

	c, w := authedContext(http.MethodGet, "/api/v1/extractions/x", nil, idParam(runID))
	h.GetByID(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"adapter":"layout"`)
}

func TestExtractionHandler_GetByID_NotFound(t *testing.T) {
	runs := new(mocks.MockExtractionRunRepo)
	h := handler.NewExtractionHandler(new(mocks.MockOrchestrator), runs)
	runID := uuid.New()
	runs.On("GetByID", mock.Anything, testOrgID, runID).Return(nil, domain.ErrNotFound)

	c, w := authedContext(http.MethodGet, "/", nil, idParam(runID))
	h.GetByID(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExtractionHandler_Export(t *testing.T) {
	for _, tc := range []struct {
		format      string
		contentType string
		ext         string
	}{
		{"csv", "text/csv; charset=utf-8", ".csv"},
		{"xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", ".xlsx"},
	} {
		t.Run(tc.format, func(t *testing.T) {
			orch := new(mocks.MockOrchestrator)
			runs := new(mocks.MockExtractionRunRepo)
			h := handler.NewExtractionHandler(orch, runs)
			runID := uuid.New()
			runs.On("GetByID", mock.Anything, testOrgID, runID).Return(sampleRun(runID), nil)
			orch.On("GoldenThread", mock.Anything, testOrgID, runID).Return([]domain.TierAttempt{}, nil)

			c, w := authedContext(http.MethodGet, "/x?format="+tc.format, nil, idParam(runID))
			h.Export(c)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tc.contentType, w.Header().Get("Content-Type"))
			assert.Contains(t, w.Header().Get("Content-Disposition"), tc.ext)
			assert.NotZero(t, w.Body.Len())
		})
	}
}

func TestExtractionHandler_Export_UnknownFormat(t *testing.T) {
	h := handler.NewExtractionHandler(new(mocks.MockOrchestrator), new(mocks.MockExtractionRunRepo))
	c, w := authedContext(http.MethodGet, "/x?format=pdf", nil, idParam(uuid.New()))

	h.Export(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExtractionHandler_Supersede(t *testing.T) {
	orch := new(mocks.MockOrchestrator)
	h := handler.NewExtractionHandler(orch, new(mocks.MockExtractionRunRepo))
	certID := uuid.New()
	orch.On("Supersede", mock.Anything, testOrgID, certID).Return(2, nil)

	c, w := authedContext(http.MethodPost, "/", nil, idParam(certID))
	h.Supersede(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"superseded":2`)
}
