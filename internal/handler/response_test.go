package handler_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"certflow/internal/domain"
	"certflow/internal/handler"
)

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"wrapped validation", eris.Wrap(domain.ErrValidation, "bad field"), http.StatusBadRequest, "VALIDATION_FAILED"},
		{"training in progress", domain.ErrTrainingInProgress, http.StatusConflict, "TRAINING_IN_PROGRESS"},
		{"active model changed", domain.ErrActiveModelChanged, http.StatusConflict, "ACTIVE_MODEL_CHANGED"},
		{"invalid transition", domain.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION"},
		{"model not passed", domain.ErrModelNotPassed, http.StatusUnprocessableEntity, "MODEL_NOT_PASSED"},
		{"stale run", domain.ErrStaleRun, http.StatusConflict, "STALE_RUN"},
		{"review closed", domain.ErrReviewClosed, http.StatusConflict, "REVIEW_CLOSED"},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, _ := handler.MapDomainError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestHandleError_RetryableFlag(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	handler.HandleError(c, eris.Wrap(domain.ErrTrainingInProgress, "org busy"))

	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decode(t, w)
	assert.False(t, resp.Success)
	assert.True(t, resp.Error.Retryable)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	handler.HandleError(c, domain.ErrNotFound)
	assert.False(t, decode(t, w).Error.Retryable)
}

func TestMissingAuthContext(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/reviews", nil)

	handler.NewReviewHandler(nil).ListPending(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
