package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"certflow/internal/domain"
	"certflow/internal/risk"
)

// RiskHandler handles risk prediction, feedback and model endpoints.
type RiskHandler struct {
	risk risk.Service
}

// NewRiskHandler creates a new RiskHandler.
func NewRiskHandler(svc risk.Service) *RiskHandler {
	return &RiskHandler{risk: svc}
}

// Predict handles POST /api/v1/properties/:id/predict
// @Summary Score a property
// @Description Compute the statistical score, blend in the active model when present and store the result as the latest prediction.
// @Tags risk
// @Produce json
// @Param id path string true "Property ID (UUID)"
// @Success 200 {object} Response{data=domain.RiskPrediction}
// @Failure 404 {object} ErrorResponseBody "Property not found"
// @Security BearerAuth
// @Router /properties/{id}/predict [post]
func (h *RiskHandler) Predict(c *gin.Context) {
	orgID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	propertyID, ok := parseIDParam(c, "id", "property")
	if !ok {
		return
	}
	p, err := h.risk.Predict(c.Request.Context(), orgID, propertyID)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, p)
}

// PredictBulk handles POST /api/v1/predictions/bulk
// @Summary Score many properties
// @Description Score up to the configured cap; failures are reported per property.
// @Tags risk
// @Accept json
// @Produce json
// @Param request body PredictBulkRequest true "Property IDs"
// @Success 200 {object} Response{data=risk.BulkResult}
// @Failure 400 {object} ErrorResponseBody "Invalid request"
// @Security BearerAuth
// @Router /predictions/bulk [post]
func (h *RiskHandler) PredictBulk(c *gin.Context) {
	orgID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	var req PredictBulkRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.PropertyIDs) == 0 {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "property_ids must be a non-empty list")
		return
	}
	result, err := h.risk.PredictBulk(c.Request.Context(), orgID, req.PropertyIDs, req.Limit)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, result)
}

// SubmitFeedback handles POST /api/v1/predictions/feedback
// @Summary Submit prediction feedback
// @Description Items are validated individually; valid items are stored even when others are rejected.
// @Tags risk
// @Accept json
// @Produce json
// @Param request body SubmitFeedbackRequest true "Feedback items"
// @Success 201 {object} Response{data=risk.FeedbackResult}
// @Failure 400 {object} ErrorResponseBody "Invalid request"
// @Security BearerAuth
// @Router /predictions/feedback [post]
func (h *RiskHandler) SubmitFeedback(c *gin.Context) {
	orgID, userID, ok := extractAuthContext(c)
	if !ok {
		return
	}
	var req SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Items) == 0 {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "items must be a non-empty list")
		return
	}
	result, err := h.risk.SubmitFeedback(c.Request.Context(), orgID, userID, req.Items)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondCreated(c, result)
}

// Train handles POST /api/v1/models/train
// @Summary Train a risk model
// @Description Fit a model on labeled feedback. A model that misses the benchmark is stored and reported with passed=false.
// @Tags models
// @Accept json
// @Produce json
// @Param request body TrainRequest false "Hyperparameters"
// @Success 200 {object} Response{data=risk.TrainResult}
// @Failure 409 {object} ErrorResponseBody "Training already in progress (retryable)"
// @Failure 429 {object} ErrorResponseBody "Rate limited"
// @Security BearerAuth
// @Router /models/train [post]
func (h *RiskHandler) Train(c *gin.Context) {
	orgID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	var req TrainRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid hyperparameters")
			return
		}
	}
	result, err := h.risk.Train(c.Request.Context(), orgID, domain.Hyperparameters{
		LearningRate:   req.LearningRate,
		Epochs:         req.Epochs,
		BatchSize:      req.BatchSize,
		FeatureWeights: req.FeatureWeights,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, result)
}

// Benchmark handles POST /api/v1/models/:id/benchmark
// @Summary Benchmark a stored model
// @Tags models
// @Produce json
// @Param id path string true "Model ID (UUID)"
// @Success 200 {object} Response{data=risk.BenchmarkResult}
// @Failure 404 {object} ErrorResponseBody "Model not found"
// @Security BearerAuth
// @Router /models/{id}/benchmark [post]
func (h *RiskHandler) Benchmark(c *gin.Context) {
	orgID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	modelID, ok := parseIDParam(c, "id", "model")
	if !ok {
		return
	}
	result, err := h.risk.Benchmark(c.Request.Context(), orgID, modelID)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, result)
}

// Promote handles POST /api/v1/models/:id/promote
// @Summary Promote a model
// @Description Make a passed model the organization's active model.
// @Tags models
// @Produce json
// @Param id path string true "Model ID (UUID)"
// @Success 200 {object} Response{data=domain.RiskModel}
// @Failure 409 {object} ErrorResponseBody "Active model changed concurrently (retryable)"
// @Failure 422 {object} ErrorResponseBody "Model did not pass"
// @Security BearerAuth
// @Router /models/{id}/promote [post]
func (h *RiskHandler) Promote(c *gin.Context) {
	orgID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	modelID, ok := parseIDParam(c, "id", "model")
	if !ok {
		return
	}
	m, err := h.risk.Promote(c.Request.Context(), orgID, modelID)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, m)
}

// ActiveModel handles GET /api/v1/models/active
// @Summary Get the active model
// @Tags models
// @Produce json
// @Success 200 {object} Response{data=domain.RiskModel}
// @Failure 404 {object} ErrorResponseBody "No active model"
// @Security BearerAuth
// @Router /models/active [get]
func (h *RiskHandler) ActiveModel(c *gin.Context) {
	orgID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	m, err := h.risk.ActiveModel(c.Request.Context(), orgID)
	if err != nil {
		HandleError(c, err)
		return
	}
	if m == nil {
		HandleError(c, domain.ErrNotFound)
		return
	}
	RespondOK(c, m)
}

// TrainingRuns handles GET /api/v1/models/training-runs
// @Summary List training runs
// @Tags models
// @Produce json
// @Param limit query int false "Maximum runs" default(20)
// @Success 200 {object} Response{data=[]domain.TrainingRun}
// @Security BearerAuth
// @Router /models/training-runs [get]
func (h *RiskHandler) TrainingRuns(c *gin.Context) {
	orgID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	runs, err := h.risk.TrainingRuns(c.Request.Context(), orgID, limit)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, runs)
}
