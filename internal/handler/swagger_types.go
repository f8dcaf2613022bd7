package handler

import (
	"github.com/google/uuid"

	"certflow/internal/domain"
	"certflow/internal/risk"
	"certflow/internal/service"
)

// Swagger type definitions for API documentation.
// These types are used by swag to generate OpenAPI documentation.

// --- Request Types ---

// RecordCorrectionsRequest is the body of a correction submission.
type RecordCorrectionsRequest struct {
	Corrections []service.CorrectionInput `json:"corrections" binding:"required"`
}

// DecideReviewRequest is a reviewer's verdict.
type DecideReviewRequest struct {
	Decision    domain.ReviewDecision     `json:"decision" binding:"required" example:"APPROVE"`
	ErrorTags   []string                  `json:"error_tags" example:"wrong_expiry_date"`
	Corrections []service.CorrectionInput `json:"corrections"`
}

// DismissSuggestionRequest carries the reason a suggestion is dismissed.
type DismissSuggestionRequest struct {
	Reason string `json:"reason" binding:"required" example:"addressed by template change"`
}

// PredictBulkRequest lists properties to score.
type PredictBulkRequest struct {
	PropertyIDs []uuid.UUID `json:"property_ids" binding:"required"`
	Limit       int         `json:"limit" example:"100"`
}

// SubmitFeedbackRequest carries feedback on predictions.
type SubmitFeedbackRequest struct {
	Items []risk.FeedbackInput `json:"items" binding:"required"`
}

// TrainRequest overrides training hyperparameters; zero values take defaults.
type TrainRequest struct {
	LearningRate   float64   `json:"learning_rate" example:"0.05"`
	Epochs         int       `json:"epochs" example:"200"`
	BatchSize      int       `json:"batch_size" example:"16"`
	FeatureWeights []float64 `json:"feature_weights"`
}

// --- Response Types ---

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
	Error  string `json:"error,omitempty" example:"database not reachable"`
}

// SupersedeResponse reports how many runs were superseded.
type SupersedeResponse struct {
	Superseded int `json:"superseded" example:"1"`
}

// --- Generic Response Wrappers ---

// Response wraps a successful response with data.
type Response struct {
	Success bool        `json:"success" example:"true"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *PagMeta    `json:"meta,omitempty"`
}

// ErrorResponseBody wraps an error response.
type ErrorResponseBody struct {
	Success bool      `json:"success" example:"false"`
	Error   *APIError `json:"error"`
}
