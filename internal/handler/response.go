package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"certflow/internal/domain"
	"certflow/internal/middleware"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *PagMeta    `json:"meta,omitempty"`
}

// APIError holds error details in the response. Retryable marks conflicts
// that may succeed if the caller tries again later.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// PagMeta holds pagination metadata.
type PagMeta struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondCreated sends a 201 success response.
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// RespondAccepted sends a 202 response for work that continues in the background.
func RespondAccepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, APIResponse{Success: true, Data: data})
}

// RespondPaginated sends a 200 success response with pagination metadata.
func RespondPaginated(c *gin.Context, data interface{}, meta PagMeta) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data, Meta: &meta})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", "forbidden"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "VALIDATION_FAILED", err.Error()
	case errors.Is(err, domain.ErrInvalidRule):
		return http.StatusBadRequest, "INVALID_RULE", err.Error()
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "INVALID_TRANSITION", err.Error()
	case errors.Is(err, domain.ErrTrainingInProgress):
		return http.StatusConflict, "TRAINING_IN_PROGRESS", "a training run is already in progress; retry later"
	case errors.Is(err, domain.ErrActiveModelChanged):
		return http.StatusConflict, "ACTIVE_MODEL_CHANGED", "the active model changed concurrently; retry"
	case errors.Is(err, domain.ErrModelNotPassed):
		return http.StatusUnprocessableEntity, "MODEL_NOT_PASSED", "model did not pass its benchmark"
	case errors.Is(err, domain.ErrStaleRun):
		return http.StatusConflict, "STALE_RUN", "extraction run changed state concurrently"
	case errors.Is(err, domain.ErrRunTerminal):
		return http.StatusConflict, "RUN_TERMINAL", "extraction run is already terminal"
	case errors.Is(err, domain.ErrReviewClosed):
		return http.StatusConflict, "REVIEW_CLOSED", "review is already completed"
	case errors.Is(err, domain.ErrDocumentMissing):
		return http.StatusUnprocessableEntity, "DOCUMENT_MISSING", "certificate document unavailable"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "CONFLICT", "conflict"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// extractAuthContext extracts the caller's organization and user from the request context.
// Returns false if auth context is missing (error response already written).
func extractAuthContext(c *gin.Context) (orgID, userID uuid.UUID, ok bool) {
	var err error
	orgID, err = middleware.GetOrgID(c)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing organization context")
		return uuid.Nil, uuid.Nil, false
	}
	userID, err = middleware.GetUserID(c)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing user context")
		return uuid.Nil, uuid.Nil, false
	}
	return orgID, userID, true
}

// parseIDParam parses a UUID path parameter, writing a 400 when it is malformed.
func parseIDParam(c *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid "+label+" ID")
		return uuid.Nil, false
	}
	return id, true
}

func parsePagination(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, err error) {
	status, code, msg := MapDomainError(err)
	if status >= 500 {
		requestID, _ := c.Get("request_id")
		zap.L().Error("handler.HandleError: internal error",
			zap.Any("request_id", requestID),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg, Retryable: domain.IsRetryable(err)},
	})
}
