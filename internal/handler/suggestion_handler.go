package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"certflow/internal/domain"
	"certflow/internal/pattern"
)

// SuggestionHandler handles pattern analysis and the suggestion lifecycle.
type SuggestionHandler struct {
	analyzer pattern.Analyzer
}

// NewSuggestionHandler creates a new SuggestionHandler.
func NewSuggestionHandler(analyzer pattern.Analyzer) *SuggestionHandler {
	return &SuggestionHandler{analyzer: analyzer}
}

// Analyze handles POST /api/v1/patterns/analyze
// @Summary Run pattern analysis
// @Description Cluster recent corrections and review rejections into improvement suggestions.
// @Tags suggestions
// @Produce json
// @Success 200 {object} Response{data=pattern.Report}
// @Failure 429 {object} ErrorResponseBody "Rate limited"
// @Security BearerAuth
// @Router /patterns/analyze [post]
func (h *SuggestionHandler) Analyze(c *gin.Context) {
	orgID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	report, err := h.analyzer.Run(c.Request.Context(), orgID)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, report)
}

// List handles GET /api/v1/suggestions
// @Summary List suggestions
// @Tags suggestions
// @Produce json
// @Param status query string false "Filter by status"
// @Success 200 {object} Response{data=[]domain.Suggestion}
// @Failure 400 {object} ErrorResponseBody "Unknown status"
// @Security BearerAuth
// @Router /suggestions [get]
func (h *SuggestionHandler) List(c *gin.Context) {
	orgID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	var status *domain.SuggestionStatus
	if raw := c.Query("status"); raw != "" {
		s := domain.SuggestionStatus(raw)
		if !validSuggestionStatus(s) {
			RespondError(c, http.StatusBadRequest, "INVALID_STATUS", "unknown suggestion status")
			return
		}
		status = &s
	}
	items, err := h.analyzer.List(c.Request.Context(), orgID, status)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, items)
}

// StartWork handles POST /api/v1/suggestions/:id/start
// @Summary Start work on a suggestion
// @Tags suggestions
// @Produce json
// @Param id path string true "Suggestion ID (UUID)"
// @Success 200 {object} Response{data=domain.Suggestion}
// @Failure 409 {object} ErrorResponseBody "Illegal transition"
// @Security BearerAuth
// @Router /suggestions/{id}/start [post]
func (h *SuggestionHandler) StartWork(c *gin.Context) {
	orgID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", "suggestion")
	if !ok {
		return
	}
	s, err := h.analyzer.StartWork(c.Request.Context(), orgID, id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, s)
}

// Resolve handles POST /api/v1/suggestions/:id/resolve
// @Summary Resolve a suggestion
// @Tags suggestions
// @Produce json
// @Param id path string true "Suggestion ID (UUID)"
// @Success 200 {object} Response{data=domain.Suggestion}
// @Failure 409 {object} ErrorResponseBody "Illegal transition"
// @Security BearerAuth
// @Router /suggestions/{id}/resolve [post]
func (h *SuggestionHandler) Resolve(c *gin.Context) {
	orgID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", "suggestion")
	if !ok {
		return
	}
	s, err := h.analyzer.Resolve(c.Request.Context(), orgID, id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, s)
}

// Dismiss handles POST /api/v1/suggestions/:id/dismiss
// @Summary Dismiss a suggestion
// @Tags suggestions
// @Accept json
// @Produce json
// @Param id path string true "Suggestion ID (UUID)"
// @Param request body DismissSuggestionRequest true "Reason"
// @Success 200 {object} Response{data=domain.Suggestion}
// @Failure 400 {object} ErrorResponseBody "Reason missing"
// @Failure 409 {object} ErrorResponseBody "Illegal transition"
// @Security BearerAuth
// @Router /suggestions/{id}/dismiss [post]
func (h *SuggestionHandler) Dismiss(c *gin.Context) {
	orgID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", "suggestion")
	if !ok {
		return
	}
	var req DismissSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "reason is required")
		return
	}
	s, err := h.analyzer.Dismiss(c.Request.Context(), orgID, id, req.Reason)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, s)
}

func validSuggestionStatus(s domain.SuggestionStatus) bool {
	switch s {
	case domain.SuggestionStatusActive, domain.SuggestionStatusInProgress, domain.SuggestionStatusResolved,
		domain.SuggestionStatusDismissed, domain.SuggestionStatusAutoResolved:
		return true
	}
	return false
}
