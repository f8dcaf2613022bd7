package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"certflow/internal/service"
)

// ReviewHandler handles the human review queue.
type ReviewHandler struct {
	reviews service.ReviewService
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(reviews service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

// ListPending handles GET /api/v1/reviews
// @Summary List open reviews
// @Description List reviews that are pending or in review, oldest first.
// @Tags reviews
// @Produce json
// @Param offset query int false "Offset for pagination" default(0)
// @Param limit query int false "Limit for pagination (max 100)" default(20)
// @Success 200 {object} Response{data=[]domain.HumanReview,meta=PagMeta}
// @Security BearerAuth
// @Router /reviews [get]
func (h *ReviewHandler) ListPending(c *gin.Context) {
	orgID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	offset, limit := parsePagination(c)
	items, total, err := h.reviews.ListPending(c.Request.Context(), orgID, offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondPaginated(c, items, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// Claim handles POST /api/v1/reviews/:id/claim
// @Summary Claim a review
// @Tags reviews
// @Produce json
// @Param id path string true "Review ID (UUID)"
// @Success 200 {object} Response{data=domain.HumanReview}
// @Failure 404 {object} ErrorResponseBody "Review not found"
// @Failure 409 {object} ErrorResponseBody "Review already claimed or completed"
// @Security BearerAuth
// @Router /reviews/{id}/claim [post]
func (h *ReviewHandler) Claim(c *gin.Context) {
	orgID, userID, ok := extractAuthContext(c)
	if !ok {
		return
	}
	reviewID, ok := parseIDParam(c, "id", "review")
	if !ok {
		return
	}
	review, err := h.reviews.Claim(c.Request.Context(), orgID, reviewID, userID)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, review)
}

// Decide handles POST /api/v1/reviews/:id/decision
// @Summary Decide a review
// @Description Approve or reject the run behind a review, optionally recording field corrections in the same call.
// @Tags reviews
// @Accept json
// @Produce json
// @Param id path string true "Review ID (UUID)"
// @Param request body DecideReviewRequest true "Decision"
// @Success 200 {object} Response{data=service.DecideResult}
// @Failure 400 {object} ErrorResponseBody "Invalid request"
// @Failure 409 {object} ErrorResponseBody "Review closed or run changed state"
// @Security BearerAuth
// @Router /reviews/{id}/decision [post]
func (h *ReviewHandler) Decide(c *gin.Context) {
	orgID, userID, ok := extractAuthContext(c)
	if !ok {
		return
	}
	reviewID, ok := parseIDParam(c, "id", "review")
	if !ok {
		return
	}

	var req DecideReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "decision is required")
		return
	}

	result, err := h.reviews.Decide(c.Request.Context(), &service.DecideInput{
		OrgID:       orgID,
		ReviewID:    reviewID,
		ReviewerID:  userID,
		Decision:    req.Decision,
		ErrorTags:   req.ErrorTags,
		Corrections: req.Corrections,
	})
	if err != nil {
		if result != nil {
			// The decision stuck; only the inline corrections failed.
			c.JSON(http.StatusOK, APIResponse{
				Success: true,
				Data:    result,
				Error:   &APIError{Code: "CORRECTIONS_FAILED", Message: "decision recorded but corrections were not saved"},
			})
			return
		}
		HandleError(c, err)
		return
	}
	RespondOK(c, result)
}
