package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"certflow/internal/service"
)

// CorrectionHandler handles correction capture endpoints.
type CorrectionHandler struct {
	corrections service.CorrectionService
}

// NewCorrectionHandler creates a new CorrectionHandler.
func NewCorrectionHandler(corrections service.CorrectionService) *CorrectionHandler {
	return &CorrectionHandler{corrections: corrections}
}

// Record handles POST /api/v1/corrections/:id
// @Summary Record field corrections
// @Description Record corrections against a run ID, or against the latest run of a certificate ID. Items are validated individually; valid items are stored even when others are rejected.
// @Tags corrections
// @Accept json
// @Produce json
// @Param id path string true "Run or certificate ID (UUID)"
// @Param request body RecordCorrectionsRequest true "Corrections"
// @Success 201 {object} Response{data=service.RecordCorrectionsResult} "Also returned with error CORRECTIONS_INCOMPLETE when a storage error cut the batch short"
// @Failure 400 {object} ErrorResponseBody "Invalid request"
// @Failure 403 {object} ErrorResponseBody "Target belongs to another organization"
// @Failure 404 {object} ErrorResponseBody "Target not found"
// @Security BearerAuth
// @Router /corrections/{id} [post]
func (h *CorrectionHandler) Record(c *gin.Context) {
	orgID, userID, ok := extractAuthContext(c)
	if !ok {
		return
	}
	targetID, ok := parseIDParam(c, "id", "target")
	if !ok {
		return
	}

	var req RecordCorrectionsRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Corrections) == 0 {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "corrections must be a non-empty list")
		return
	}

	result, err := h.corrections.RecordCorrections(c.Request.Context(), orgID, userID, targetID, req.Corrections)
	if err != nil {
		if result != nil && len(result.Recorded) > 0 {
			zap.L().Error("handler.CorrectionHandler.Record: partially stored", zap.Error(err))
			c.JSON(http.StatusCreated, APIResponse{
				Success: true,
				Data:    result,
				Error: &APIError{
					Code:      "CORRECTIONS_INCOMPLETE",
					Message:   "some corrections were stored before a storage error; resubmit the rest",
					Retryable: true,
				},
			})
			return
		}
		HandleError(c, err)
		return
	}
	RespondCreated(c, result)
}

// ListByCertificate handles GET /api/v1/certificates/:id/corrections
// @Summary List corrections for a certificate
// @Tags corrections
// @Produce json
// @Param id path string true "Certificate ID (UUID)"
// @Success 200 {object} Response{data=[]domain.Correction}
// @Failure 400 {object} ErrorResponseBody "Invalid ID"
// @Security BearerAuth
// @Router /certificates/{id}/corrections [get]
func (h *CorrectionHandler) ListByCertificate(c *gin.Context) {
	orgID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	certID, ok := parseIDParam(c, "id", "certificate")
	if !ok {
		return
	}
	items, err := h.corrections.ListByCertificate(c.Request.Context(), orgID, certID)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, items)
}
