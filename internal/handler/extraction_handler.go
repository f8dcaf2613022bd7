package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"certflow/internal/domain"
	"certflow/internal/export"
	"certflow/internal/extraction"
	"certflow/internal/port"
)

// ExtractionHandler handles extraction run endpoints.
type ExtractionHandler struct {
	orchestrator extraction.Orchestrator
	runs         port.ExtractionRunRepository
}

// NewExtractionHandler creates a new ExtractionHandler.
func NewExtractionHandler(orchestrator extraction.Orchestrator, runs port.ExtractionRunRepository) *ExtractionHandler {
	return &ExtractionHandler{orchestrator: orchestrator, runs: runs}
}

// RunDetail is a run with its golden thread.
type RunDetail struct {
	Run      *domain.ExtractionRun `json:"run"`
	Attempts []domain.TierAttempt  `json:"attempts"`
}

// Start handles POST /api/v1/certificates/:id/extractions
// @Summary Start an extraction run
// @Description Create a PENDING run for the certificate's current version. With sync=true the run is processed inline.
// @Tags extractions
// @Produce json
// @Param id path string true "Certificate ID (UUID)"
// @Param sync query bool false "Process inline instead of queueing"
// @Success 202 {object} Response{data=domain.ExtractionRun} "Run queued"
// @Success 200 {object} Response{data=domain.ExtractionRun} "Run processed"
// @Failure 400 {object} ErrorResponseBody "Invalid ID"
// @Failure 404 {object} ErrorResponseBody "Certificate not found"
// @Security BearerAuth
// @Router /certificates/{id}/extractions [post]
func (h *ExtractionHandler) Start(c *gin.Context) {
	orgID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	certID, ok := parseIDParam(c, "id", "certificate")
	if !ok {
		return
	}

	if c.Query("sync") == "true" {
		run, err := h.orchestrator.Run(c.Request.Context(), orgID, certID)
		if err != nil {
			HandleError(c, err)
			return
		}
		RespondOK(c, run)
		return
	}

	run, err := h.orchestrator.Start(c.Request.Context(), orgID, certID)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondAccepted(c, run)
}

// Supersede handles POST /api/v1/certificates/:id/supersede
// @Summary Supersede unfinished runs
// @Description Mark every unfinished run of the certificate SUPERSEDED, typically after a reupload or delete.
// @Tags extractions
// @Produce json
// @Param id path string true "Certificate ID (UUID)"
// @Success 200 {object} Response{data=SupersedeResponse}
// @Failure 400 {object} ErrorResponseBody "Invalid ID"
// @Security BearerAuth
// @Router /certificates/{id}/supersede [post]
func (h *ExtractionHandler) Supersede(c *gin.Context) {
	orgID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	certID, ok := parseIDParam(c, "id", "certificate")
	if !ok {
		return
	}
	n, err := h.orchestrator.Supersede(c.Request.Context(), orgID, certID)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, SupersedeResponse{Superseded: n})
}

// GetByID handles GET /api/v1/extractions/:id
// @Summary Get an extraction run
// @Description Get a run together with every tier attempt made for it.
// @Tags extractions
// @Produce json
// @Param id path string true "Run ID (UUID)"
// @Success 200 {object} Response{data=RunDetail}
// @Failure 400 {object} ErrorResponseBody "Invalid ID"
// @Failure 404 {object} ErrorResponseBody "Run not found"
// @Security BearerAuth
// @Router /extractions/{id} [get]
func (h *ExtractionHandler) GetByID(c *gin.Context) {
	detail, ok := h.loadThread(c)
	if !ok {
		return
	}
	RespondOK(c, detail)
}

// Export handles GET /api/v1/extractions/:id/export
// @Summary Export a run's golden thread
// @Tags extractions
// @Produce text/csv
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Run ID (UUID)"
// @Param format query string false "csv or xlsx" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} ErrorResponseBody "Invalid ID or format"
// @Failure 404 {object} ErrorResponseBody "Run not found"
// @Security BearerAuth
// @Router /extractions/{id}/export [get]
func (h *ExtractionHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "xlsx" {
		RespondError(c, http.StatusBadRequest, "INVALID_FORMAT", "format must be 'csv' or 'xlsx'")
		return
	}
	detail, ok := h.loadThread(c)
	if !ok {
		return
	}

	thread := export.Thread{Run: detail.Run, Attempts: detail.Attempts}
	var (
		buf         bytes.Buffer
		err         error
		contentType string
	)
	if format == "xlsx" {
		err = export.WriteXLSX(&buf, thread)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	} else {
		err = export.WriteCSV(&buf, thread)
		contentType = "text/csv; charset=utf-8"
	}
	if err != nil {
		HandleError(c, err)
		return
	}

	filename := export.BuildFilename(detail.Run, format)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (h *ExtractionHandler) loadThread(c *gin.Context) (*RunDetail, bool) {
	orgID, _, ok := extractAuthContext(c)
	if !ok {
		return nil, false
	}
	runID, ok := parseIDParam(c, "id", "run")
	if !ok {
		return nil, false
	}
	run, err := h.runs.GetByID(c.Request.Context(), orgID, runID)
	if err != nil {
		HandleError(c, err)
		return nil, false
	}
	attempts, err := h.orchestrator.GoldenThread(c.Request.Context(), orgID, runID)
	if err != nil {
		HandleError(c, err)
		return nil, false
	}
	return &RunDetail{Run: run, Attempts: attempts}, true
}
