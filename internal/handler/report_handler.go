package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Sooriyansh/coaching/internal/service"
	"github.com/Sooriyansh/coaching/pkg/response"
)

// ReportHandler exposes reporting endpoints.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// PendingFees godoc
// @Summary Pending fees report
// @Description List active students with unpaid months
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /reports/pending [get]
func (h *ReportHandler) PendingFees(c *gin.Context) {
	rows, err := h.reports.PendingFees(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// ExportCSV godoc
// @Summary Download the pending fees report as CSV
// @Tags Reports
// @Produce text/csv
// @Security BearerAuth
// @Success 200 {file} file
// @Router /reports/pending/csv [get]
func (h *ReportHandler) ExportCSV(c *gin.Context) {
	out, err := h.reports.ExportCSV(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	h.sendFile(c, out, "text/csv", "csv")
}

// ExportPDF godoc
// @Summary Download the pending fees report as PDF
// @Tags Reports
// @Produce application/pdf
// @Security BearerAuth
// @Success 200 {file} file
// @Router /reports/pending/pdf [get]
func (h *ReportHandler) ExportPDF(c *gin.Context) {
	out, err := h.reports.ExportPDF(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	h.sendFile(c, out, "application/pdf", "pdf")
}

func (h *ReportHandler) sendFile(c *gin.Context, data []byte, mime, ext string) {
	filename := fmt.Sprintf("pending-fees-%s.%s", time.Now().Format("2006-01-02"), ext)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, mime, data)
}
