package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Sooriyansh/coaching/internal/service"
	appErrors "github.com/Sooriyansh/coaching/pkg/errors"
	"github.com/Sooriyansh/coaching/pkg/response"
)

// PaymentHandler exposes fee collection endpoints.
type PaymentHandler struct {
	payments *service.PaymentService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Create godoc
// @Summary Record a fee payment
// @Description Record a payment covering N months, allocated to the oldest unpaid months
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body service.CreatePaymentRequest true "Payment payload"
// @Security BearerAuth
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /payments [post]
func (h *PaymentHandler) Create(c *gin.Context) {
	var req service.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment payload"))
		return
	}
	payment, err := h.payments.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, payment, nil, map[string]interface{}{
		"message": fmt.Sprintf("payment recorded, receipt %s", payment.ReceiptNumber),
	})
}

// History godoc
// @Summary Payment history for one student
// @Tags Payments
// @Produce json
// @Param id path string true "Student ID"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/payments [get]
func (h *PaymentHandler) History(c *gin.Context) {
	payments, err := h.payments.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// Recent godoc
// @Summary Latest payments across all students
// @Tags Payments
// @Produce json
// @Param limit query int false "Max rows"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) Recent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	payments, err := h.payments.Recent(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// Delete godoc
// @Summary Delete a payment and reverse its effect
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Security BearerAuth
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /payments/{id} [delete]
func (h *PaymentHandler) Delete(c *gin.Context) {
	if err := h.payments.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Receipt godoc
// @Summary Download the payment receipt as PDF
// @Tags Payments
// @Produce application/pdf
// @Param id path string true "Payment ID"
// @Security BearerAuth
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /payments/{id}/receipt [get]
func (h *PaymentHandler) Receipt(c *gin.Context) {
	doc, err := h.payments.Receipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"receipt-%s.pdf\"", c.Param("id")))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/pdf", doc)
}
