package handler

import (
	"github.com/gin-gonic/gin"
	ledgerapp "github.com/khata/backend/internal/application/ledger"
)

// PaymentHandler serves the payment ledger of a single debt
type PaymentHandler struct {
	BaseHandler
	paymentService *ledgerapp.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService *ledgerapp.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// List returns the payments of a debt
// GET /ledger/debts/:id/payments
func (h *PaymentHandler) List(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	debtID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	payments, err := h.paymentService.ListPayments(c.Request.Context(), tenantID, debtID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payments)
}

// Record adds a payment to a debt
// POST /ledger/debts/:id/payments
func (h *PaymentHandler) Record(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	debtID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	var req ledgerapp.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	payment, err := h.paymentService.RecordPayment(c.Request.Context(), tenantID, debtID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, payment)
}

// MarkFullyPaid records one payment for whatever remains
// POST /ledger/debts/:id/mark-paid
func (h *PaymentHandler) MarkFullyPaid(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	debtID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	var req ledgerapp.MarkFullyPaidRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}

	payment, err := h.paymentService.MarkFullyPaid(c.Request.Context(), tenantID, debtID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, payment)
}

// Edit changes a recorded payment
// PUT /ledger/debts/:id/payments/:payment_id
func (h *PaymentHandler) Edit(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	debtID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	paymentID, ok := h.uuidParam(c, "payment_id")
	if !ok {
		return
	}

	var req ledgerapp.EditPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	payment, err := h.paymentService.EditPayment(c.Request.Context(), tenantID, debtID, paymentID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payment)
}

// Delete removes a payment from a debt
// DELETE /ledger/debts/:id/payments/:payment_id
func (h *PaymentHandler) Delete(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	debtID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	paymentID, ok := h.uuidParam(c, "payment_id")
	if !ok {
		return
	}

	if err := h.paymentService.DeletePayment(c.Request.Context(), tenantID, debtID, paymentID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
