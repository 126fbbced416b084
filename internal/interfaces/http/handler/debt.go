package handler

import (
	"github.com/gin-gonic/gin"
	ledgerapp "github.com/khata/backend/internal/application/ledger"
)

// DebtHandler serves debt lifecycle endpoints
type DebtHandler struct {
	BaseHandler
	debtService *ledgerapp.DebtService
}

// NewDebtHandler creates a new DebtHandler
func NewDebtHandler(debtService *ledgerapp.DebtService) *DebtHandler {
	return &DebtHandler{debtService: debtService}
}

// Create records a new credit or purchase
// POST /ledger/debts
func (h *DebtHandler) Create(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}

	var req ledgerapp.CreateDebtRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	debt, err := h.debtService.CreateDebt(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, debt)
}

// GetByID returns one debt with its payments
// GET /ledger/debts/:id
func (h *DebtHandler) GetByID(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	debtID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	debt, err := h.debtService.GetDebt(c.Request.Context(), tenantID, debtID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, debt)
}

// List returns a page of debts
// GET /ledger/debts?owner_id=&owner_type=&status=&from=&to=&page=&page_size=
func (h *DebtHandler) List(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}

	var filter ledgerapp.DebtListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	debts, total, err := h.debtService.ListDebts(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	page, pageSize := filter.Page, filter.PageSize
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = 20
	}
	h.SuccessWithMeta(c, debts, total, page, pageSize)
}

// Update changes a debt's total, date or metadata
// PUT /ledger/debts/:id
func (h *DebtHandler) Update(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	debtID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	var req ledgerapp.UpdateDebtRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	debt, err := h.debtService.UpdateDebt(c.Request.Context(), tenantID, debtID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, debt)
}

// Delete removes a debt with all of its payments
// DELETE /ledger/debts/:id
func (h *DebtHandler) Delete(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	debtID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.debtService.DeleteDebt(c.Request.Context(), tenantID, debtID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// DeleteOwnerDebts removes every debt of a customer or supplier
// DELETE /ledger/owners/:owner_id/debts
func (h *DebtHandler) DeleteOwnerDebts(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	ownerID, ok := h.uuidParam(c, "owner_id")
	if !ok {
		return
	}

	deleted, err := h.debtService.DeleteOwnerDebts(c.Request.Context(), tenantID, ownerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"deleted": deleted})
}
