package handler

import (
	"github.com/gin-gonic/gin"
	ledgerapp "github.com/khata/backend/internal/application/ledger"
	"github.com/khata/backend/internal/domain/ledger"
)

// TotalsHandler serves the aggregation endpoints
type TotalsHandler struct {
	BaseHandler
	aggregationService *ledgerapp.AggregationService
}

// NewTotalsHandler creates a new TotalsHandler
func NewTotalsHandler(aggregationService *ledgerapp.AggregationService) *TotalsHandler {
	return &TotalsHandler{aggregationService: aggregationService}
}

// PersonTotals returns total, paid and pending for one customer or supplier
// GET /ledger/owners/:owner_id/totals
func (h *TotalsHandler) PersonTotals(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	ownerID, ok := h.uuidParam(c, "owner_id")
	if !ok {
		return
	}

	totals, err := h.aggregationService.PersonTotals(c.Request.Context(), tenantID, ownerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, totals)
}

// GlobalTotals returns the rollup of the whole ledger book
// GET /ledger/totals?owner_type=customer|supplier
func (h *TotalsHandler) GlobalTotals(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}

	var filter ledgerapp.TotalsFilter
	if raw := c.Query("owner_type"); raw != "" {
		ownerType := ledger.OwnerType(raw)
		if !ownerType.IsValid() {
			h.BadRequest(c, "owner_type must be customer or supplier")
			return
		}
		filter.OwnerType = &ownerType
	}

	totals, err := h.aggregationService.GlobalTotals(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, totals)
}
