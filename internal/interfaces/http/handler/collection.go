package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	ledgerapp "github.com/khata/backend/internal/application/ledger"
	"github.com/khata/backend/internal/interfaces/http/middleware"
)

// maxIdempotencyKeyLength bounds the Idempotency-Key header
const maxIdempotencyKeyLength = 128

// CollectionHandler serves quick-collect, which spreads one amount over an
// owner's open debts, oldest first
type CollectionHandler struct {
	BaseHandler
	collectionService *ledgerapp.CollectionService
}

// NewCollectionHandler creates a new CollectionHandler
func NewCollectionHandler(collectionService *ledgerapp.CollectionService) *CollectionHandler {
	return &CollectionHandler{collectionService: collectionService}
}

// QuickCollect applies an amount across the owner's pending debts.
// An Idempotency-Key header makes retries safe.
// POST /ledger/owners/:owner_id/collect
func (h *CollectionHandler) QuickCollect(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	ownerID, ok := h.uuidParam(c, "owner_id")
	if !ok {
		return
	}

	var req ledgerapp.QuickCollectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.IdempotencyKey = strings.TrimSpace(c.GetHeader(middleware.IdempotencyKeyHeader))
	if len(req.IdempotencyKey) > maxIdempotencyKeyLength {
		h.BadRequest(c, "Idempotency-Key is too long")
		return
	}

	result, err := h.collectionService.QuickCollect(c.Request.Context(), tenantID, ownerID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// Preview shows how an amount would be spread without recording anything
// POST /ledger/owners/:owner_id/collect/preview
func (h *CollectionHandler) Preview(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	ownerID, ok := h.uuidParam(c, "owner_id")
	if !ok {
		return
	}

	var req ledgerapp.PreviewCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.collectionService.PreviewCollection(c.Request.Context(), tenantID, ownerID, req.Amount)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
