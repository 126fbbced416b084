package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	ledgerapp "github.com/khata/backend/internal/application/ledger"
	"github.com/khata/backend/internal/interfaces/http/dto"
)

// receiptFormField is the multipart field carrying the receipt file
const receiptFormField = "file"

// AttachmentHandler uploads receipt images and hands out download links
type AttachmentHandler struct {
	BaseHandler
	attachmentService *ledgerapp.AttachmentService
	maxUploadSize     int64
}

// NewAttachmentHandler creates a new AttachmentHandler. maxUploadSize caps
// the multipart file read into memory.
func NewAttachmentHandler(attachmentService *ledgerapp.AttachmentService, maxUploadSize int64) *AttachmentHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = ledgerapp.DefaultAttachmentServiceConfig().MaxReceiptSize
	}
	return &AttachmentHandler{
		attachmentService: attachmentService,
		maxUploadSize:     maxUploadSize,
	}
}

// Upload stores one receipt and returns the reference to put on a payment
// POST /ledger/attachments (multipart/form-data, field "file")
func (h *AttachmentHandler) Upload(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}

	header, err := c.FormFile(receiptFormField)
	if err != nil {
		h.BadRequest(c, "A receipt file is required in the \"file\" field")
		return
	}
	if header.Size > h.maxUploadSize {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge,
			fmt.Sprintf("Receipt exceeds the %d byte limit", h.maxUploadSize))
		return
	}

	file, err := header.Open()
	if err != nil {
		h.HandleError(c, fmt.Errorf("open uploaded receipt: %w", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadSize+1))
	if err != nil {
		h.HandleError(c, fmt.Errorf("read uploaded receipt: %w", err))
		return
	}
	if int64(len(data)) > h.maxUploadSize {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge,
			fmt.Sprintf("Receipt exceeds the %d byte limit", h.maxUploadSize))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	attachment, err := h.attachmentService.UploadReceipt(c.Request.Context(), tenantID, ledgerapp.UploadReceiptRequest{
		FileName:    header.Filename,
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, attachment)
}

// DownloadURL returns a time-limited link for a receipt reference
// GET /ledger/attachments/url?ref=
func (h *AttachmentHandler) DownloadURL(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}

	ref := c.Query("ref")
	if ref == "" {
		h.BadRequest(c, "ref is required")
		return
	}

	link, err := h.attachmentService.DownloadURL(c.Request.Context(), tenantID, ref)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, link)
}
