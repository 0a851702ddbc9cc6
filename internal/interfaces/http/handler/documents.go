package handler

import (
	"context"

	appreceiving "github.com/erp/reconciliation/internal/application/receiving"
	"github.com/erp/reconciliation/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DocumentService issues presigned URLs for reception documents
type DocumentService interface {
	PresignDocumentUpload(ctx context.Context, cmd appreceiving.PresignDocumentCommand) (*appreceiving.PresignedDocument, error)
	PresignDocumentDownload(ctx context.Context, documentRef string) (*appreceiving.PresignedDocument, error)
}

// DocumentHandler handles document presign endpoints
type DocumentHandler struct {
	BaseHandler
	service DocumentService
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(service DocumentService) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// PresignUploadRequest is the body of POST /documents/presign
type PresignUploadRequest struct {
	ReceptionID string `json:"reception_id" binding:"omitempty,uuid"`
	FileName    string `json:"file_name" binding:"required,max=255"`
	ContentType string `json:"content_type" binding:"max=127"`
}

// PresignDownloadQuery selects the stored document to download
type PresignDownloadQuery struct {
	Ref string `form:"ref" binding:"required,max=512"`
}

// PresignUpload returns an upload URL and the document reference to attach to a reception
func (h *DocumentHandler) PresignUpload(c *gin.Context) {
	var req PresignUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	cmd := appreceiving.PresignDocumentCommand{FileName: req.FileName, ContentType: req.ContentType}
	if req.ReceptionID != "" {
		id, err := uuid.Parse(req.ReceptionID)
		if err != nil {
			h.BadRequest(c, "Invalid reception_id format")
			return
		}
		cmd.ReceptionID = &id
	}

	doc, err := h.service.PresignDocumentUpload(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, doc)
}

// PresignDownload returns a short-lived download URL for a document reference
func (h *DocumentHandler) PresignDownload(c *gin.Context) {
	var q PresignDownloadQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	doc, err := h.service.PresignDocumentDownload(c.Request.Context(), q.Ref)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}
