package handler

import (
	"context"
	"encoding/json"
	"fmt"

	appreceiving "github.com/erp/reconciliation/internal/application/receiving"
	"github.com/erp/reconciliation/internal/domain/shared"
	"github.com/erp/reconciliation/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReceptionService is the part of the reconciliation service the HTTP layer drives
type ReceptionService interface {
	SubmitReception(ctx context.Context, cmd appreceiving.SubmitReceptionCommand) (*appreceiving.ReceptionResponse, error)
	BeginInspection(ctx context.Context, receptionID uuid.UUID, actorID string) (*appreceiving.ReceptionResponse, error)
	UpdateReceptionLineInspection(ctx context.Context, cmd appreceiving.InspectLineCommand) (*appreceiving.ReceptionResponse, error)
	GetReception(ctx context.Context, receptionID uuid.UUID) (*appreceiving.ReceptionResponse, error)
	ListReceptions(ctx context.Context, orderID uuid.UUID, filter shared.Filter) (*shared.Paginated[appreceiving.ReceptionResponse], error)
	GetOrderLedger(ctx context.Context, orderID uuid.UUID) (*appreceiving.OrderLedgerResponse, error)
}

// ReceptionHandler handles reception and ledger endpoints
type ReceptionHandler struct {
	BaseHandler
	service ReceptionService
}

// NewReceptionHandler creates a new ReceptionHandler
func NewReceptionHandler(service ReceptionService) *ReceptionHandler {
	return &ReceptionHandler{service: service}
}

// ReceptionLineRequest is one delivered order line. Quantities accept JSON
// numbers or numeric strings.
type ReceptionLineRequest struct {
	OrderLineID      string      `json:"order_line_id" binding:"required,uuid"`
	ReceivedQuantity json.Number `json:"received_quantity" binding:"required"`
	AcceptedQuantity json.Number `json:"accepted_quantity" binding:"required"`
	RejectedQuantity json.Number `json:"rejected_quantity"`
	Notes            string      `json:"notes" binding:"max=1000"`
}

// SubmitReceptionRequest is the body of POST /orders/:id/receptions
type SubmitReceptionRequest struct {
	ReceptionType string                 `json:"reception_type" binding:"required"`
	Lines         []ReceptionLineRequest `json:"lines" binding:"dive"`
	Documents     []string               `json:"documents" binding:"max=20,dive,required,max=512"`
	Notes         string                 `json:"notes" binding:"max=2000"`
}

// InspectLineRequest is the body of PUT /receptions/:id/lines/:lineId/inspection
type InspectLineRequest struct {
	InspectionStatus string `json:"inspection_status" binding:"required"`
	Notes            string `json:"notes" binding:"max=1000"`
}

// ListReceptionsQuery holds the paging parameters of a reception history
type ListReceptionsQuery struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// Submit records a delivery against an order
func (h *ReceptionHandler) Submit(c *gin.Context) {
	orderID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	var req SubmitReceptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	cmd := appreceiving.SubmitReceptionCommand{
		OrderID:       orderID,
		ReceptionType: req.ReceptionType,
		ActorID:       middleware.GetActorID(c),
		Documents:     req.Documents,
		Notes:         req.Notes,
		Lines:         make([]appreceiving.ReceptionLineInput, 0, len(req.Lines)),
	}
	for i, line := range req.Lines {
		input, err := line.toInput()
		if err != nil {
			h.BadRequest(c, fmt.Sprintf("lines[%d]: %v", i, err))
			return
		}
		cmd.Lines = append(cmd.Lines, input)
	}

	reception, err := h.service.SubmitReception(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, reception)
}

func (r ReceptionLineRequest) toInput() (appreceiving.ReceptionLineInput, error) {
	lineID, err := uuid.Parse(r.OrderLineID)
	if err != nil {
		return appreceiving.ReceptionLineInput{}, fmt.Errorf("invalid order_line_id")
	}
	received, err := parseQuantity("received_quantity", r.ReceivedQuantity)
	if err != nil {
		return appreceiving.ReceptionLineInput{}, err
	}
	accepted, err := parseQuantity("accepted_quantity", r.AcceptedQuantity)
	if err != nil {
		return appreceiving.ReceptionLineInput{}, err
	}
	rejected, err := parseQuantity("rejected_quantity", r.RejectedQuantity)
	if err != nil {
		return appreceiving.ReceptionLineInput{}, err
	}
	return appreceiving.ReceptionLineInput{
		OrderLineID:      lineID,
		ReceivedQuantity: received,
		AcceptedQuantity: accepted,
		RejectedQuantity: rejected,
		Notes:            r.Notes,
	}, nil
}

// parseQuantity treats an absent value as zero
func parseQuantity(field string, n json.Number) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s", field)
	}
	return d, nil
}

// List returns an order's reception history, newest first
func (h *ReceptionHandler) List(c *gin.Context) {
	orderID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var q ListReceptionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	filter := shared.Filter{Page: q.Page, PageSize: q.PageSize}.Normalize()
	page, err := h.service.ListReceptions(c.Request.Context(), orderID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Ledger returns ordered, received, accepted, rejected and remaining quantities per order line
func (h *ReceptionHandler) Ledger(c *gin.Context) {
	orderID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	ledger, err := h.service.GetOrderLedger(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ledger)
}

// Get returns one reception with its lines
func (h *ReceptionHandler) Get(c *gin.Context) {
	receptionID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	reception, err := h.service.GetReception(c.Request.Context(), receptionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, reception)
}

// BeginInspection claims a pending reception for the calling actor
func (h *ReceptionHandler) BeginInspection(c *gin.Context) {
	receptionID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	reception, err := h.service.BeginInspection(c.Request.Context(), receptionID, middleware.GetActorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, reception)
}

// ResolveLine records the inspection verdict of one reception line
func (h *ReceptionHandler) ResolveLine(c *gin.Context) {
	receptionID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	lineID, ok := h.uuidParam(c, "lineId")
	if !ok {
		return
	}
	var req InspectLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	reception, err := h.service.UpdateReceptionLineInspection(c.Request.Context(), appreceiving.InspectLineCommand{
		ReceptionID:      receptionID,
		LineID:           lineID,
		InspectionStatus: req.InspectionStatus,
		Notes:            req.Notes,
		ActorID:          middleware.GetActorID(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, reception)
}
