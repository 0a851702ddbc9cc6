package receiving

import (
	"fmt"

	"github.com/erp/reconciliation/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrorKind classifies reconciliation errors by how a caller should react to them
type ErrorKind string

const (
	// KindNotFound means a referenced order, reception or line does not exist
	KindNotFound ErrorKind = "NOT_FOUND"
	// KindValidation means the caller supplied bad data and must correct it
	KindValidation ErrorKind = "VALIDATION"
	// KindStateConflict means the operation does not fit the current lifecycle state
	KindStateConflict ErrorKind = "STATE_CONFLICT"
	// KindConcurrency means the transaction lost a race and may be retried
	KindConcurrency ErrorKind = "CONCURRENCY_CONFLICT"
	// KindInternal is anything not covered above
	KindInternal ErrorKind = "INTERNAL"
)

// Error codes
const (
	CodeOrderNotFound            = "ORDER_NOT_FOUND"
	CodeReceptionNotFound        = "RECEPTION_NOT_FOUND"
	CodeLineNotFound             = "LINE_NOT_FOUND"
	CodeUnknownOrderLine         = "UNKNOWN_ORDER_LINE"
	CodeQuantitySplitMismatch    = "QUANTITY_SPLIT_MISMATCH"
	CodeOverReceipt              = "OVER_RECEIPT"
	CodeDuplicateLine            = "DUPLICATE_LINE_IN_SUBMISSION"
	CodeEmptySubmission          = "EMPTY_SUBMISSION"
	CodeInvalidQuantity          = "INVALID_QUANTITY"
	CodeInvalidEnumValue         = "INVALID_ENUM_VALUE"
	CodeMissingActor             = "MISSING_ACTOR"
	CodeOrderNotReceivable       = "ORDER_NOT_RECEIVABLE"
	CodeReceptionAlreadyApproved = "RECEPTION_ALREADY_APPROVED"
	CodeInvalidStateTransition   = "INVALID_STATE_TRANSITION"
	CodeInspectionAlreadyClaimed = "INSPECTION_ALREADY_CLAIMED"
	CodeConcurrencyConflict      = "CONCURRENCY_CONFLICT"
)

var kindByCode = map[string]ErrorKind{
	CodeOrderNotFound:            KindNotFound,
	CodeReceptionNotFound:        KindNotFound,
	CodeLineNotFound:             KindNotFound,
	CodeUnknownOrderLine:         KindValidation,
	CodeQuantitySplitMismatch:    KindValidation,
	CodeOverReceipt:              KindValidation,
	CodeDuplicateLine:            KindValidation,
	CodeEmptySubmission:          KindValidation,
	CodeInvalidQuantity:          KindValidation,
	CodeInvalidEnumValue:         KindValidation,
	CodeMissingActor:             KindValidation,
	CodeOrderNotReceivable:       KindStateConflict,
	CodeReceptionAlreadyApproved: KindStateConflict,
	CodeInvalidStateTransition:   KindStateConflict,
	CodeInspectionAlreadyClaimed: KindStateConflict,
	CodeConcurrencyConflict:      KindConcurrency,
}

// Sentinels for errors.Is checks. Matching is by code, so a detailed error
// built from one of these still matches it.
var (
	ErrOrderNotFound            = shared.NewDomainError(CodeOrderNotFound, "Order not found")
	ErrReceptionNotFound        = shared.NewDomainError(CodeReceptionNotFound, "Reception not found")
	ErrLineNotFound             = shared.NewDomainError(CodeLineNotFound, "Reception line not found")
	ErrUnknownOrderLine         = shared.NewDomainError(CodeUnknownOrderLine, "Order line does not belong to the order")
	ErrQuantitySplitMismatch    = shared.NewDomainError(CodeQuantitySplitMismatch, "Accepted plus rejected quantity must equal received quantity")
	ErrOverReceipt              = shared.NewDomainError(CodeOverReceipt, "Received quantity exceeds the remaining quantity of the order line")
	ErrDuplicateLine            = shared.NewDomainError(CodeDuplicateLine, "Order line appears more than once in the submission")
	ErrEmptySubmission          = shared.NewDomainError(CodeEmptySubmission, "Reception must contain at least one line")
	ErrInvalidQuantity          = shared.NewDomainError(CodeInvalidQuantity, "Quantities must not be negative")
	ErrInvalidEnumValue         = shared.NewDomainError(CodeInvalidEnumValue, "Unknown enumeration value")
	ErrMissingActor             = shared.NewDomainError(CodeMissingActor, "Actor id is required")
	ErrOrderNotReceivable       = shared.NewDomainError(CodeOrderNotReceivable, "Order is not in a receivable status")
	ErrReceptionAlreadyApproved = shared.NewDomainError(CodeReceptionAlreadyApproved, "Reception is approved and can no longer be modified")
	ErrInvalidStateTransition   = shared.NewDomainError(CodeInvalidStateTransition, "Transition not allowed from the current reception status")
	ErrInspectionAlreadyClaimed = shared.NewDomainError(CodeInspectionAlreadyClaimed, "Inspection already started by another actor")
	ErrConcurrencyConflict      = shared.NewDomainError(CodeConcurrencyConflict, "Concurrent modification detected")
)

// KindOf classifies an error. Errors that are not domain errors are KindInternal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	de, ok := shared.AsDomainError(err)
	if !ok {
		return KindInternal
	}
	if kind, ok := KindOfCode(de.Code); ok {
		return kind
	}
	return KindInternal
}

// KindOfCode classifies a bare error code
func KindOfCode(code string) (ErrorKind, bool) {
	if kind, ok := kindByCode[code]; ok {
		return kind, true
	}
	switch code {
	case shared.ErrNotFound.Code:
		return KindNotFound, true
	case shared.ErrConcurrencyConflict.Code:
		return KindConcurrency, true
	}
	return "", false
}

// IsRetryable reports whether the service should retry the whole unit of work
func IsRetryable(err error) bool {
	return KindOf(err) == KindConcurrency
}

func detailed(base *shared.DomainError, message string) *shared.DomainError {
	e := base.WithDetail("kind", string(kindByCode[base.Code]))
	e.Message = message
	return e
}

// NewOrderNotFound builds an OrderNotFound error for the given order
func NewOrderNotFound(orderID uuid.UUID) error {
	return detailed(ErrOrderNotFound, fmt.Sprintf("order %s not found", orderID)).
		WithDetail("order_id", orderID.String())
}

// NewReceptionNotFound builds a ReceptionNotFound error
func NewReceptionNotFound(receptionID uuid.UUID) error {
	return detailed(ErrReceptionNotFound, fmt.Sprintf("reception %s not found", receptionID)).
		WithDetail("reception_id", receptionID.String())
}

// NewLineNotFound builds a LineNotFound error
func NewLineNotFound(receptionID, lineID uuid.UUID) error {
	return detailed(ErrLineNotFound, fmt.Sprintf("line %s not found on reception %s", lineID, receptionID)).
		WithDetail("reception_id", receptionID.String()).
		WithDetail("line_id", lineID.String())
}

// NewConcurrencyConflict wraps a storage-level conflict into a retryable domain error
func NewConcurrencyConflict(resource string, cause error) error {
	msg := fmt.Sprintf("concurrent modification of %s", resource)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return detailed(ErrConcurrencyConflict, msg).WithDetail("resource", resource)
}

func newLineError(base *shared.DomainError, index int, orderLineID uuid.UUID, message string) *shared.DomainError {
	return detailed(base, message).
		WithDetail("line_index", index).
		WithDetail("order_line_id", orderLineID.String())
}

func newOverReceipt(index int, orderLineID uuid.UUID, received, remaining decimal.Decimal) error {
	return newLineError(ErrOverReceipt, index, orderLineID,
		fmt.Sprintf("line %d: received %s exceeds remaining %s", index, received, remaining)).
		WithDetail("received_quantity", received.String()).
		WithDetail("remaining_quantity", remaining.String())
}

func newSplitMismatch(index int, orderLineID uuid.UUID, received, accepted, rejected decimal.Decimal) error {
	return newLineError(ErrQuantitySplitMismatch, index, orderLineID,
		fmt.Sprintf("line %d: accepted %s + rejected %s != received %s", index, accepted, rejected, received))
}

func newOrderNotReceivable(orderID uuid.UUID, status OrderStatus) error {
	return detailed(ErrOrderNotReceivable, fmt.Sprintf("order %s has status %s and cannot receive goods", orderID, status)).
		WithDetail("order_id", orderID.String()).
		WithDetail("order_status", string(status))
}

func newInvalidTransition(receptionID uuid.UUID, from ReceptionStatus, action string) error {
	return detailed(ErrInvalidStateTransition, fmt.Sprintf("cannot %s reception in status %s", action, from)).
		WithDetail("reception_id", receptionID.String()).
		WithDetail("reception_status", string(from))
}

func newInvalidEnum(field, value string) error {
	return detailed(ErrInvalidEnumValue, fmt.Sprintf("invalid %s: %q", field, value)).
		WithDetail("field", field).
		WithDetail("value", value)
}
