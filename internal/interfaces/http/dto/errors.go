package dto

import (
	"net/http"

	appreceiving "github.com/erp/reconciliation/internal/application/receiving"
	"github.com/erp/reconciliation/internal/domain/receiving"
)

// Request-level error codes. Domain errors keep their own codes
// (OVER_RECEIPT, RECEPTION_ALREADY_APPROVED, ...) in responses.
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeValidation is used when request binding fails
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeMissingActor is used when a write arrives without X-Actor-ID
	ErrCodeMissingActor = "ERR_MISSING_ACTOR"
	// ErrCodeNotFound is used for unknown routes
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Application error codes without a reconciliation kind
var (
	CodeStorageUnavailable = appreceiving.ErrDocumentStorageUnavailable.Code
	CodeInvalidDateRange   = appreceiving.ErrInvalidDateRange.Code
	CodeInvalidFileName    = appreceiving.ErrInvalidFileName.Code
	CodeInvalidDocumentRef = appreceiving.ErrInvalidDocumentRef.Code
)

// ErrorCodeHTTPStatus maps codes that are not classified by kind
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeMissingActor:    http.StatusBadRequest,
	ErrCodeNotFound:        http.StatusNotFound,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	CodeStorageUnavailable: http.StatusServiceUnavailable,
	CodeInvalidDateRange:   http.StatusBadRequest,
	CodeInvalidFileName:    http.StatusBadRequest,
	CodeInvalidDocumentRef: http.StatusBadRequest,
}

// KindHTTPStatus maps reconciliation error kinds to HTTP status codes.
// A concurrency conflict only reaches the client once service retries are exhausted.
var KindHTTPStatus = map[receiving.ErrorKind]int{
	receiving.KindNotFound:      http.StatusNotFound,
	receiving.KindValidation:    http.StatusUnprocessableEntity,
	receiving.KindStateConflict: http.StatusConflict,
	receiving.KindConcurrency:   http.StatusConflict,
	receiving.KindInternal:      http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status for an error code.
// Domain codes resolve through their kind; anything unknown is 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	if kind, ok := receiving.KindOfCode(code); ok {
		return KindHTTPStatus[kind]
	}
	return http.StatusInternalServerError
}
