package dto

import (
	"net/http"

	"github.com/khata/backend/internal/domain/ledger"
)

// Ledger error codes. They match the domain taxonomy so clients see the same
// code the engine raised.
const (
	ErrCodeValidation        = ledger.CodeValidation
	ErrCodeNotFound          = ledger.CodeNotFound
	ErrCodeConflict          = ledger.CodeConflict
	ErrCodeNoPendingDebt     = ledger.CodeNoPendingDebt
	ErrCodePartialAllocation = ledger.CodePartialAllocation
)

// Transport error codes
const (
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeUnavailable     = "SERVICE_UNAVAILABLE"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeValidation:        http.StatusBadRequest,
	ErrCodeNotFound:          http.StatusNotFound,
	ErrCodeConflict:          http.StatusConflict,
	ErrCodeNoPendingDebt:     http.StatusUnprocessableEntity,
	ErrCodePartialAllocation: http.StatusConflict,

	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeUnavailable:     http.StatusServiceUnavailable,
	ErrCodeInternal:        http.StatusInternalServerError,
}

// GetHTTPStatus returns the status for code, or 500 for unknown codes
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// sharedErrorCodeMapping folds the generic shared-kernel codes into the
// ledger taxonomy
var sharedErrorCodeMapping = map[string]string{
	"INVALID_INPUT": ErrCodeValidation,
	"INVALID_STATE": ErrCodeValidation,
}

// NormalizeErrorCode converts a shared-kernel code to its ledger equivalent.
// Other codes are returned unchanged.
func NormalizeErrorCode(code string) string {
	if mapped, ok := sharedErrorCodeMapping[code]; ok {
		return mapped
	}
	return code
}
