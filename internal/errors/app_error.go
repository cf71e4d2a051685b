package errors

import (
	"errors"
	"net/http"
)

type AppError struct {
	Code       string
	Message    string
	Detail     string
	StatusCode int
	Err        error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

func (e *AppError) WithDetail(detail string) *AppError {
	e.Detail = detail

	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err

	return e
}

const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeUpstream        = "UPSTREAM_ERROR"
	ErrCodeStockLimit      = "STOCK_LIMIT_EXCEEDED"
	ErrCodeVoucherRejected = "VOUCHER_REJECTED"
	ErrCodeEmptySelection  = "EMPTY_SELECTION"
	ErrCodeTooManyRequests = "TOO_MANY_REQUESTS"
)

func ValidationError(message string) *AppError {
	return NewAppError(ErrCodeValidation, message, http.StatusBadRequest)
}

func BadRequestError(message string) *AppError {
	return NewAppError(ErrCodeBadRequest, message, http.StatusBadRequest)
}

func NotFoundError(message string) *AppError {
	return NewAppError(ErrCodeNotFound, message, http.StatusNotFound)
}

func UnauthorizedError(message string) *AppError {
	return NewAppError(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func ForbiddenError(message string) *AppError {
	return NewAppError(ErrCodeForbidden, message, http.StatusForbidden)
}

func InternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message, http.StatusInternalServerError)
}

// UpstreamError marks a transient failure of the remote commerce API. The
// session self-heals through the trailing reload, so callers surface these as
// a retryable notification, never a blocking screen.
func UpstreamError(message string) *AppError {
	return NewAppError(ErrCodeUpstream, message, http.StatusBadGateway)
}

func StockLimitError(message string) *AppError {
	return NewAppError(ErrCodeStockLimit, message, http.StatusConflict)
}

// VoucherRejectedError carries the upstream rejection reason verbatim
// (invalid, expired, usage limit exceeded).
func VoucherRejectedError(message string) *AppError {
	return NewAppError(ErrCodeVoucherRejected, message, http.StatusUnprocessableEntity)
}

func EmptySelectionError(message string) *AppError {
	return NewAppError(ErrCodeEmptySelection, message, http.StatusBadRequest)
}

func TooManyRequestsError(message string) *AppError {
	return NewAppError(ErrCodeTooManyRequests, message, http.StatusTooManyRequests)
}

func IsAppError(err error) (*AppError, bool) {
	var appError *AppError

	if errors.As(err, &appError) {
		return appError, true
	}

	return nil, false
}

// IsAuthStatus reports whether err is the distinguishable 401/403 class that
// the session treats as "no valid session" rather than a failure.
func IsAuthStatus(err error) bool {
	appErr, ok := IsAppError(err)
	if !ok {
		return false
	}

	return appErr.Code == ErrCodeUnauthorized || appErr.Code == ErrCodeForbidden
}
