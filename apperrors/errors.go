package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes for the bulk order pipeline
const (
	CodeImportFormat          = "IMPORT_FORMAT_ERROR"
	CodeImportValidation      = "IMPORT_VALIDATION_ERROR"
	CodeValidation            = "VALIDATION_ERROR"
	CodeCreditLimitExceeded   = "CREDIT_LIMIT_EXCEEDED"
	CodeTransactionFailure    = "TRANSACTION_FAILURE"
	CodeReconciliationFailure = "RECONCILIATION_FAILURE"
	CodeNotFound              = "RESOURCE_NOT_FOUND"
	CodeConflict              = "CONFLICT"
	CodeServiceUnavailable    = "SERVICE_UNAVAILABLE"
)

// AppError is the structured error every pipeline stage returns to its caller
type AppError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	Rows       []RowError        `json:"rows,omitempty"`
	Retryable  bool              `json:"retryable"`
	HTTPStatus int               `json:"-"`
	Err        error             `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a single detail to the error
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Wrap attaches an internal cause. The cause is never serialized.
func (e *AppError) Wrap(err error) *AppError {
	e.Err = err
	return e
}

// NewAppError creates a new AppError
func NewAppError(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// RowError describes why a single import row was rejected
type RowError struct {
	RowNumber int    `json:"rowNumber,omitempty"`
	Index     int    `json:"index"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
}

func (r RowError) Error() string {
	return r.Message
}

// ImportFormat reports a missing header, an empty file or an unreadable file
func ImportFormat(message string) *AppError {
	return NewAppError(CodeImportFormat, message, http.StatusBadRequest)
}

// ImportValidation aggregates every rejected row of an all-or-nothing import
func ImportValidation(rows []RowError) *AppError {
	msgs := make([]string, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, r.Message)
	}
	e := NewAppError(CodeImportValidation, "import validation failed: "+strings.Join(msgs, ", "), http.StatusUnprocessableEntity)
	e.Rows = rows
	return e
}

// Validation reports an invalid request
func Validation(message string) *AppError {
	return NewAppError(CodeValidation, message, http.StatusUnprocessableEntity)
}

// CreditLimitExceeded reports an order total above the account's available credit
func CreditLimitExceeded(total, available string) *AppError {
	return NewAppError(CodeCreditLimitExceeded, "order total exceeds available credit limit", http.StatusPaymentRequired).
		WithDetail("total", total).
		WithDetail("availableCredit", available)
}

// TransactionFailure hides the persistence cause behind a generic, retryable message
func TransactionFailure(cause error) *AppError {
	e := NewAppError(CodeTransactionFailure, "the order could not be saved, please retry", http.StatusServiceUnavailable)
	e.Retryable = true
	e.Err = cause
	return e
}

// ReconciliationFailure reports a rolled back stock decrement
func ReconciliationFailure(orderID int64, cause error, retryable bool) *AppError {
	e := NewAppError(CodeReconciliationFailure, fmt.Sprintf("stock reconciliation for order %d failed", orderID), http.StatusServiceUnavailable)
	e.Retryable = retryable
	e.Err = cause
	return e
}

// NotFound creates a not found error
func NotFound(resource string) *AppError {
	return NewAppError(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// Conflict creates a conflict error
func Conflict(message string) *AppError {
	return NewAppError(CodeConflict, message, http.StatusConflict)
}

// ServiceUnavailable reports a missing optional collaborator
func ServiceUnavailable(service string) *AppError {
	return NewAppError(CodeServiceUnavailable, fmt.Sprintf("%s is not configured", service), http.StatusServiceUnavailable)
}

// As extracts an AppError from err
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code
func IsCode(err error, code string) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// IsRetryable reports whether the caller may safely resubmit
func IsRetryable(err error) bool {
	appErr, ok := As(err)
	return ok && appErr.Retryable
}
