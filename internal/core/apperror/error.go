// Package apperror provides structured errors rendered as RFC 7807-style problem details.
// Every business failure surfaced by the billing core is an *AppError.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes.
const (
	// Infrastructure (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"

	// Input (400)
	CodeValidation    = "VALIDATION_ERROR"
	CodeInvalidPeriod = "INVALID_PERIOD"

	// Business rules (422)
	CodeInvalidClient = "INVALID_CLIENT"
	CodePeriodClosed  = "PERIOD_CLOSED"

	// Authorization (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeDuplicateBill = "DUPLICATE_BILL"
	CodeAlreadyPaid   = "ALREADY_PAID"
	CodeBillNotPaid   = "BILL_NOT_PAID"
	CodeIdempotency   = "IDEMPOTENCY_CONFLICT"
)

// AppError is the standard error type of the service.
type AppError struct {
	// Code is a machine-readable identifier.
	Code string `json:"code"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// Details carries extra context (client id, period, field errors).
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested response status.
	HTTPStatus int `json:"-"`

	// Err is the underlying cause, never serialized.
	Err error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to Details.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error.
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factories ---

// NewValidation creates a validation error (400).
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidPeriod is returned for a month outside 1..12 or an implausible year (400).
func NewInvalidPeriod(month, year int) *AppError {
	return &AppError{
		Code:       CodeInvalidPeriod,
		Message:    fmt.Sprintf("invalid billing period %d/%d", month, year),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"month": month, "year": year},
	}
}

// NewInvalidClient is returned when a client is missing or inactive (422).
func NewInvalidClient(clientID string) *AppError {
	return &AppError{
		Code:       CodeInvalidClient,
		Message:    "client does not exist or is inactive",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"client_id": clientID},
	}
}

// NewDuplicateBill is returned when the client already has a bill for the period (409).
func NewDuplicateBill(clientID string, period string) *AppError {
	return &AppError{
		Code:       CodeDuplicateBill,
		Message:    fmt.Sprintf("bill for period %s already exists", period),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"client_id": clientID, "period": period},
	}
}

// NewBillNotFound creates a not found error for a bill.
func NewBillNotFound(billID any) *AppError {
	return NewNotFound("bill", billID)
}

// NewAlreadyPaid is returned by markPaid on a paid bill (409).
func NewAlreadyPaid(billID any) *AppError {
	return &AppError{
		Code:       CodeAlreadyPaid,
		Message:    "bill is already paid",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"bill_id": billID},
	}
}

// NewBillNotPaid is returned when reverting a payment on an unpaid bill (409).
func NewBillNotPaid(billID any) *AppError {
	return &AppError{
		Code:       CodeBillNotPaid,
		Message:    "bill is not paid",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"bill_id": billID},
	}
}

// NewNotFound creates a not found error (404).
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewPeriodClosed is returned for delivery writes into an already billed period (422).
func NewPeriodClosed(period string) *AppError {
	return &AppError{
		Code:       CodePeriodClosed,
		Message:    fmt.Sprintf("period %s is already billed", period),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"period": period},
	}
}

// NewInternal hides the cause from clients (500).
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401).
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbidden creates an authorization error (403).
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewIdempotencyConflict is returned when a request with the same key is in flight.
func NewIdempotencyConflict(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Operation already in progress or completed",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// NewIdempotencyMismatch is returned when a key is reused for a different request.
func NewIdempotencyMismatch(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Idempotency key mismatch",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// --- Helpers ---

// AsAppError extracts an *AppError from the chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns the status for any error, 500 for non-AppErrors.
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// HasCode reports whether err is an *AppError with the given code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

func IsNotFound(err error) bool      { return HasCode(err, CodeNotFound) }
func IsDuplicateBill(err error) bool { return HasCode(err, CodeDuplicateBill) }
func IsAlreadyPaid(err error) bool   { return HasCode(err, CodeAlreadyPaid) }
func IsBillNotPaid(err error) bool   { return HasCode(err, CodeBillNotPaid) }
func IsInvalidClient(err error) bool { return HasCode(err, CodeInvalidClient) }
func IsInvalidPeriod(err error) bool { return HasCode(err, CodeInvalidPeriod) }
func IsValidation(err error) bool    { return HasCode(err, CodeValidation) }
