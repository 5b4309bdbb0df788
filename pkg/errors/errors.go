package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/agrostock/agrostock-backend/pkg/i18n"
)

// Standard error types
var (
	ErrNotFound           = errors.New("resource not found")
	ErrBadRequest         = errors.New("bad request")
	ErrConflict           = errors.New("resource conflict")
	ErrInternal           = errors.New("internal server error")
	ErrValidation         = errors.New("validation error")
	ErrUnknownItem        = errors.New("unknown item")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidMovement    = errors.New("invalid movement")
	ErrLedgerInconsistent = errors.New("ledger inconsistent")
	ErrUnknownAlert       = errors.New("unknown alert")
	ErrInvalidTransition  = errors.New("invalid alert transition")
	ErrInvalidSettings    = errors.New("invalid settings")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	MessageKey string            `json:"-"` // i18n key for localization
	Params     map[string]string `json:"-"` // Parameters for i18n interpolation
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Localize returns a localized version of the error message
func (e *AppError) Localize(ctx context.Context) string {
	if e.MessageKey == "" {
		return e.Message
	}
	return i18n.TFromContext(ctx, e.MessageKey, e.Params)
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		MessageKey: "errors.not_found",
		Params:     map[string]string{"resource": resource},
		StatusCode: http.StatusNotFound,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		MessageKey: "errors.bad_request",
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		MessageKey: "errors.conflict",
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		MessageKey: "errors.internal",
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		MessageKey: "errors.validation_failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// Inventory domain errors

// UnknownItem is returned when an item ID is not found within the tenant.
func UnknownItem(itemID string) *AppError {
	return &AppError{
		Err:        ErrUnknownItem,
		Code:       "UNKNOWN_ITEM",
		Message:    fmt.Sprintf("item %s not found", itemID),
		MessageKey: "errors.unknown_item",
		Params:     map[string]string{"item_id": itemID},
		StatusCode: http.StatusNotFound,
	}
}

// InsufficientStock is returned when a debit movement would drive the item
// quantity negative.
func InsufficientStock(itemID, available, requested string) *AppError {
	return &AppError{
		Err:        ErrInsufficientStock,
		Code:       "INSUFFICIENT_STOCK",
		Message:    fmt.Sprintf("insufficient stock for item %s: %s available, %s requested", itemID, available, requested),
		MessageKey: "errors.insufficient_stock",
		Params:     map[string]string{"item_id": itemID, "available": available, "requested": requested},
		StatusCode: http.StatusConflict,
	}
}

// InvalidMovement is returned when a movement spec is malformed.
func InvalidMovement(reason string) *AppError {
	return &AppError{
		Err:        ErrInvalidMovement,
		Code:       "INVALID_MOVEMENT",
		Message:    fmt.Sprintf("invalid movement: %s", reason),
		MessageKey: "errors.invalid_movement",
		Params:     map[string]string{"reason": reason},
		StatusCode: http.StatusBadRequest,
	}
}

// LedgerInconsistent is returned when a ledger replay produces negative
// stock, meaning the ledger and the item state disagree.
func LedgerInconsistent(itemID string) *AppError {
	return &AppError{
		Err:        ErrLedgerInconsistent,
		Code:       "LEDGER_INCONSISTENT",
		Message:    fmt.Sprintf("ledger inconsistent for item %s", itemID),
		MessageKey: "errors.ledger_inconsistent",
		Params:     map[string]string{"item_id": itemID},
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// UnknownAlert is returned when an alert ID is not found within the tenant.
func UnknownAlert(alertID string) *AppError {
	return &AppError{
		Err:        ErrUnknownAlert,
		Code:       "UNKNOWN_ALERT",
		Message:    fmt.Sprintf("alert %s not found", alertID),
		MessageKey: "errors.unknown_alert",
		Params:     map[string]string{"alert_id": alertID},
		StatusCode: http.StatusNotFound,
	}
}

// InvalidTransition is returned when an alert state transition is not
// permitted by the lifecycle state machine.
func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Err:        ErrInvalidTransition,
		Code:       "INVALID_TRANSITION",
		Message:    fmt.Sprintf("cannot transition alert from %s to %s", from, to),
		MessageKey: "errors.invalid_transition",
		Params:     map[string]string{"from": from, "to": to},
		StatusCode: http.StatusConflict,
	}
}

// InvalidSettings is returned when a settings patch fails validation.
func InvalidSettings(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrInvalidSettings,
		Code:       "INVALID_SETTINGS",
		Message:    "invalid alert settings",
		MessageKey: "errors.invalid_settings",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
