package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors. Services wrap these in *APIError so callers can match with errors.Is.
var (
	ErrNotFound            = errors.New("resource not found")
	ErrBadRequest          = errors.New("bad request")
	ErrForbidden           = errors.New("forbidden")
	ErrInternalServer      = errors.New("internal server error")
	ErrIdempotencyConflict = errors.New("idempotency key conflict")

	// Matching and booking
	ErrInvalidRole       = errors.New("invalid trip role")
	ErrInvalidState      = errors.New("invalid trip or booking state")
	ErrAlreadyBooked     = errors.New("passenger trip already booked")
	ErrAlreadyConfirmed  = errors.New("booking already confirmed")
	ErrAlreadyCancelled  = errors.New("booking already cancelled")
	ErrCapacityExceeded  = errors.New("driver trip is full")
	ErrStateConflict     = errors.New("concurrent state transition")
	ErrUnavailable       = errors.New("store unavailable")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// APIError represents a structured API error
type APIError struct {
	Code       string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewAPIError creates a new API error
func NewAPIError(code, message string, statusCode int) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

func wrap(err error, code, message string, statusCode int) *APIError {
	return &APIError{Code: code, Message: message, StatusCode: statusCode, Err: err}
}

// Common API errors
func NotFound(resource string) *APIError {
	return wrap(ErrNotFound, "not_found", fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func BadRequest(message string) *APIError {
	return wrap(ErrBadRequest, "bad_request", message, http.StatusBadRequest)
}

func Forbidden(message string) *APIError {
	return wrap(ErrForbidden, "forbidden", message, http.StatusForbidden)
}

func InternalError(message string) *APIError {
	return wrap(ErrInternalServer, "internal_error", message, http.StatusInternalServerError)
}

func IdempotencyConflict() *APIError {
	return wrap(ErrIdempotencyConflict, "idempotency_conflict", "idempotency key already used with different request", http.StatusConflict)
}

func InvalidRole(message string) *APIError {
	return wrap(ErrInvalidRole, "invalid_role", message, http.StatusUnprocessableEntity)
}

func InvalidState(message string) *APIError {
	return wrap(ErrInvalidState, "invalid_state", message, http.StatusConflict)
}

func InvalidTransition(from, to string) *APIError {
	return wrap(ErrInvalidTransition, "invalid_transition", fmt.Sprintf("cannot transition from %s to %s", from, to), http.StatusConflict)
}

func AlreadyBooked() *APIError {
	return wrap(ErrAlreadyBooked, "already_booked", "this trip is already booked", http.StatusConflict)
}

func AlreadyConfirmed() *APIError {
	return wrap(ErrAlreadyConfirmed, "already_confirmed", "this booking is already confirmed", http.StatusConflict)
}

func AlreadyCancelled() *APIError {
	return wrap(ErrAlreadyCancelled, "already_cancelled", "this booking was already cancelled", http.StatusOK)
}

func CapacityExceeded() *APIError {
	return wrap(ErrCapacityExceeded, "capacity_exceeded", "this ride is full", http.StatusConflict)
}

func StateConflict(message string) *APIError {
	return wrap(ErrStateConflict, "state_conflict", message, http.StatusConflict)
}

// Unavailable wraps a store failure. The cause is kept for errors.Is but never shown to clients.
func Unavailable(cause error) *APIError {
	return &APIError{
		Code:       "unavailable",
		Message:    "service temporarily unavailable, please retry",
		StatusCode: http.StatusServiceUnavailable,
		Err:        fmt.Errorf("%w: %w", ErrUnavailable, cause),
	}
}

// IsUnavailable reports whether err is a transient store failure worth retrying on read paths.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
