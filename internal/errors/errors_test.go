package errors

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestAPIErrorUnwrap(t *testing.T) {
	tests := []struct {
		name       string
		err        *APIError
		sentinel   error
		wantStatus int
	}{
		{"not found", NotFound("trip"), ErrNotFound, http.StatusNotFound},
		{"invalid role", InvalidRole("trip is not a passenger trip"), ErrInvalidRole, http.StatusUnprocessableEntity},
		{"invalid state", InvalidState("trip is not open"), ErrInvalidState, http.StatusConflict},
		{"already booked", AlreadyBooked(), ErrAlreadyBooked, http.StatusConflict},
		{"already confirmed", AlreadyConfirmed(), ErrAlreadyConfirmed, http.StatusConflict},
		{"already cancelled", AlreadyCancelled(), ErrAlreadyCancelled, http.StatusOK},
		{"capacity", CapacityExceeded(), ErrCapacityExceeded, http.StatusConflict},
		{"conflict", StateConflict("lost race"), ErrStateConflict, http.StatusConflict},
		{"unavailable", Unavailable(context.DeadlineExceeded), ErrUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.sentinel)
			}
			if tt.err.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", tt.err.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestUnavailableKeepsCause(t *testing.T) {
	err := Unavailable(context.DeadlineExceeded)
	if !IsUnavailable(err) {
		t.Fatal("expected IsUnavailable to be true")
	}
	if err.Message == context.DeadlineExceeded.Error() {
		t.Error("cause must not leak into the client message")
	}
	if IsUnavailable(CapacityExceeded()) {
		t.Error("capacity errors are not transient")
	}
}
