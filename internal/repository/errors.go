package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/lib/pq"
)

var (
	// ErrDuplicateBooking is returned when a booking for the same trip pair already exists.
	ErrDuplicateBooking = errors.New("booking for this trip pair already exists")
	// ErrPassengerConfirmed is returned when a passenger trip would get a second confirmed booking.
	ErrPassengerConfirmed = errors.New("passenger trip already has a confirmed booking")
)

const (
	bookingPairConstraint      = "bookings_pair_key"
	bookingConfirmedConstraint = "bookings_one_confirmed_per_passenger"
)

// IsTransient reports whether err means the store could not be reached or timed out.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57":
			// connection exception, insufficient resources, operator intervention
			return true
		}
	}
	return false
}

// IsSerializationFailure reports whether the store aborted the transaction because of a
// concurrent one (serialization failure or deadlock).
func IsSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

func uniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" && pqErr.Constraint == constraint
	}
	return false
}
