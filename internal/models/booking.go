package models

import (
	"time"
)

// Booking links one passenger trip to one driver trip. Confirmed bookings consume a seat.
type Booking struct {
	ID              string     `db:"id" json:"id"`
	PassengerTripID string     `db:"passenger_trip_id" json:"passenger_trip_id"`
	DriverTripID    string     `db:"driver_trip_id" json:"driver_trip_id"`
	Confirmed       bool       `db:"confirmed" json:"confirmed"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	ConfirmedAt     *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
}

type CreateBookingRequest struct {
	PassengerTripID string `json:"passenger_trip_id" validate:"required,uuid"`
	DriverTripID    string `json:"driver_trip_id" validate:"required,uuid,nefield=PassengerTripID"`
}

// CancelOutcome distinguishes a real cancellation from a repeat call.
type CancelOutcome string

const (
	CancelOutcomeCancelled        CancelOutcome = "cancelled"
	CancelOutcomeAlreadyCancelled CancelOutcome = "already_cancelled"
)

type BookingResponse struct {
	ID              string     `json:"id"`
	PassengerTripID string     `json:"passenger_trip_id"`
	DriverTripID    string     `json:"driver_trip_id"`
	State           string     `json:"state"`
	CreatedAt       time.Time  `json:"created_at"`
	ConfirmedAt     *time.Time `json:"confirmed_at,omitempty"`
}

func (b *Booking) State() string {
	if b.Confirmed {
		return "confirmed"
	}
	return "proposed"
}

func (b *Booking) ToResponse() *BookingResponse {
	return &BookingResponse{
		ID:              b.ID,
		PassengerTripID: b.PassengerTripID,
		DriverTripID:    b.DriverTripID,
		State:           b.State(),
		CreatedAt:       b.CreatedAt,
		ConfirmedAt:     b.ConfirmedAt,
	}
}
