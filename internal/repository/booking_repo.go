package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	GetByPair(ctx context.Context, passengerTripID, driverTripID string) (*models.Booking, error)
	GetConfirmedForPassenger(ctx context.Context, passengerTripID string) (*models.Booking, error)
	ListByTrip(ctx context.Context, tripID string) ([]*models.Booking, error)
	// MarkConfirmed flips confirmed false -> true. It returns false if the booking is gone
	// or already confirmed.
	MarkConfirmed(ctx context.Context, id string, at time.Time) (bool, error)
	// Delete removes the booking only if its confirmed flag still equals expectConfirmed.
	Delete(ctx context.Context, id string, expectConfirmed bool) (bool, error)
}

type bookingRepository struct {
	db sqlx.ExtContext
}

func NewBookingRepository(db *sqlx.DB) BookingRepository {
	return &bookingRepository{db: db}
}

func (r *bookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.New().String()
	}
	booking.CreatedAt = time.Now().UTC()
	booking.Confirmed = false
	booking.ConfirmedAt = nil

	query := `
		INSERT INTO bookings (id, passenger_trip_id, driver_trip_id, confirmed, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		booking.ID, booking.PassengerTripID, booking.DriverTripID, booking.Confirmed, booking.CreatedAt)
	if uniqueViolation(err, bookingPairConstraint) {
		return ErrDuplicateBooking
	}
	return err
}

func (r *bookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	return r.getOne(ctx, `SELECT * FROM bookings WHERE id = $1`, id)
}

func (r *bookingRepository) GetByPair(ctx context.Context, passengerTripID, driverTripID string) (*models.Booking, error) {
	return r.getOne(ctx,
		`SELECT * FROM bookings WHERE passenger_trip_id = $1 AND driver_trip_id = $2`,
		passengerTripID, driverTripID)
}

func (r *bookingRepository) GetConfirmedForPassenger(ctx context.Context, passengerTripID string) (*models.Booking, error) {
	return r.getOne(ctx,
		`SELECT * FROM bookings WHERE passenger_trip_id = $1 AND confirmed = TRUE`,
		passengerTripID)
}

func (r *bookingRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.Booking, error) {
	var booking models.Booking
	err := sqlx.GetContext(ctx, r.db, &booking, query, args...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) ListByTrip(ctx context.Context, tripID string) ([]*models.Booking, error) {
	var bookings []*models.Booking
	query := `
		SELECT * FROM bookings
		WHERE passenger_trip_id = $1 OR driver_trip_id = $1
		ORDER BY created_at ASC, id ASC
	`
	err := sqlx.SelectContext(ctx, r.db, &bookings, query, tripID)
	return bookings, err
}

func (r *bookingRepository) MarkConfirmed(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE bookings
		SET confirmed = TRUE, confirmed_at = $2
		WHERE id = $1 AND confirmed = FALSE
	`
	result, err := r.db.ExecContext(ctx, query, id, at)
	if uniqueViolation(err, bookingConfirmedConstraint) {
		return false, ErrPassengerConfirmed
	}
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *bookingRepository) Delete(ctx context.Context, id string, expectConfirmed bool) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1 AND confirmed = $2`, id, expectConfirmed)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}
