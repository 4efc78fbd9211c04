package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// TxFunc runs against repositories bound to a single transaction.
type TxFunc func(ctx context.Context, trips TripRepository, bookings BookingRepository) error

// Store groups the trip and booking repositories and runs multi-step writes atomically.
// If fn returns an error nothing it wrote is kept.
type Store interface {
	Trips() TripRepository
	Bookings() BookingRepository
	WithinTx(ctx context.Context, fn TxFunc) error
}

type sqlStore struct {
	db       *sqlx.DB
	trips    TripRepository
	bookings BookingRepository
}

func NewStore(db *sqlx.DB) Store {
	return &sqlStore{
		db:       db,
		trips:    NewTripRepository(db),
		bookings: NewBookingRepository(db),
	}
}

func (s *sqlStore) Trips() TripRepository {
	return s.trips
}

func (s *sqlStore) Bookings() BookingRepository {
	return s.bookings
}

func (s *sqlStore) WithinTx(ctx context.Context, fn TxFunc) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(ctx, &tripRepository{db: tx}, &bookingRepository{db: tx}); err != nil {
		return err
	}

	return tx.Commit()
}
