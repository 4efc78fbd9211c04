package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/geo"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type TripRepository interface {
	Create(ctx context.Context, trip *models.Trip) error
	GetByID(ctx context.Context, id string) (*models.Trip, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]*models.Trip, error)
	FindCandidates(ctx context.Context, q models.CandidateQuery) ([]*models.Trip, error)
	// UpdateStatus moves the trip from expected to next. It returns false when the stored
	// status is not expected.
	UpdateStatus(ctx context.Context, id string, expected, next models.TripStatus) (bool, error)
	// IncrementSeatsBooked adds delta to seats_booked of a driver trip in one conditional
	// update. It returns false when the result would leave [0, seats_total] or, for a
	// positive delta, when the trip is no longer open.
	IncrementSeatsBooked(ctx context.Context, id string, delta int) (bool, error)
}

type tripRepository struct {
	db sqlx.ExtContext
}

func NewTripRepository(db *sqlx.DB) TripRepository {
	return &tripRepository{db: db}
}

func (r *tripRepository) Create(ctx context.Context, trip *models.Trip) error {
	if trip.ID == "" {
		trip.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	trip.CreatedAt = now
	trip.UpdatedAt = now
	trip.Status = models.TripStatusOpen
	trip.StatusVersion = 0
	trip.SeatsBooked = 0
	trip.OriginGeohash = geo.Encode(geo.Point{Lat: trip.OriginLat, Lng: trip.OriginLng})

	query := `
		INSERT INTO trips (id, owner_id, role, origin_lat, origin_lng, origin_label, origin_geohash,
			dest_lat, dest_lng, dest_label, scheduled_time, vehicle_type, seats_total, seats_booked,
			fare, negotiable, status, status_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	_, err := r.db.ExecContext(ctx, query,
		trip.ID, trip.OwnerID, trip.Role, trip.OriginLat, trip.OriginLng, trip.OriginLabel, trip.OriginGeohash,
		trip.DestLat, trip.DestLng, trip.DestLabel, trip.ScheduledTime, trip.VehicleType, trip.SeatsTotal, trip.SeatsBooked,
		trip.Fare, trip.Negotiable, trip.Status, trip.StatusVersion, trip.CreatedAt, trip.UpdatedAt)
	return err
}

func (r *tripRepository) GetByID(ctx context.Context, id string) (*models.Trip, error) {
	var trip models.Trip
	query := `SELECT * FROM trips WHERE id = $1`
	err := sqlx.GetContext(ctx, r.db, &trip, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trip, nil
}

func (r *tripRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*models.Trip, error) {
	var trips []*models.Trip
	query := `
		SELECT * FROM trips
		WHERE owner_id = $1
		ORDER BY scheduled_time DESC
		LIMIT $2
	`
	err := sqlx.SelectContext(ctx, r.db, &trips, query, ownerID, limit)
	return trips, err
}

func (r *tripRepository) FindCandidates(ctx context.Context, q models.CandidateQuery) ([]*models.Trip, error) {
	var sb strings.Builder
	args := []interface{}{q.Role, q.Status, q.WindowStart, q.WindowEnd, q.MinLat, q.MaxLat, q.MinLng, q.MaxLng}

	sb.WriteString(`
		SELECT * FROM trips
		WHERE role = $1 AND status = $2
			AND scheduled_time BETWEEN $3 AND $4
			AND origin_lat BETWEEN $5 AND $6
			AND origin_lng BETWEEN $7 AND $8
			AND seats_booked < seats_total`)

	// geohash prefixes let the planner use the origin_geohash index before the range checks
	box := geo.Box{MinLat: q.MinLat, MaxLat: q.MaxLat, MinLng: q.MinLng, MaxLng: q.MaxLng}
	if cells, precision := geo.CoverCells(box); len(cells) > 0 {
		args = append(args, precision, pq.Array(cells))
		fmt.Fprintf(&sb, "\n\t\t\tAND left(origin_geohash, $%d) = ANY($%d)", len(args)-1, len(args))
	}

	if len(q.VehicleTypes) > 0 {
		vehicleTypes := make([]string, 0, len(q.VehicleTypes))
		for _, vt := range q.VehicleTypes {
			vehicleTypes = append(vehicleTypes, string(vt))
		}
		args = append(args, pq.Array(vehicleTypes))
		fmt.Fprintf(&sb, "\n\t\t\tAND vehicle_type = ANY($%d)", len(args))
	}

	if q.Limit > 0 {
		// equirectangular distance is enough to rank nearby origins before the cut
		args = append(args, q.OriginLat, q.OriginLng, math.Cos(q.OriginLat*math.Pi/180), q.Limit)
		n := len(args)
		fmt.Fprintf(&sb, "\n\t\tORDER BY power(origin_lat - $%d, 2) + power((origin_lng - $%d) * $%d, 2), scheduled_time, id", n-3, n-2, n-1)
		fmt.Fprintf(&sb, "\n\t\tLIMIT $%d", n)
	} else {
		sb.WriteString("\n\t\tORDER BY scheduled_time, id")
	}

	var trips []*models.Trip
	err := sqlx.SelectContext(ctx, r.db, &trips, sb.String(), args...)
	return trips, err
}

func (r *tripRepository) UpdateStatus(ctx context.Context, id string, expected, next models.TripStatus) (bool, error) {
	query := `
		UPDATE trips
		SET status = $3, status_version = status_version + 1, updated_at = $4
		WHERE id = $1 AND status = $2
	`
	result, err := r.db.ExecContext(ctx, query, id, expected, next, time.Now().UTC())
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *tripRepository) IncrementSeatsBooked(ctx context.Context, id string, delta int) (bool, error) {
	query := `
		UPDATE trips
		SET seats_booked = seats_booked + $2, updated_at = $3
		WHERE id = $1 AND role = $4
			AND seats_booked + $2 BETWEEN 0 AND seats_total
			AND ($2 < 0 OR status = $5)
	`
	result, err := r.db.ExecContext(ctx, query, id, delta, time.Now().UTC(), models.TripRoleDriver, models.TripStatusOpen)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}
