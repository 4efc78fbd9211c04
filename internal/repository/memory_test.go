package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDriverTrip(t *testing.T, store Store, seats int) *models.Trip {
	t.Helper()
	vt := models.VehicleCar
	trip := &models.Trip{
		OwnerID:       "driver-owner",
		Role:          models.TripRoleDriver,
		OriginLat:     -1.95,
		OriginLng:     30.06,
		DestLat:       -1.97,
		DestLng:       30.10,
		ScheduledTime: time.Now().Add(10 * time.Minute),
		VehicleType:   &vt,
		SeatsTotal:    seats,
	}
	require.NoError(t, store.Trips().Create(context.Background(), trip))
	return trip
}

func TestMemoryStore_IncrementSeatsBookedNeverExceedsCapacity(t *testing.T) {
	store := NewMemoryStore()
	trip := newDriverTrip(t, store, 3)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Trips().IncrementSeatsBooked(context.Background(), trip.ID, 1)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, err := store.Trips().GetByID(context.Background(), trip.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, successes)
	assert.Equal(t, 3, got.SeatsBooked)

	ok, err := store.Trips().IncrementSeatsBooked(context.Background(), trip.ID, -4)
	require.NoError(t, err)
	assert.False(t, ok, "seats_booked must not go negative")
}

func TestMemoryStore_UpdateStatusCompareAndSwap(t *testing.T) {
	store := NewMemoryStore()
	trip := newDriverTrip(t, store, 1)
	ctx := context.Background()

	ok, err := store.Trips().UpdateStatus(ctx, trip.ID, models.TripStatusOpen, models.TripStatusMatched)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Trips().UpdateStatus(ctx, trip.ID, models.TripStatusOpen, models.TripStatusCancelled)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.Trips().GetByID(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TripStatusMatched, got.Status)
	assert.Equal(t, 1, got.StatusVersion)

	ok, err = store.Trips().IncrementSeatsBooked(ctx, trip.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok, "matched trips take no new seats")
}

func TestMemoryStore_WithinTxRollsBack(t *testing.T) {
	store := NewMemoryStore()
	trip := newDriverTrip(t, store, 2)
	ctx := context.Background()
	errAbort := errors.New("abort")

	err := store.WithinTx(ctx, func(ctx context.Context, trips TripRepository, bookings BookingRepository) error {
		ok, err := trips.IncrementSeatsBooked(ctx, trip.ID, 1)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, bookings.Create(ctx, &models.Booking{PassengerTripID: "p-1", DriverTripID: trip.ID}))
		return errAbort
	})
	assert.ErrorIs(t, err, errAbort)

	got, err := store.Trips().GetByID(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.SeatsBooked)

	b, err := store.Bookings().GetByPair(ctx, "p-1", trip.ID)
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestMemoryStore_BookingConstraints(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := &models.Booking{PassengerTripID: "p-1", DriverTripID: "d-1"}
	second := &models.Booking{PassengerTripID: "p-1", DriverTripID: "d-2"}
	require.NoError(t, store.Bookings().Create(ctx, first))
	require.NoError(t, store.Bookings().Create(ctx, second))

	err := store.Bookings().Create(ctx, &models.Booking{PassengerTripID: "p-1", DriverTripID: "d-1"})
	assert.ErrorIs(t, err, ErrDuplicateBooking)

	ok, err := store.Bookings().MarkConfirmed(ctx, first.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Bookings().MarkConfirmed(ctx, first.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Bookings().MarkConfirmed(ctx, second.ID, time.Now())
	assert.ErrorIs(t, err, ErrPassengerConfirmed)

	ok, err = store.Bookings().Delete(ctx, first.ID, false)
	require.NoError(t, err)
	assert.False(t, ok, "delete must respect the expected confirmed flag")

	ok, err = store.Bookings().Delete(ctx, first.ID, true)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStore_FindCandidates(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	near := newDriverTrip(t, store, 2)
	full := newDriverTrip(t, store, 1)
	ok, err := store.Trips().IncrementSeatsBooked(ctx, full.ID, 1)
	require.NoError(t, err)
	require.True(t, ok)

	moto := models.VehicleMoto
	far := &models.Trip{
		OwnerID: "other", Role: models.TripRoleDriver, OriginLat: -2.5, OriginLng: 29.7,
		ScheduledTime: time.Now(), VehicleType: &moto, SeatsTotal: 1,
	}
	require.NoError(t, store.Trips().Create(ctx, far))

	now := time.Now()
	trips, err := store.Trips().FindCandidates(ctx, models.CandidateQuery{
		Role: models.TripRoleDriver, Status: models.TripStatusOpen,
		WindowStart: now.Add(-time.Hour), WindowEnd: now.Add(time.Hour),
		MinLat: -2.0, MaxLat: -1.9, MinLng: 30.0, MaxLng: 30.1,
	})
	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.Equal(t, near.ID, trips[0].ID)
}

func TestMemoryStore_FindCandidatesLimitKeepsNearest(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	vt := models.VehicleCar
	start := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Trips().Create(ctx, &models.Trip{
			OwnerID: "early", Role: models.TripRoleDriver, OriginLat: -1.9041, OriginLng: 30.0619,
			ScheduledTime: start.Add(time.Duration(i) * time.Minute), VehicleType: &vt, SeatsTotal: 1,
		}))
	}
	exact := &models.Trip{
		OwnerID: "exact", Role: models.TripRoleDriver, OriginLat: -1.9441, OriginLng: 30.0619,
		ScheduledTime: start.Add(30 * time.Minute), VehicleType: &vt, SeatsTotal: 1,
	}
	require.NoError(t, store.Trips().Create(ctx, exact))

	trips, err := store.Trips().FindCandidates(ctx, models.CandidateQuery{
		Role: models.TripRoleDriver, Status: models.TripStatusOpen,
		WindowStart: start.Add(-time.Hour), WindowEnd: start.Add(time.Hour),
		MinLat: -2.0, MaxLat: -1.9, MinLng: 30.0, MaxLng: 30.1,
		OriginLat: -1.9441, OriginLng: 30.0619,
		Limit: 3,
	})
	require.NoError(t, err)
	require.Len(t, trips, 3)
	assert.Equal(t, exact.ID, trips[0].ID)
}

func TestMemoryStore_RespectsContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := store.Trips().GetByID(ctx, "any")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, IsTransient(err))
}
