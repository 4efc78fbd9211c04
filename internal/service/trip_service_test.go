package service

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/errors"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/events"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/models"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTrip_Validation(t *testing.T) {
	moto := models.VehicleMoto
	boat := models.VehicleType("boat")

	tests := []struct {
		name    string
		req     models.CreateTripRequest
		wantErr error
	}{
		{
			name: "driver trip",
			req: models.CreateTripRequest{OwnerID: "u", Role: models.TripRoleDriver, ScheduledTime: baseTime,
				VehicleType: &moto, SeatsTotal: 1},
		},
		{
			name: "passenger trip",
			req:  models.CreateTripRequest{OwnerID: "u", Role: models.TripRolePassenger, ScheduledTime: baseTime},
		},
		{
			name:    "unknown role",
			req:     models.CreateTripRequest{OwnerID: "u", Role: "pilot", ScheduledTime: baseTime},
			wantErr: apperrors.ErrInvalidRole,
		},
		{
			name:    "driver without vehicle",
			req:     models.CreateTripRequest{OwnerID: "u", Role: models.TripRoleDriver, ScheduledTime: baseTime, SeatsTotal: 2},
			wantErr: apperrors.ErrBadRequest,
		},
		{
			name:    "driver without seats",
			req:     models.CreateTripRequest{OwnerID: "u", Role: models.TripRoleDriver, ScheduledTime: baseTime, VehicleType: &moto},
			wantErr: apperrors.ErrBadRequest,
		},
		{
			name: "unknown vehicle",
			req: models.CreateTripRequest{OwnerID: "u", Role: models.TripRoleDriver, ScheduledTime: baseTime,
				VehicleType: &boat, SeatsTotal: 1},
			wantErr: apperrors.ErrBadRequest,
		},
		{
			name:    "missing time",
			req:     models.CreateTripRequest{OwnerID: "u", Role: models.TripRolePassenger},
			wantErr: apperrors.ErrBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			trip, err := env.trips.CreateTrip(context.Background(), &tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, trip.ID)
			assert.Equal(t, models.TripStatusOpen, trip.Status)
			assert.Equal(t, 0, trip.SeatsBooked)
			assert.GreaterOrEqual(t, trip.SeatsTotal, 1)
		})
	}
}

func TestListTrips(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.passengerTrip(t, "passenger-1", -1.9441, 30.0619, baseTime)
	env.passengerTrip(t, "passenger-1", -1.9441, 30.0619, baseTime.Add(time.Hour))
	env.passengerTrip(t, "passenger-2", -1.9441, 30.0619, baseTime)

	trips, err := env.trips.ListTrips(ctx, "passenger-1", 0)
	require.NoError(t, err)
	require.Len(t, trips, 2)
	assert.True(t, trips[0].ScheduledTime.After(trips[1].ScheduledTime), "newest first")

	none, err := env.trips.ListTrips(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestCancelTrip_DriverReleasesPassengers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	driver := env.driverTrip(t, "driver-1", -1.95, 30.06, baseTime, 2, models.VehicleCar)
	confirmed := env.passengerTrip(t, "passenger-1", -1.9441, 30.0619, baseTime)
	proposed := env.passengerTrip(t, "passenger-2", -1.9441, 30.0619, baseTime)

	b1, _, err := env.bookings.CreateBooking(ctx, confirmed.ID, driver.ID)
	require.NoError(t, err)
	require.NoError(t, env.bookings.ConfirmBooking(ctx, b1.ID))
	_, _, err = env.bookings.CreateBooking(ctx, proposed.ID, driver.ID)
	require.NoError(t, err)

	_, err = env.trips.CancelTrip(ctx, driver.ID, "passenger-1")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	cancelled, err := env.trips.CancelTrip(ctx, driver.ID, "driver-1")
	require.NoError(t, err)
	assert.Equal(t, models.TripStatusCancelled, cancelled.Status)
	assert.Equal(t, 0, cancelled.SeatsBooked)

	assert.Equal(t, models.TripStatusOpen, env.reload(t, confirmed.ID).Status)
	assert.Equal(t, models.TripStatusOpen, env.reload(t, proposed.ID).Status)

	bookings, err := env.bookings.ListBookingsForTrip(ctx, driver.ID)
	require.NoError(t, err)
	assert.Empty(t, bookings)

	_, err = env.trips.CancelTrip(ctx, driver.ID, "driver-1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	env.announcer.Wait()
	assert.ElementsMatch(t, []string{"passenger-1", "passenger-2"}, env.dispatcher.recipients(notify.TripCancelled))
	assert.Len(t, env.publisher.ofType(events.BookingCancelled), 2)
}

func TestCancelTrip_PassengerFreesSeat(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	driver := env.driverTrip(t, "driver-1", -1.95, 30.06, baseTime, 1, models.VehicleMoto)
	passenger := env.passengerTrip(t, "passenger-1", -1.9441, 30.0619, baseTime)

	b, _, err := env.bookings.CreateBooking(ctx, passenger.ID, driver.ID)
	require.NoError(t, err)
	require.NoError(t, env.bookings.ConfirmBooking(ctx, b.ID))
	require.Equal(t, models.TripStatusMatched, env.reload(t, driver.ID).Status)

	_, err = env.trips.CancelTrip(ctx, passenger.ID, "passenger-1")
	require.NoError(t, err)

	d := env.reload(t, driver.ID)
	assert.Equal(t, 0, d.SeatsBooked)
	assert.Equal(t, models.TripStatusOpen, d.Status)
	assert.Equal(t, models.TripStatusCancelled, env.reload(t, passenger.ID).Status)
}

func TestCancelTrip_DriverSeatCountMismatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	driver := env.driverTrip(t, "driver-1", -1.95, 30.06, baseTime, 2, models.VehicleCar)
	passenger := env.passengerTrip(t, "passenger-1", -1.9441, 30.0619, baseTime)

	// confirmed booking whose seat was never counted on the driver trip
	b, _, err := env.bookings.CreateBooking(ctx, passenger.ID, driver.ID)
	require.NoError(t, err)
	ok, err := env.store.Bookings().MarkConfirmed(ctx, b.ID, time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	_, err = env.trips.CancelTrip(ctx, driver.ID, "driver-1")
	assert.ErrorIs(t, err, apperrors.ErrStateConflict)

	assert.Equal(t, models.TripStatusOpen, env.reload(t, driver.ID).Status)
	kept, err := env.bookings.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, kept.Confirmed)
}

func TestCompleteTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	driver := env.driverTrip(t, "driver-1", -1.95, 30.06, baseTime, 1, models.VehicleMoto)
	passenger := env.passengerTrip(t, "passenger-1", -1.9441, 30.0619, baseTime)

	_, err := env.trips.CompleteTrip(ctx, driver.ID, "driver-1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition, "open trips cannot complete")

	b, _, err := env.bookings.CreateBooking(ctx, passenger.ID, driver.ID)
	require.NoError(t, err)
	require.NoError(t, env.bookings.ConfirmBooking(ctx, b.ID))

	_, err = env.trips.CompleteTrip(ctx, driver.ID, "someone-else")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	done, err := env.trips.CompleteTrip(ctx, driver.ID, "driver-1")
	require.NoError(t, err)
	assert.Equal(t, models.TripStatusCompleted, done.Status)
	assert.Equal(t, 2, done.StatusVersion)

	_, err = env.bookings.CancelBooking(ctx, b.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState, "bookings of completed trips stay")
}
