package service

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/errors"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/events"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/logger"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/metrics"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/models"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/notify"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/repository"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"
)

// errGone aborts a cancellation whose booking disappeared under it.
var errGone = errors.New("booking removed concurrently")

type BookingService interface {
	// CreateBooking proposes a booking. created is false when the pair was already proposed
	// and the existing booking is returned.
	CreateBooking(ctx context.Context, passengerTripID, driverTripID string) (booking *models.Booking, created bool, err error)
	ConfirmBooking(ctx context.Context, bookingID string) error
	CancelBooking(ctx context.Context, bookingID string) (models.CancelOutcome, error)
	GetBooking(ctx context.Context, bookingID string) (*models.Booking, error)
	ListBookingsForTrip(ctx context.Context, tripID string) ([]*models.Booking, error)
}

type bookingService struct {
	store        repository.Store
	announcer    *Announcer
	storeTimeout time.Duration
	log          logrus.FieldLogger
}

func NewBookingService(store repository.Store, announcer *Announcer, storeTimeout time.Duration, log logrus.FieldLogger) BookingService {
	return &bookingService{
		store:        store,
		announcer:    announcer,
		storeTimeout: storeTimeout,
		log:          log,
	}
}

func (s *bookingService) CreateBooking(ctx context.Context, passengerTripID, driverTripID string) (booking *models.Booking, created bool, err error) {
	defer newrelic.FromContext(ctx).StartSegment("BookingService/CreateBooking").End()
	defer func() { metrics.BookingOperations.WithLabelValues("create", outcome(err)).Inc() }()

	if passengerTripID == "" || driverTripID == "" {
		return nil, false, apperrors.BadRequest("passenger_trip_id and driver_trip_id are required")
	}
	if passengerTripID == driverTripID {
		return nil, false, apperrors.BadRequest("a trip cannot be booked against itself")
	}

	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	var driver *models.Trip
	err = s.store.WithinTx(ctx, func(ctx context.Context, trips repository.TripRepository, bookings repository.BookingRepository) error {
		passenger, err := trips.GetByID(ctx, passengerTripID)
		if err != nil {
			return err
		}
		if passenger == nil {
			return apperrors.NotFound("passenger trip")
		}
		driver, err = trips.GetByID(ctx, driverTripID)
		if err != nil {
			return err
		}
		if driver == nil {
			return apperrors.NotFound("driver trip")
		}

		if passenger.Role != models.TripRolePassenger {
			return apperrors.InvalidRole("passenger_trip_id must reference a passenger trip")
		}
		if driver.Role != models.TripRoleDriver {
			return apperrors.InvalidRole("driver_trip_id must reference a driver trip")
		}
		if passenger.OwnerID == driver.OwnerID {
			return apperrors.BadRequest("you cannot book your own trip")
		}

		confirmed, err := bookings.GetConfirmedForPassenger(ctx, passenger.ID)
		if err != nil {
			return err
		}
		if confirmed != nil {
			return apperrors.AlreadyBooked()
		}

		if passenger.Status != models.TripStatusOpen {
			return apperrors.InvalidState("passenger trip is " + string(passenger.Status))
		}
		if driver.Status != models.TripStatusOpen {
			return apperrors.InvalidState("driver trip is " + string(driver.Status))
		}

		existing, err := bookings.GetByPair(ctx, passenger.ID, driver.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			booking = existing
			return nil
		}

		booking = &models.Booking{PassengerTripID: passenger.ID, DriverTripID: driver.ID}
		if err := bookings.Create(ctx, booking); err != nil {
			return err
		}
		created = true
		return nil
	})

	if errors.Is(err, repository.ErrDuplicateBooking) {
		// a concurrent request proposed the same pair first
		existing, getErr := s.store.Bookings().GetByPair(ctx, passengerTripID, driverTripID)
		if getErr != nil {
			return nil, false, storeError(getErr)
		}
		if existing == nil {
			return nil, false, apperrors.StateConflict("the booking changed while this request was processed, please retry")
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, storeError(err)
	}

	if created {
		logger.FromContext(ctx, s.log).WithFields(logrus.Fields{
			"booking_id":        booking.ID,
			"passenger_trip_id": booking.PassengerTripID,
			"driver_trip_id":    booking.DriverTripID,
		}).Info("booking proposed")

		s.announcer.Publish(bookingEvent(events.BookingCreated, booking))
		s.announcer.Notify(notify.BookingRequested, bookingPayload(booking), driver.OwnerID)
	}
	return booking, created, nil
}

func (s *bookingService) ConfirmBooking(ctx context.Context, bookingID string) (err error) {
	defer newrelic.FromContext(ctx).StartSegment("BookingService/ConfirmBooking").End()
	defer func() { metrics.BookingOperations.WithLabelValues("confirm", outcome(err)).Inc() }()

	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	var (
		booking           *models.Booking
		driver, passenger *models.Trip
		changes           []events.Event
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, trips repository.TripRepository, bookings repository.BookingRepository) error {
		changes = changes[:0]

		b, err := bookings.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if b == nil {
			return apperrors.NotFound("booking")
		}
		if b.Confirmed {
			return apperrors.AlreadyConfirmed()
		}

		now := time.Now().UTC()
		ok, err := bookings.MarkConfirmed(ctx, b.ID, now)
		if errors.Is(err, repository.ErrPassengerConfirmed) {
			return apperrors.AlreadyBooked()
		}
		if err != nil {
			return err
		}
		if !ok {
			current, err := bookings.GetByID(ctx, b.ID)
			if err != nil {
				return err
			}
			if current == nil {
				return apperrors.NotFound("booking")
			}
			return apperrors.StateConflict("the booking was confirmed by another request")
		}
		b.Confirmed = true
		b.ConfirmedAt = &now
		booking = b

		// capacity is enforced here and nowhere else
		ok, err = trips.IncrementSeatsBooked(ctx, b.DriverTripID, 1)
		if err != nil {
			return err
		}
		driver, err = trips.GetByID(ctx, b.DriverTripID)
		if err != nil {
			return err
		}
		if driver == nil {
			return apperrors.NotFound("driver trip")
		}
		if !ok {
			if driver.Status.Terminal() {
				return apperrors.InvalidState("driver trip is " + string(driver.Status))
			}
			return apperrors.CapacityExceeded()
		}

		if driver.Full() && driver.Status == models.TripStatusOpen {
			ok, err := transition(ctx, trips, driver, models.TripStatusMatched, &changes)
			if err != nil {
				return err
			}
			if !ok {
				return apperrors.StateConflict("the driver trip changed while this request was processed, please retry")
			}
		}

		passenger, err = trips.GetByID(ctx, b.PassengerTripID)
		if err != nil {
			return err
		}
		if passenger == nil {
			return apperrors.NotFound("passenger trip")
		}
		switch passenger.Status {
		case models.TripStatusOpen:
		case models.TripStatusMatched:
			return apperrors.AlreadyBooked()
		default:
			return apperrors.InvalidState("passenger trip is " + string(passenger.Status))
		}
		ok, err = transition(ctx, trips, passenger, models.TripStatusMatched, &changes)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.StateConflict("the passenger trip changed while this request was processed, please retry")
		}
		return nil
	})
	if err != nil {
		return storeError(err)
	}

	logger.FromContext(ctx, s.log).WithFields(logrus.Fields{
		"booking_id":     booking.ID,
		"driver_trip_id": driver.ID,
		"seats_booked":   driver.SeatsBooked,
		"seats_total":    driver.SeatsTotal,
	}).Info("booking confirmed")

	s.announcer.Publish(append([]events.Event{bookingEvent(events.BookingConfirmed, booking)}, changes...)...)
	s.announcer.Notify(notify.BookingConfirmed, bookingPayload(booking), passenger.OwnerID, driver.OwnerID)
	return nil
}

func (s *bookingService) CancelBooking(ctx context.Context, bookingID string) (result models.CancelOutcome, err error) {
	defer newrelic.FromContext(ctx).StartSegment("BookingService/CancelBooking").End()
	defer func() { metrics.BookingOperations.WithLabelValues("cancel", outcome(err)).Inc() }()

	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	var (
		booking           *models.Booking
		driver, passenger *models.Trip
		changes           []events.Event
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, trips repository.TripRepository, bookings repository.BookingRepository) error {
		changes = changes[:0]

		b, err := bookings.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if b == nil {
			return errGone
		}

		ok, err := bookings.Delete(ctx, b.ID, b.Confirmed)
		if err != nil {
			return err
		}
		if !ok {
			current, err := bookings.GetByID(ctx, b.ID)
			if err != nil {
				return err
			}
			if current == nil {
				return errGone
			}
			return apperrors.StateConflict("the booking was confirmed by another request, please retry")
		}
		booking = b

		driver, err = trips.GetByID(ctx, b.DriverTripID)
		if err != nil {
			return err
		}
		passenger, err = trips.GetByID(ctx, b.PassengerTripID)
		if err != nil {
			return err
		}
		if !b.Confirmed {
			return nil
		}

		return releaseSeat(ctx, trips, driver, passenger, &changes)
	})
	if errors.Is(err, errGone) {
		return models.CancelOutcomeAlreadyCancelled, nil
	}
	if err != nil {
		return "", storeError(err)
	}

	logger.FromContext(ctx, s.log).WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"confirmed":  booking.Confirmed,
	}).Info("booking cancelled")

	var owners []string
	if driver != nil {
		owners = append(owners, driver.OwnerID)
	}
	if passenger != nil {
		owners = append(owners, passenger.OwnerID)
	}
	s.announcer.Publish(append([]events.Event{bookingEvent(events.BookingCancelled, booking)}, changes...)...)
	s.announcer.Notify(notify.BookingCancelled, bookingPayload(booking), owners...)
	return models.CancelOutcomeCancelled, nil
}

// releaseSeat undoes the effects of a confirmed booking that has just been removed: the
// driver gets the seat back and both trips that were matched reopen.
func releaseSeat(ctx context.Context, trips repository.TripRepository, driver, passenger *models.Trip, changes *[]events.Event) error {
	if driver != nil {
		if driver.Status == models.TripStatusCompleted {
			return apperrors.InvalidState("driver trip is already completed")
		}
		ok, err := trips.IncrementSeatsBooked(ctx, driver.ID, -1)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.StateConflict("the driver trip changed while this request was processed, please retry")
		}
		current, err := trips.GetByID(ctx, driver.ID)
		if err != nil {
			return err
		}
		*driver = *current

		if driver.Status == models.TripStatusMatched && !driver.Full() {
			ok, err := transition(ctx, trips, driver, models.TripStatusOpen, changes)
			if err != nil {
				return err
			}
			if !ok {
				return apperrors.StateConflict("the driver trip changed while this request was processed, please retry")
			}
		}
	}

	if passenger != nil {
		switch passenger.Status {
		case models.TripStatusCompleted:
			return apperrors.InvalidState("passenger trip is already completed")
		case models.TripStatusMatched:
			ok, err := transition(ctx, trips, passenger, models.TripStatusOpen, changes)
			if err != nil {
				return err
			}
			if !ok {
				return apperrors.StateConflict("the passenger trip changed while this request was processed, please retry")
			}
		}
	}
	return nil
}

func (s *bookingService) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	booking, err := s.store.Bookings().GetByID(ctx, bookingID)
	if err != nil {
		return nil, storeError(err)
	}
	if booking == nil {
		return nil, apperrors.NotFound("booking")
	}
	return booking, nil
}

func (s *bookingService) ListBookingsForTrip(ctx context.Context, tripID string) ([]*models.Booking, error) {
	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	trip, err := s.store.Trips().GetByID(ctx, tripID)
	if err != nil {
		return nil, storeError(err)
	}
	if trip == nil {
		return nil, apperrors.NotFound("trip")
	}

	bookings, err := s.store.Bookings().ListByTrip(ctx, tripID)
	if err != nil {
		return nil, storeError(err)
	}
	if bookings == nil {
		bookings = []*models.Booking{}
	}
	return bookings, nil
}
