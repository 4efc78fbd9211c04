package service

import (
	"context"
	"time"

	apperrors "github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/errors"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/events"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/logger"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/models"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/notify"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/repository"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"
)

const defaultListLimit = 50

type TripService interface {
	CreateTrip(ctx context.Context, req *models.CreateTripRequest) (*models.Trip, error)
	GetTrip(ctx context.Context, tripID string) (*models.Trip, error)
	ListTrips(ctx context.Context, ownerID string, limit int) ([]*models.Trip, error)
	CancelTrip(ctx context.Context, tripID, ownerID string) (*models.Trip, error)
	CompleteTrip(ctx context.Context, tripID, ownerID string) (*models.Trip, error)
}

type tripService struct {
	store        repository.Store
	announcer    *Announcer
	storeTimeout time.Duration
	log          logrus.FieldLogger
}

func NewTripService(store repository.Store, announcer *Announcer, storeTimeout time.Duration, log logrus.FieldLogger) TripService {
	return &tripService{
		store:        store,
		announcer:    announcer,
		storeTimeout: storeTimeout,
		log:          log,
	}
}

func (s *tripService) CreateTrip(ctx context.Context, req *models.CreateTripRequest) (*models.Trip, error) {
	defer newrelic.FromContext(ctx).StartSegment("TripService/CreateTrip").End()

	if !req.Role.Valid() {
		return nil, apperrors.InvalidRole("role must be passenger or driver")
	}
	if req.ScheduledTime.IsZero() {
		return nil, apperrors.BadRequest("scheduled_time is required")
	}
	if req.VehicleType != nil && !req.VehicleType.Valid() {
		return nil, apperrors.BadRequest("unknown vehicle type: " + string(*req.VehicleType))
	}
	if req.SeatsTotal < 0 {
		return nil, apperrors.BadRequest("seats_total must be at least 1")
	}

	trip := &models.Trip{
		OwnerID:       req.OwnerID,
		Role:          req.Role,
		OriginLat:     req.OriginLat,
		OriginLng:     req.OriginLng,
		OriginLabel:   req.OriginLabel,
		DestLat:       req.DestLat,
		DestLng:       req.DestLng,
		DestLabel:     req.DestLabel,
		ScheduledTime: req.ScheduledTime.UTC(),
		VehicleType:   req.VehicleType,
		SeatsTotal:    req.SeatsTotal,
		Fare:          req.Fare,
		Negotiable:    req.Negotiable,
	}

	switch trip.Role {
	case models.TripRoleDriver:
		if trip.VehicleType == nil {
			return nil, apperrors.BadRequest("vehicle_type is required for driver trips")
		}
		if trip.SeatsTotal == 0 {
			return nil, apperrors.BadRequest("seats_total is required for driver trips")
		}
	case models.TripRolePassenger:
		// a passenger trip occupies one seat
		trip.SeatsTotal = 1
	}

	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.store.Trips().Create(ctx, trip); err != nil {
		return nil, storeError(err)
	}

	logger.FromContext(ctx, s.log).WithFields(logrus.Fields{
		"trip_id": trip.ID,
		"role":    trip.Role,
	}).Info("trip created")

	return trip, nil
}

func (s *tripService) GetTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	trip, err := s.store.Trips().GetByID(ctx, tripID)
	if err != nil {
		return nil, storeError(err)
	}
	if trip == nil {
		return nil, apperrors.NotFound("trip")
	}
	return trip, nil
}

func (s *tripService) ListTrips(ctx context.Context, ownerID string, limit int) ([]*models.Trip, error) {
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}

	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	trips, err := s.store.Trips().ListByOwner(ctx, ownerID, limit)
	if err != nil {
		return nil, storeError(err)
	}
	if trips == nil {
		trips = []*models.Trip{}
	}
	return trips, nil
}

// CancelTrip releases every booking that references the trip and then cancels it, all
// in one transaction. Counterpart trips that were matched through a released booking
// reopen.
func (s *tripService) CancelTrip(ctx context.Context, tripID, ownerID string) (*models.Trip, error) {
	defer newrelic.FromContext(ctx).StartSegment("TripService/CancelTrip").End()

	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	var (
		trip         *models.Trip
		changes      []events.Event
		released     []*models.Booking
		counterparts []string
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, trips repository.TripRepository, bookings repository.BookingRepository) error {
		changes, released, counterparts = changes[:0], released[:0], counterparts[:0]

		t, err := s.ownedTrip(ctx, trips, tripID, ownerID)
		if err != nil {
			return err
		}
		if !t.CanTransitionTo(models.TripStatusCancelled) {
			return apperrors.InvalidTransition(string(t.Status), string(models.TripStatusCancelled))
		}

		list, err := bookings.ListByTrip(ctx, t.ID)
		if err != nil {
			return err
		}
		for _, b := range list {
			ok, err := bookings.Delete(ctx, b.ID, b.Confirmed)
			if err != nil {
				return err
			}
			if !ok {
				return apperrors.StateConflict("a booking of this trip changed while it was being cancelled, please retry")
			}
			released = append(released, b)

			counterpartID := b.DriverTripID
			if t.Role == models.TripRoleDriver {
				counterpartID = b.PassengerTripID
			}
			counterpart, err := trips.GetByID(ctx, counterpartID)
			if err != nil {
				return err
			}
			if counterpart != nil {
				counterparts = append(counterparts, counterpart.OwnerID)
			}
			if !b.Confirmed {
				continue
			}

			driver, passenger := counterpart, t
			if t.Role == models.TripRoleDriver {
				driver, passenger = t, counterpart
			}
			// the cancelled trip itself is closed below instead of reopened
			if t.Role == models.TripRoleDriver {
				err = releaseSeat(ctx, trips, nil, passenger, &changes)
				if err == nil {
					var ok bool
					ok, err = trips.IncrementSeatsBooked(ctx, driver.ID, -1)
					if err == nil && !ok {
						err = apperrors.StateConflict("the driver trip's seat count changed while it was being cancelled, please retry")
					}
				}
			} else {
				err = releaseSeat(ctx, trips, driver, nil, &changes)
			}
			if err != nil {
				return err
			}
		}

		current, err := trips.GetByID(ctx, t.ID)
		if err != nil {
			return err
		}
		ok, err := transition(ctx, trips, current, models.TripStatusCancelled, &changes)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.StateConflict("the trip changed while it was being cancelled, please retry")
		}
		trip = current
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}

	logger.FromContext(ctx, s.log).WithFields(logrus.Fields{
		"trip_id":           trip.ID,
		"released_bookings": len(released),
	}).Info("trip cancelled")

	evts := make([]events.Event, 0, len(released)+len(changes))
	for _, b := range released {
		evts = append(evts, bookingEvent(events.BookingCancelled, b))
	}
	s.announcer.Publish(append(evts, changes...)...)
	s.announcer.Notify(notify.TripCancelled, map[string]interface{}{
		"trip_id": trip.ID,
		"role":    trip.Role,
	}, counterparts...)

	return trip, nil
}

func (s *tripService) CompleteTrip(ctx context.Context, tripID, ownerID string) (*models.Trip, error) {
	defer newrelic.FromContext(ctx).StartSegment("TripService/CompleteTrip").End()

	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	var (
		trip    *models.Trip
		changes []events.Event
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, trips repository.TripRepository, _ repository.BookingRepository) error {
		changes = changes[:0]

		t, err := s.ownedTrip(ctx, trips, tripID, ownerID)
		if err != nil {
			return err
		}
		if !t.CanTransitionTo(models.TripStatusCompleted) {
			return apperrors.InvalidTransition(string(t.Status), string(models.TripStatusCompleted))
		}
		ok, err := transition(ctx, trips, t, models.TripStatusCompleted, &changes)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.StateConflict("the trip changed while it was being completed, please retry")
		}
		trip = t
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}

	logger.FromContext(ctx, s.log).WithField("trip_id", trip.ID).Info("trip completed")
	s.announcer.Publish(changes...)
	return trip, nil
}

func (s *tripService) ownedTrip(ctx context.Context, trips repository.TripRepository, tripID, ownerID string) (*models.Trip, error) {
	t, err := trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperrors.NotFound("trip")
	}
	if t.OwnerID != ownerID {
		return nil, apperrors.Forbidden("only the trip owner can change this trip")
	}
	return t, nil
}
