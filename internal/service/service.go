package service

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/errors"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/events"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/metrics"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/models"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/notify"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/repository"
	"github.com/sirupsen/logrus"
)

const (
	defaultStoreTimeout = 3 * time.Second
	announceTimeout     = 5 * time.Second
)

// storeError maps a raw store failure onto the error taxonomy. APIErrors pass through.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *apperrors.APIError
	if errors.As(err, &apiErr) {
		return err
	}
	switch {
	case repository.IsSerializationFailure(err):
		return apperrors.StateConflict("the trip changed while this request was processed, please retry")
	case repository.IsTransient(err):
		return apperrors.Unavailable(err)
	}
	return err
}

func withStoreTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultStoreTimeout
	}
	return context.WithTimeout(ctx, d)
}

// outcome is the metrics label for an operation result.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var apiErr *apperrors.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return "error"
}

// Announcer sends notifications and events for committed transitions. Delivery runs in
// the background and never fails the transition that triggered it.
type Announcer struct {
	dispatcher notify.Dispatcher
	publisher  events.Publisher
	log        logrus.FieldLogger
	wg         sync.WaitGroup
}

// NewAnnouncer accepts nil for either transport.
func NewAnnouncer(dispatcher notify.Dispatcher, publisher events.Publisher, log logrus.FieldLogger) *Announcer {
	return &Announcer{dispatcher: dispatcher, publisher: publisher, log: log}
}

func (a *Announcer) Notify(eventType string, payload interface{}, userIDs ...string) {
	if a == nil || a.dispatcher == nil {
		return
	}
	seen := make(map[string]bool, len(userIDs))
	for _, userID := range userIDs {
		if userID == "" || seen[userID] {
			continue
		}
		seen[userID] = true

		a.wg.Add(1)
		go func(userID string) {
			defer a.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), announceTimeout)
			defer cancel()
			if err := a.dispatcher.Notify(ctx, userID, eventType, payload); err != nil {
				metrics.NotificationsDropped.Inc()
				a.log.WithError(err).WithFields(logrus.Fields{
					"user_id": userID,
					"type":    eventType,
				}).Warn("failed to send notification")
			}
		}(userID)
	}
}

func (a *Announcer) Publish(evts ...events.Event) {
	if a == nil || a.publisher == nil || len(evts) == 0 {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), announceTimeout)
		defer cancel()
		if err := a.publisher.Publish(ctx, evts...); err != nil {
			metrics.NotificationsDropped.Inc()
			a.log.WithError(err).WithField("events", len(evts)).Warn("failed to publish events")
		}
	}()
}

// Wait blocks until every pending delivery has finished.
func (a *Announcer) Wait() {
	if a == nil {
		return
	}
	a.wg.Wait()
}

func statusChanged(t *models.Trip, from models.TripStatus) events.Event {
	e := events.New(events.TripStatusChanged, t.ID)
	e.From = string(from)
	e.To = string(t.Status)
	e.StatusVersion = t.StatusVersion
	e.Data = map[string]interface{}{"role": t.Role, "seats_booked": t.SeatsBooked}
	return e
}

func bookingEvent(t events.Type, b *models.Booking) events.Event {
	e := events.New(t, b.ID)
	e.Data = map[string]interface{}{
		"passenger_trip_id": b.PassengerTripID,
		"driver_trip_id":    b.DriverTripID,
	}
	return e
}

func bookingPayload(b *models.Booking) map[string]interface{} {
	return map[string]interface{}{
		"booking_id":        b.ID,
		"passenger_trip_id": b.PassengerTripID,
		"driver_trip_id":    b.DriverTripID,
		"state":             b.State(),
	}
}

// transition moves trip from its current status to next with a compare-and-swap and
// records the change. It returns false if the stored status had already moved on.
func transition(ctx context.Context, trips repository.TripRepository, trip *models.Trip, next models.TripStatus, changes *[]events.Event) (bool, error) {
	from := trip.Status
	ok, err := trips.UpdateStatus(ctx, trip.ID, from, next)
	if err != nil || !ok {
		return false, err
	}
	trip.Status = next
	trip.StatusVersion++
	*changes = append(*changes, statusChanged(trip, from))
	return true, nil
}
