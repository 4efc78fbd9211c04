package service

import (
	"context"
	"sync"
	"testing"
	"time"

	apperrors "github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/errors"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/events"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/models"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/repository"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/retry"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC)

type sentNotification struct {
	UserID  string
	Type    string
	Payload interface{}
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (d *recordingDispatcher) Notify(_ context.Context, userID, eventType string, payload interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sentNotification{UserID: userID, Type: eventType, Payload: payload})
	return nil
}

func (d *recordingDispatcher) recipients(eventType string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var users []string
	for _, n := range d.sent {
		if n.Type == eventType {
			users = append(users, n.UserID)
		}
	}
	return users
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evts ...events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evts...)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) ofType(t events.Type) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	store      repository.Store
	trips      TripService
	bookings   BookingService
	matching   MatchingService
	dispatcher *recordingDispatcher
	publisher  *recordingPublisher
	announcer  *Announcer
	log        logrus.FieldLogger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, repository.NewMemoryStore())
}

func newTestEnvWithStore(t *testing.T, store repository.Store) *testEnv {
	t.Helper()
	log, _ := test.NewNullLogger()
	dispatcher := &recordingDispatcher{}
	publisher := &recordingPublisher{}
	announcer := NewAnnouncer(dispatcher, publisher, log)
	t.Cleanup(announcer.Wait)

	return &testEnv{
		store:      store,
		trips:      NewTripService(store, announcer, time.Second, log),
		bookings:   NewBookingService(store, announcer, time.Second, log),
		matching:   NewMatchingService(store.Trips(), NewGeoScorer(DefaultWeights()), nil, newTestRetrier(log), DefaultMatchingConfig(), log),
		dispatcher: dispatcher,
		publisher:  publisher,
		announcer:  announcer,
		log:        log,
	}
}

func newTestRetrier(log logrus.FieldLogger) *retry.Retrier {
	return retry.New(retry.Config{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2,
		Retryable:  apperrors.IsUnavailable,
	}, log)
}

func (e *testEnv) passengerTrip(t *testing.T, owner string, lat, lng float64, at time.Time) *models.Trip {
	t.Helper()
	trip, err := e.trips.CreateTrip(context.Background(), &models.CreateTripRequest{
		OwnerID:       owner,
		Role:          models.TripRolePassenger,
		OriginLat:     lat,
		OriginLng:     lng,
		DestLat:       -1.9706,
		DestLng:       30.1044,
		ScheduledTime: at,
	})
	require.NoError(t, err)
	return trip
}

func (e *testEnv) driverTrip(t *testing.T, owner string, lat, lng float64, at time.Time, seats int, vt models.VehicleType) *models.Trip {
	t.Helper()
	trip, err := e.trips.CreateTrip(context.Background(), &models.CreateTripRequest{
		OwnerID:       owner,
		Role:          models.TripRoleDriver,
		OriginLat:     lat,
		OriginLng:     lng,
		DestLat:       -1.9706,
		DestLng:       30.1044,
		ScheduledTime: at,
		VehicleType:   &vt,
		SeatsTotal:    seats,
	})
	require.NoError(t, err)
	return trip
}

func (e *testEnv) reload(t *testing.T, id string) *models.Trip {
	t.Helper()
	trip, err := e.trips.GetTrip(context.Background(), id)
	require.NoError(t, err)
	return trip
}
