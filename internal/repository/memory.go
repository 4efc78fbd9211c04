package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/geo"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/models"
	"github.com/google/uuid"
)

// memoryState is the in-process backing store. Its mutex plays the role of the
// database's row locks: every single operation and every WithinTx call is serialized.
type memoryState struct {
	mu       sync.Mutex
	trips    map[string]*models.Trip
	bookings map[string]*models.Booking
}

type memoryStore struct {
	state *memoryState
}

// NewMemoryStore returns a Store kept in process memory, for local runs and tests.
func NewMemoryStore() Store {
	return &memoryStore{
		state: &memoryState{
			trips:    make(map[string]*models.Trip),
			bookings: make(map[string]*models.Booking),
		},
	}
}

func (s *memoryStore) Trips() TripRepository {
	return &memoryTrips{state: s.state}
}

func (s *memoryStore) Bookings() BookingRepository {
	return &memoryBookings{state: s.state}
}

func (s *memoryStore) WithinTx(ctx context.Context, fn TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	trips, bookings := s.state.snapshot()
	err := fn(ctx, &memoryTrips{state: s.state, inTx: true}, &memoryBookings{state: s.state, inTx: true})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.state.trips, s.state.bookings = trips, bookings
	}
	return err
}

func (st *memoryState) snapshot() (map[string]*models.Trip, map[string]*models.Booking) {
	trips := make(map[string]*models.Trip, len(st.trips))
	for id, t := range st.trips {
		trips[id] = cloneTrip(t)
	}
	bookings := make(map[string]*models.Booking, len(st.bookings))
	for id, b := range st.bookings {
		bookings[id] = cloneBooking(b)
	}
	return trips, bookings
}

// acquire locks the state unless the caller already holds it through WithinTx.
func (st *memoryState) acquire(ctx context.Context, inTx bool) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if inTx {
		return func() {}, nil
	}
	st.mu.Lock()
	return st.mu.Unlock, nil
}

func cloneTrip(t *models.Trip) *models.Trip {
	c := *t
	if t.VehicleType != nil {
		vt := *t.VehicleType
		c.VehicleType = &vt
	}
	if t.Fare != nil {
		fare := *t.Fare
		c.Fare = &fare
	}
	return &c
}

func cloneBooking(b *models.Booking) *models.Booking {
	c := *b
	if b.ConfirmedAt != nil {
		at := *b.ConfirmedAt
		c.ConfirmedAt = &at
	}
	return &c
}

type memoryTrips struct {
	state *memoryState
	inTx  bool
}

func (r *memoryTrips) Create(ctx context.Context, trip *models.Trip) error {
	release, err := r.state.acquire(ctx, r.inTx)
	if err != nil {
		return err
	}
	defer release()

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

	r.state.trips[trip.ID] = cloneTrip(trip)
	return nil
}

func (r *memoryTrips) GetByID(ctx context.Context, id string) (*models.Trip, error) {
	release, err := r.state.acquire(ctx, r.inTx)
	if err != nil {
		return nil, err
	}
	defer release()

	t, ok := r.state.trips[id]
	if !ok {
		return nil, nil
	}
	return cloneTrip(t), nil
}

func (r *memoryTrips) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*models.Trip, error) {
	release, err := r.state.acquire(ctx, r.inTx)
	if err != nil {
		return nil, err
	}
	defer release()

	var trips []*models.Trip
	for _, t := range r.state.trips {
		if t.OwnerID == ownerID {
			trips = append(trips, cloneTrip(t))
		}
	}
	sort.Slice(trips, func(i, j int) bool {
		if !trips[i].ScheduledTime.Equal(trips[j].ScheduledTime) {
			return trips[i].ScheduledTime.After(trips[j].ScheduledTime)
		}
		return trips[i].ID < trips[j].ID
	})
	if limit > 0 && len(trips) > limit {
		trips = trips[:limit]
	}
	return trips, nil
}

func (r *memoryTrips) FindCandidates(ctx context.Context, q models.CandidateQuery) ([]*models.Trip, error) {
	release, err := r.state.acquire(ctx, r.inTx)
	if err != nil {
		return nil, err
	}
	defer release()

	box := geo.Box{MinLat: q.MinLat, MaxLat: q.MaxLat, MinLng: q.MinLng, MaxLng: q.MaxLng}
	filter := models.MatchConstraints{VehicleTypes: q.VehicleTypes}

	var trips []*models.Trip
	for _, t := range r.state.trips {
		if t.Role != q.Role || t.Status != q.Status || t.Full() {
			continue
		}
		if t.ScheduledTime.Before(q.WindowStart) || t.ScheduledTime.After(q.WindowEnd) {
			continue
		}
		if !box.Contains(geo.Point{Lat: t.OriginLat, Lng: t.OriginLng}) {
			continue
		}
		if !filter.AllowsVehicle(t.Vehicle()) {
			continue
		}
		trips = append(trips, cloneTrip(t))
	}

	sort.Slice(trips, func(i, j int) bool {
		if !trips[i].ScheduledTime.Equal(trips[j].ScheduledTime) {
			return trips[i].ScheduledTime.Before(trips[j].ScheduledTime)
		}
		return trips[i].ID < trips[j].ID
	})
	if q.Limit > 0 && len(trips) > q.Limit {
		origin := geo.Point{Lat: q.OriginLat, Lng: q.OriginLng}
		sort.SliceStable(trips, func(i, j int) bool {
			return geo.HaversineKm(origin, geo.Point{Lat: trips[i].OriginLat, Lng: trips[i].OriginLng}) <
				geo.HaversineKm(origin, geo.Point{Lat: trips[j].OriginLat, Lng: trips[j].OriginLng})
		})
		trips = trips[:q.Limit]
	}
	return trips, nil
}

func (r *memoryTrips) UpdateStatus(ctx context.Context, id string, expected, next models.TripStatus) (bool, error) {
	release, err := r.state.acquire(ctx, r.inTx)
	if err != nil {
		return false, err
	}
	defer release()

	t, ok := r.state.trips[id]
	if !ok || t.Status != expected {
		return false, nil
	}
	t.Status = next
	t.StatusVersion++
	t.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *memoryTrips) IncrementSeatsBooked(ctx context.Context, id string, delta int) (bool, error) {
	release, err := r.state.acquire(ctx, r.inTx)
	if err != nil {
		return false, err
	}
	defer release()

	t, ok := r.state.trips[id]
	if !ok || t.Role != models.TripRoleDriver {
		return false, nil
	}
	seats := t.SeatsBooked + delta
	if seats < 0 || seats > t.SeatsTotal {
		return false, nil
	}
	if delta >= 0 && t.Status != models.TripStatusOpen {
		return false, nil
	}
	t.SeatsBooked = seats
	t.UpdatedAt = time.Now().UTC()
	return true, nil
}

type memoryBookings struct {
	state *memoryState
	inTx  bool
}

func (r *memoryBookings) Create(ctx context.Context, booking *models.Booking) error {
	release, err := r.state.acquire(ctx, r.inTx)
	if err != nil {
		return err
	}
	defer release()

	for _, b := range r.state.bookings {
		if b.PassengerTripID == booking.PassengerTripID && b.DriverTripID == booking.DriverTripID {
			return ErrDuplicateBooking
		}
	}

	if booking.ID == "" {
		booking.ID = uuid.New().String()
	}
	booking.CreatedAt = time.Now().UTC()
	booking.Confirmed = false
	booking.ConfirmedAt = nil

	r.state.bookings[booking.ID] = cloneBooking(booking)
	return nil
}

func (r *memoryBookings) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	return r.find(ctx, func(b *models.Booking) bool { return b.ID == id })
}

func (r *memoryBookings) GetByPair(ctx context.Context, passengerTripID, driverTripID string) (*models.Booking, error) {
	return r.find(ctx, func(b *models.Booking) bool {
		return b.PassengerTripID == passengerTripID && b.DriverTripID == driverTripID
	})
}

func (r *memoryBookings) GetConfirmedForPassenger(ctx context.Context, passengerTripID string) (*models.Booking, error) {
	return r.find(ctx, func(b *models.Booking) bool {
		return b.PassengerTripID == passengerTripID && b.Confirmed
	})
}

func (r *memoryBookings) find(ctx context.Context, match func(*models.Booking) bool) (*models.Booking, error) {
	release, err := r.state.acquire(ctx, r.inTx)
	if err != nil {
		return nil, err
	}
	defer release()

	for _, b := range r.state.bookings {
		if match(b) {
			return cloneBooking(b), nil
		}
	}
	return nil, nil
}

func (r *memoryBookings) ListByTrip(ctx context.Context, tripID string) ([]*models.Booking, error) {
	release, err := r.state.acquire(ctx, r.inTx)
	if err != nil {
		return nil, err
	}
	defer release()

	var bookings []*models.Booking
	for _, b := range r.state.bookings {
		if b.PassengerTripID == tripID || b.DriverTripID == tripID {
			bookings = append(bookings, cloneBooking(b))
		}
	}
	sort.Slice(bookings, func(i, j int) bool {
		if !bookings[i].CreatedAt.Equal(bookings[j].CreatedAt) {
			return bookings[i].CreatedAt.Before(bookings[j].CreatedAt)
		}
		return bookings[i].ID < bookings[j].ID
	})
	return bookings, nil
}

func (r *memoryBookings) MarkConfirmed(ctx context.Context, id string, at time.Time) (bool, error) {
	release, err := r.state.acquire(ctx, r.inTx)
	if err != nil {
		return false, err
	}
	defer release()

	b, ok := r.state.bookings[id]
	if !ok || b.Confirmed {
		return false, nil
	}
	for _, other := range r.state.bookings {
		if other.ID != id && other.PassengerTripID == b.PassengerTripID && other.Confirmed {
			return false, ErrPassengerConfirmed
		}
	}
	b.Confirmed = true
	b.ConfirmedAt = &at
	return true, nil
}

func (r *memoryBookings) Delete(ctx context.Context, id string, expectConfirmed bool) (bool, error) {
	release, err := r.state.acquire(ctx, r.inTx)
	if err != nil {
		return false, err
	}
	defer release()

	b, ok := r.state.bookings[id]
	if !ok || b.Confirmed != expectConfirmed {
		return false, nil
	}
	delete(r.state.bookings, id)
	return true, nil
}
