package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	events []Event
	err    error
	closed bool
}

func (p *recordingPublisher) Publish(_ context.Context, events ...Event) error {
	p.events = append(p.events, events...)
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

func TestMultiPublishesToEveryTransport(t *testing.T) {
	failing := &recordingPublisher{err: errors.New("broker down")}
	healthy := &recordingPublisher{}
	m := Multi{failing, healthy}

	e := New(BookingConfirmed, "booking-1")
	err := m.Publish(context.Background(), e)

	assert.ErrorContains(t, err, "broker down")
	assert.Len(t, failing.events, 1)
	require.Len(t, healthy.events, 1)
	assert.Equal(t, e.ID, healthy.events[0].ID)

	require.NoError(t, m.Close())
	assert.True(t, failing.closed)
	assert.True(t, healthy.closed)
}

func TestRedisPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, "trip-events")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	p := NewRedisPublisher(client, "trip-events")
	e := New(TripStatusChanged, "trip-1")
	e.From, e.To, e.StatusVersion = "open", "matched", 1
	require.NoError(t, p.Publish(ctx, e))

	select {
	case msg := <-sub.Channel():
		var got Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, TripStatusChanged, got.Type)
		assert.Equal(t, "trip-1", got.AggregateID)
		assert.Equal(t, 1, got.StatusVersion)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestNATSSubject(t *testing.T) {
	tests := []struct {
		prefix string
		typ    Type
		want   string
	}{
		{"trips", BookingConfirmed, "trips.booking.confirmed"},
		{"trips", TripStatusChanged, "trips.trip.status_changed"},
		{"", BookingCreated, "booking.created"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, subject(tt.prefix, tt.typ))
	}
}

func TestNewNATSPublisherUnreachable(t *testing.T) {
	_, err := NewNATSPublisher("nats://127.0.0.1:1", "trips")
	assert.ErrorContains(t, err, "failed to connect to NATS")
}
