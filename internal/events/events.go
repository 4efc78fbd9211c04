package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TripStatusChanged Type = "trip.status_changed"
	BookingCreated    Type = "booking.created"
	BookingConfirmed  Type = "booking.confirmed"
	BookingCancelled  Type = "booking.cancelled"
)

// Event is a committed state transition. Subscribers use StatusVersion to drop
// out-of-order deliveries instead of re-querying the store.
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	AggregateID   string                 `json:"aggregate_id"`
	From          string                 `json:"from,omitempty"`
	To            string                 `json:"to,omitempty"`
	StatusVersion int                    `json:"status_version,omitempty"`
	Data          map[string]interface{} `json:"data,omitempty"`
	OccurredAt    time.Time              `json:"occurred_at"`
}

func New(t Type, aggregateID string) Event {
	return Event{
		ID:          uuid.New().String(),
		Type:        t,
		AggregateID: aggregateID,
		OccurredAt:  time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

// Multi fans events out to several transports. Every transport is attempted and
// their failures are joined.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, events ...Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, events...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
