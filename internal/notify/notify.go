package notify

import (
	"context"
	"encoding/json"
	"time"
)

const (
	BookingRequested = "booking_requested"
	BookingConfirmed = "booking_confirmed"
	BookingCancelled = "booking_cancelled"
	TripCancelled    = "trip_cancelled"
)

// Dispatcher delivers a notification to one user. Callers treat it as best effort.
type Dispatcher interface {
	Notify(ctx context.Context, userID, eventType string, payload interface{}) error
}

type Notification struct {
	UserID    string          `json:"user_id"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func newNotification(userID, eventType string, payload interface{}) (*Notification, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Notification{
		UserID:    userID,
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// LocalDispatcher delivers straight to this process's hub. Used when no Redis is configured.
type LocalDispatcher struct {
	hub *Hub
}

func NewLocalDispatcher(hub *Hub) *LocalDispatcher {
	return &LocalDispatcher{hub: hub}
}

func (d *LocalDispatcher) Notify(_ context.Context, userID, eventType string, payload interface{}) error {
	n, err := newNotification(userID, eventType, payload)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(n)
	if err != nil {
		return err
	}
	d.hub.Deliver(userID, msg)
	return nil
}
