package models

import (
	"time"
)

type TripRole string

const (
	TripRolePassenger TripRole = "passenger"
	TripRoleDriver    TripRole = "driver"
)

func (r TripRole) Valid() bool {
	return r == TripRolePassenger || r == TripRoleDriver
}

type TripStatus string

// Trip status constants
const (
	TripStatusOpen      TripStatus = "open"
	TripStatusMatched   TripStatus = "matched"
	TripStatusCompleted TripStatus = "completed"
	TripStatusCancelled TripStatus = "cancelled"
)

// Valid trip state transitions. matched -> open is only taken when a booking is released.
var ValidTripTransitions = map[TripStatus][]TripStatus{
	TripStatusOpen:      {TripStatusMatched, TripStatusCancelled},
	TripStatusMatched:   {TripStatusOpen, TripStatusCompleted, TripStatusCancelled},
	TripStatusCompleted: {},
	TripStatusCancelled: {},
}

func (s TripStatus) Valid() bool {
	_, ok := ValidTripTransitions[s]
	return ok
}

func (s TripStatus) Terminal() bool {
	return s == TripStatusCompleted || s == TripStatusCancelled
}

type VehicleType string

const (
	VehicleMoto    VehicleType = "moto"
	VehicleCar     VehicleType = "car"
	VehicleTuktuk  VehicleType = "tuktuk"
	VehicleMinibus VehicleType = "minibus"
)

var VehicleTypes = []VehicleType{VehicleMoto, VehicleCar, VehicleTuktuk, VehicleMinibus}

func (v VehicleType) Valid() bool {
	for _, vt := range VehicleTypes {
		if v == vt {
			return true
		}
	}
	return false
}

type Trip struct {
	ID            string       `db:"id" json:"id"`
	OwnerID       string       `db:"owner_id" json:"owner_id"`
	Role          TripRole     `db:"role" json:"role"`
	OriginLat     float64      `db:"origin_lat" json:"origin_lat"`
	OriginLng     float64      `db:"origin_lng" json:"origin_lng"`
	OriginLabel   string       `db:"origin_label" json:"origin_label"`
	OriginGeohash string       `db:"origin_geohash" json:"-"`
	DestLat       float64      `db:"dest_lat" json:"dest_lat"`
	DestLng       float64      `db:"dest_lng" json:"dest_lng"`
	DestLabel     string       `db:"dest_label" json:"dest_label"`
	ScheduledTime time.Time    `db:"scheduled_time" json:"scheduled_time"`
	VehicleType   *VehicleType `db:"vehicle_type" json:"vehicle_type,omitempty"`
	SeatsTotal    int          `db:"seats_total" json:"seats_total"`
	SeatsBooked   int          `db:"seats_booked" json:"seats_booked"`
	Fare          *float64     `db:"fare" json:"fare,omitempty"`
	Negotiable    bool         `db:"negotiable" json:"negotiable"`
	Status        TripStatus   `db:"status" json:"status"`
	StatusVersion int          `db:"status_version" json:"status_version"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

type CreateTripRequest struct {
	OwnerID       string       `json:"owner_id" validate:"required,max=64"`
	Role          TripRole     `json:"role" validate:"required,oneof=passenger driver"`
	OriginLat     float64      `json:"origin_lat" validate:"latitude"`
	OriginLng     float64      `json:"origin_lng" validate:"longitude"`
	OriginLabel   string       `json:"origin_label" validate:"max=255"`
	DestLat       float64      `json:"dest_lat" validate:"latitude"`
	DestLng       float64      `json:"dest_lng" validate:"longitude"`
	DestLabel     string       `json:"dest_label" validate:"max=255"`
	ScheduledTime time.Time    `json:"scheduled_time" validate:"required"`
	VehicleType   *VehicleType `json:"vehicle_type,omitempty" validate:"omitempty,oneof=moto car tuktuk minibus"`
	SeatsTotal    int          `json:"seats_total" validate:"omitempty,min=1,max=60"`
	Fare          *float64     `json:"fare,omitempty" validate:"omitempty,gte=0"`
	Negotiable    bool         `json:"negotiable"`
}

// OwnerActionRequest carries the acting user for owner-only trip transitions.
type OwnerActionRequest struct {
	OwnerID string `json:"owner_id" validate:"required"`
}

type TripResponse struct {
	ID             string       `json:"id"`
	OwnerID        string       `json:"owner_id"`
	Role           TripRole     `json:"role"`
	Origin         Place        `json:"origin"`
	Destination    Place        `json:"destination"`
	ScheduledTime  time.Time    `json:"scheduled_time"`
	VehicleType    *VehicleType `json:"vehicle_type,omitempty"`
	SeatsTotal     int          `json:"seats_total"`
	SeatsBooked    int          `json:"seats_booked"`
	SeatsAvailable int          `json:"seats_available"`
	Fare           *float64     `json:"fare,omitempty"`
	Negotiable     bool         `json:"negotiable"`
	Status         TripStatus   `json:"status"`
	StatusVersion  int          `json:"status_version"`
}

type Place struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Label string  `json:"label,omitempty"`
}

func (t *Trip) ToResponse() *TripResponse {
	return &TripResponse{
		ID:             t.ID,
		OwnerID:        t.OwnerID,
		Role:           t.Role,
		Origin:         Place{Lat: t.OriginLat, Lng: t.OriginLng, Label: t.OriginLabel},
		Destination:    Place{Lat: t.DestLat, Lng: t.DestLng, Label: t.DestLabel},
		ScheduledTime:  t.ScheduledTime,
		VehicleType:    t.VehicleType,
		SeatsTotal:     t.SeatsTotal,
		SeatsBooked:    t.SeatsBooked,
		SeatsAvailable: t.SeatsAvailable(),
		Fare:           t.Fare,
		Negotiable:     t.Negotiable,
		Status:         t.Status,
		StatusVersion:  t.StatusVersion,
	}
}

// CanTransitionTo checks if a trip can transition to a new status
func (t *Trip) CanTransitionTo(newStatus TripStatus) bool {
	for _, state := range ValidTripTransitions[t.Status] {
		if state == newStatus {
			return true
		}
	}
	return false
}

func (t *Trip) SeatsAvailable() int {
	if t.SeatsBooked >= t.SeatsTotal {
		return 0
	}
	return t.SeatsTotal - t.SeatsBooked
}

func (t *Trip) Full() bool {
	return t.SeatsBooked >= t.SeatsTotal
}

// Vehicle returns the vehicle type or "" for passenger trips.
func (t *Trip) Vehicle() VehicleType {
	if t.VehicleType == nil {
		return ""
	}
	return *t.VehicleType
}
