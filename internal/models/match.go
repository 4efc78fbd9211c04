package models

import (
	"time"
)

const (
	DefaultMaxDistanceKm  = 5.0
	DefaultMaxTimeDiffMin = 30.0
)

// MatchConstraints bounds a match query. Zero values fall back to the defaults.
type MatchConstraints struct {
	MaxDistanceKm  float64       `json:"max_distance_km"`
	MaxTimeDiffMin float64       `json:"max_time_diff_min"`
	VehicleTypes   []VehicleType `json:"vehicle_types,omitempty"`
	Limit          int           `json:"limit,omitempty"`
}

func (c MatchConstraints) WithDefaults(maxDistanceKm, maxTimeDiffMin float64) MatchConstraints {
	if c.MaxDistanceKm <= 0 {
		c.MaxDistanceKm = maxDistanceKm
	}
	if c.MaxTimeDiffMin <= 0 {
		c.MaxTimeDiffMin = maxTimeDiffMin
	}
	return c
}

// AllowsVehicle reports whether v passes the vehicle filter. An empty filter allows everything.
func (c MatchConstraints) AllowsVehicle(v VehicleType) bool {
	if len(c.VehicleTypes) == 0 {
		return true
	}
	for _, vt := range c.VehicleTypes {
		if vt == v {
			return true
		}
	}
	return false
}

// MatchCandidate is a scored driver trip. It is never persisted.
type MatchCandidate struct {
	Trip             *Trip   `json:"trip"`
	PickupDistanceKm float64 `json:"pickup_distance_km"`
	DropDistanceKm   float64 `json:"drop_distance_km"`
	TimeOffsetMin    float64 `json:"time_offset_min"`
	Score            float64 `json:"score"`
}

type DriverSummary struct {
	OwnerID          string       `json:"owner_id"`
	VehicleType      *VehicleType `json:"vehicle_type,omitempty"`
	SeatsAvailable   int          `json:"seats_available"`
	Fare             *float64     `json:"fare,omitempty"`
	Negotiable       bool         `json:"negotiable"`
	OriginLabel      string       `json:"origin_label,omitempty"`
	DestinationLabel string       `json:"destination_label,omitempty"`
	ScheduledTime    time.Time    `json:"scheduled_time"`
}

type MatchResponse struct {
	TripID           string        `json:"trip_id"`
	PickupDistanceKm float64       `json:"pickup_distance_km"`
	DropDistanceKm   float64       `json:"drop_distance_km"`
	TimeOffsetMin    float64       `json:"time_offset_min"`
	Score            float64       `json:"score"`
	DriverSummary    DriverSummary `json:"driver_summary"`
}

type MatchListResponse struct {
	Matches    []*MatchResponse `json:"matches"`
	MatchCount int              `json:"match_count"`
}

func (m *MatchCandidate) ToResponse() *MatchResponse {
	return &MatchResponse{
		TripID:           m.Trip.ID,
		PickupDistanceKm: round(m.PickupDistanceKm),
		DropDistanceKm:   round(m.DropDistanceKm),
		TimeOffsetMin:    round(m.TimeOffsetMin),
		Score:            round(m.Score),
		DriverSummary: DriverSummary{
			OwnerID:          m.Trip.OwnerID,
			VehicleType:      m.Trip.VehicleType,
			SeatsAvailable:   m.Trip.SeatsAvailable(),
			Fare:             m.Trip.Fare,
			Negotiable:       m.Trip.Negotiable,
			OriginLabel:      m.Trip.OriginLabel,
			DestinationLabel: m.Trip.DestLabel,
			ScheduledTime:    m.Trip.ScheduledTime,
		},
	}
}

func NewMatchListResponse(matches []MatchCandidate) *MatchListResponse {
	resp := &MatchListResponse{Matches: make([]*MatchResponse, 0, len(matches))}
	for i := range matches {
		resp.Matches = append(resp.Matches, matches[i].ToResponse())
	}
	resp.MatchCount = len(resp.Matches)
	return resp
}

// CandidateQuery is the coarse prefilter handed to the trip store before scoring.
// A positive Limit keeps the candidates whose origin is nearest to (OriginLat, OriginLng).
type CandidateQuery struct {
	Role         TripRole
	Status       TripStatus
	WindowStart  time.Time
	WindowEnd    time.Time
	MinLat       float64
	MaxLat       float64
	MinLng       float64
	MaxLng       float64
	OriginLat    float64
	OriginLng    float64
	VehicleTypes []VehicleType
	Limit        int
}
