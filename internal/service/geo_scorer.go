package service

import (
	"math"

	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/geo"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/models"
)

// Weights of the three cost terms. Pickup distance dominates, then time offset, then
// drop-off distance.
type Weights struct {
	Pickup  float64
	Time    float64
	Dropoff float64
}

func DefaultWeights() Weights {
	return Weights{Pickup: 1.0, Time: 0.5, Dropoff: 0.25}
}

// Score is the outcome of comparing one driver trip with a passenger trip.
type Score struct {
	Value            float64
	PickupDistanceKm float64
	DropDistanceKm   float64
	TimeOffsetMin    float64
}

// GeoScorer ranks driver trips against a passenger trip. Lower scores are better.
type GeoScorer struct {
	weights Weights
}

func NewGeoScorer(weights Weights) GeoScorer {
	return GeoScorer{weights: weights}
}

// Score returns ok=false when the candidate is outside the distance or time limits or
// fails the vehicle filter. Limits are inclusive.
func (g GeoScorer) Score(passenger, candidate *models.Trip, c models.MatchConstraints) (Score, bool) {
	pickup := geo.HaversineKm(
		geo.Point{Lat: passenger.OriginLat, Lng: passenger.OriginLng},
		geo.Point{Lat: candidate.OriginLat, Lng: candidate.OriginLng},
	)
	if pickup > c.MaxDistanceKm {
		return Score{}, false
	}

	offset := math.Abs(passenger.ScheduledTime.Sub(candidate.ScheduledTime).Minutes())
	if offset > c.MaxTimeDiffMin {
		return Score{}, false
	}

	if !c.AllowsVehicle(candidate.Vehicle()) {
		return Score{}, false
	}

	drop := geo.HaversineKm(
		geo.Point{Lat: passenger.DestLat, Lng: passenger.DestLng},
		geo.Point{Lat: candidate.DestLat, Lng: candidate.DestLng},
	)

	return Score{
		Value:            pickup*g.weights.Pickup + offset*g.weights.Time + drop*g.weights.Dropoff,
		PickupDistanceKm: pickup,
		DropDistanceKm:   drop,
		TimeOffsetMin:    offset,
	}, true
}
