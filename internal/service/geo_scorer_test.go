package service

import (
	"math"
	"testing"
	"time"

	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/models"
)

func TestGeoScorer_Score(t *testing.T) {
	moto, car := models.VehicleMoto, models.VehicleCar
	passenger := &models.Trip{
		Role: models.TripRolePassenger, OriginLat: -1.9441, OriginLng: 30.0619,
		DestLat: -1.9706, DestLng: 30.1044, ScheduledTime: baseTime,
	}
	defaults := models.MatchConstraints{MaxDistanceKm: 5, MaxTimeDiffMin: 30}

	tests := []struct {
		name        string
		candidate   *models.Trip
		constraints models.MatchConstraints
		wantOK      bool
		wantPickup  float64
		wantOffset  float64
	}{
		{
			name: "nearby and soon",
			candidate: &models.Trip{OriginLat: -1.95, OriginLng: 30.06, DestLat: -1.9706, DestLng: 30.1044,
				ScheduledTime: baseTime.Add(10 * time.Minute), VehicleType: &moto},
			constraints: defaults,
			wantOK:      true,
			wantPickup:  0.69,
			wantOffset:  10,
		},
		{
			name: "offset on the limit is accepted",
			candidate: &models.Trip{OriginLat: -1.9441, OriginLng: 30.0619, DestLat: -1.9706, DestLng: 30.1044,
				ScheduledTime: baseTime.Add(-30 * time.Minute), VehicleType: &moto},
			constraints: defaults,
			wantOK:      true,
			wantPickup:  0,
			wantOffset:  30,
		},
		{
			name: "too late",
			candidate: &models.Trip{OriginLat: -1.95, OriginLng: 30.06,
				ScheduledTime: baseTime.Add(45 * time.Minute), VehicleType: &moto},
			constraints: defaults,
		},
		{
			name: "too far",
			candidate: &models.Trip{OriginLat: -1.5, OriginLng: 29.6,
				ScheduledTime: baseTime, VehicleType: &moto},
			constraints: defaults,
		},
		{
			name: "vehicle filtered out",
			candidate: &models.Trip{OriginLat: -1.95, OriginLng: 30.06,
				ScheduledTime: baseTime, VehicleType: &car},
			constraints: models.MatchConstraints{MaxDistanceKm: 5, MaxTimeDiffMin: 30, VehicleTypes: []models.VehicleType{models.VehicleMoto}},
		},
	}

	scorer := NewGeoScorer(DefaultWeights())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, ok := scorer.Score(passenger, tt.candidate, tt.constraints)
			if ok != tt.wantOK {
				t.Fatalf("Score() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if math.Abs(score.PickupDistanceKm-tt.wantPickup) > 0.05 {
				t.Errorf("PickupDistanceKm = %v, want ~%v", score.PickupDistanceKm, tt.wantPickup)
			}
			if math.Abs(score.TimeOffsetMin-tt.wantOffset) > 1e-9 {
				t.Errorf("TimeOffsetMin = %v, want %v", score.TimeOffsetMin, tt.wantOffset)
			}
			want := score.PickupDistanceKm*1.0 + score.TimeOffsetMin*0.5 + score.DropDistanceKm*0.25
			if math.Abs(score.Value-want) > 1e-9 {
				t.Errorf("Value = %v, want %v", score.Value, want)
			}
		})
	}
}

func TestGeoScorer_PickupOutweighsDropoff(t *testing.T) {
	passenger := &models.Trip{OriginLat: -1.95, OriginLng: 30.06, DestLat: -1.97, DestLng: 30.10, ScheduledTime: baseTime}
	moto := models.VehicleMoto
	// 1 km worse at pickup vs 1 km worse at drop-off
	worsePickup := &models.Trip{OriginLat: -1.959, OriginLng: 30.06, DestLat: -1.97, DestLng: 30.10, ScheduledTime: baseTime, VehicleType: &moto}
	worseDrop := &models.Trip{OriginLat: -1.95, OriginLng: 30.06, DestLat: -1.979, DestLng: 30.10, ScheduledTime: baseTime, VehicleType: &moto}

	scorer := NewGeoScorer(DefaultWeights())
	c := models.MatchConstraints{MaxDistanceKm: 5, MaxTimeDiffMin: 30}
	a, okA := scorer.Score(passenger, worsePickup, c)
	b, okB := scorer.Score(passenger, worseDrop, c)
	if !okA || !okB {
		t.Fatal("both candidates should qualify")
	}
	if a.Value <= b.Value {
		t.Errorf("pickup distance should cost more than drop-off distance: %v <= %v", a.Value, b.Value)
	}
}
