//go:build ignore

package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/config"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/database"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/logger"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/models"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/repository"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/pkg/utils"
)

type place struct {
	label    string
	lat, lng float64
}

// Kigali pickup points
var places = []place{
	{"Kimironko Market", -1.9355, 30.1276},
	{"Nyabugogo Bus Park", -1.9397, 30.0445},
	{"Kigali Convention Centre", -1.9545, 30.0932},
	{"Remera Giporoso", -1.9578, 30.1127},
	{"Kacyiru", -1.9441, 30.0619},
	{"Nyamirambo", -1.9780, 30.0436},
	{"Kicukiro Centre", -1.9706, 30.1044},
	{"Gisozi", -1.9180, 30.0580},
}

func main() {
	cfg, err := config.Load()
	log := logger.New("info", true)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	ctx := context.Background()
	db, err := database.NewPostgres(ctx, cfg.DatabaseURL, cfg.DBMaxConnections, cfg.DBMaxIdleConnections)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to PostgreSQL")
	}
	defer db.Close()

	if err := database.Migrate(ctx, db.DB, log); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	trips := repository.NewStore(db.DB).Trips()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	base := time.Now().UTC().Add(30 * time.Minute).Truncate(time.Minute)

	log.Info("creating 40 driver trips")
	for i := 0; i < 40; i++ {
		from, to := pickRoute(rng)
		vt := models.VehicleTypes[rng.Intn(len(models.VehicleTypes))]
		fare := float64(500 + 100*rng.Intn(30))
		trip := &models.Trip{
			OwnerID:       utils.GenerateID(),
			Role:          models.TripRoleDriver,
			OriginLat:     jitter(rng, from.lat),
			OriginLng:     jitter(rng, from.lng),
			OriginLabel:   from.label,
			DestLat:       jitter(rng, to.lat),
			DestLng:       jitter(rng, to.lng),
			DestLabel:     to.label,
			ScheduledTime: base.Add(time.Duration(rng.Intn(120)) * time.Minute),
			VehicleType:   &vt,
			SeatsTotal:    seatsFor(vt, rng),
			Fare:          &fare,
			Negotiable:    rng.Intn(2) == 0,
		}
		if err := trips.Create(ctx, trip); err != nil {
			log.WithError(err).Fatal("failed to create driver trip")
		}
	}

	log.Info("creating 60 passenger trips")
	for i := 0; i < 60; i++ {
		from, to := pickRoute(rng)
		trip := &models.Trip{
			OwnerID:       utils.GenerateID(),
			Role:          models.TripRolePassenger,
			OriginLat:     jitter(rng, from.lat),
			OriginLng:     jitter(rng, from.lng),
			OriginLabel:   from.label,
			DestLat:       jitter(rng, to.lat),
			DestLng:       jitter(rng, to.lng),
			DestLabel:     to.label,
			ScheduledTime: base.Add(time.Duration(rng.Intn(120)) * time.Minute),
			SeatsTotal:    1,
		}
		if err := trips.Create(ctx, trip); err != nil {
			log.WithError(err).Fatal("failed to create passenger trip")
		}
	}

	fmt.Println("seed complete: 40 driver trips, 60 passenger trips")
}

func pickRoute(rng *rand.Rand) (from, to place) {
	i := rng.Intn(len(places))
	j := (i + 1 + rng.Intn(len(places)-1)) % len(places)
	return places[i], places[j]
}

// jitter moves a point by up to roughly 500m.
func jitter(rng *rand.Rand, v float64) float64 {
	return v + (rng.Float64()-0.5)*0.009
}

func seatsFor(vt models.VehicleType, rng *rand.Rand) int {
	switch vt {
	case models.VehicleMoto:
		return 1
	case models.VehicleTuktuk:
		return 1 + rng.Intn(3)
	case models.VehicleMinibus:
		return 10 + rng.Intn(8)
	default:
		return 1 + rng.Intn(4)
	}
}
