package service

import (
	"context"
	"sort"
	"time"

	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/cache"
	apperrors "github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/errors"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/geo"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/logger"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/metrics"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/models"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/repository"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/retry"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"
)

type MatchingService interface {
	FindMatches(ctx context.Context, passengerTripID string, constraints models.MatchConstraints) ([]models.MatchCandidate, error)
}

// MatchingConfig bounds a match query. MaxCandidates of zero scores every trip inside the
// bounding box and time window; a positive value keeps only the nearest pickups.
type MatchingConfig struct {
	MaxDistanceKm  float64
	MaxTimeDiffMin float64
	MaxCandidates  int
	StoreTimeout   time.Duration
}

func DefaultMatchingConfig() MatchingConfig {
	return MatchingConfig{
		MaxDistanceKm:  models.DefaultMaxDistanceKm,
		MaxTimeDiffMin: models.DefaultMaxTimeDiffMin,
		StoreTimeout:   defaultStoreTimeout,
	}
}

type matchingService struct {
	trips      repository.TripRepository
	scorer     GeoScorer
	matchCache cache.MatchCache
	retrier    *retry.Retrier
	config     MatchingConfig
	log        logrus.FieldLogger
}

// NewMatchingService builds the match engine. matchCache may be nil.
func NewMatchingService(
	trips repository.TripRepository,
	scorer GeoScorer,
	matchCache cache.MatchCache,
	retrier *retry.Retrier,
	config MatchingConfig,
	log logrus.FieldLogger,
) MatchingService {
	return &matchingService{
		trips:      trips,
		scorer:     scorer,
		matchCache: matchCache,
		retrier:    retrier,
		config:     config,
		log:        log,
	}
}

func (s *matchingService) FindMatches(ctx context.Context, passengerTripID string, constraints models.MatchConstraints) (matches []models.MatchCandidate, err error) {
	defer newrelic.FromContext(ctx).StartSegment("MatchingService/FindMatches").End()

	start := time.Now()
	defer func() {
		metrics.MatchLatency.Observe(time.Since(start).Seconds())
		metrics.MatchQueries.WithLabelValues(outcome(err)).Inc()
	}()

	constraints = constraints.WithDefaults(s.config.MaxDistanceKm, s.config.MaxTimeDiffMin)
	for _, vt := range constraints.VehicleTypes {
		if !vt.Valid() {
			return nil, apperrors.BadRequest("unknown vehicle type: " + string(vt))
		}
	}

	var passenger *models.Trip
	err = s.retrier.Do(ctx, func(ctx context.Context) error {
		ctx, cancel := withStoreTimeout(ctx, s.config.StoreTimeout)
		defer cancel()
		trip, err := s.trips.GetByID(ctx, passengerTripID)
		passenger = trip
		return storeError(err)
	})
	if err != nil {
		return nil, err
	}
	if passenger == nil {
		return nil, apperrors.NotFound("trip")
	}
	if passenger.Role != models.TripRolePassenger {
		return nil, apperrors.InvalidRole("matches can only be requested for passenger trips")
	}
	log := logger.FromContext(ctx, s.log).WithField("trip_id", passenger.ID)

	// a matched or closed passenger trip has nothing left to book
	if passenger.Status != models.TripStatusOpen {
		if s.matchCache != nil {
			if err := s.matchCache.Invalidate(ctx, passenger.ID); err != nil {
				log.WithError(err).Warn("failed to drop cached matches")
			}
		}
		return []models.MatchCandidate{}, nil
	}

	if s.matchCache != nil {
		cached, ok, err := s.matchCache.Get(ctx, passenger, constraints)
		switch {
		case err != nil:
			metrics.MatchCacheLookups.WithLabelValues("error").Inc()
			log.WithError(err).Warn("match cache lookup failed")
		case ok:
			metrics.MatchCacheLookups.WithLabelValues("hit").Inc()
			return cached, nil
		default:
			metrics.MatchCacheLookups.WithLabelValues("miss").Inc()
		}
	}

	query := s.candidateQuery(passenger, constraints)

	var candidates []*models.Trip
	err = s.retrier.Do(ctx, func(ctx context.Context) error {
		ctx, cancel := withStoreTimeout(ctx, s.config.StoreTimeout)
		defer cancel()
		trips, err := s.trips.FindCandidates(ctx, query)
		candidates = trips
		return storeError(err)
	})
	if err != nil {
		return nil, err
	}
	metrics.MatchCandidates.Observe(float64(len(candidates)))

	matches = s.rank(passenger, candidates, constraints)

	if s.matchCache != nil {
		if err := s.matchCache.Set(ctx, passenger, constraints, matches); err != nil {
			log.WithError(err).Warn("failed to cache matches")
		}
	}

	log.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"matches":    len(matches),
	}).Debug("matches computed")

	return matches, nil
}

func (s *matchingService) candidateQuery(passenger *models.Trip, c models.MatchConstraints) models.CandidateQuery {
	window := time.Duration(c.MaxTimeDiffMin * float64(time.Minute))
	box := geo.BoundingBox(geo.Point{Lat: passenger.OriginLat, Lng: passenger.OriginLng}, c.MaxDistanceKm)

	return models.CandidateQuery{
		Role:         models.TripRoleDriver,
		Status:       models.TripStatusOpen,
		WindowStart:  passenger.ScheduledTime.Add(-window),
		WindowEnd:    passenger.ScheduledTime.Add(window),
		MinLat:       box.MinLat,
		MaxLat:       box.MaxLat,
		MinLng:       box.MinLng,
		MaxLng:       box.MaxLng,
		OriginLat:    passenger.OriginLat,
		OriginLng:    passenger.OriginLng,
		VehicleTypes: c.VehicleTypes,
		Limit:        s.config.MaxCandidates,
	}
}

// rank scores every candidate, drops those outside the constraints and orders the rest
// by score, then scheduled time, then id.
func (s *matchingService) rank(passenger *models.Trip, candidates []*models.Trip, c models.MatchConstraints) []models.MatchCandidate {
	matches := make([]models.MatchCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.OwnerID == passenger.OwnerID {
			continue
		}
		score, ok := s.scorer.Score(passenger, candidate, c)
		if !ok {
			continue
		}
		matches = append(matches, models.MatchCandidate{
			Trip:             candidate,
			PickupDistanceKm: score.PickupDistanceKm,
			DropDistanceKm:   score.DropDistanceKm,
			TimeOffsetMin:    score.TimeOffsetMin,
			Score:            score.Value,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score != b.Score {
			return a.Score < b.Score
		}
		if !a.Trip.ScheduledTime.Equal(b.Trip.ScheduledTime) {
			return a.Trip.ScheduledTime.Before(b.Trip.ScheduledTime)
		}
		return a.Trip.ID < b.Trip.ID
	})

	if c.Limit > 0 && len(matches) > c.Limit {
		matches = matches[:c.Limit]
	}
	return matches
}
