package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/models"
	"github.com/redis/go-redis/v9"
)

const matchKeyPrefix = "matches:"

// MatchCache holds recent match results for a passenger trip. Entries are keyed by the
// trip's status_version, so any transition of the passenger trip makes them unreachable.
// Driver-side changes are only picked up when the TTL runs out.
type MatchCache interface {
	Get(ctx context.Context, trip *models.Trip, c models.MatchConstraints) ([]models.MatchCandidate, bool, error)
	Set(ctx context.Context, trip *models.Trip, c models.MatchConstraints, matches []models.MatchCandidate) error
	Invalidate(ctx context.Context, tripID string) error
}

type matchCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewMatchCache(redisClient *redis.Client, ttl time.Duration) MatchCache {
	return &matchCache{redis: redisClient, ttl: ttl}
}

func (c *matchCache) Get(ctx context.Context, trip *models.Trip, mc models.MatchConstraints) ([]models.MatchCandidate, bool, error) {
	data, err := c.redis.Get(ctx, matchKey(trip, mc)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var matches []models.MatchCandidate
	if err := json.Unmarshal(data, &matches); err != nil {
		return nil, false, err
	}
	return matches, true, nil
}

func (c *matchCache) Set(ctx context.Context, trip *models.Trip, mc models.MatchConstraints, matches []models.MatchCandidate) error {
	if matches == nil {
		matches = []models.MatchCandidate{}
	}
	data, err := json.Marshal(matches)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, matchKey(trip, mc), data, c.ttl).Err()
}

func (c *matchCache) Invalidate(ctx context.Context, tripID string) error {
	iter := c.redis.Scan(ctx, 0, matchKeyPrefix+tripID+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...).Err()
}

func matchKey(trip *models.Trip, mc models.MatchConstraints) string {
	return fmt.Sprintf("%s%s:%d:%s", matchKeyPrefix, trip.ID, trip.StatusVersion, constraintsHash(mc))
}

// constraintsHash is stable under reordering of the vehicle filter.
func constraintsHash(mc models.MatchConstraints) string {
	vehicles := make([]string, 0, len(mc.VehicleTypes))
	for _, v := range mc.VehicleTypes {
		vehicles = append(vehicles, string(v))
	}
	sort.Strings(vehicles)

	raw := fmt.Sprintf("%g|%g|%d|%s", mc.MaxDistanceKm, mc.MaxTimeDiffMin, mc.Limit, strings.Join(vehicles, ","))
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:8])
}
