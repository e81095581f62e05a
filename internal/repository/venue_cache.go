package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/seatsync/seatsync/internal/model"
)

const venueKeyPrefix = "seatsync:venues:"

// VenueSource is the backing store behind the venue cache.
type VenueSource interface {
	Venues(ctx context.Context, institutionID string) ([]model.Venue, error)
	Venue(ctx context.Context, id string) (*model.Venue, error)
}

// CachedVenues is a read-through Redis cache in front of a VenueSource.
// Redis failures are logged and fall through to the source.
type CachedVenues struct {
	next   VenueSource
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedVenues(next VenueSource, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedVenues {
	return &CachedVenues{next: next, client: client, ttl: ttl, logger: logger}
}

func institutionVenuesKey(institutionID string) string {
	return venueKeyPrefix + "institution:" + institutionID
}

func venueKey(id string) string {
	return venueKeyPrefix + "id:" + id
}

// load decodes key into dst. It reports false on a miss or any Redis error.
func (c *CachedVenues) load(ctx context.Context, key string, dst any) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("venue cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Warn("venue cache entry corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *CachedVenues) store(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("venue cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedVenues) Venues(ctx context.Context, institutionID string) ([]model.Venue, error) {
	key := institutionVenuesKey(institutionID)
	var venues []model.Venue
	if c.load(ctx, key, &venues) {
		return venues, nil
	}

	venues, err := c.next.Venues(ctx, institutionID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, venues)
	return venues, nil
}

func (c *CachedVenues) Venue(ctx context.Context, id string) (*model.Venue, error) {
	key := venueKey(id)
	var v model.Venue
	if c.load(ctx, key, &v) {
		return &v, nil
	}

	found, err := c.next.Venue(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, found)
	return found, nil
}

// Invalidate drops the cached venue list of an institution and its venues.
func (c *CachedVenues) Invalidate(ctx context.Context, institutionID string, venueIDs ...string) error {
	keys := []string{institutionVenuesKey(institutionID)}
	for _, id := range venueIDs {
		keys = append(keys, venueKey(id))
	}
	return c.client.Del(ctx, keys...).Err()
}
