// Package redis caches capacity results so that a burst of clients picking
// the same day costs one store read. It implements availability.Cache.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goRedis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/warp/quote-engine/availability"
	"github.com/warp/quote-engine/calendar"
)

const keyPrefix = "quote:availability:"

var _ availability.Cache = (*Cache)(nil)

// Cache stores availability.Result values as JSON with a short TTL.
// Degraded results are never written by the resolver, so an outage is not
// remembered past the outage.
type Cache struct {
	client *goRedis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// Options configures the client.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// New connects to redis and checks the connection.
func New(ctx context.Context, opts Options, logger zerolog.Logger) (*Cache, error) {
	client := goRedis.NewClient(&goRedis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}

	logger.Info().Str("addr", opts.Addr).Int("db", opts.DB).Dur("ttl", opts.TTL).Msg("connected to redis")
	return NewWithClient(client, opts.TTL, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goRedis.Client, ttl time.Duration, logger zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// Key returns the cache key for a provider and day.
func Key(providerID string, day calendar.Day) string {
	return keyPrefix + providerID + ":" + day.String()
}

// Get returns the cached result. A miss is (Result{}, false, nil).
func (c *Cache) Get(ctx context.Context, providerID string, day calendar.Day) (availability.Result, bool, error) {
	raw, err := c.client.Get(ctx, Key(providerID, day)).Result()
	if errors.Is(err, goRedis.Nil) {
		return availability.Result{}, false, nil
	}
	if err != nil {
		return availability.Result{}, false, fmt.Errorf("failed to get cache value: %w", err)
	}

	var res availability.Result
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return availability.Result{}, false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return res, true, nil
}

func (c *Cache) Set(ctx context.Context, providerID string, day calendar.Day, res availability.Result) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	if err := c.client.Set(ctx, Key(providerID, day), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache value: %w", err)
	}
	return nil
}

// Invalidate drops every cached day of a provider, e.g. after its rules or
// events change.
func (c *Cache) Invalidate(ctx context.Context, providerID string) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+providerID+":*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if err := c.client.Del(ctx, key).Err(); err != nil {
			c.logger.Error().Err(err).Str("key", key).Msg("failed to delete cache value")
			return fmt.Errorf("failed to delete cache value: %w", err)
		}
	}
	return iter.Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
