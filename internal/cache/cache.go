// Package cache keeps aggregated series between runs so repeated scans of an
// unchanged dataset skip the aggregation pass. The cache is strictly an
// optimization: any Redis failure degrades to a recompute, never to a failed
// run.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/costpulse/costpulse/internal/domain"
)

// Client is a Redis-backed aggregate cache guarded by a circuit breaker.
// When Redis misbehaves the breaker opens and lookups become immediate
// misses until the probe succeeds again.
type Client struct {
	rdb     *redis.Client
	breaker *gobreaker.CircuitBreaker
	ttl     time.Duration
}

// Options configures the cache client.
type Options struct {
	Addr string
	DB   int
	TTL  time.Duration
}

// New returns a cache client for the given Redis address.
func New(opts Options) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "aggregate-cache",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Cache circuit breaker state change")
		},
	})

	return &Client{
		rdb:     redis.NewClient(&redis.Options{Addr: opts.Addr, DB: opts.DB}),
		breaker: breaker,
		ttl:     opts.TTL,
	}
}

// GetAggregates returns the cached aggregates for a dataset key, or ok=false
// on miss, Redis error, or open breaker.
func (c *Client) GetAggregates(ctx context.Context, key string) (*domain.Aggregates, bool) {
	raw, err := c.breaker.Execute(func() (interface{}, error) {
		return c.rdb.Get(ctx, c.redisKey(key)).Bytes()
	})
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("key", key).Msg("Aggregate cache lookup degraded to miss")
		}
		return nil, false
	}

	var agg domain.Aggregates
	if err := json.Unmarshal(raw.([]byte), &agg); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Aggregate cache entry corrupt, recomputing")
		return nil, false
	}
	return &agg, true
}

// SetAggregates stores aggregates under a dataset key with the configured
// TTL. Failures are logged and swallowed.
func (c *Client) SetAggregates(ctx context.Context, key string, agg *domain.Aggregates) {
	data, err := json.Marshal(agg)
	if err != nil {
		log.Warn().Err(err).Msg("Aggregate cache encode failed")
		return
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.rdb.Set(ctx, c.redisKey(key), data, c.ttl).Err()
	})
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Aggregate cache store skipped")
	}
}

// Close releases the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) redisKey(key string) string {
	return "costpulse:aggregates:" + key
}

// DatasetHash returns a stable SHA-256 key for a batch of cost rows. The
// hash covers every field of every row in order, so any change to the input
// produces a different key.
func DatasetHash(rows []domain.CostRow) string {
	h := sha256.New()
	for _, r := range rows {
		fmt.Fprintf(h, "%s|%s|%s|%s|%.4f\n",
			r.Day().Format("2006-01-02"), r.Subscription, r.ResourceGroup, r.Service, r.Cost)
	}
	return hex.EncodeToString(h.Sum(nil))
}
