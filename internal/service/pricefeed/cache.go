package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/krobus00/order-entry/internal/entity"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultSnapshotTTL = 10 * time.Minute

// RedisSnapshotCache holds the last snapshot per symbol so a gateway that
// starts between stream events still has prices.
type RedisSnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSnapshotCache(client *redis.Client, ttl time.Duration) *RedisSnapshotCache {
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}

	return &RedisSnapshotCache{client: client, ttl: ttl}
}

func snapshotKey(symbol string) string {
	return "order-entry:price:" + symbol
}

func (c *RedisSnapshotCache) Set(ctx context.Context, snapshot entity.PriceSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, snapshotKey(snapshot.Symbol), payload, c.ttl).Err()
}

func (c *RedisSnapshotCache) Get(ctx context.Context, symbol string) (entity.PriceSnapshot, bool, error) {
	raw, err := c.client.Get(ctx, snapshotKey(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return entity.PriceSnapshot{}, false, nil
	}
	if err != nil {
		return entity.PriceSnapshot{}, false, err
	}

	var snapshot entity.PriceSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return entity.PriceSnapshot{}, false, fmt.Errorf("decode price snapshot %s: %w", symbol, err)
	}

	return snapshot, true, nil
}

// Warm loads cached snapshots into feed. Missing symbols are skipped.
func (c *RedisSnapshotCache) Warm(ctx context.Context, feed *Feed, symbols []string) error {
	for _, symbol := range symbols {
		snapshot, ok, err := c.Get(ctx, symbol)
		if err != nil {
			return err
		}
		if !ok {
			logrus.WithField("symbol", symbol).Debug("no cached price snapshot")
			continue
		}

		feed.Replace(snapshot)
	}

	return nil
}
