package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/krobus00/order-entry/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultRedisMaxRetry = 5

var defaultRedisRetry = backoffSettings{
	factor:    2.0,
	minJitter: 100 * time.Millisecond,
	maxJitter: 2 * time.Second,
}

// NewRedisClient parses cfg.CacheDSN and pings until the server answers.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if strings.TrimSpace(cfg.CacheDSN) == "" {
		return nil, errors.New("redis cache_dsn is required")
	}

	options, err := redis.ParseURL(cfg.CacheDSN)
	if err != nil {
		return nil, fmt.Errorf("parse redis cache_dsn: %w", err)
	}

	client := redis.NewClient(options)
	retry := newRetryPolicy(0, 0, 0, defaultRedisRetry)

	var lastErr error
	for attempt := 0; attempt <= defaultRedisMaxRetry; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
		lastErr = client.Ping(pingCtx).Err()
		cancel()
		if lastErr == nil {
			logrus.WithField("redis_dsn", maskDSN(cfg.CacheDSN)).Info("redis connection established")
			return client, nil
		}

		waitDuration := retry.delay(attempt)
		logrus.WithFields(logrus.Fields{
			"attempt":   attempt + 1,
			"retry_in":  waitDuration.String(),
			"redis_dsn": maskDSN(cfg.CacheDSN),
		}).Warnf("redis connection failed: %v", lastErr)

		select {
		case <-time.After(waitDuration):
		case <-ctx.Done():
			_ = client.Close()
			return nil, ctx.Err()
		}
	}

	_ = client.Close()
	return nil, fmt.Errorf("connect redis after %d attempts: %w", defaultRedisMaxRetry+1, lastErr)
}
