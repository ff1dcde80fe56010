// Package redis holds the memoization cache for engine output. Engine
// results are deterministic given identical inputs, so they are cached keyed
// by (user id, data version) and the version is bumped on every diary write.
package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/evelark/doseline-backend/internal/platform/envutil"
	"github.com/evelark/doseline-backend/internal/platform/logger"
)

type InsightsCache interface {
	DataVersion(ctx context.Context, userID string) (int64, error)
	BumpDataVersion(ctx context.Context, userID string) error
	Get(ctx context.Context, userID string, version int64) ([]byte, bool, error)
	Set(ctx context.Context, userID string, version int64, payload []byte) error
	Close() error
}

type insightsCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewInsightsCache(log *logger.Logger) (InsightsCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(envutil.String("REDIS_ADDR", ""))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    envutil.String("REDIS_PASSWORD", ""),
		DB:          envutil.Int("REDIS_DB", 0),
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	ttl := envutil.DurationSeconds("INSIGHTS_CACHE_TTL_SECONDS", 6*3600)
	return &insightsCache{log: log.With("client", "InsightsCache"), rdb: rdb, ttl: ttl}, nil
}

func versionKey(userID string) string { return "insights:ver:" + userID }

func payloadKey(userID string, version int64) string {
	return fmt.Sprintf("insights:sum:%s:%d", userID, version)
}

func (c *insightsCache) DataVersion(ctx context.Context, userID string) (int64, error) {
	v, err := c.rdb.Get(ctx, versionKey(userID)).Int64()
	if err == goredis.Nil {
		return 0, nil
	}
	return v, err
}

func (c *insightsCache) BumpDataVersion(ctx context.Context, userID string) error {
	return c.rdb.Incr(ctx, versionKey(userID)).Err()
}

func (c *insightsCache) Get(ctx context.Context, userID string, version int64) ([]byte, bool, error) {
	payload, err := c.rdb.Get(ctx, payloadKey(userID, version)).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (c *insightsCache) Set(ctx context.Context, userID string, version int64, payload []byte) error {
	return c.rdb.Set(ctx, payloadKey(userID, version), payload, c.ttl).Err()
}

func (c *insightsCache) Close() error { return c.rdb.Close() }
