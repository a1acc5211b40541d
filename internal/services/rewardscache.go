package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/studyloop/backend/internal/logger"
	"github.com/studyloop/backend/internal/utils"
)

// RewardsCache is a read-through cache for the reward/streak reader. Cache
// misses and cache failures are equivalent: the caller recomputes from the
// ledger, which is always the source of truth.
type RewardsCache interface {
	GetJSON(ctx context.Context, key string, dest any) bool
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration)
	Invalidate(ctx context.Context, userID uuid.UUID)
}

func achievementsCacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("rewards:achievements:%s", userID)
}

func streakCacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("rewards:streak:%s", userID)
}

type redisRewardsCache struct {
	rdb *redis.Client
	log *logger.Logger
}

// NewRedisRewardsCache connects to the REDIS_ADDR instance. Returns nil
// (cache disabled) when no address is configured.
func NewRedisRewardsCache(log *logger.Logger) (RewardsCache, error) {
	addr := utils.GetEnv("REDIS_ADDR", "", log)
	if addr == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: utils.GetEnv("REDIS_PASSWORD", "", log),
		DB:       utils.GetEnvAsInt("REDIS_DB", 0, log),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisRewardsCache{rdb: rdb, log: log.With("component", "RewardsCache")}, nil
}

func (c *redisRewardsCache) GetJSON(ctx context.Context, key string, dest any) bool {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("Cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.log.Warn("Cache payload corrupt, dropping", "key", key, "error", err)
		_ = c.rdb.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *redisRewardsCache) SetJSON(ctx context.Context, key string, val any, ttl time.Duration) {
	raw, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.log.Warn("Cache write failed", "key", key, "error", err)
	}
}

func (c *redisRewardsCache) Invalidate(ctx context.Context, userID uuid.UUID) {
	if err := c.rdb.Del(ctx, achievementsCacheKey(userID), streakCacheKey(userID)).Err(); err != nil {
		c.log.Warn("Cache invalidation failed", "user_id", userID, "error", err)
	}
}
