package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	windowKeyPrefix = "rl:win:"
	blockKeyPrefix  = "rl:blk:"
)

// RedisStore implements WindowStore on Redis sorted sets so multiple server
// instances share one view of each source's window.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window, block time.Duration, now time.Time) (Decision, error) {
	blockKey := blockKeyPrefix + key
	winKey := windowKeyPrefix + key

	until, err := s.client.Get(ctx, blockKey).Result()
	switch {
	case err == nil:
		nanos, perr := strconv.ParseInt(until, 10, 64)
		if perr != nil {
			return Decision{}, fmt.Errorf("parse block marker: %w", perr)
		}
		blockedUntil := time.Unix(0, nanos)
		if now.Before(blockedUntil) {
			return Decision{Allowed: false, BlockedUntil: blockedUntil}, nil
		}
		// Block elapsed: the window resets.
		if err := s.client.Del(ctx, blockKey, winKey).Err(); err != nil {
			return Decision{}, fmt.Errorf("reset window: %w", err)
		}
	case err != redis.Nil:
		return Decision{}, fmt.Errorf("read block marker: %w", err)
	}

	cutoff := now.Add(-window)
	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, winKey, "0", strconv.FormatInt(cutoff.UnixNano(), 10))
	card := pipe.ZCard(ctx, winKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("trim window: %w", err)
	}

	count := int(card.Val())
	if count >= limit {
		blockedUntil := now.Add(block)
		if err := s.client.Set(ctx, blockKey, strconv.FormatInt(blockedUntil.UnixNano(), 10), block).Err(); err != nil {
			return Decision{}, fmt.Errorf("set block marker: %w", err)
		}
		return Decision{Allowed: false, BlockedUntil: blockedUntil}, nil
	}

	pipe = s.client.TxPipeline()
	pipe.ZAdd(ctx, winKey, redis.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()})
	pipe.Expire(ctx, winKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("record query: %w", err)
	}
	return Decision{Allowed: true, Remaining: limit - count - 1}, nil
}
