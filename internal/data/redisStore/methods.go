package redisStore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

func (s *Store) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return s.client.Set(ctx, key, value, expiration).Err()
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	return s.client.Get(ctx, key).Result()
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

func (s *Store) IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	count, err := s.client.Exists(ctx, key).Result()
	return count > 0, err
}

//hash helpers for the task records

func (s *Store) HashSet(ctx context.Context, key string, fields map[string]interface{}) error {
	return s.client.HSet(ctx, key, fields).Err()
}

func (s *Store) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.client.HGetAll(ctx, key).Result()
}

func (s *Store) HashGet(ctx context.Context, key, field string) (string, error) {
	return s.client.HGet(ctx, key, field).Result()
}

func (s *Store) HashDelete(ctx context.Context, key string, fields ...string) error {
	return s.client.HDel(ctx, key, fields...).Err()
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, key, ttl).Err()
}

//list helpers for the recent-tasks list and the work queue

func (s *Store) ListPush(ctx context.Context, key string, value interface{}) error {
	return s.client.RPush(ctx, key, value).Err()
}

func (s *Store) ListPushHead(ctx context.Context, key string, value interface{}) error {
	return s.client.LPush(ctx, key, value).Err()
}

func (s *Store) ListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return s.client.LRange(ctx, key, start, stop).Result()
}

func (s *Store) ListLen(ctx context.Context, key string) (int64, error) {
	return s.client.LLen(ctx, key).Result()
}

func (s *Store) ListRemove(ctx context.Context, key string, count int64, value interface{}) error {
	return s.client.LRem(ctx, key, count, value).Err()
}

// ListMoveBlocking pops the tail of source and pushes it onto destination,
// waiting up to timeout for an element. Returns redis.Nil when the wait
// expires empty.
func (s *Store) ListMoveBlocking(ctx context.Context, source, destination string, timeout time.Duration) (string, error) {
	return s.client.BRPopLPush(ctx, source, destination, timeout).Result()
}

//sorted-set helpers for the in-flight deadline registry

func (s *Store) SortedSetAdd(ctx context.Context, key, member string, score float64) error {
	return s.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (s *Store) SortedSetRangeUpTo(ctx context.Context, key string, max float64) ([]string, error) {
	return s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: "-inf",
		Max: formatScore(max),
	}).Result()
}

func (s *Store) SortedSetRemove(ctx context.Context, key string, members ...interface{}) error {
	return s.client.ZRem(ctx, key, members...).Err()
}

func (s *Store) SortedSetLen(ctx context.Context, key string) (int64, error) {
	return s.client.ZCard(ctx, key).Result()
}

// IncrementWindow bumps a fixed-window counter, starting the window on the
// first hit. Used by the rate limiter.
func (s *Store) IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}
