package server

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisLoginStore counts login attempts in Redis so the per-IP budget holds
// across server instances. The first INCR in a window sets the expiry.
type redisLoginStore struct {
	client  *redis.Client
	timeout time.Duration
}

func newRedisLoginStore(addr, password string, timeout time.Duration) *redisLoginStore {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})
	return &redisLoginStore{client: client, timeout: timeout}
}

func (s *redisLoginStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		expiry := window
		if expiry < time.Second {
			expiry = time.Second
		}
		if err := s.client.Expire(ctx, key, expiry).Err(); err != nil {
			return false, 0, err
		}
	}
	if count <= int64(limit) {
		return true, 0, nil
	}

	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if ttl < 0 {
		return false, window, nil
	}
	return false, ttl, nil
}
