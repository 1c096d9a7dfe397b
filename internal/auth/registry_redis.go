package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRegistry backs the token sets with Redis so revocations and
// refresh registrations survive a restart and are shared across
// instances. Keys expire with the token they track, so the sets never
// need sweeping.
type RedisRegistry struct {
	client *redis.Client
}

func NewRedisRegistry(redisURL string) (*RedisRegistry, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisRegistry{client: client}, nil
}

func (r *RedisRegistry) Registry() TokenRegistry {
	return TokenRegistry{Denylist: (*redisDenylist)(r), Allowlist: (*redisAllowlist)(r)}
}

func (r *RedisRegistry) Close() error {
	return r.client.Close()
}

const (
	deniedKeyPrefix  = "auth:denied:"
	allowedKeyPrefix = "auth:refresh:"
)

type redisDenylist RedisRegistry

func (r *redisDenylist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if err := r.client.Set(ctx, deniedKeyPrefix+token, 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (r *redisDenylist) IsRevoked(ctx context.Context, token string) (bool, error) {
	hits, err := r.client.Exists(ctx, deniedKeyPrefix+token).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return hits > 0, nil
}

type redisAllowlist RedisRegistry

func (r *redisAllowlist) Add(ctx context.Context, token string, ttl time.Duration) error {
	if err := r.client.Set(ctx, allowedKeyPrefix+token, 1, ttl).Err(); err != nil {
		return fmt.Errorf("register refresh token: %w", err)
	}
	return nil
}

func (r *redisAllowlist) Contains(ctx context.Context, token string) (bool, error) {
	hits, err := r.client.Exists(ctx, allowedKeyPrefix+token).Result()
	if err != nil {
		return false, fmt.Errorf("check refresh token: %w", err)
	}
	return hits > 0, nil
}

func (r *redisAllowlist) Remove(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, allowedKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("remove refresh token: %w", err)
	}
	return nil
}
