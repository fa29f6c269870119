package prefs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// keyPrefix namespaces viewer preferences inside a shared Redis.
const keyPrefix = "venueview:prefs:"

// Redis is a Store backed by a Redis server, for deployments where
// preferences should survive viewer restarts and be shared across nodes.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, addr string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return &Redis{client: client}, nil
}

// Save stores value under key with the given TTL.
func (r *Redis) Save(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("saving pref %s: %w", key, err)
	}
	return nil
}

// Load returns the value for key, or ErrNotFound.
func (r *Redis) Load(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, keyPrefix+key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("loading pref %s: %w", key, err)
	}
	return val, nil
}

// Close closes the client connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
