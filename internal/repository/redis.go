package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courtbook/internal/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockTimeout = errors.New("timed out waiting for slot lock")

const lockKeyPrefix = "slot_lock:"

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

// RedisSlotLocker is a distributed mutex per (field, date) key. The lock
// expires after ttl so a crashed holder cannot block a slot forever.
type RedisSlotLocker struct {
	client   *redis.Client
	ttl      time.Duration
	wait     time.Duration
	interval time.Duration
}

func NewRedisSlotLocker(client *redis.Client, ttl, wait time.Duration) *RedisSlotLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &RedisSlotLocker{
		client:   client,
		ttl:      ttl,
		wait:     wait,
		interval: 20 * time.Millisecond,
	}
}

func (r *RedisSlotLocker) Lock(ctx context.Context, key string) (func(), error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	redisKey := lockKeyPrefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(r.wait)

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire slot lock: %w", err)
		}
		if ok {
			return func() { r.release(redisKey, token) }, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.interval):
		}
	}
}

func (r *RedisSlotLocker) release(redisKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = releaseScript.Run(ctx, r.client, []string{redisKey}, token).Err()
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
