package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/config"
)

var Rdb *redis.Client

func InitRedis() error {
	redisCfg := config.GlobalConfig.Database.Redis

	Rdb = redis.NewClient(&redis.Options{
		Addr:       fmt.Sprintf("%s:%d", redisCfg.Host, redisCfg.Port),
		Password:   redisCfg.Password,
		DB:         redisCfg.DB,
		PoolSize:   redisCfg.PoolSize,
		MaxRetries: redisCfg.MaxRetries,
	})

	if _, err := Rdb.Ping(context.Background()).Result(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	return nil
}

func Close() error {
	if Rdb != nil {
		return Rdb.Close()
	}
	return nil
}

// UserLock serializes quota increments for one user across concurrent
// generations and across instances.
type UserLock struct {
	client *redis.Client
	ttl    time.Duration
}

func NewUserLock(client *redis.Client, ttl time.Duration) *UserLock {
	return &UserLock{client: client, ttl: ttl}
}

// Acquire blocks until the per-user lock is held or ctx expires. The lock
// auto-expires after the configured TTL so a crashed holder cannot wedge
// other requests.
func (l *UserLock) Acquire(ctx context.Context, userID string) error {
	key := fmt.Sprintf("quota:lock:%s", userID)
	for {
		ok, err := l.client.SetNX(ctx, key, 1, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("failed to acquire user lock: %w", err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// Release drops the per-user lock.
func (l *UserLock) Release(ctx context.Context, userID string) error {
	key := fmt.Sprintf("quota:lock:%s", userID)
	return l.client.Del(ctx, key).Err()
}
