package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/imageeditor/internal/config"
)

// Release gives the lock back. It is safe to call more than once.
type Release func()

// Locker serialises writers of one image across sessions (and, with the
// redis backend, across processes).
type Locker interface {
	// Lock blocks until key is held, the wait elapses or ctx is done.
	// It returns domain.ErrLockBusy when the wait runs out.
	Lock(ctx context.Context, key string) (Release, error)
}

func New(cfg *config.LockConfig) (Locker, error) {
	wait := time.Duration(cfg.WaitSec) * time.Second
	switch cfg.Type {
	case "", "local":
		zlog.Logger.Info().Msg("Initializing in-process image lock")
		return NewLocal(wait), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
		}
		zlog.Logger.Info().Str("addr", cfg.RedisAddr).Msg("Initializing redis image lock")
		return NewRedis(client, time.Duration(cfg.TTLSec)*time.Second, wait), nil
	default:
		return nil, fmt.Errorf("unsupported lock type: %s", cfg.Type)
	}
}

func imageKey(key string) string {
	return "imageeditor:lock:" + key
}
