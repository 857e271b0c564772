// Package redislock provides a lease lock over Redis so that only one
// process replica runs the accrual job for a given tick.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "leave-engine:lock:"

// releaseScript deletes the key only while it still holds our token, so an
// expired lease never releases a lock another replica has since taken.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// Release gives a held lease back.
type Release func(ctx context.Context) error

type Locker struct {
	rdb      *redis.Client
	logger   *zap.Logger
	newToken func() string
}

func New(rdb *redis.Client, logger *zap.Logger) *Locker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locker{rdb: rdb, logger: logger.Named("redislock"), newToken: uuid.NewString}
}

// NewClient connects and pings Redis.
func NewClient(ctx context.Context, addr, password string, db int, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	if logger != nil {
		logger.Info("redis connected", zap.String("addr", addr))
	}
	return rdb, nil
}

// TryLock takes the named lease for ttl without waiting. acquired is false
// when another holder has it.
func (l *Locker) TryLock(ctx context.Context, name string, ttl time.Duration) (release Release, acquired bool, err error) {
	key := keyPrefix + name
	token := l.newToken()

	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		l.logger.Debug("lock held elsewhere", zap.String("key", key))
		return nil, false, nil
	}

	return func(ctx context.Context) error {
		n, err := l.rdb.Eval(ctx, releaseScript, []string{key}, token).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("release %s: %w", key, err)
		}
		if n == 0 {
			l.logger.Warn("lock expired before release", zap.String("key", key))
		}
		return nil
	}, true, nil
}
