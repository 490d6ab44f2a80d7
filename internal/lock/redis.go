package lock

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MarkoPoloResearchLab/unitledger/pkg/ledger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultTTL          = 10 * time.Second
	defaultWait         = 5 * time.Second
	defaultPollInterval = 25 * time.Millisecond
	releaseTimeout      = 2 * time.Second
	keyPrefix           = "unitledger:lock:"
)

// ErrLockTimeout reports that an account stayed locked for the whole wait window.
var ErrLockTimeout = errors.New("account lock wait timed out")

//go:embed lua/release.lua
var luaRelease string

// Option configures a RedisLocker.
type Option func(*RedisLocker)

// WithTTL bounds how long a crashed holder can keep an account locked.
func WithTTL(ttl time.Duration) Option {
	return func(locker *RedisLocker) {
		if ttl > 0 {
			locker.ttl = ttl
		}
	}
}

// WithWait bounds how long Lock polls before giving up.
func WithWait(wait time.Duration) Option {
	return func(locker *RedisLocker) {
		if wait > 0 {
			locker.wait = wait
		}
	}
}

// WithPollInterval sets the delay between acquisition attempts.
func WithPollInterval(interval time.Duration) Option {
	return func(locker *RedisLocker) {
		if interval > 0 {
			locker.pollInterval = interval
		}
	}
}

// WithLogger reports release failures.
func WithLogger(logger *zap.Logger) Option {
	return func(locker *RedisLocker) {
		if logger != nil {
			locker.logger = logger
		}
	}
}

// RedisLocker is a ledger.AccountLocker shared by every instance pointed at
// the same Redis. Each key is a SET NX PX lease owned by a random token.
type RedisLocker struct {
	rdb          redis.UniversalClient
	ttl          time.Duration
	wait         time.Duration
	pollInterval time.Duration
	logger       *zap.Logger
	scrRelease   *redis.Script
}

var _ ledger.AccountLocker = (*RedisLocker)(nil)

// NewRedisLocker wires a RedisLocker over rdb.
func NewRedisLocker(rdb redis.UniversalClient, options ...Option) (*RedisLocker, error) {
	if rdb == nil {
		return nil, fmt.Errorf("%w: redis client is nil", ledger.ErrInvalidServiceConfig)
	}
	locker := &RedisLocker{
		rdb:          rdb,
		ttl:          defaultTTL,
		wait:         defaultWait,
		pollInterval: defaultPollInterval,
		logger:       zap.NewNop(),
		scrRelease:   redis.NewScript(luaRelease),
	}
	for _, option := range options {
		if option != nil {
			option(locker)
		}
	}
	return locker, nil
}

// Lock acquires every key in sorted order and returns a release function.
// On failure, keys already held are released before returning.
func (locker *RedisLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	ordered := ledger.SortedLockKeys(keys)
	token := uuid.NewString()
	acquired := make([]string, 0, len(ordered))
	for _, key := range ordered {
		if err := locker.acquire(ctx, lockKey(key), token); err != nil {
			locker.release(acquired, token)
			return nil, err
		}
		acquired = append(acquired, lockKey(key))
	}
	var once sync.Once
	return func() {
		once.Do(func() { locker.release(acquired, token) })
	}, nil
}

func (locker *RedisLocker) acquire(ctx context.Context, key string, token string) error {
	waitCtx, cancel := context.WithTimeout(ctx, locker.wait)
	defer cancel()
	ticker := time.NewTicker(locker.pollInterval)
	defer ticker.Stop()
	for {
		ok, err := locker.rdb.SetNX(waitCtx, key, token, locker.ttl).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-waitCtx.Done():
			return fmt.Errorf("%w: %s", ErrLockTimeout, key)
		case <-ticker.C:
		}
	}
}

func (locker *RedisLocker) release(keys []string, token string) {
	if len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	for index := len(keys) - 1; index >= 0; index-- {
		if err := locker.scrRelease.Run(ctx, locker.rdb, []string{keys[index]}, token).Err(); err != nil {
			locker.logger.Warn("redis lock release failed", zap.String("key", keys[index]), zap.Error(err))
		}
	}
}

func lockKey(key string) string {
	return keyPrefix + "{" + key + "}"
}
