package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"payments-reconciler/internal/domain"
)

const lockKeyPrefix = "txn-lock:"

// releaseScript deletes the lock only if it is still held by the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Options struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// Locker is a per-transaction mutex backed by SET NX with an expiry.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewClient(opts Options) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

func NewLocker(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{client: client, ttl: ttl, logger: logger}
}

func LockKey(transactionID string) string {
	return lockKeyPrefix + transactionID
}

// Lock returns domain.ErrTransactionLocked if another worker holds the lock.
// The returned function releases it.
func (l *Locker) Lock(ctx context.Context, transactionID string) (func(), error) {
	key := LockKey(transactionID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis SETNX %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", transactionID, domain.ErrTransactionLocked)
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			l.logger.Warn("Failed to release transaction lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

func (l *Locker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
