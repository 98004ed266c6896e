package util

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RunLock is an advisory lock on redis that keeps two ingestion runs from
// overlapping on the same watermark.
type RunLock struct {
	rdb    *redis.Client
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

func NewRunLock(rdb *redis.Client, key string, ttl time.Duration, logger *zap.Logger) *RunLock {
	return &RunLock{
		rdb:    rdb,
		key:    key,
		ttl:    ttl,
		logger: logger,
	}
}

// Acquire tries to take the lock. Returns true if this caller owns the run.
// TTL 作为兜底：进程崩溃后锁会自动过期
func (l *RunLock) Acquire(ctx context.Context) bool {
	ok, err := l.rdb.SetNX(ctx, l.key, 1, l.ttl).Result()
	if err != nil {
		// Redis 挂了？拿不到锁就拒绝运行，避免双跑
		if l.logger != nil {
			l.logger.Warn("Run lock check failed, refusing to run",
				zap.String("key", l.key),
				zap.Error(err),
			)
		}
		return false
	}

	if !ok && l.logger != nil {
		l.logger.Info("Run lock already held, skipping run",
			zap.String("key", l.key),
		)
	}

	return ok
}

// Release drops the lock so the next scheduled run can start immediately.
func (l *RunLock) Release(ctx context.Context) {
	if err := l.rdb.Del(ctx, l.key).Err(); err != nil && l.logger != nil {
		l.logger.Warn("Failed to release run lock, it will expire via TTL",
			zap.String("key", l.key),
			zap.Error(err),
		)
	}
}
