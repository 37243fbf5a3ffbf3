package services

import (
	"context"
	"fmt"
	"time"

	"github.com/voxtour/ticket-gateway/pkg/logger"
	"github.com/voxtour/ticket-gateway/pkg/redis"
)

const (
	dispatchLockPrefix = "dispatch:booking:"
	dispatchLockTTL    = 30 * time.Second
)

// RedisDispatchLocker implements the per-booking dispatch guard with a
// short-lived SetNX key. The TTL bounds lock leakage if a process dies
// mid-dispatch.
type RedisDispatchLocker struct {
	redis redis.RedisAdapter
	ttl   time.Duration
}

func NewRedisDispatchLocker(adapter redis.RedisAdapter) *RedisDispatchLocker {
	return &RedisDispatchLocker{redis: adapter, ttl: dispatchLockTTL}
}

func (l *RedisDispatchLocker) Acquire(ctx context.Context, bookingID int64) (func(), bool, error) {
	key := fmt.Sprintf("%s%d", dispatchLockPrefix, bookingID)
	value := []byte(fmt.Sprintf("%d", time.Now().UnixNano()))

	acquired, err := l.redis.SetNX(key, value, l.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("acquire dispatch lock: %w", err)
	}
	if !acquired {
		logger.Info("Dispatch lock already held", "booking_id", bookingID)
		return nil, false, nil
	}

	release := func() {
		if err := l.redis.Del(key); err != nil {
			logger.Warn("Failed to release dispatch lock", "booking_id", bookingID, "error", err)
		}
	}
	return release, true, nil
}
