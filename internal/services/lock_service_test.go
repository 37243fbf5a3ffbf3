package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxtour/ticket-gateway/test/helpers"
)

func TestRedisDispatchLocker(t *testing.T) {
	mr, adapter := helpers.SetupTestRedis(t)
	defer mr.Close()

	locker := NewRedisDispatchLocker(adapter)
	ctx := context.Background()

	release, ok, err := locker.Acquire(ctx, 42)
	require.NoError(t, err)
	require.True(t, ok)

	// Second acquire for the same booking is refused while held.
	_, ok2, err := locker.Acquire(ctx, 42)
	require.NoError(t, err)
	assert.False(t, ok2)

	// A different booking is unaffected.
	release2, ok3, err := locker.Acquire(ctx, 43)
	require.NoError(t, err)
	assert.True(t, ok3)
	release2()

	release()

	// Released lock can be re-acquired.
	release3, ok4, err := locker.Acquire(ctx, 42)
	require.NoError(t, err)
	assert.True(t, ok4)
	release3()
}

func TestRedisDispatchLocker_TTLExpiry(t *testing.T) {
	mr, adapter := helpers.SetupTestRedis(t)
	defer mr.Close()

	locker := NewRedisDispatchLocker(adapter)
	ctx := context.Background()

	_, ok, err := locker.Acquire(ctx, 42)
	require.NoError(t, err)
	require.True(t, ok)

	// A crashed dispatcher never calls release; the TTL frees the lock.
	mr.FastForward(dispatchLockTTL)

	_, ok2, err := locker.Acquire(ctx, 42)
	require.NoError(t, err)
	assert.True(t, ok2)
}
