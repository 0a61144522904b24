package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresence_MirrorsToRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	ctx := context.Background()
	p := NewPresence(rdb, PresenceConfig{LastSeenTTL: time.Minute})
	defer p.Stop()
	other := NewPresence(rdb, PresenceConfig{})
	defer other.Stop()

	p.Register(ctx, "dev-1")
	p.Register(ctx, "dev-1")
	assert.True(t, other.IsOnline(ctx, "dev-1"), "other instances see the device")

	p.Unregister(ctx, "dev-1")
	assert.True(t, other.IsOnline(ctx, "dev-1"), "one tab is still open")

	p.Unregister(ctx, "dev-1")
	assert.False(t, other.IsOnline(ctx, "dev-1"))
}

func TestPresence_ReaperRemovesStaleDevices(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	ctx := context.Background()
	p := NewPresence(rdb, PresenceConfig{})
	defer p.Stop()

	require.NoError(t, rdb.SAdd(ctx, defaultOnlineSetKey, "stale").Err())
	p.Register(ctx, "live")

	assert.Equal(t, 1, p.reapOnce(ctx))
	isMember, err := rdb.SIsMember(ctx, defaultOnlineSetKey, "stale").Result()
	require.NoError(t, err)
	assert.False(t, isMember)
	isMember, err = rdb.SIsMember(ctx, defaultOnlineSetKey, "live").Result()
	require.NoError(t, err)
	assert.True(t, isMember)
}
