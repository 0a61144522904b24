package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisKV(t *testing.T) (*RedisKV, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisKV(rdb, 0), mr
}

func TestStores_PersistAcrossInstances(t *testing.T) {
	kv, mr := newRedisKV(t)
	ctx := context.Background()

	first := NewStores(kv, "dev-1")
	require.NoError(t, first.Load(ctx))
	require.NoError(t, first.User.Set(ctx, models.SessionUser{ID: "u1", Email: "a@uni.edu", Name: "Ann"}))
	require.NoError(t, first.Campus.Set(ctx, models.CampusSelection{ID: "c1", Name: "North", ShortName: "N"}))

	assert.True(t, mr.Exists("campus-hub-user:dev-1"))
	assert.True(t, mr.Exists("campus-hub-campus:dev-1"))

	second := NewStores(kv, "dev-1")
	assert.False(t, second.Hydrated())
	require.NoError(t, second.Load(ctx))
	assert.True(t, second.Hydrated())
	require.NotNil(t, second.User.Get())
	assert.Equal(t, "Ann", second.User.Get().Name)
	assert.Equal(t, "N", second.Campus.Get().ShortName)

	other := NewStores(kv, "dev-2")
	require.NoError(t, other.Load(ctx))
	assert.Nil(t, other.User.Get())
}

func TestStores_ClearRemovesPersistedValue(t *testing.T) {
	kv, mr := newRedisKV(t)
	ctx := context.Background()

	s := NewStores(kv, "dev-1")
	require.NoError(t, s.Load(ctx))
	require.NoError(t, s.User.Set(ctx, models.SessionUser{ID: "u1"}))
	require.NoError(t, s.ClearAll(ctx))

	assert.Nil(t, s.User.Get())
	assert.Nil(t, s.Campus.Get())
	assert.False(t, mr.Exists("campus-hub-user:dev-1"))
}

func TestPersisted_CorruptValueLoadsEmpty(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, "campus-hub-user:dev-1", "{not json"))

	s := NewStores(kv, "dev-1")
	err := s.Load(ctx)
	assert.Error(t, err)
	assert.True(t, s.Hydrated())
	assert.Nil(t, s.User.Get())
}

func TestPersisted_WriteBeforeLoadWins(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, "campus-hub-user:dev-1", `{"id":"old"}`))

	s := NewStores(kv, "dev-1")
	require.NoError(t, s.User.Set(ctx, models.SessionUser{ID: "new"}))
	require.NoError(t, s.Load(ctx))

	assert.Equal(t, "new", s.User.Get().ID)
}

func TestPersisted_SetIfGeneration(t *testing.T) {
	s := NewStores(NewMemoryKV(), "dev-1")
	ctx := context.Background()

	gen := s.Campus.Generation()
	require.NoError(t, s.Campus.Clear(ctx))

	applied, err := s.Campus.SetIfGeneration(ctx, gen, models.CampusSelection{ID: "stale"})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Nil(t, s.Campus.Get())

	applied, err = s.Campus.SetIfGeneration(ctx, s.Campus.Generation(), models.CampusSelection{ID: "fresh"})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "fresh", s.Campus.Get().ID)
}

func TestPersisted_SubscribersSeeWritesInOrder(t *testing.T) {
	s := NewStores(NewMemoryKV(), "dev-1")
	ctx := context.Background()

	var mu sync.Mutex
	var seen []string
	unsubscribe := s.User.Subscribe(func(u *models.SessionUser) {
		mu.Lock()
		defer mu.Unlock()
		if u == nil {
			seen = append(seen, "<nil>")
			return
		}
		seen = append(seen, u.ID)
	})

	require.NoError(t, s.User.Set(ctx, models.SessionUser{ID: "a"}))
	require.NoError(t, s.User.Set(ctx, models.SessionUser{ID: "b"}))
	require.NoError(t, s.User.Clear(ctx))
	unsubscribe()
	require.NoError(t, s.User.Set(ctx, models.SessionUser{ID: "c"}))

	assert.Equal(t, []string{"a", "b", "<nil>"}, seen)
}

type failingKV struct{ *MemoryKV }

func (failingKV) Set(context.Context, string, string) error { return errors.New("disk full") }

func TestPersisted_PersistFailureKeepsMemoryValue(t *testing.T) {
	s := NewStores(failingKV{NewMemoryKV()}, "dev-1")
	err := s.User.Set(context.Background(), models.SessionUser{ID: "u1"})
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, "u1", s.User.Get().ID)
}

func TestStores_WaitLoadedHonoursContext(t *testing.T) {
	s := NewStores(NewMemoryKV(), "dev-1")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.WaitLoaded(ctx), context.DeadlineExceeded)

	require.NoError(t, s.Load(context.Background()))
	assert.NoError(t, s.WaitLoaded(context.Background()))
}

func TestModalStore_StartsClosed(t *testing.T) {
	m := &ModalStore{}
	assert.False(t, m.IsOpen())
	m.Open()
	assert.True(t, m.IsOpen())
	m.Close()
	assert.False(t, m.IsOpen())
}
