package platform

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/config"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisBroker(t *testing.T) *RedisBroker {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisBroker(rdb)
}

func waitEvent(t *testing.T, ch <-chan backend.ChangeEvent) backend.ChangeEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
		return backend.ChangeEvent{}
	}
}

func TestRealtime_FiltersByCampus(t *testing.T) {
	p := newTestPlatform(t, func(o *Options) { o.Broker = newRedisBroker(t) })
	client := p.ClientFor("dev-1")
	ctx := context.Background()

	events := make(chan backend.ChangeEvent, 8)
	filter := backend.Eq("campus_id", "north")
	sub, err := client.Realtime().Subscribe(ctx, backend.Channel{Table: models.TableEvents, Filter: &filter},
		func(ev backend.ChangeEvent) { events <- ev })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	south := models.Event{CampusScoped: models.CampusScoped{CampusID: "south", UserID: "u1"}, Title: "South fair"}
	north := models.Event{CampusScoped: models.CampusScoped{CampusID: "north", UserID: "u1"}, Title: "North fair"}
	require.NoError(t, client.Tables().Insert(ctx, models.TableEvents, &south))
	require.NoError(t, client.Tables().Insert(ctx, models.TableEvents, &north))

	ev := waitEvent(t, events)
	assert.Equal(t, backend.ChangeInsert, ev.Type)
	var rec models.Event
	require.NoError(t, json.Unmarshal(ev.Record, &rec))
	assert.Equal(t, north.ID, rec.ID)

	require.NoError(t, client.Tables().Delete(ctx, models.TableEvents, backend.Eq("id", north.ID)))
	ev = waitEvent(t, events)
	assert.Equal(t, backend.ChangeDelete, ev.Type)

	select {
	case extra := <-events:
		t.Fatalf("unexpected event %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRealtime_UnsubscribeStopsDelivery(t *testing.T) {
	p := newTestPlatform(t, nil)
	client := p.ClientFor("dev-1")
	ctx := context.Background()

	var mu sync.Mutex
	count := 0
	sub, err := client.Realtime().Subscribe(ctx, backend.Channel{Table: models.TableFood}, func(backend.ChangeEvent) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	require.NoError(t, err)
	sub.Unsubscribe()

	require.NoError(t, client.Tables().Insert(ctx, models.TableFood, &models.FoodItem{
		CampusScoped: models.CampusScoped{CampusID: "north", UserID: "u1"}, Name: "Chapati",
	}))
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, count)
}

func TestRealtime_UnknownTable(t *testing.T) {
	p := newTestPlatform(t, nil)
	_, err := p.ClientFor("dev-1").Realtime().Subscribe(context.Background(), backend.Channel{Table: "auth_users"}, func(backend.ChangeEvent) {})
	assert.ErrorIs(t, err, backend.ErrUnknownTable)
}

// droppingBroker closes the first stream it hands out when drop is called.
type droppingBroker struct {
	*MemoryBroker
	mu         sync.Mutex
	subscribes int
	dropFirst  context.CancelFunc
}

func (b *droppingBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	b.mu.Lock()
	first := b.subscribes == 0
	b.mu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)
	stream, err := b.MemoryBroker.Subscribe(subCtx, channel)
	if err != nil {
		cancel()
		return nil, err
	}
	b.mu.Lock()
	b.subscribes++
	if first {
		b.dropFirst = cancel
	}
	b.mu.Unlock()
	return stream, nil
}

func (b *droppingBroker) drop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropFirst()
}

func (b *droppingBroker) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscribes
}

func TestRealtime_ReconnectsAfterDrop(t *testing.T) {
	broker := &droppingBroker{MemoryBroker: NewMemoryBroker()}
	p := newTestPlatform(t, func(o *Options) {
		o.Broker = broker
		o.Reconnect = config.ReconnectPolicy{MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
	})
	client := p.ClientFor("dev-1")
	ctx := context.Background()

	events := make(chan backend.ChangeEvent, 4)
	sub, err := client.Realtime().Subscribe(ctx, backend.Channel{Table: models.TableNotes}, func(ev backend.ChangeEvent) { events <- ev })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	broker.drop()
	require.Eventually(t, func() bool { return broker.count() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, client.Tables().Insert(ctx, models.TableNotes, &models.Note{
		CampusScoped: models.CampusScoped{CampusID: "north", UserID: "u1"}, Title: "Calculus I", FileURL: "x",
	}))
	ev := waitEvent(t, events)
	assert.Equal(t, models.TableNotes, ev.Table)
}
