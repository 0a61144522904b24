package platform

import (
	"context"
	"errors"
	"log"
	"runtime/debug"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ErrSubscriptionClosed is reported when a broker stream ends without the
// subscriber asking for it.
var ErrSubscriptionClosed = errors.New("subscription closed by broker")

// Broker fans payloads out to subscribers of a channel.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns a stream that is closed when ctx is done or the
	// broker drops the subscription.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// RedisBroker uses Redis pub/sub, so every server process sees every change.
type RedisBroker struct {
	rdb *redis.Client
}

// NewRedisBroker creates a broker on top of rdb.
func NewRedisBroker(rdb *redis.Client) *RedisBroker {
	return &RedisBroker{rdb: rdb}
}

func (b *RedisBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.rdb.Publish(ctx, channel, payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	sub := b.rdb.Subscribe(ctx, channel)
	// Wait for the confirmation so nothing published after return is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}
	msgs := sub.Channel()
	out := make(chan []byte, 16)

	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("PANIC in RedisBroker subscriber: %v\n%s", r, debug.Stack())
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (b *RedisBroker) Close() error { return nil }

// MemoryBroker delivers within one process. Used when Redis is unavailable
// and in tests.
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[string]map[chan []byte]struct{}
	closed bool
}

// NewMemoryBroker creates an empty in-process broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[chan []byte]struct{})}
}

func (b *MemoryBroker) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[channel] {
		select {
		case ch <- payload:
		default:
			log.Printf("memory broker: subscriber on %s is full, dropping message", channel)
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrSubscriptionClosed
	}
	ch := make(chan []byte, 64)
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[chan []byte]struct{})
	}
	b.subs[channel][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[channel][ch]; ok {
			delete(b.subs[channel], ch)
			close(ch)
		}
	}()
	return ch, nil
}

// Close ends every open subscription.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for channel, set := range b.subs {
		for ch := range set {
			close(ch)
		}
		delete(b.subs, channel)
	}
	return nil
}
