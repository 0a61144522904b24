package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/brayobiz/campus-hub-sub000/internal/observability"
	"github.com/cenkalti/backoff/v5"
)

type realtime struct {
	p *Platform
}

// Subscribe delivers change events of ch.Table, narrowed by ch.Filter.
// The subscription lives until Unsubscribe or platform shutdown; ctx only
// bounds the initial subscribe.
func (r *realtime) Subscribe(ctx context.Context, ch backend.Channel, fn func(backend.ChangeEvent)) (backend.Subscription, error) {
	if _, ok := models.NewRow(ch.Table); !ok {
		return nil, fmt.Errorf("%w: %s", backend.ErrUnknownTable, ch.Table)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(r.p.ctx, cancel)

	err := r.p.listen(subCtx, changeChannel(ch.Table), ch.Name(), func(payload []byte) {
		var ev backend.ChangeEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			log.Printf("realtime %s: bad payload: %v", ch.Name(), err)
			return
		}
		if !matchesFilter(ev, ch.Filter) {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				log.Printf("PANIC in realtime listener %s: %v\n%s", ch.Name(), r, debug.Stack())
			}
		}()
		fn(ev)
	})
	if err != nil {
		stop()
		cancel()
		return nil, fmt.Errorf("subscribe %s: %w", ch.Name(), err)
	}
	return backend.SubscriptionFunc(func() {
		stop()
		cancel()
	}), nil
}

func matchesFilter(ev backend.ChangeEvent, f *backend.Filter) bool {
	if f == nil {
		return true
	}
	var rec map[string]any
	if err := json.Unmarshal(ev.Record, &rec); err != nil {
		return false
	}
	v, ok := rec[f.Column]
	if !ok {
		return false
	}
	return fmt.Sprint(v) == fmt.Sprint(f.Value)
}

// listen subscribes to channel and feeds payloads to handle on a goroutine
// until ctx is done. A dropped stream is re-established under the reconnect
// policy; when the policy is exhausted the listener gives up and logs it.
func (p *Platform) listen(ctx context.Context, channel, name string, handle func([]byte)) error {
	stream, err := p.broker.Subscribe(ctx, channel)
	if err != nil {
		return err
	}
	go func() {
		for {
			if !drain(ctx, stream, handle) {
				return
			}
			next, err := p.resubscribe(ctx, channel, name)
			if err != nil {
				if ctx.Err() == nil {
					observability.RealtimeReconnects.WithLabelValues(name, "gave_up").Inc()
					platformLog.Error(ctx, "realtime subscription lost", err, map[string]any{"channel": name})
				}
				return
			}
			observability.RealtimeReconnects.WithLabelValues(name, "recovered").Inc()
			stream = next
		}
	}()
	return nil
}

// drain handles payloads until ctx is done (false) or the stream closes (true).
func drain(ctx context.Context, stream <-chan []byte, handle func([]byte)) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case payload, ok := <-stream:
			if !ok {
				return ctx.Err() == nil
			}
			if ctx.Err() != nil {
				return false
			}
			handle(payload)
		}
	}
}

func (p *Platform) resubscribe(ctx context.Context, channel, name string) (<-chan []byte, error) {
	if p.reconnect.MaxRetries <= 0 {
		return nil, ErrSubscriptionClosed
	}
	b := backoff.NewExponentialBackOff()
	if p.reconnect.InitialInterval > 0 {
		b.InitialInterval = p.reconnect.InitialInterval
	}
	if p.reconnect.MaxInterval > 0 {
		b.MaxInterval = p.reconnect.MaxInterval
	}
	return backoff.Retry(ctx, func() (<-chan []byte, error) {
		stream, err := p.broker.Subscribe(ctx, channel)
		if errors.Is(err, ErrSubscriptionClosed) {
			return nil, backoff.Permanent(err)
		}
		return stream, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(p.reconnect.MaxRetries)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			observability.RealtimeReconnects.WithLabelValues(name, "retry").Inc()
			platformLog.Warn(ctx, "realtime reconnect failed, retrying", map[string]any{
				"channel": name, "error": err.Error(), "wait_ms": wait.Milliseconds(),
			})
		}),
	)
}
