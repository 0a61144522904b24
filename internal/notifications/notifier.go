// Package notifications pushes live updates to the browser devices connected
// over websocket.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/brayobiz/campus-hub-sub000/internal/observability"
	"github.com/redis/go-redis/v9"
)

const devicePrefix = "live:device:"

var liveLog = observability.NewComponentLogger("live")

// Event types pushed to devices.
const (
	EventFeedUpdated = "feed_updated"
	EventRedirect    = "redirect"
	EventAlert       = "alert"
	EventDropped     = "messages_dropped"
)

// Event is one message on a device's live channel.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// FeedUpdate is the payload of EventFeedUpdated.
type FeedUpdate struct {
	Domain string `json:"domain"`
	View   any    `json:"view"`
}

// Redirect is the payload of EventRedirect.
type Redirect struct {
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// Notifier publishes device events. With Redis every instance sees the
// event; without it events go straight to the local sink.
type Notifier struct {
	rdb *redis.Client

	mu    sync.RWMutex
	local func(deviceID string, payload []byte)
}

// NewNotifier creates a new Notifier. rdb may be nil.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishDevice sends ev to every live connection of deviceID.
func (n *Notifier) PublishDevice(ctx context.Context, deviceID string, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}
	if n.rdb == nil {
		n.mu.RLock()
		local := n.local
		n.mu.RUnlock()
		if local != nil {
			local(deviceID, payload)
		}
		return nil
	}
	if err := n.rdb.Publish(ctx, DeviceChannel(deviceID), payload).Err(); err != nil {
		observability.RedisErrors.WithLabelValues("publish").Inc()
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	return nil
}

// StartDeviceSubscriber subscribes to every device channel and calls
// onMessage for each payload until ctx is done.
func (n *Notifier) StartDeviceSubscriber(ctx context.Context, onMessage func(deviceID string, payload []byte)) error {
	if n.rdb == nil {
		n.mu.Lock()
		n.local = onMessage
		n.mu.Unlock()
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, devicePrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe device channels: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				deviceID, found := strings.CutPrefix(msg.Channel, devicePrefix)
				if !found || deviceID == "" {
					liveLog.Warn(ctx, "invalid device channel", map[string]any{"channel": msg.Channel})
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							liveLog.Error(ctx, "panic in device subscriber", fmt.Errorf("%v", r), map[string]any{"stack": string(debug.Stack())})
						}
					}()
					onMessage(deviceID, []byte(msg.Payload))
				}()
			}
		}
	}()

	return nil
}

// DeviceChannel derives the Redis channel name for a device.
func DeviceChannel(deviceID string) string {
	return devicePrefix + deviceID
}
