package notifications

import (
	"context"
	"errors"
	"sync"

	"github.com/brayobiz/campus-hub-sub000/internal/observability"
	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
)

const (
	// Max connections per device (open tabs)
	maxConnsPerDevice = 12
	// Max total connections
	maxTotalConns = 10000
)

var (
	ErrServerFull = errors.New("server connection limit reached")
	ErrDeviceFull = errors.New("device connection limit reached")
	ErrHubClosed  = errors.New("hub is shutting down")
)

// Hub maps deviceID to the live connections of that device.
type Hub struct {
	mu         sync.RWMutex
	conns      map[string]map[*Client]struct{}
	totalConns int
	closed     bool
	presence   *Presence
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "live hub" }

// NewHub creates a hub. Presence is mirrored to Redis when rdb is given.
func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		conns:    make(map[string]map[*Client]struct{}),
		presence: NewPresence(rdb, PresenceConfig{}),
	}
}

// Presence exposes which devices hold a live connection.
func (h *Hub) Presence() *Presence { return h.presence }

// Register a connection for deviceID. conn may be nil in tests.
func (h *Hub) Register(deviceID string, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	if h.totalConns >= maxTotalConns {
		h.mu.Unlock()
		return nil, ErrServerFull
	}
	m, ok := h.conns[deviceID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[deviceID] = m
	}
	if len(m) >= maxConnsPerDevice {
		h.mu.Unlock()
		return nil, ErrDeviceFull
	}

	client := NewClient(h, conn, deviceID)
	client.OnActivity = func(id string) { h.presence.Touch(context.Background(), id) }
	m[client] = struct{}{}
	h.totalConns++
	h.mu.Unlock()

	observability.WebSocketConnectionsTotal.Inc()
	h.presence.Register(context.Background(), deviceID)
	return client, nil
}

// UnregisterClient drops client; it is safe to call more than once.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	removed := false
	if m, ok := h.conns[client.DeviceID]; ok {
		if _, exists := m[client]; exists {
			delete(m, client)
			h.totalConns--
			removed = true
		}
		if len(m) == 0 {
			delete(h.conns, client.DeviceID)
		}
	}
	h.mu.Unlock()

	if removed {
		observability.WebSocketConnectionsTotal.Dec()
		client.closeSend()
		h.presence.Unregister(context.Background(), client.DeviceID)
	}
}

// Send delivers payload to every connection of deviceID.
func (h *Hub) Send(deviceID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns[deviceID] {
		c.TrySend(payload)
	}
}

// Connected reports how many live connections deviceID holds on this instance.
func (h *Hub) Connected(deviceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[deviceID])
}

// StartWiring connects the Notifier to this hub.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartDeviceSubscriber(ctx, h.Send)
}

// Shutdown closes every connection.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	conns := h.conns
	h.conns = make(map[string]map[*Client]struct{})
	observability.WebSocketConnectionsTotal.Sub(float64(h.totalConns))
	h.totalConns = 0
	h.mu.Unlock()

	h.presence.Stop()
	for deviceID, clients := range conns {
		for client := range clients {
			client.closeSend()
			if client.Conn == nil {
				continue
			}
			if err := client.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
				liveLog.Warn(ctx, "failed to write close message", map[string]any{"device_id": deviceID, "error": err.Error()})
			}
			_ = client.Conn.Close()
		}
	}
	return nil
}
