package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/brayobiz/campus-hub-sub000/internal/observability"
	"github.com/gofiber/websocket/v2"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

var dropNotice = []byte(`{"type":"messages_dropped","payload":{"reason":"buffer_full"}}`)

// Client sits between one websocket connection and the hub.
type Client struct {
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	// Buffered channel of outbound messages.
	Send chan []byte

	DeviceID string

	// IncomingHandler receives every frame read from the peer.
	IncomingHandler func(*Client, []byte)
	// OnActivity fires on every frame and pong.
	OnActivity func(deviceID string)

	closeOnce sync.Once
	mu        sync.RWMutex
	sendDone  bool
}

// NewClient creates a new Client instance
func NewClient(hub *Hub, conn *websocket.Conn, deviceID string) *Client {
	return &Client{
		Hub:      hub,
		Conn:     conn,
		DeviceID: deviceID,
		Send:     make(chan []byte, 64),
	}
}

// ReadPump pumps frames from the websocket connection until it fails.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.UnregisterClient(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		c.touch()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				liveLog.Warn(context.Background(), "read pump error", map[string]any{"device_id": c.DeviceID, "error": err.Error()})
			}
			return
		}
		c.touch()
		if c.IncomingHandler != nil {
			c.IncomingHandler(c, message)
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues message without blocking. A full buffer drops it and
// queues a notice so the page knows to re-fetch.
func (c *Client) TrySend(message []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sendDone {
		observability.WebSocketBackpressureDrops.WithLabelValues(c.Hub.Name(), "closed").Inc()
		return
	}

	select {
	case c.Send <- message:
	default:
		observability.WebSocketBackpressureDrops.WithLabelValues(c.Hub.Name(), "full").Inc()
		liveLog.Warn(context.Background(), "buffer full, dropped message", map[string]any{"device_id": c.DeviceID})
		select {
		case c.Send <- dropNotice:
		default:
		}
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.sendDone = true
		close(c.Send)
		c.mu.Unlock()
	})
}

func (c *Client) touch() {
	if c.OnActivity != nil {
		c.OnActivity(c.DeviceID)
	}
}
