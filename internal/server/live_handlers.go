package server

import (
	"context"
	"encoding/json"

	"github.com/brayobiz/campus-hub-sub000/internal/app"
	"github.com/brayobiz/campus-hub-sub000/internal/content"
	"github.com/brayobiz/campus-hub-sub000/internal/guard"
	"github.com/brayobiz/campus-hub-sub000/internal/middleware"
	"github.com/brayobiz/campus-hub-sub000/internal/notifications"
	"github.com/brayobiz/campus-hub-sub000/internal/observability"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

var liveLog = observability.NewComponentLogger("live")

// Commands a page sends over /live.
const (
	liveWatch   = "watch"
	liveRefresh = "refresh"
	livePing    = "ping"
)

type liveCommand struct {
	Type   string `json:"type"`
	Domain string `json:"domain,omitempty"`
}

// LiveUpgrade rejects plain HTTP requests to /live.
func (s *Server) LiveUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return c.Next()
}

// LiveHandler serves the live channel of a device. Every open page of the
// device shares it: feed updates of mounted feeds and redirects caused by
// sign-out arrive here.
func (s *Server) LiveHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		deviceID, _ := conn.Locals(middleware.LocalsDeviceID).(string)
		ctx := observability.WithDeviceID(s.shutdownCtx, deviceID)

		d, err := s.registry.Get(ctx, deviceID)
		if err != nil {
			liveLog.Warn(ctx, "live connection refused", map[string]any{"error": err.Error()})
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"error":"unavailable"}}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(deviceID, conn)
		if err != nil {
			liveLog.Warn(ctx, "live connection refused", map[string]any{"error": err.Error()})
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"error":"`+err.Error()+`"}}`))
			_ = conn.Close()
			return
		}

		client.IncomingHandler = func(c *notifications.Client, message []byte) {
			s.handleLiveCommand(ctx, d, c, message)
		}

		go client.WritePump()
		s.sendGuard(ctx, d, client)
		client.ReadPump()
	})
}

// sendGuard sends a redirect when the device may not stay on a protected
// page. It reports whether the device may render.
func (s *Server) sendGuard(ctx context.Context, d *app.Device, c *notifications.Client) bool {
	waitCtx, cancel := context.WithTimeout(ctx, s.hydrationTimeout())
	defer cancel()
	if err := d.Stores.WaitLoaded(waitCtx); err != nil {
		return false
	}
	dec := guard.Decide(d.Stores.User.Get(), d.Stores.Campus.Get(), true)
	if dec.Outcome == guard.Render {
		return true
	}
	reason := "signed_out"
	if dec.Outcome == guard.RedirectCampus {
		reason = "select_campus"
	}
	sendEvent(ctx, c, notifications.Event{
		Type:    notifications.EventRedirect,
		Payload: notifications.Redirect{To: dec.Target, Reason: reason},
	})
	return false
}

func (s *Server) handleLiveCommand(ctx context.Context, d *app.Device, c *notifications.Client, message []byte) {
	var cmd liveCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		liveLog.Warn(ctx, "invalid live command", map[string]any{"error": err.Error()})
		return
	}

	switch cmd.Type {
	case livePing:
		return
	case liveWatch, liveRefresh:
		domain, ok := content.ParseDomain(cmd.Domain)
		if !ok {
			liveLog.Warn(ctx, "live command for unknown feed", map[string]any{"domain": cmd.Domain})
			return
		}
		if !s.sendGuard(ctx, d, c) {
			return
		}
		screen := d.Feed(ctx, domain)
		if cmd.Type == liveRefresh {
			// The commit fans the new view out to every page of the device.
			screen.Refresh(ctx, false)
			return
		}
		sendEvent(ctx, c, notifications.Event{
			Type:    notifications.EventFeedUpdated,
			Payload: notifications.FeedUpdate{Domain: string(domain), View: screen.Render()},
		})
	default:
		liveLog.Warn(ctx, "unknown live command", map[string]any{"type": cmd.Type})
	}
}

func sendEvent(ctx context.Context, c *notifications.Client, ev notifications.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		liveLog.Error(ctx, "failed to encode live event", err, map[string]any{"type": ev.Type})
		return
	}
	c.TrySend(payload)
}
