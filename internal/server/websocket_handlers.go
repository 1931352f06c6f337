package server

import (
	"context"
	"log/slog"
	"time"

	"campusfeed/internal/middleware"
	"campusfeed/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebsocketHandler streams the caller's new notifications. Authentication is
// handled by route middleware and the user id is read from connection locals.
func (s *Server) WebsocketHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		uid, ok := conn.Locals(middleware.LocalUserID).(uint)
		if !ok || uid == 0 {
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(uid, conn)
		if err != nil {
			middleware.Logger.Warn("websocket registration rejected",
				slog.Uint64("user_id", uint64(uid)), slog.String("error", err.Error()))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"error":"`+err.Error()+`"}}`))
			_ = conn.Close()
			return
		}
		defer func() {
			s.hub.UnregisterClient(client)
			client.Close()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		unread, err := s.notificationService.UnreadCount(ctx, uid)
		cancel()
		if err != nil {
			middleware.Logger.Warn("unread count for new stream failed",
				slog.Uint64("user_id", uint64(uid)), slog.String("error", err.Error()))
		}
		_ = client.SendEnvelope(notifications.EventConnected, fiber.Map{"unread": unread})

		go client.WritePump()
		client.ReadPump()
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return upgrade(c)
	}
}
