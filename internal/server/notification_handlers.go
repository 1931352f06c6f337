package server

import (
	"github.com/gofiber/fiber/v2"
)

// ListNotifications handles GET /api/notifications
// @Summary List notifications
// @Description Newest first, at most 50
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param limit query int false "At most 50"
// @Success 200 {array} models.NotificationView
// @Router /notifications [get]
func (s *Server) ListNotifications(c *fiber.Ctx) error {
	list, err := s.notificationService.List(c.UserContext(), callerID(c), c.QueryInt("limit", 0))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(list)
}

// UnreadCount handles GET /api/notifications/unread-count
func (s *Server) UnreadCount(c *fiber.Ctx) error {
	n, err := s.notificationService.UnreadCount(c.UserContext(), callerID(c))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"count": n})
}

// MarkNotificationRead handles POST /api/notifications/:id/read
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	n, err := s.notificationService.MarkRead(c.UserContext(), id, callerID(c))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(n)
}

// MarkAllNotificationsRead handles POST /api/notifications/read-all
func (s *Server) MarkAllNotificationsRead(c *fiber.Ctx) error {
	n, err := s.notificationService.MarkAllRead(c.UserContext(), callerID(c))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"updated": n})
}
