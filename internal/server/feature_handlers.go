package server

import "github.com/gofiber/fiber/v2"

// GetFeatures handles GET /api/features
// @Summary Feature flags
// @Description Evaluated feature flags for the caller, or for anonymous visitors
// @Tags system
// @Produce json
// @Success 200 {object} map[string]bool
// @Router /features [get]
func (s *Server) GetFeatures(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"features": s.featureFlags.Snapshot(callerID(c))})
}
