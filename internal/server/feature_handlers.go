package server

import (
	"penfeed/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// Features reports which optional features are on for the caller, so clients can hide
// the upload field or skip the live feed socket.
func (s *Server) Features(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"features": s.featureFlags.Snapshot(middleware.UserID(c))})
}
