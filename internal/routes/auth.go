package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/topup-ng/topup_ng/internal/auth"
)

// RegisterAuthRoutes wires registration and session endpoints.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, loginLimiter fiber.Handler) {
	r.Post("/register", h.Register)
	r.Post("/login", loginLimiter, h.Login)
	r.Post("/refresh", h.Refresh)
}
