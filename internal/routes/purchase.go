package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/topup-ng/topup_ng/internal/purchase"
)

// RegisterPurchaseRoutes wires value-added-service purchase endpoints.
func RegisterPurchaseRoutes(r fiber.Router, h *purchase.Handler) {
	r.Post("/purchases/:type", h.Purchase)
	r.Get("/transactions/:reference", h.Transaction)
}
