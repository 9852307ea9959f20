package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/topup-ng/topup_ng/internal/provider"
)

// RegisterCatalogRoutes wires the public provider and plan catalog.
func RegisterCatalogRoutes(r fiber.Router, repo provider.Repository) {
	r.Get("/providers", func(c *fiber.Ctx) error {
		providers, err := repo.List(c.UserContext())
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		out := make([]fiber.Map, 0, len(providers))
		for _, p := range providers {
			if !p.Enabled {
				continue
			}
			// Float balance is an internal figure; the public catalog only
			// shows what customers can buy.
			out = append(out, fiber.Map{"code": p.Code, "name": p.Name, "kind": p.Kind})
		}
		return c.JSON(fiber.Map{"providers": out})
	})

	r.Get("/plans/data", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"plans": provider.DataPlans(c.Query("provider"))})
	})

	r.Get("/plans/cable", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"packages": provider.CablePackages(c.Query("provider"))})
	})
}
