package routes

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/topup-ng/topup_ng/internal/identity"
	"github.com/topup-ng/topup_ng/internal/ledger"
	"github.com/topup-ng/topup_ng/internal/provider"
	"github.com/topup-ng/topup_ng/internal/purchase"
)

// RegisterAdminRoutes wires the operator surface: user listing, the full
// transaction log, provider management, and the reconciliation queue.
func RegisterAdminRoutes(r fiber.Router, ids *identity.Service, providers provider.Repository, purchases *purchase.Service, reconciler *purchase.Reconciler) {
	r.Get("/users", func(c *fiber.Ctx) error {
		users, err := ids.List(c.UserContext())
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		out := make([]fiber.Map, 0, len(users))
		for _, u := range users {
			out = append(out, fiber.Map{
				"user_id":    u.ID,
				"email":      u.Email,
				"name":       u.Name,
				"role":       u.Role,
				"created_at": u.CreatedAt,
				"last_login": u.LastLogin,
			})
		}
		return c.JSON(fiber.Map{"users": out, "count": len(out)})
	})

	r.Get("/transactions", func(c *fiber.Ctx) error {
		txns, err := purchases.List(c.UserContext(), ledger.Filter{
			UserID: c.Query("user_id"),
			Type:   ledger.Type(c.Query("type")),
			Status: ledger.Status(c.Query("status")),
			Limit:  100,
		})
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"transactions": txns, "count": len(txns)})
	})

	r.Get("/transactions/unresolved", func(c *fiber.Ctx) error {
		txns, err := purchases.Unresolved(c.UserContext(), 0)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"transactions": txns, "count": len(txns)})
	})

	r.Post("/reconcile", func(c *fiber.Ctx) error {
		resolved, err := reconciler.Sweep(c.UserContext())
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"resolved": resolved, "swept_at": time.Now().UTC().Format(time.RFC3339)})
	})

	r.Get("/providers", func(c *fiber.Ctx) error {
		list, err := providers.List(c.UserContext())
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"providers": list})
	})

	r.Post("/providers/:code/float", func(c *fiber.Ctx) error {
		var req struct {
			Amount int64 `json:"amount"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		if req.Amount == 0 {
			return fiber.NewError(http.StatusBadRequest, "amount must be non-zero")
		}
		balance, err := providers.AdjustFloat(c.UserContext(), c.Params("code"), req.Amount)
		if err != nil {
			switch {
			case errors.Is(err, provider.ErrNotFound):
				return fiber.NewError(http.StatusNotFound, "provider not found")
			case errors.Is(err, provider.ErrFloatExhausted):
				return fiber.NewError(http.StatusConflict, err.Error())
			}
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"code": c.Params("code"), "api_balance": balance})
	})

	r.Post("/providers/:code/enabled", func(c *fiber.Ctx) error {
		var req struct {
			Enabled bool `json:"enabled"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		if err := providers.SetEnabled(c.UserContext(), c.Params("code"), req.Enabled); err != nil {
			if errors.Is(err, provider.ErrNotFound) {
				return fiber.NewError(http.StatusNotFound, "provider not found")
			}
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"code": c.Params("code"), "enabled": req.Enabled})
	})
}
