package wallet

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/topup-ng/topup_ng/internal/ledger"
)

// Handler exposes wallet read endpoints.
type Handler struct {
	svc *Service
}

// NewHandler builds the wallet handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Balance handles GET /wallet.
func (h *Handler) Balance(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	balance, err := h.svc.Balance(c.UserContext(), userID)
	if err != nil {
		if err == ledger.ErrWalletNotFound {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"user_id": userID, "balance": balance, "currency": "NGN"})
}

// Transactions handles GET /wallet/transactions with optional type, status
// and limit query filters.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	txns, err := h.svc.Transactions(c.UserContext(), ledger.Filter{
		UserID: userID,
		Type:   ledger.Type(c.Query("type")),
		Status: ledger.Status(c.Query("status")),
		Limit:  limit,
	})
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"transactions": txns, "count": len(txns)})
}
