package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/topup-ng/topup_ng/internal/funding"
	"github.com/topup-ng/topup_ng/internal/wallet"
)

// RegisterWalletRoutes wires wallet balance, history and funding endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler, f *funding.Handler) {
	r.Get("/wallet", h.Balance)
	r.Get("/wallet/transactions", h.Transactions)
	r.Post("/wallet/fund", f.Initiate)
	r.Get("/wallet/fund/:reference/verify", f.Verify)
}
