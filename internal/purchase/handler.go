package purchase

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/topup-ng/topup_ng/internal/gateway"
	"github.com/topup-ng/topup_ng/internal/ledger"
)

// Handler exposes purchase endpoints.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

// NewHandler builds the purchase handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

var pathTypes = map[string]ledger.Type{
	"airtime":     ledger.TypeAirtime,
	"data":        ledger.TypeData,
	"electricity": ledger.TypeElectricity,
	"cable":       ledger.TypeCable,
}

type purchaseRequest struct {
	Provider  string `json:"provider" validate:"required"`
	Recipient string `json:"recipient" validate:"required"`
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	Reference string `json:"reference" validate:"required,min=8,max=64"`
	PlanID    string `json:"plan_id,omitempty"`
}

// Purchase handles POST /purchases/:type.
func (h *Handler) Purchase(c *fiber.Ctx) error {
	purchaseType, ok := pathTypes[c.Params("type")]
	if !ok {
		return fiber.NewError(http.StatusNotFound, "unknown purchase type")
	}

	var req purchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	userID, _ := c.Locals("user_id").(string)

	txn, err := h.svc.Purchase(c.UserContext(), Input{
		UserID:    userID,
		Type:      purchaseType,
		Provider:  req.Provider,
		Recipient: req.Recipient,
		Amount:    req.Amount,
		Reference: req.Reference,
		PlanID:    req.PlanID,
	})

	switch {
	case err == nil:
		return c.Status(http.StatusOK).JSON(transactionResponse(txn))
	case errors.Is(err, ErrValidation):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return c.Status(http.StatusPaymentRequired).JSON(fiber.Map{
			"error":       "insufficient balance",
			"transaction": transactionResponse(txn),
		})
	case errors.Is(err, gateway.ErrRejected):
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{
			"error":       err.Error(),
			"transaction": transactionResponse(txn),
		})
	case errors.Is(err, gateway.ErrOutcomeUnknown):
		// Not failed: the purchase may still land. The client should poll
		// the transaction until reconciliation settles it.
		return c.Status(http.StatusAccepted).JSON(fiber.Map{
			"message":     "purchase outcome pending confirmation",
			"transaction": transactionResponse(txn),
		})
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

// Transaction handles GET /transactions/:reference.
func (h *Handler) Transaction(c *fiber.Ctx) error {
	txn, err := h.svc.Transaction(c.UserContext(), c.Params("reference"))
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			return fiber.NewError(http.StatusNotFound, "transaction not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	userID, _ := c.Locals("user_id").(string)
	role, _ := c.Locals("user_role").(string)
	if txn.UserID != userID && role != "admin" {
		return fiber.NewError(http.StatusNotFound, "transaction not found")
	}
	return c.JSON(transactionResponse(txn))
}

func transactionResponse(txn ledger.Transaction) fiber.Map {
	out := fiber.Map{
		"reference":  txn.Reference,
		"type":       txn.Type,
		"amount":     txn.Amount,
		"status":     txn.Status,
		"provider":   txn.Provider,
		"recipient":  txn.Recipient,
		"details":    txn.Details,
		"created_at": txn.CreatedAt.Format(time.RFC3339),
		"updated_at": txn.UpdatedAt.Format(time.RFC3339),
	}
	if txn.Reconcile {
		out["reconciling"] = true
	}
	return out
}
