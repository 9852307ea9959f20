package funding

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/topup-ng/topup_ng/internal/ledger"
)

// Handler exposes wallet funding endpoints.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

// NewHandler builds the funding handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

type initiateRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	Reference string `json:"reference,omitempty" validate:"omitempty,min=8,max=64"`
}

// Initiate handles POST /wallet/fund: opens a checkout session for the
// authenticated user.
func (h *Handler) Initiate(c *fiber.Ctx) error {
	var req initiateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	userID, _ := c.Locals("user_id").(string)

	init, err := h.svc.Initiate(c.UserContext(), userID, req.Email, req.Amount, req.Reference)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return fiber.NewError(http.StatusBadGateway, err.Error())
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"reference":         init.Transaction.Reference,
		"status":            init.Transaction.Status,
		"amount":            init.Transaction.Amount,
		"authorization_url": init.AuthorizationURL,
		"access_code":       init.AccessCode,
	})
}

// Verify handles GET /wallet/fund/:reference/verify, typically hit by the
// checkout callback page. Credits at most once no matter how often called.
func (h *Handler) Verify(c *fiber.Ctx) error {
	reference := c.Params("reference")
	userID, _ := c.Locals("user_id").(string)
	role, _ := c.Locals("user_role").(string)

	txn, err := h.svc.Verify(c.UserContext(), reference)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrTransactionNotFound):
			return fiber.NewError(http.StatusNotFound, "transaction not found")
		case errors.Is(err, ErrNotConfirmed):
			return c.Status(http.StatusOK).JSON(fiber.Map{
				"reference": reference,
				"status":    txn.Status,
				"confirmed": false,
			})
		case errors.Is(err, ErrValidation), errors.Is(err, ErrAmountMismatch):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		default:
			return fiber.NewError(http.StatusBadGateway, err.Error())
		}
	}

	if txn.UserID != userID && role != "admin" {
		return fiber.NewError(http.StatusNotFound, "transaction not found")
	}

	return c.JSON(fiber.Map{
		"reference": txn.Reference,
		"status":    txn.Status,
		"amount":    txn.Amount,
		"confirmed": txn.Status == ledger.StatusSuccess,
	})
}

// Webhook handles POST /webhooks/paystack. Always returns 200 for valid
// signatures so the gateway does not retry deliveries we chose to ignore.
func (h *Handler) Webhook(c *fiber.Ctx) error {
	signature := c.Get("X-Paystack-Signature")
	if err := h.svc.HandleWebhook(c.UserContext(), c.Body(), signature); err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			return fiber.NewError(http.StatusUnauthorized, "invalid signature")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(http.StatusOK)
}
