package funding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/topup-ng/topup_ng/internal/ledger"
	"github.com/topup-ng/topup_ng/internal/metrics"
	"github.com/topup-ng/topup_ng/internal/notification"
	"github.com/topup-ng/topup_ng/internal/paystack"
)

const minFundingAmount = 10_000 // kobo

var (
	// ErrNotConfirmed indicates the payment gateway has not (yet) confirmed
	// the charge. The funding stays pending and may confirm later.
	ErrNotConfirmed = errors.New("payment not confirmed")

	// ErrAmountMismatch indicates the gateway confirmed a different amount
	// than the one recorded. The wallet is not credited; operator review.
	ErrAmountMismatch = errors.New("confirmed amount does not match transaction")

	// ErrInvalidSignature indicates a webhook payload failed HMAC validation.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrValidation indicates malformed funding input.
	ErrValidation = errors.New("validation failed")
)

// PaymentClient is the slice of the Paystack API the funding flow needs.
type PaymentClient interface {
	Initialize(ctx context.Context, req paystack.InitializeRequest) (paystack.Authorization, error)
	Verify(ctx context.Context, reference string) (paystack.Verification, error)
	ValidSignature(payload []byte, signature string) bool
}

// Service runs the wallet funding flow: record first, then initialize the
// hosted checkout, and credit only on a verified charge.
type Service struct {
	store       ledger.Store
	payments    PaymentClient
	notifier    notification.Notifier
	logger      *slog.Logger
	callbackURL string
}

// NewService builds the funding service.
func NewService(store ledger.Store, payments PaymentClient, notifier notification.Notifier, logger *slog.Logger, callbackURL string) *Service {
	return &Service{
		store:       store,
		payments:    payments,
		notifier:    notifier,
		logger:      logger,
		callbackURL: callbackURL,
	}
}

// Initiation is the result of starting a funding: the pending transaction and
// the checkout URL the customer completes payment at.
type Initiation struct {
	Transaction      ledger.Transaction
	AuthorizationURL string
	AccessCode       string
}

// Initiate records a pending wallet funding and opens a checkout session.
// The transaction is written before the gateway is called, so a crash in
// between leaves a pending row the reconciler can resolve, never an orphaned
// charge. A repeated reference replays the original checkout instead of
// opening a second charge.
func (s *Service) Initiate(ctx context.Context, userID, email string, amount int64, reference string) (Initiation, error) {
	if userID == "" {
		return Initiation{}, fmt.Errorf("%w: user is required", ErrValidation)
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return Initiation{}, fmt.Errorf("%w: valid email required", ErrValidation)
	}
	if amount < minFundingAmount {
		return Initiation{}, fmt.Errorf("%w: minimum funding amount is %d kobo", ErrValidation, minFundingAmount)
	}
	if reference == "" {
		reference = "fund_" + uuid.New().String()
	}

	details := ledger.Details{
		Funding: &ledger.FundingDetails{PaymentMethod: "paystack", Email: email},
	}

	txn, err := s.store.RecordTransaction(ctx, ledger.Transaction{
		Reference: reference,
		UserID:    userID,
		Type:      ledger.TypeWalletFunding,
		Amount:    amount,
		Status:    ledger.StatusPending,
		Provider:  "paystack",
		Recipient: email,
		Details:   details,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateReference) {
			if txn.UserID != userID || txn.Type != ledger.TypeWalletFunding {
				return Initiation{}, fmt.Errorf("%w: reference already in use", ErrValidation)
			}
			out := Initiation{Transaction: txn}
			if txn.Details.Funding != nil {
				out.AuthorizationURL = txn.Details.Funding.AuthorizationURL
			}
			return out, nil
		}
		return Initiation{}, err
	}
	metrics.TransactionsTotal.WithLabelValues(string(ledger.TypeWalletFunding), string(ledger.StatusPending)).Inc()

	auth, err := s.payments.Initialize(ctx, paystack.InitializeRequest{
		Amount:      amount,
		Email:       email,
		Reference:   reference,
		CallbackURL: s.callbackURL,
	})
	if err != nil {
		details.Error = err.Error()
		if _, settleErr := s.store.Settle(context.WithoutCancel(ctx), reference, ledger.StatusFailed, details, 0); settleErr != nil {
			s.logger.Error("failing funding after initialize error", "reference", reference, "error", settleErr)
		}
		return Initiation{}, fmt.Errorf("initialize payment: %w", err)
	}

	details.Funding.AuthorizationURL = auth.AuthorizationURL
	if updated, err := s.store.UpdateDetails(ctx, reference, details); err == nil {
		txn = updated
	}

	return Initiation{
		Transaction:      txn,
		AuthorizationURL: auth.AuthorizationURL,
		AccessCode:       auth.AccessCode,
	}, nil
}

// Verify asks the gateway whether the charge landed and credits the wallet on
// confirmation. Safe to call any number of times from any trigger (callback,
// webhook, reconciler): the settlement gate means the credit happens once.
func (s *Service) Verify(ctx context.Context, reference string) (ledger.Transaction, error) {
	txn, err := s.store.Transaction(ctx, reference)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if txn.Type != ledger.TypeWalletFunding {
		return txn, fmt.Errorf("%w: not a funding transaction", ErrValidation)
	}
	if txn.Status.Terminal() {
		if txn.Status == ledger.StatusSuccess {
			return txn, nil
		}
		return txn, ErrNotConfirmed
	}

	v, err := s.payments.Verify(ctx, reference)
	if err != nil {
		return txn, fmt.Errorf("verify payment: %w", err)
	}
	if !v.Confirmed {
		return txn, ErrNotConfirmed
	}
	if v.Amount != txn.Amount {
		s.logger.Error("funding amount mismatch", "reference", reference, "recorded", txn.Amount, "confirmed", v.Amount)
		return txn, ErrAmountMismatch
	}

	details := txn.Details
	if details.Funding == nil {
		details.Funding = &ledger.FundingDetails{PaymentMethod: "paystack"}
	}
	details.Funding.Channel = v.Channel
	details.Funding.GatewayResponse = v.GatewayResponse
	details.Error = ""

	settled, err := s.store.Settle(ctx, reference, ledger.StatusSuccess, details, txn.Amount)
	if err != nil {
		if errors.Is(err, ledger.ErrAlreadySettled) {
			// Lost the race with another verification trigger.
			return settled, nil
		}
		return txn, err
	}
	metrics.TransactionsTotal.WithLabelValues(string(ledger.TypeWalletFunding), string(ledger.StatusSuccess)).Inc()

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindWalletFunded,
			Destination: settled.UserID,
			Body:        fmt.Sprintf("Your wallet was funded with %d kobo", settled.Amount),
		})
	}
	return settled, nil
}

type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

// HandleWebhook validates and processes a Paystack event delivery. The
// webhook is only a trigger; the charge is still proven through Verify, so a
// forged or replayed body can never credit a wallet.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if !s.payments.ValidSignature(payload, signature) {
		return ErrInvalidSignature
	}

	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decode webhook payload: %w", err)
	}
	if event.Event != "charge.success" || event.Data.Reference == "" {
		return nil
	}

	if _, err := s.Verify(ctx, event.Data.Reference); err != nil {
		switch {
		case errors.Is(err, ErrNotConfirmed), errors.Is(err, ledger.ErrTransactionNotFound):
			// Deliveries for charges we do not recognise or cannot confirm
			// are acknowledged without action.
			s.logger.Warn("webhook not actionable", "reference", event.Data.Reference, "error", err)
			return nil
		default:
			return err
		}
	}
	return nil
}
