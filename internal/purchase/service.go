package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/topup-ng/topup_ng/internal/gateway"
	"github.com/topup-ng/topup_ng/internal/ledger"
	"github.com/topup-ng/topup_ng/internal/metrics"
	"github.com/topup-ng/topup_ng/internal/notification"
	"github.com/topup-ng/topup_ng/internal/provider"
)

// ErrValidation indicates malformed input, rejected before any side effect.
var ErrValidation = errors.New("validation failed")

// Minimum purchase amounts per type, in kobo.
var minAmounts = map[ledger.Type]int64{
	ledger.TypeAirtime:     5_000,
	ledger.TypeData:        30_000,
	ledger.TypeElectricity: 100_000,
	ledger.TypeCable:       90_000,
}

var phonePattern = regexp.MustCompile(`^0\d{10}$`)
var digitsPattern = regexp.MustCompile(`^\d{6,13}$`)

// Config tunes orchestration behaviour.
type Config struct {
	// DebitProviderFloat controls whether a successful sale decrements the
	// provider's administrative float balance. Off by default: float may be
	// tracked out of band.
	DebitProviderFloat bool
	RefundAttempts     int
	RefundBackoff      time.Duration
}

func (c Config) withDefaults() Config {
	if c.RefundAttempts <= 0 {
		c.RefundAttempts = 5
	}
	if c.RefundBackoff <= 0 {
		c.RefundBackoff = 200 * time.Millisecond
	}
	return c
}

// Service sequences balance reservation, the upstream provider call, and
// settlement or compensation for value-added-service purchases.
type Service struct {
	store     ledger.Store
	providers provider.Repository
	gateway   gateway.Gateway
	notifier  notification.Notifier
	logger    *slog.Logger
	cfg       Config
}

// NewService builds the purchase orchestrator.
func NewService(store ledger.Store, providers provider.Repository, gw gateway.Gateway, notifier notification.Notifier, logger *slog.Logger, cfg Config) *Service {
	return &Service{
		store:     store,
		providers: providers,
		gateway:   gw,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg.withDefaults(),
	}
}

// Input carries one purchase request into the orchestrator.
type Input struct {
	UserID    string
	Type      ledger.Type
	Provider  string
	Recipient string
	Amount    int64
	Reference string
	PlanID    string
}

// Purchase runs the full state machine:
//
//	validate -> record pending (idempotency guard) -> reserve funds ->
//	provider call -> settle | refund | mark for reconciliation.
//
// Funds are reserved before the provider is called, so compensation is only
// ever a refund and an insufficient balance never reaches the upstream.
func (s *Service) Purchase(ctx context.Context, in Input) (ledger.Transaction, error) {
	prov, details, err := s.validate(ctx, in)
	if err != nil {
		return ledger.Transaction{}, err
	}

	txn, err := s.store.RecordTransaction(ctx, ledger.Transaction{
		Reference: in.Reference,
		UserID:    in.UserID,
		Type:      in.Type,
		Amount:    in.Amount,
		Status:    ledger.StatusPending,
		Provider:  prov.Code,
		Recipient: in.Recipient,
		Details:   details,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateReference) {
			// Retried request: return the winner's current state instead of
			// repeating the operation.
			if txn.UserID != in.UserID {
				return ledger.Transaction{}, fmt.Errorf("%w: reference already in use", ErrValidation)
			}
			return txn, nil
		}
		return ledger.Transaction{}, err
	}
	metrics.TransactionsTotal.WithLabelValues(string(in.Type), string(ledger.StatusPending)).Inc()

	// From the reservation on, the operation must run to a terminal or
	// reconciliation state, even if the caller disconnects.
	opCtx := context.WithoutCancel(ctx)

	if _, err := s.store.Reserve(opCtx, in.Reference, in.UserID, in.Amount); err != nil {
		if errors.Is(err, ledger.ErrInsufficientBalance) || errors.Is(err, ledger.ErrWalletNotFound) {
			details.Error = "insufficient balance"
			failed, settleErr := s.settleWithRetry(opCtx, in.Reference, ledger.StatusFailed, details, 0)
			if settleErr != nil {
				return txn, settleErr
			}
			return failed, ledger.ErrInsufficientBalance
		}
		return txn, err
	}

	result, gwErr := s.gateway.Purchase(opCtx, gateway.PurchaseRequest{
		Type:      in.Type,
		Provider:  prov.Code,
		Recipient: in.Recipient,
		Amount:    in.Amount,
		Reference: in.Reference,
		PlanID:    in.PlanID,
	})

	switch {
	case gwErr == nil:
		metrics.ProviderCallsTotal.WithLabelValues(prov.Code, "success").Inc()
		return s.settleSuccess(opCtx, in, prov, details, result)

	case errors.Is(gwErr, gateway.ErrRejected):
		metrics.ProviderCallsTotal.WithLabelValues(prov.Code, "rejected").Inc()
		details.Error = gwErr.Error()
		// Refund the reservation. Losing this settlement loses money, so it
		// is retried until it lands or ends up in the operator queue.
		failed, settleErr := s.settleWithRetry(opCtx, in.Reference, ledger.StatusFailed, details, in.Amount)
		if settleErr != nil {
			return txn, settleErr
		}
		s.notify(opCtx, notification.KindPurchaseFailed, in.UserID,
			fmt.Sprintf("Your %s purchase %s failed and was refunded", in.Type, in.Reference))
		return failed, gwErr

	default:
		// Timeout or ambiguous outcome: the purchase may have been fulfilled
		// upstream. Never refund here; flag for reconciliation instead.
		metrics.ProviderCallsTotal.WithLabelValues(prov.Code, "unknown").Inc()
		details.Error = gwErr.Error()
		flagged, markErr := s.store.MarkReconcile(opCtx, in.Reference, details)
		if markErr != nil && !errors.Is(markErr, ledger.ErrAlreadySettled) {
			s.logger.Error("mark reconcile failed", "reference", in.Reference, "error", markErr)
			return txn, markErr
		}
		return flagged, gwErr
	}
}

func (s *Service) settleSuccess(ctx context.Context, in Input, prov provider.Provider, details ledger.Details, result gateway.PurchaseResult) (ledger.Transaction, error) {
	details.ProviderRef = result.ProviderRef
	if details.Electricity != nil {
		details.Electricity.Token = result.Token
		details.Electricity.Units = result.Units
	}

	settled, err := s.settleWithRetry(ctx, in.Reference, ledger.StatusSuccess, details, 0)
	if err != nil {
		return ledger.Transaction{}, err
	}

	if s.cfg.DebitProviderFloat {
		if _, err := s.providers.AdjustFloat(ctx, prov.Code, -in.Amount); err != nil {
			// Float is administrative bookkeeping; never unwind a delivered sale.
			s.logger.Warn("float debit failed", "provider", prov.Code, "reference", in.Reference, "error", err)
		}
	}

	s.notify(ctx, notification.KindPurchaseReceipt, in.UserID,
		fmt.Sprintf("Your %s purchase %s was successful", in.Type, in.Reference))
	return settled, nil
}

// settleWithRetry drives a pending transaction to a terminal status,
// retrying transient storage errors with exponential backoff. On exhaustion
// the transaction stays pending and surfaces in the unresolved listing.
func (s *Service) settleWithRetry(ctx context.Context, reference string, status ledger.Status, details ledger.Details, credit int64) (ledger.Transaction, error) {
	backoff := s.cfg.RefundBackoff
	var lastErr error

	for attempt := 0; attempt < s.cfg.RefundAttempts; attempt++ {
		if attempt > 0 {
			metrics.RefundRetriesTotal.Inc()
			if err := sleep(ctx, backoff); err != nil {
				break
			}
			backoff *= 2
		}

		txn, err := s.store.Settle(ctx, reference, status, details, credit)
		if err == nil || errors.Is(err, ledger.ErrAlreadySettled) {
			if err == nil {
				metrics.TransactionsTotal.WithLabelValues(string(txn.Type), string(status)).Inc()
			}
			return txn, nil
		}
		lastErr = err
		s.logger.Error("settle attempt failed", "reference", reference, "status", status, "attempt", attempt+1, "error", err)
	}

	if txn, markErr := s.store.MarkReconcile(ctx, reference, details); markErr == nil {
		return txn, fmt.Errorf("settlement exhausted retries, flagged for reconciliation: %w", lastErr)
	}
	return ledger.Transaction{}, fmt.Errorf("settlement exhausted retries: %w", lastErr)
}

// Transaction returns a transaction by reference.
func (s *Service) Transaction(ctx context.Context, reference string) (ledger.Transaction, error) {
	return s.store.Transaction(ctx, reference)
}

// List returns transactions matching the filter.
func (s *Service) List(ctx context.Context, f ledger.Filter) ([]ledger.Transaction, error) {
	return s.store.List(ctx, f)
}

// Unresolved lists transactions awaiting reconciliation or operator action.
func (s *Service) Unresolved(ctx context.Context, olderThan time.Duration) ([]ledger.Transaction, error) {
	return s.store.Unresolved(ctx, olderThan)
}

func (s *Service) validate(ctx context.Context, in Input) (provider.Provider, ledger.Details, error) {
	if in.UserID == "" || in.Reference == "" {
		return provider.Provider{}, ledger.Details{}, fmt.Errorf("%w: user and reference are required", ErrValidation)
	}
	min, ok := minAmounts[in.Type]
	if !ok {
		return provider.Provider{}, ledger.Details{}, fmt.Errorf("%w: unsupported purchase type %q", ErrValidation, in.Type)
	}
	if in.Amount < min {
		return provider.Provider{}, ledger.Details{}, fmt.Errorf("%w: amount below minimum %d for %s", ErrValidation, min, in.Type)
	}

	prov, err := s.providers.Get(ctx, in.Provider)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			return provider.Provider{}, ledger.Details{}, fmt.Errorf("%w: unknown provider %q", ErrValidation, in.Provider)
		}
		return provider.Provider{}, ledger.Details{}, err
	}
	if !prov.Enabled {
		return provider.Provider{}, ledger.Details{}, fmt.Errorf("%w: provider %s is disabled", ErrValidation, prov.Code)
	}

	details := ledger.Details{ProviderName: prov.Name}

	switch in.Type {
	case ledger.TypeAirtime, ledger.TypeData:
		if prov.Kind != provider.KindNetwork {
			return provider.Provider{}, ledger.Details{}, fmt.Errorf("%w: provider %s does not sell %s", ErrValidation, prov.Code, in.Type)
		}
		if !phonePattern.MatchString(in.Recipient) {
			return provider.Provider{}, ledger.Details{}, fmt.Errorf("%w: recipient must be an 11-digit phone number", ErrValidation)
		}
		if in.Type == ledger.TypeAirtime {
			details.Airtime = &ledger.AirtimeDetails{PhoneNumber: in.Recipient}
		} else {
			plan, err := s.dataPlan(in, prov)
			if err != nil {
				return provider.Provider{}, ledger.Details{}, err
			}
			details.Data = &ledger.DataDetails{PhoneNumber: in.Recipient, PlanID: plan.ID, PlanName: plan.Name}
		}

	case ledger.TypeElectricity:
		if prov.Kind != provider.KindElectricity {
			return provider.Provider{}, ledger.Details{}, fmt.Errorf("%w: provider %s does not sell electricity", ErrValidation, prov.Code)
		}
		if !digitsPattern.MatchString(in.Recipient) {
			return provider.Provider{}, ledger.Details{}, fmt.Errorf("%w: meter number must be 6-13 digits", ErrValidation)
		}
		details.Electricity = &ledger.ElectricityDetails{MeterNumber: in.Recipient}

	case ledger.TypeCable:
		if prov.Kind != provider.KindCable {
			return provider.Provider{}, ledger.Details{}, fmt.Errorf("%w: provider %s does not sell cable subscriptions", ErrValidation, prov.Code)
		}
		if !digitsPattern.MatchString(in.Recipient) {
			return provider.Provider{}, ledger.Details{}, fmt.Errorf("%w: smartcard number must be 6-13 digits", ErrValidation)
		}
		pkg, err := s.cablePackage(in, prov)
		if err != nil {
			return provider.Provider{}, ledger.Details{}, err
		}
		details.Cable = &ledger.CableDetails{SmartcardNumber: in.Recipient, PackageID: pkg.ID, PackageName: pkg.Name}

	default:
		return provider.Provider{}, ledger.Details{}, fmt.Errorf("%w: unsupported purchase type %q", ErrValidation, in.Type)
	}

	return prov, details, nil
}

func (s *Service) dataPlan(in Input, prov provider.Provider) (provider.Plan, error) {
	if in.PlanID == "" {
		return provider.Plan{}, nil
	}
	plan, ok := provider.FindDataPlan(in.PlanID)
	if !ok || plan.Provider != prov.Code {
		return provider.Plan{}, fmt.Errorf("%w: unknown data plan %q for %s", ErrValidation, in.PlanID, prov.Code)
	}
	if plan.Amount != in.Amount {
		return provider.Plan{}, fmt.Errorf("%w: amount does not match plan price", ErrValidation)
	}
	return plan, nil
}

func (s *Service) cablePackage(in Input, prov provider.Provider) (provider.Plan, error) {
	if in.PlanID == "" {
		return provider.Plan{}, fmt.Errorf("%w: package is required for cable subscriptions", ErrValidation)
	}
	pkg, ok := provider.FindCablePackage(in.PlanID)
	if !ok || pkg.Provider != prov.Code {
		return provider.Plan{}, fmt.Errorf("%w: unknown package %q for %s", ErrValidation, in.PlanID, prov.Code)
	}
	if pkg.Amount != in.Amount {
		return provider.Plan{}, fmt.Errorf("%w: amount does not match package price", ErrValidation)
	}
	return pkg, nil
}

func (s *Service) notify(ctx context.Context, kind, userID, body string) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, notification.Message{Kind: kind, Destination: userID, Body: body})
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
