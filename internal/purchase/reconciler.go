package purchase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/topup-ng/topup_ng/internal/gateway"
	"github.com/topup-ng/topup_ng/internal/ledger"
	"github.com/topup-ng/topup_ng/internal/metrics"
)

// FundingVerifier resolves a pending wallet funding against the payment
// gateway. Satisfied by the funding service.
type FundingVerifier interface {
	Verify(ctx context.Context, reference string) (ledger.Transaction, error)
}

// Reconciler periodically resolves transactions stuck in the pending state:
// purchases whose provider outcome was unknown, and fundings whose webhook
// never arrived.
type Reconciler struct {
	store      ledger.Store
	gateway    gateway.Gateway
	funding    FundingVerifier
	logger     *slog.Logger
	interval   time.Duration
	staleAfter time.Duration
}

// NewReconciler builds a reconciler. funding may be nil when wallet funding
// is not configured.
func NewReconciler(store ledger.Store, gw gateway.Gateway, funding FundingVerifier, logger *slog.Logger, interval, staleAfter time.Duration) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}
	return &Reconciler{
		store:      store,
		gateway:    gw,
		funding:    funding,
		logger:     logger,
		interval:   interval,
		staleAfter: staleAfter,
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if resolved, err := r.Sweep(ctx); err != nil {
				r.logger.Error("reconcile sweep failed", "error", err)
			} else if resolved > 0 {
				r.logger.Info("reconcile sweep", "resolved", resolved)
			}
		}
	}
}

// Sweep queries every unresolved transaction once against its authoritative
// source and settles those with a definitive answer. Transactions that remain
// ambiguous are left for the next sweep.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	metrics.ReconcileSweepsTotal.Inc()

	txns, err := r.store.Unresolved(ctx, r.staleAfter)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, txn := range txns {
		if err := ctx.Err(); err != nil {
			return resolved, err
		}
		ok, err := r.resolve(ctx, txn)
		if err != nil {
			r.logger.Warn("reconcile skipped", "reference", txn.Reference, "error", err)
			continue
		}
		if ok {
			resolved++
		}
	}
	return resolved, nil
}

func (r *Reconciler) resolve(ctx context.Context, txn ledger.Transaction) (bool, error) {
	if txn.Type == ledger.TypeWalletFunding {
		if r.funding == nil {
			return false, nil
		}
		_, err := r.funding.Verify(ctx, txn.Reference)
		if err != nil {
			// Not yet paid is the expected steady state for a stale funding.
			return false, nil
		}
		return true, nil
	}

	if !txn.Reserved {
		// The wallet debit never landed, so the provider was never called
		// and there is nothing to give back.
		return r.settle(ctx, txn.Reference, ledger.StatusFailed, txn.Details, 0)
	}

	status, err := r.gateway.Status(ctx, txn.Reference)
	if err != nil {
		return false, err
	}

	switch status.Outcome {
	case gateway.OutcomeSuccess:
		details := txn.Details
		if status.ProviderRef != "" {
			details.ProviderRef = status.ProviderRef
		}
		if details.Electricity != nil && status.Token != "" {
			details.Electricity.Token = status.Token
		}
		details.Error = ""
		return r.settle(ctx, txn.Reference, ledger.StatusSuccess, details, 0)

	case gateway.OutcomeFailed:
		details := txn.Details
		details.Error = status.Message
		// Definitive upstream failure: the reservation is refunded.
		return r.settle(ctx, txn.Reference, ledger.StatusFailed, details, txn.Amount)

	default:
		return false, nil
	}
}

func (r *Reconciler) settle(ctx context.Context, reference string, status ledger.Status, details ledger.Details, credit int64) (bool, error) {
	_, err := r.store.Settle(ctx, reference, status, details, credit)
	if err != nil {
		if errors.Is(err, ledger.ErrAlreadySettled) {
			return false, nil
		}
		return false, err
	}
	metrics.TransactionsTotal.WithLabelValues("reconciled", string(status)).Inc()
	return true, nil
}
