package gateway

import (
	"context"
	"errors"

	"github.com/topup-ng/topup_ng/internal/ledger"
)

var (
	// ErrRejected indicates the upstream provider explicitly refused the
	// purchase. The orchestrator treats this as a safe-to-refund failure.
	ErrRejected = errors.New("provider rejected purchase")

	// ErrOutcomeUnknown indicates the call timed out or failed ambiguously
	// after the request may have reached the provider. The orchestrator must
	// not assume success or failure; the transaction goes to reconciliation.
	ErrOutcomeUnknown = errors.New("provider outcome unknown")
)

// PurchaseRequest carries one value-added-service purchase to the upstream.
// Reference doubles as the upstream idempotency token, so a retried call
// cannot fulfil twice.
type PurchaseRequest struct {
	Type      ledger.Type
	Provider  string
	Recipient string
	Amount    int64
	Reference string
	PlanID    string
}

// PurchaseResult is the provider's confirmation of a fulfilled purchase.
type PurchaseResult struct {
	ProviderRef string
	Token       string
	Units       string
	Message     string
}

// Outcome classifies a transaction-status query during reconciliation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeUnknown Outcome = "unknown"
)

// StatusResult is the provider's authoritative answer about a past purchase.
type StatusResult struct {
	Outcome     Outcome
	ProviderRef string
	Token       string
	Message     string
}

// Gateway abstracts the heterogeneous upstream VTU APIs behind one
// capability interface. Implementations never touch the ledger.
type Gateway interface {
	Purchase(ctx context.Context, req PurchaseRequest) (PurchaseResult, error)
	// Status queries the provider's transaction-status endpoint, used to
	// resolve purchases whose original outcome was ambiguous.
	Status(ctx context.Context, reference string) (StatusResult, error)
}
