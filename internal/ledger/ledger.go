package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInsufficientBalance occurs when a debit would drive a wallet balance
	// below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrDuplicateReference indicates the provided transaction reference
	// already exists and therefore the operation should be treated as idempotent.
	ErrDuplicateReference = errors.New("duplicate reference")

	// ErrWalletNotFound indicates no wallet row exists for the user.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrTransactionNotFound indicates no transaction exists for the reference.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrAlreadySettled indicates the transaction already reached a terminal
	// status; status transitions are monotonic and a terminal status is
	// written exactly once per reference.
	ErrAlreadySettled = errors.New("transaction already settled")
)

// Type identifies what a transaction paid for.
type Type string

const (
	TypeAirtime       Type = "airtime"
	TypeData          Type = "data"
	TypeElectricity   Type = "electricity"
	TypeCable         Type = "cable"
	TypeWalletFunding Type = "wallet_funding"
)

// Valid reports whether t is one of the known transaction types.
func (t Type) Valid() bool {
	switch t {
	case TypeAirtime, TypeData, TypeElectricity, TypeCable, TypeWalletFunding:
		return true
	}
	return false
}

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Transaction is one row in the money log. Reference is the client-supplied
// idempotency key and is globally unique.
type Transaction struct {
	ID        string    `json:"id"`
	Reference string    `json:"reference"`
	UserID    string    `json:"user_id"`
	Type      Type      `json:"type"`
	Amount    int64     `json:"amount"`
	Status    Status    `json:"status"`
	Provider  string    `json:"provider"`
	Recipient string    `json:"recipient"`
	Details   Details   `json:"details"`
	Reconcile bool      `json:"reconcile,omitempty"`
	Reserved  bool      `json:"reserved,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Filter narrows transaction listings.
type Filter struct {
	UserID string
	Type   Type
	Status Status
	Limit  int
}

// Store is the single owner of wallet balances and the transaction log.
// All balance mutation goes through AdjustBalance or Settle; both are atomic
// at the storage layer so concurrent requests against the same wallet
// serialize there instead of racing an application-level read-then-write.
type Store interface {
	// EnsureWallet guarantees a wallet row exists for the user.
	EnsureWallet(ctx context.Context, userID string) error

	// Balance returns the current wallet balance in minor currency units.
	Balance(ctx context.Context, userID string) (int64, error)

	// AdjustBalance atomically applies delta (positive or negative) to the
	// wallet, rejecting debits that would drive the balance negative with
	// ErrInsufficientBalance. Returns the new balance.
	AdjustBalance(ctx context.Context, userID string, delta int64) (int64, error)

	// Reserve debits amount from the user's wallet and marks the pending
	// transaction as reserved in the same storage transaction. The marker is
	// what distinguishes a pending row whose funds were taken (refundable on
	// failure) from one whose debit never landed (nothing to give back).
	Reserve(ctx context.Context, reference, userID string, amount int64) (int64, error)

	// RecordTransaction inserts a transaction row. A reference collision
	// returns ErrDuplicateReference, enforced by the storage layer's unique
	// constraint rather than an application-level check.
	RecordTransaction(ctx context.Context, txn Transaction) (Transaction, error)

	// Transaction fetches a transaction by reference.
	Transaction(ctx context.Context, reference string) (Transaction, error)

	// UpdateDetails replaces the details payload of a still-pending transaction.
	UpdateDetails(ctx context.Context, reference string, details Details) (Transaction, error)

	// Settle moves a pending transaction to a terminal status and, when
	// credit is non-zero, applies that credit to the owner's wallet in the
	// same storage transaction. The pending->terminal transition acts as the
	// gate: if the transaction is already terminal the credit is not applied
	// and ErrAlreadySettled is returned alongside the current row.
	Settle(ctx context.Context, reference string, status Status, details Details, credit int64) (Transaction, error)

	// MarkReconcile flags a pending transaction for reconciliation after an
	// ambiguous provider outcome. The status stays pending.
	MarkReconcile(ctx context.Context, reference string, details Details) (Transaction, error)

	// List returns transactions matching the filter, newest first.
	List(ctx context.Context, f Filter) ([]Transaction, error)

	// Unresolved lists pending transactions flagged for reconciliation or
	// stale beyond the cutoff. This is the operator queue.
	Unresolved(ctx context.Context, olderThan time.Duration) ([]Transaction, error)
}
