package wallet

import (
	"context"

	"github.com/topup-ng/topup_ng/internal/ledger"
)

// Service exposes wallet reads over the ledger store.
type Service struct {
	store ledger.Store
}

// NewService constructs a wallet service.
func NewService(store ledger.Store) *Service {
	return &Service{store: store}
}

// Ensure creates the user's wallet if it does not exist yet.
func (s *Service) Ensure(ctx context.Context, userID string) error {
	return s.store.EnsureWallet(ctx, userID)
}

// Balance returns the wallet balance in kobo.
func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	return s.store.Balance(ctx, userID)
}

// Transactions returns the user's transaction history, newest first.
func (s *Service) Transactions(ctx context.Context, f ledger.Filter) ([]ledger.Transaction, error) {
	return s.store.List(ctx, f)
}
