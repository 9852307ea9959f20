package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type walletState struct {
	balance int64
	version int64
	updated time.Time
}

type inMemoryStore struct {
	mu      sync.Mutex
	wallets map[string]*walletState
	txns    map[string]*Transaction
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit
// tests and local development without Postgres.
func NewInMemory() Store {
	return &inMemoryStore{
		wallets: make(map[string]*walletState),
		txns:    make(map[string]*Transaction),
	}
}

func (s *inMemoryStore) EnsureWallet(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.wallets[userID]; !exists {
		s.wallets[userID] = &walletState{updated: time.Now().UTC()}
	}
	return nil
}

func (s *inMemoryStore) Balance(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userID]
	if !ok {
		return 0, ErrWalletNotFound
	}
	return w.balance, nil
}

func (s *inMemoryStore) AdjustBalance(_ context.Context, userID string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adjustLocked(userID, delta)
}

func (s *inMemoryStore) adjustLocked(userID string, delta int64) (int64, error) {
	w, ok := s.wallets[userID]
	if !ok {
		return 0, ErrWalletNotFound
	}
	if w.balance+delta < 0 {
		return 0, ErrInsufficientBalance
	}
	w.balance += delta
	w.version++
	w.updated = time.Now().UTC()
	return w.balance, nil
}

func (s *inMemoryStore) Reserve(_ context.Context, reference, userID string, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn, ok := s.txns[reference]
	if !ok {
		return 0, ErrTransactionNotFound
	}
	if txn.Status.Terminal() {
		return 0, ErrAlreadySettled
	}

	balance, err := s.adjustLocked(userID, -amount)
	if err != nil {
		return 0, err
	}
	txn.Reserved = true
	txn.UpdatedAt = time.Now().UTC()
	return balance, nil
}

func (s *inMemoryStore) RecordTransaction(_ context.Context, txn Transaction) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.txns[txn.Reference]; ok {
		return *existing, ErrDuplicateReference
	}

	now := time.Now().UTC()
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	if txn.Status == "" {
		txn.Status = StatusPending
	}
	txn.CreatedAt = now
	txn.UpdatedAt = now

	stored := txn
	s.txns[txn.Reference] = &stored
	return txn, nil
}

func (s *inMemoryStore) Transaction(_ context.Context, reference string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.txns[reference]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return *txn, nil
}

func (s *inMemoryStore) UpdateDetails(_ context.Context, reference string, details Details) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.txns[reference]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	if txn.Status.Terminal() {
		return *txn, ErrAlreadySettled
	}
	txn.Details = details
	txn.UpdatedAt = time.Now().UTC()
	return *txn, nil
}

func (s *inMemoryStore) Settle(_ context.Context, reference string, status Status, details Details, credit int64) (Transaction, error) {
	if !status.Terminal() {
		return Transaction{}, fmt.Errorf("settle requires a terminal status, got %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	txn, ok := s.txns[reference]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	if txn.Status.Terminal() {
		return *txn, ErrAlreadySettled
	}

	if credit != 0 {
		if _, err := s.adjustLocked(txn.UserID, credit); err != nil {
			return Transaction{}, err
		}
	}

	txn.Status = status
	txn.Details = details
	txn.Reconcile = false
	txn.UpdatedAt = time.Now().UTC()
	return *txn, nil
}

func (s *inMemoryStore) MarkReconcile(_ context.Context, reference string, details Details) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.txns[reference]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	if txn.Status.Terminal() {
		return *txn, ErrAlreadySettled
	}
	txn.Details = details
	txn.Reconcile = true
	txn.UpdatedAt = time.Now().UTC()
	return *txn, nil
}

func (s *inMemoryStore) List(_ context.Context, f Filter) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Transaction, 0)
	for _, txn := range s.txns {
		if f.UserID != "" && txn.UserID != f.UserID {
			continue
		}
		if f.Type != "" && txn.Type != f.Type {
			continue
		}
		if f.Status != "" && txn.Status != f.Status {
			continue
		}
		out = append(out, *txn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *inMemoryStore) Unresolved(_ context.Context, olderThan time.Duration) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	out := make([]Transaction, 0)
	for _, txn := range s.txns {
		if txn.Status != StatusPending {
			continue
		}
		if txn.Reconcile || txn.UpdatedAt.Before(cutoff) {
			out = append(out, *txn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
