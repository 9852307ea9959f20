package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestInMemoryStore_AdjustBalanceRejectsNegative(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	if err := s.EnsureWallet(ctx, "user-a"); err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}
	SeedBalance(s, "user-a", 300)

	if _, err := s.AdjustBalance(ctx, "user-a", -500); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	balance, err := s.Balance(ctx, "user-a")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 300 {
		t.Fatalf("balance mutated on rejected debit: %d", balance)
	}
}

func TestInMemoryStore_ConcurrentDebitsNeverGoNegative(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	s.EnsureWallet(ctx, "user-a")
	SeedBalance(s, "user-a", 1_000)

	const workers = 20
	const amount = int64(100)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Half the debits must fail: 20 * 100 > 1000.
			_, _ = s.AdjustBalance(ctx, "user-a", -amount)
		}()
	}
	wg.Wait()

	balance, err := s.Balance(ctx, "user-a")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance < 0 {
		t.Fatalf("balance went negative: %d", balance)
	}
	if balance != 0 {
		t.Fatalf("expected exactly 10 debits to land, balance=%d", balance)
	}
}

func TestInMemoryStore_DuplicateReference(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	first, err := s.RecordTransaction(ctx, Transaction{
		Reference: "ref-1",
		UserID:    "user-a",
		Type:      TypeAirtime,
		Amount:    500,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	second, err := s.RecordTransaction(ctx, Transaction{Reference: "ref-1", UserID: "user-a", Type: TypeAirtime, Amount: 500})
	if !errors.Is(err, ErrDuplicateReference) {
		t.Fatalf("expected duplicate reference, got %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("duplicate should return the original row, got %s want %s", second.ID, first.ID)
	}
}

func TestInMemoryStore_SettleCreditsExactlyOnce(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	s.EnsureWallet(ctx, "user-a")

	if _, err := s.RecordTransaction(ctx, Transaction{
		Reference: "fund-1",
		UserID:    "user-a",
		Type:      TypeWalletFunding,
		Amount:    2_000,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	txn, err := s.Settle(ctx, "fund-1", StatusSuccess, Details{}, 2_000)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if txn.Status != StatusSuccess {
		t.Fatalf("unexpected status %s", txn.Status)
	}

	// Webhook redelivery: second settle must not credit again.
	if _, err := s.Settle(ctx, "fund-1", StatusSuccess, Details{}, 2_000); !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("expected already settled, got %v", err)
	}

	balance, _ := s.Balance(ctx, "user-a")
	if balance != 2_000 {
		t.Fatalf("expected single credit of 2000, balance=%d", balance)
	}
}

func TestInMemoryStore_SettleRejectsNonTerminalStatus(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	s.EnsureWallet(ctx, "user-a")
	s.RecordTransaction(ctx, Transaction{Reference: "ref-nt", UserID: "user-a", Type: TypeAirtime, Amount: 100})

	_, err := s.Settle(ctx, "ref-nt", StatusPending, Details{}, 0)
	if err == nil {
		t.Fatal("expected error for non-terminal status")
	}
	if errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("a bad status argument is not a settled transaction: %v", err)
	}
}

func TestInMemoryStore_ReserveMarksRowAndDebits(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	s.EnsureWallet(ctx, "user-a")
	SeedBalance(s, "user-a", 1_000)

	s.RecordTransaction(ctx, Transaction{Reference: "ref-r", UserID: "user-a", Type: TypeAirtime, Amount: 400})
	balance, err := s.Reserve(ctx, "ref-r", "user-a", 400)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if balance != 600 {
		t.Fatalf("balance = %d, want 600", balance)
	}

	txn, _ := s.Transaction(ctx, "ref-r")
	if !txn.Reserved {
		t.Fatal("reserved marker not set")
	}
}

func TestInMemoryStore_ReserveRejectedLeavesRowUnreserved(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	s.EnsureWallet(ctx, "user-a")
	SeedBalance(s, "user-a", 100)

	s.RecordTransaction(ctx, Transaction{Reference: "ref-r2", UserID: "user-a", Type: TypeAirtime, Amount: 400})
	if _, err := s.Reserve(ctx, "ref-r2", "user-a", 400); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	txn, _ := s.Transaction(ctx, "ref-r2")
	if txn.Reserved {
		t.Fatal("rejected reservation must not mark the row")
	}
	balance, _ := s.Balance(ctx, "user-a")
	if balance != 100 {
		t.Fatalf("balance = %d, want 100", balance)
	}
}

func TestInMemoryStore_SettleIsMonotonic(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	s.EnsureWallet(ctx, "user-a")

	s.RecordTransaction(ctx, Transaction{Reference: "ref-m", UserID: "user-a", Type: TypeAirtime, Amount: 100})
	if _, err := s.Settle(ctx, "ref-m", StatusFailed, Details{Error: "rejected"}, 0); err != nil {
		t.Fatalf("settle failed: %v", err)
	}

	txn, err := s.Settle(ctx, "ref-m", StatusSuccess, Details{}, 0)
	if !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("expected already settled, got %v", err)
	}
	if txn.Status != StatusFailed {
		t.Fatalf("terminal status changed: %s", txn.Status)
	}
}

func TestInMemoryStore_UnresolvedListsFlaggedAndStale(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	s.EnsureWallet(ctx, "user-a")

	s.RecordTransaction(ctx, Transaction{Reference: "amb-1", UserID: "user-a", Type: TypeData, Amount: 1_000})
	if _, err := s.MarkReconcile(ctx, "amb-1", Details{Error: "provider timeout"}); err != nil {
		t.Fatalf("mark reconcile: %v", err)
	}

	s.RecordTransaction(ctx, Transaction{Reference: "done-1", UserID: "user-a", Type: TypeData, Amount: 1_000})
	s.Settle(ctx, "done-1", StatusSuccess, Details{}, 0)

	unresolved, err := s.Unresolved(ctx, time.Hour)
	if err != nil {
		t.Fatalf("unresolved: %v", err)
	}
	if len(unresolved) != 1 || unresolved[0].Reference != "amb-1" {
		t.Fatalf("unexpected unresolved set: %+v", unresolved)
	}
	if unresolved[0].Status != StatusPending {
		t.Fatalf("reconcile flag must not change status, got %s", unresolved[0].Status)
	}
}

func TestInMemoryStore_ConcurrentRecordSameReference(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.RecordTransaction(ctx, Transaction{
				Reference: "race",
				UserID:    "user-a",
				Type:      TypeAirtime,
				Amount:    500,
				Details:   Details{Extra: map[string]string{"attempt": fmt.Sprint(i)}},
			})
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			} else if !errors.Is(err, ErrDuplicateReference) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("expected exactly one insert to win, got %d", winners)
	}
}
