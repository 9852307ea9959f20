package funding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/topup-ng/topup_ng/internal/ledger"
	"github.com/topup-ng/topup_ng/internal/logging"
	"github.com/topup-ng/topup_ng/internal/paystack"
)

type fakePayments struct {
	mu        sync.Mutex
	charges   map[string]int64
	confirmed map[string]bool
	initErr   error
	badSig    bool

	// overrides the confirmed amount when non-zero
	confirmAmount int64
}

func newFakePayments() *fakePayments {
	return &fakePayments{charges: map[string]int64{}, confirmed: map[string]bool{}}
}

func (f *fakePayments) Initialize(_ context.Context, req paystack.InitializeRequest) (paystack.Authorization, error) {
	if f.initErr != nil {
		return paystack.Authorization{}, f.initErr
	}
	f.mu.Lock()
	f.charges[req.Reference] = req.Amount
	f.mu.Unlock()
	return paystack.Authorization{AuthorizationURL: "https://checkout.test/" + req.Reference, Reference: req.Reference}, nil
}

func (f *fakePayments) Verify(_ context.Context, reference string) (paystack.Verification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	amount, ok := f.charges[reference]
	if !ok || !f.confirmed[reference] {
		return paystack.Verification{}, nil
	}
	if f.confirmAmount != 0 {
		amount = f.confirmAmount
	}
	return paystack.Verification{Confirmed: true, Amount: amount, Channel: "card", GatewayResponse: "Approved"}, nil
}

func (f *fakePayments) ValidSignature(_ []byte, _ string) bool {
	return !f.badSig
}

func (f *fakePayments) pay(reference string) {
	f.mu.Lock()
	f.confirmed[reference] = true
	f.mu.Unlock()
}

func newTestFunding(t *testing.T) (*Service, *fakePayments, ledger.Store) {
	t.Helper()
	store := ledger.NewInMemory()
	if err := store.EnsureWallet(context.Background(), "user-1"); err != nil {
		t.Fatalf("EnsureWallet: %v", err)
	}
	payments := newFakePayments()
	svc := NewService(store, payments, nil, logging.Discard(), "https://app.test/callback")
	return svc, payments, store
}

func TestInitiateRecordsPendingBeforeCheckout(t *testing.T) {
	svc, _, store := newTestFunding(t)

	init, err := svc.Initiate(context.Background(), "user-1", "ada@example.com", 100_000, "")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if init.AuthorizationURL == "" {
		t.Fatal("no authorization URL returned")
	}

	txn, err := store.Transaction(context.Background(), init.Transaction.Reference)
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}
	if txn.Status != ledger.StatusPending || txn.Type != ledger.TypeWalletFunding {
		t.Fatalf("txn = %+v, want pending wallet_funding", txn)
	}

	// Nothing credited until the charge is verified.
	balance, _ := store.Balance(context.Background(), "user-1")
	if balance != 0 {
		t.Fatalf("balance = %d, want 0", balance)
	}
}

func TestInitiateGatewayFailureMarksFailed(t *testing.T) {
	svc, payments, store := newTestFunding(t)
	payments.initErr = errors.New("paystack unreachable")

	_, err := svc.Initiate(context.Background(), "user-1", "ada@example.com", 100_000, "")
	if err == nil {
		t.Fatal("expected error")
	}

	txns, err := store.List(context.Background(), ledger.Filter{UserID: "user-1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(txns) != 1 || txns[0].Status != ledger.StatusFailed {
		t.Fatalf("txns = %+v, want one failed funding", txns)
	}
}

func TestVerifyCreditsExactlyOnce(t *testing.T) {
	svc, payments, store := newTestFunding(t)

	init, err := svc.Initiate(context.Background(), "user-1", "ada@example.com", 100_000, "")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	payments.pay(init.Transaction.Reference)

	for i := 0; i < 3; i++ {
		txn, err := svc.Verify(context.Background(), init.Transaction.Reference)
		if err != nil {
			t.Fatalf("Verify #%d: %v", i+1, err)
		}
		if txn.Status != ledger.StatusSuccess {
			t.Fatalf("Verify #%d status = %s, want success", i+1, txn.Status)
		}
	}

	balance, _ := store.Balance(context.Background(), "user-1")
	if balance != 100_000 {
		t.Fatalf("balance = %d, want single credit of 100000", balance)
	}
}

func TestVerifyUnpaidStaysPending(t *testing.T) {
	svc, _, store := newTestFunding(t)

	init, err := svc.Initiate(context.Background(), "user-1", "ada@example.com", 100_000, "")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	if _, err := svc.Verify(context.Background(), init.Transaction.Reference); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("err = %v, want ErrNotConfirmed", err)
	}

	txn, _ := store.Transaction(context.Background(), init.Transaction.Reference)
	if txn.Status != ledger.StatusPending {
		t.Fatalf("status = %s, want pending", txn.Status)
	}
	balance, _ := store.Balance(context.Background(), "user-1")
	if balance != 0 {
		t.Fatalf("balance = %d, want 0", balance)
	}
}

func TestVerifyAmountMismatchNeverCredits(t *testing.T) {
	svc, payments, store := newTestFunding(t)

	init, err := svc.Initiate(context.Background(), "user-1", "ada@example.com", 100_000, "")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	payments.pay(init.Transaction.Reference)
	payments.confirmAmount = 10_000

	if _, err := svc.Verify(context.Background(), init.Transaction.Reference); !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("err = %v, want ErrAmountMismatch", err)
	}
	balance, _ := store.Balance(context.Background(), "user-1")
	if balance != 0 {
		t.Fatalf("balance = %d, want 0", balance)
	}
}

func TestWebhookCreditsThroughVerification(t *testing.T) {
	svc, payments, store := newTestFunding(t)

	init, err := svc.Initiate(context.Background(), "user-1", "ada@example.com", 100_000, "")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	payments.pay(init.Transaction.Reference)

	payload := []byte(fmt.Sprintf(`{"event":"charge.success","data":{"reference":%q}}`, init.Transaction.Reference))
	// Redelivered webhooks must not double-credit.
	for i := 0; i < 2; i++ {
		if err := svc.HandleWebhook(context.Background(), payload, "sig"); err != nil {
			t.Fatalf("HandleWebhook #%d: %v", i+1, err)
		}
	}

	balance, _ := store.Balance(context.Background(), "user-1")
	if balance != 100_000 {
		t.Fatalf("balance = %d, want 100000", balance)
	}
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	svc, payments, _ := newTestFunding(t)
	payments.badSig = true

	err := svc.HandleWebhook(context.Background(), []byte(`{"event":"charge.success"}`), "forged")
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
}

func TestWebhookIgnoresUnknownReference(t *testing.T) {
	svc, _, _ := newTestFunding(t)

	payload := []byte(`{"event":"charge.success","data":{"reference":"fund_nope"}}`)
	if err := svc.HandleWebhook(context.Background(), payload, "sig"); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
}

func TestInitiateRepeatedReferenceReplaysCheckout(t *testing.T) {
	svc, _, store := newTestFunding(t)

	first, err := svc.Initiate(context.Background(), "user-1", "ada@example.com", 100_000, "fund-repeat-1")
	if err != nil {
		t.Fatalf("first Initiate: %v", err)
	}

	second, err := svc.Initiate(context.Background(), "user-1", "ada@example.com", 100_000, "fund-repeat-1")
	if err != nil {
		t.Fatalf("second Initiate: %v", err)
	}
	if second.AuthorizationURL != first.AuthorizationURL {
		t.Fatalf("authorization URL %q, want replay of %q", second.AuthorizationURL, first.AuthorizationURL)
	}

	txns, err := store.List(context.Background(), ledger.Filter{UserID: "user-1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("transactions = %d, want 1", len(txns))
	}
}

func TestInitiateValidation(t *testing.T) {
	svc, _, _ := newTestFunding(t)

	if _, err := svc.Initiate(context.Background(), "user-1", "not-an-email", 100_000, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation for email", err)
	}
	if _, err := svc.Initiate(context.Background(), "user-1", "ada@example.com", 500, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation for amount", err)
	}
}
