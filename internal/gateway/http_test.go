package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/topup-ng/topup_ng/internal/ledger"
	"github.com/topup-ng/topup_ng/internal/logging"
)

func testRequest(reference string) PurchaseRequest {
	return PurchaseRequest{
		Type:      ledger.TypeAirtime,
		Provider:  "mtn",
		Recipient: "08031234567",
		Amount:    50_000,
		Reference: reference,
	}
}

func TestPurchaseSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Idempotency-Key"); got != "ref-1" {
			t.Errorf("Idempotency-Key = %q, want ref-1", got)
		}
		w.Write([]byte(`{"status":"success","provider_ref":"abc123","message":"delivered"}`))
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "key", time.Second, logging.Discard())
	res, err := g.Purchase(context.Background(), testRequest("ref-1"))
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if res.ProviderRef != "abc123" {
		t.Fatalf("provider ref = %q", res.ProviderRef)
	}
}

func TestPurchaseClientErrorIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":"failed","message":"invalid recipient"}`))
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "key", time.Second, logging.Discard())
	if _, err := g.Purchase(context.Background(), testRequest("ref-2")); !errors.Is(err, ErrRejected) {
		t.Fatalf("err = %v, want ErrRejected", err)
	}
}

func TestPurchaseFailedStatusIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"failed","message":"out of stock"}`))
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "key", time.Second, logging.Discard())
	if _, err := g.Purchase(context.Background(), testRequest("ref-3")); !errors.Is(err, ErrRejected) {
		t.Fatalf("err = %v, want ErrRejected", err)
	}
}

func TestPurchaseServerErrorIsUnknownAndRetriedOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"message":"upstream exploded"}`))
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "key", time.Second, logging.Discard())
	if _, err := g.Purchase(context.Background(), testRequest("ref-4")); !errors.Is(err, ErrOutcomeUnknown) {
		t.Fatalf("err = %v, want ErrOutcomeUnknown", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("attempts = %d, want 2", got)
	}
}

func TestPurchaseTimeoutIsUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "key", 50*time.Millisecond, logging.Discard())
	if _, err := g.Purchase(context.Background(), testRequest("ref-5")); !errors.Is(err, ErrOutcomeUnknown) {
		t.Fatalf("err = %v, want ErrOutcomeUnknown", err)
	}
}

func TestStatusNotFoundIsFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "key", time.Second, logging.Discard())
	res, err := g.Status(context.Background(), "ref-6")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if res.Outcome != OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", res.Outcome)
	}
}

func TestStatusReportsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"delivered","provider_ref":"abc123","token":"1111-2222"}`))
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "key", time.Second, logging.Discard())
	res, err := g.Status(context.Background(), "ref-7")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if res.Outcome != OutcomeSuccess || res.Token != "1111-2222" {
		t.Fatalf("res = %+v, want success with token", res)
	}
}
