package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const defaultTimeout = 20 * time.Second

// HTTPGateway talks to a VTU aggregator API over HTTPS. Every call is
// bounded by the configured timeout; the reference is forwarded as the
// upstream idempotency token on each attempt.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPGateway constructs a gateway against the given aggregator base URL.
func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *HTTPGateway {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type purchasePayload struct {
	Service   string `json:"service"`
	Provider  string `json:"provider"`
	Recipient string `json:"recipient"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
	Plan      string `json:"plan,omitempty"`
}

type purchaseResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	ProviderRef string `json:"provider_ref"`
	Token       string `json:"token"`
	Units       string `json:"units"`
}

// Purchase submits the purchase upstream. A single automatic retry is made
// when the failure class is idempotent-safe; the reused reference token
// guards against double fulfilment either way.
func (g *HTTPGateway) Purchase(ctx context.Context, req PurchaseRequest) (PurchaseResult, error) {
	res, err := g.attempt(ctx, req)
	if err != nil && retryable(err) {
		g.logger.Warn("retrying provider purchase", "reference", req.Reference, "error", err)
		res, err = g.attempt(ctx, req)
	}
	return res, err
}

func (g *HTTPGateway) attempt(ctx context.Context, req PurchaseRequest) (PurchaseResult, error) {
	body, err := json.Marshal(purchasePayload{
		Service:   string(req.Type),
		Provider:  req.Provider,
		Recipient: req.Recipient,
		Amount:    req.Amount,
		Reference: req.Reference,
		Plan:      req.PlanID,
	})
	if err != nil {
		return PurchaseResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/purchases", bytes.NewReader(body))
	if err != nil {
		return PurchaseResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	httpReq.Header.Set("Idempotency-Key", req.Reference)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return PurchaseResult{}, classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return PurchaseResult{}, fmt.Errorf("%w: read response: %v", ErrOutcomeUnknown, err)
	}

	var parsed purchaseResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return PurchaseResult{}, fmt.Errorf("%w: malformed response (http %d)", ErrOutcomeUnknown, resp.StatusCode)
	}

	switch {
	case resp.StatusCode >= 500:
		// The aggregator may have forwarded the request before failing.
		return PurchaseResult{}, fmt.Errorf("%w: upstream http %d: %s", ErrOutcomeUnknown, resp.StatusCode, parsed.Message)
	case resp.StatusCode >= 400:
		return PurchaseResult{}, fmt.Errorf("%w: %s", ErrRejected, rejectionReason(parsed.Message, resp.StatusCode))
	}

	switch parsed.Status {
	case "success", "delivered":
		return PurchaseResult{
			ProviderRef: parsed.ProviderRef,
			Token:       parsed.Token,
			Units:       parsed.Units,
			Message:     parsed.Message,
		}, nil
	case "failed":
		return PurchaseResult{}, fmt.Errorf("%w: %s", ErrRejected, rejectionReason(parsed.Message, resp.StatusCode))
	default:
		return PurchaseResult{}, fmt.Errorf("%w: upstream status %q", ErrOutcomeUnknown, parsed.Status)
	}
}

// Status queries the aggregator's authoritative record for a reference.
func (g *HTTPGateway) Status(ctx context.Context, reference string) (StatusResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/purchases/"+reference, nil)
	if err != nil {
		return StatusResult{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return StatusResult{}, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// The upstream never saw the purchase: it cannot have been fulfilled.
		return StatusResult{Outcome: OutcomeFailed, Message: "unknown to provider"}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return StatusResult{Outcome: OutcomeUnknown}, nil
	}

	var parsed purchaseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return StatusResult{Outcome: OutcomeUnknown}, nil
	}

	out := StatusResult{ProviderRef: parsed.ProviderRef, Token: parsed.Token, Message: parsed.Message}
	switch parsed.Status {
	case "success", "delivered":
		out.Outcome = OutcomeSuccess
	case "failed":
		out.Outcome = OutcomeFailed
	default:
		out.Outcome = OutcomeUnknown
	}
	return out, nil
}

// classifyTransportError maps client-side failures onto the three-way
// outcome model. Timeouts are unknown, not failed: the provider may have
// fulfilled the purchase before the deadline fired.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrOutcomeUnknown, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrOutcomeUnknown, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		// The request never left: safe to retry, and a definitive failure
		// if the retry meets the same fate.
		return fmt.Errorf("%w: connect: %w", ErrRejected, err)
	}
	return fmt.Errorf("%w: %v", ErrOutcomeUnknown, err)
}

func retryable(err error) bool {
	return errors.Is(err, ErrOutcomeUnknown) || errors.Is(err, ErrRejected) && isConnectError(err)
}

func isConnectError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func rejectionReason(message string, status int) string {
	if message != "" {
		return message
	}
	return fmt.Sprintf("upstream http %d", status)
}
