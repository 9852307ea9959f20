package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.paystack.co"

// Client is a minimal Paystack API client covering transaction initialize
// and the authoritative verify endpoint.
type Client struct {
	secret  string
	baseURL string
	http    *http.Client
}

// New constructs a client authenticated with the given secret key.
func New(secret, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		secret:  secret,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// InitializeRequest starts a hosted checkout session. Amount is in kobo.
type InitializeRequest struct {
	Amount      int64  `json:"amount"`
	Email       string `json:"email"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url,omitempty"`
}

// Authorization is the hosted checkout handle returned by initialize.
type Authorization struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Verification is the authoritative outcome of a charge. Confirmed is true
// only when Paystack itself reports the transaction as successful.
type Verification struct {
	Confirmed       bool
	Amount          int64
	Channel         string
	GatewayResponse string
	PaidAt          time.Time
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Initialize creates a pending charge and returns the checkout handle.
func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (Authorization, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Authorization{}, err
	}

	env, err := c.call(ctx, http.MethodPost, "/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return Authorization{}, err
	}
	if !env.Status {
		return Authorization{}, fmt.Errorf("paystack initialize: %s", env.Message)
	}

	var auth Authorization
	if err := json.Unmarshal(env.Data, &auth); err != nil {
		return Authorization{}, fmt.Errorf("decode initialize response: %w", err)
	}
	return auth, nil
}

// Verify queries the transaction verify endpoint. A client-side success
// callback is only a hint; this call is the proof of payment.
func (c *Client) Verify(ctx context.Context, reference string) (Verification, error) {
	env, err := c.call(ctx, http.MethodGet, "/transaction/verify/"+reference, nil)
	if err != nil {
		return Verification{}, err
	}
	if !env.Status {
		return Verification{}, nil
	}

	var data struct {
		Status          string `json:"status"`
		Amount          int64  `json:"amount"`
		Channel         string `json:"channel"`
		GatewayResponse string `json:"gateway_response"`
		PaidAt          string `json:"paid_at"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return Verification{}, fmt.Errorf("decode verify response: %w", err)
	}

	v := Verification{
		Confirmed:       data.Status == "success",
		Amount:          data.Amount,
		Channel:         data.Channel,
		GatewayResponse: data.GatewayResponse,
	}
	if t, err := time.Parse(time.RFC3339, data.PaidAt); err == nil {
		v.PaidAt = t
	}
	return v, nil
}

func (c *Client) call(ctx context.Context, method, path string, body *bytes.Reader) (envelope, error) {
	var reader io.Reader
	if body != nil {
		reader = body
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return envelope{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return envelope{}, fmt.Errorf("paystack request: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return envelope{}, fmt.Errorf("decode paystack response (http %d): %w", resp.StatusCode, err)
	}
	return env, nil
}

// ValidSignature verifies a webhook payload against the X-Paystack-Signature
// header (HMAC-SHA512 of the raw body with the secret key).
func (c *Client) ValidSignature(payload []byte, signature string) bool {
	mac := hmac.New(sha512.New, []byte(c.secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
