package funding

import (
	"context"
	"sync"

	"github.com/topup-ng/topup_ng/internal/paystack"
)

// StaticClient simulates the payment gateway for development: every
// initialized charge verifies as confirmed with the recorded amount.
type StaticClient struct {
	mu      sync.Mutex
	charges map[string]int64
}

// NewStaticClient constructs the simulator.
func NewStaticClient() *StaticClient {
	return &StaticClient{charges: make(map[string]int64)}
}

func (c *StaticClient) Initialize(_ context.Context, req paystack.InitializeRequest) (paystack.Authorization, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.charges[req.Reference] = req.Amount
	return paystack.Authorization{
		AuthorizationURL: "https://checkout.local/" + req.Reference,
		AccessCode:       "dev_" + req.Reference,
		Reference:        req.Reference,
	}, nil
}

func (c *StaticClient) Verify(_ context.Context, reference string) (paystack.Verification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	amount, ok := c.charges[reference]
	if !ok {
		return paystack.Verification{}, nil
	}
	return paystack.Verification{
		Confirmed:       true,
		Amount:          amount,
		Channel:         "dev",
		GatewayResponse: "Approved",
	}, nil
}

func (c *StaticClient) ValidSignature(_ []byte, _ string) bool {
	return true
}
