package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"
)

// StaticGateway simulates a successful upstream integration. Used in
// development when no aggregator credentials are configured.
type StaticGateway struct {
	mu   sync.Mutex
	seen map[string]PurchaseResult
}

// NewStaticGateway builds the simulator.
func NewStaticGateway() *StaticGateway {
	return &StaticGateway{seen: make(map[string]PurchaseResult)}
}

// Purchase approves the request with a synthetic provider reference. Repeat
// references return the original result, mirroring an idempotent upstream.
func (g *StaticGateway) Purchase(_ context.Context, req PurchaseRequest) (PurchaseResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if res, ok := g.seen[req.Reference]; ok {
		return res, nil
	}

	res := PurchaseResult{
		ProviderRef: uuid.NewString(),
		Message:     fmt.Sprintf("%s fulfilled", req.Type),
	}
	if req.Type == "electricity" {
		res.Token = fmt.Sprintf("%04d-%04d-%04d-%04d", rand.Intn(10000), rand.Intn(10000), rand.Intn(10000), rand.Intn(10000))
		res.Units = fmt.Sprintf("%.1f kWh", float64(req.Amount)/5000)
	}
	g.seen[req.Reference] = res
	return res, nil
}

// Status reports success for any purchase the simulator has seen.
func (g *StaticGateway) Status(_ context.Context, reference string) (StatusResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if res, ok := g.seen[reference]; ok {
		return StatusResult{Outcome: OutcomeSuccess, ProviderRef: res.ProviderRef, Token: res.Token}, nil
	}
	return StatusResult{Outcome: OutcomeFailed, Message: "unknown to provider"}, nil
}
