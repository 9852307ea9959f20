package provider

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates no provider exists for the code.
	ErrNotFound = errors.New("provider not found")

	// ErrFloatExhausted occurs when a float debit would drive the
	// administrative balance held with the upstream provider below zero.
	ErrFloatExhausted = errors.New("provider float exhausted")
)

// Kind groups providers by the service they fulfil.
type Kind string

const (
	KindNetwork     Kind = "network"
	KindElectricity Kind = "electricity"
	KindCable       Kind = "cable"
)

// Provider is an upstream counterparty the platform resells value from.
// APIBalance is the prepaid float held with the upstream, in minor units.
type Provider struct {
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	Kind       Kind      `json:"kind"`
	APIBalance int64     `json:"api_balance"`
	Enabled    bool      `json:"enabled"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Repository persists the provider registry.
type Repository interface {
	Get(ctx context.Context, code string) (Provider, error)
	List(ctx context.Context) ([]Provider, error)
	// AdjustFloat atomically applies delta to the provider's float balance,
	// rejecting debits past zero. Used by admin top-ups and, when the float
	// policy is enabled, by the orchestrator after successful sales.
	AdjustFloat(ctx context.Context, code string, delta int64) (int64, error)
	SetEnabled(ctx context.Context, code string, enabled bool) error
}
