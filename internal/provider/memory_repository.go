package provider

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Provider
}

// NewMemoryRepository constructs an in-memory registry seeded with the
// default Nigerian provider set. Used in tests and DB-less development.
func NewMemoryRepository() Repository {
	r := &memoryRepository{storage: make(map[string]Provider)}
	for _, p := range Defaults() {
		r.storage[p.Code] = p
	}
	return r
}

// Defaults returns the provider set the platform launches with.
func Defaults() []Provider {
	now := time.Now().UTC()
	return []Provider{
		{Code: "mtn", Name: "MTN", Kind: KindNetwork, Enabled: true, UpdatedAt: now},
		{Code: "airtel", Name: "Airtel", Kind: KindNetwork, Enabled: true, UpdatedAt: now},
		{Code: "glo", Name: "Glo", Kind: KindNetwork, Enabled: true, UpdatedAt: now},
		{Code: "9mobile", Name: "9mobile", Kind: KindNetwork, Enabled: true, UpdatedAt: now},
		{Code: "bedc", Name: "Benin Electricity Distribution Company", Kind: KindElectricity, Enabled: true, UpdatedAt: now},
		{Code: "ekdc", Name: "Eko Electricity Distribution Company", Kind: KindElectricity, Enabled: true, UpdatedAt: now},
		{Code: "ikedc", Name: "Ikeja Electricity Distribution Company", Kind: KindElectricity, Enabled: true, UpdatedAt: now},
		{Code: "ibedc", Name: "Ibadan Electricity Distribution Company", Kind: KindElectricity, Enabled: true, UpdatedAt: now},
		{Code: "dstv", Name: "DStv", Kind: KindCable, Enabled: true, UpdatedAt: now},
		{Code: "gotv", Name: "GOtv", Kind: KindCable, Enabled: true, UpdatedAt: now},
		{Code: "startimes", Name: "StarTimes", Kind: KindCable, Enabled: true, UpdatedAt: now},
	}
}

func (r *memoryRepository) Get(_ context.Context, code string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.storage[strings.ToLower(code)]
	if !ok {
		return Provider{}, ErrNotFound
	}
	return p, nil
}

func (r *memoryRepository) List(_ context.Context) ([]Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.storage))
	for _, p := range r.storage {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *memoryRepository) AdjustFloat(_ context.Context, code string, delta int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.storage[strings.ToLower(code)]
	if !ok {
		return 0, ErrNotFound
	}
	if p.APIBalance+delta < 0 {
		return 0, ErrFloatExhausted
	}
	p.APIBalance += delta
	p.UpdatedAt = time.Now().UTC()
	r.storage[p.Code] = p
	return p.APIBalance, nil
}

func (r *memoryRepository) SetEnabled(_ context.Context, code string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.storage[strings.ToLower(code)]
	if !ok {
		return ErrNotFound
	}
	p.Enabled = enabled
	p.UpdatedAt = time.Now().UTC()
	r.storage[p.Code] = p
	return nil
}
