package coupon

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"charmstudio/internal/pricing"
)

type MemoryStore struct {
	mu      sync.RWMutex
	coupons map[string]pricing.Coupon
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{coupons: make(map[string]pricing.Coupon)}
}

// NewSeededMemoryStore holds the demo coupons.
func NewSeededMemoryStore() *MemoryStore {
	s := NewMemoryStore()
	for _, c := range SeedCoupons() {
		s.coupons[c.Code] = c
	}
	return s
}

func SeedCoupons() []pricing.Coupon {
	expired := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []pricing.Coupon{
		{Code: "BIENVENUE5", Kind: pricing.DiscountFlat, Amount: decimal.RequireFromString("5.00"), MinSubtotal: decimal.Zero},
		{Code: "PRINTEMPS10", Kind: pricing.DiscountPercent, Amount: decimal.NewFromInt(10), MinSubtotal: decimal.RequireFromString("30.00")},
		{Code: "NOEL2023", Kind: pricing.DiscountPercent, Amount: decimal.NewFromInt(20), MinSubtotal: decimal.Zero, ExpiresAt: &expired},
	}
}

func (s *MemoryStore) Coupon(_ context.Context, code string) (pricing.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.coupons[pricing.NormalizeCode(code)]
	if !ok {
		return pricing.Coupon{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) Upsert(_ context.Context, c pricing.Coupon) error {
	c.Code = pricing.NormalizeCode(c.Code)
	if err := validate(c); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coupons[c.Code] = c
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]pricing.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]pricing.Coupon, 0, len(s.coupons))
	for _, c := range s.coupons {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}
