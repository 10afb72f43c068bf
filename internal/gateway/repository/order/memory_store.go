package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"charmstudio/internal/apperr"
	"charmstudio/internal/catalog"
	catalogrepo "charmstudio/internal/gateway/repository/catalog"
	"charmstudio/internal/order"
	"charmstudio/internal/pricing"
)

type MemoryStore struct {
	mu        sync.Mutex
	inventory catalogrepo.Inventory
	orders    map[string]order.Record
	byRequest map[string]string
	balances  map[string]int
	now       func() time.Time
}

func NewMemoryStore(inventory catalogrepo.Inventory) *MemoryStore {
	return &MemoryStore{
		inventory: inventory,
		orders:    make(map[string]order.Record),
		byRequest: make(map[string]string),
		balances:  make(map[string]int),
		now:       time.Now,
	}
}

func requestKey(userID, requestID string) string { return userID + "\x00" + requestID }

func (s *MemoryStore) Create(ctx context.Context, rec order.Record) (order.Record, bool, error) {
	if err := rec.Validate(); err != nil {
		return order.Record{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := requestKey(rec.UserID, rec.RequestID)
	if id, ok := s.byRequest[key]; ok {
		return s.orders[id], false, nil
	}
	if _, ok := s.orders[rec.ID]; ok {
		return order.Record{}, false, apperr.Validation("order.Create", "order %s already exists", rec.ID)
	}
	if rec.PointsUsed > s.balances[rec.UserID] {
		return order.Record{}, false, &apperr.Error{Kind: apperr.KindValidation, Op: "order.Create", Err: pricing.ErrInsufficientPoints}
	}
	if err := s.inventory.DecrementStock(ctx, catalog.Demand(rec.CharmDemand())); err != nil {
		return order.Record{}, false, err
	}
	s.balances[rec.UserID] = createdBalance(s.balances[rec.UserID], rec)
	s.orders[rec.ID] = rec
	s.byRequest[key] = rec.ID
	return rec, true, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (order.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.orders[id]
	if !ok {
		return order.Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) FindByRequest(_ context.Context, userID, requestID string) (order.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byRequest[requestKey(userID, requestID)]
	if !ok {
		return order.Record{}, ErrNotFound
	}
	return s.orders[id], nil
}

func (s *MemoryStore) List(_ context.Context, f ListFilter) ([]order.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]order.Record, 0, len(s.orders))
	for _, rec := range s.orders {
		if f.UserID != "" && rec.UserID != f.UserID {
			continue
		}
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if n := f.limit(); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, to order.Status) (order.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.orders[id]
	if !ok {
		return order.Record{}, ErrNotFound
	}
	if err := order.CheckAdvance(rec.Status, to); err != nil {
		return order.Record{}, err
	}
	if to == order.StatusCancelled {
		if err := s.inventory.RestoreStock(ctx, catalog.Demand(rec.CharmDemand())); err != nil {
			return order.Record{}, err
		}
	}
	s.balances[rec.UserID] = movedBalance(s.balances[rec.UserID], rec, to)
	rec.Status = to
	rec.UpdatedAt = s.now().UTC()
	s.orders[id] = rec
	return rec, nil
}

func (s *MemoryStore) PointsBalance(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[userID], nil
}

func (s *MemoryStore) CreditPoints(_ context.Context, userID string, points int) (int, error) {
	if userID == "" {
		return 0, apperr.Validation("order.CreditPoints", "user id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.balances[userID] + points
	if next < 0 {
		return 0, &apperr.Error{Kind: apperr.KindValidation, Op: "order.CreditPoints", Err: pricing.ErrInsufficientPoints}
	}
	s.balances[userID] = next
	return next, nil
}
