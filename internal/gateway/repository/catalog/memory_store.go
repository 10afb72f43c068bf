package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"

	"charmstudio/internal/apperr"
	"charmstudio/internal/catalog"
)

type MemoryStore struct {
	mu     sync.RWMutex
	models map[string]catalog.JewelryModel
	charms map[string]catalog.Charm
	// order keeps charms in insertion order for stable listings.
	order []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		models: make(map[string]catalog.JewelryModel),
		charms: make(map[string]catalog.Charm),
	}
}

// NewSeededMemoryStore returns a store holding the demo catalog.
func NewSeededMemoryStore() *MemoryStore {
	s := NewMemoryStore()
	for _, m := range SeedModels() {
		s.models[m.ID] = m
	}
	for _, c := range SeedCharms() {
		s.charms[c.ID] = c
		s.order = append(s.order, c.ID)
	}
	return s
}

func (s *MemoryStore) JewelryTypes(_ context.Context, seeds []catalog.TypeSeed) ([]catalog.JewelryType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.JewelryType, 0, len(seeds))
	for _, seed := range seeds {
		jt := catalog.JewelryType{ID: seed.ID, Name: seed.Name, Description: seed.Description, Models: []catalog.JewelryModel{}}
		for _, m := range s.models {
			if m.TypeID == seed.ID {
				jt.Models = append(jt.Models, m)
			}
		}
		sort.Slice(jt.Models, func(i, j int) bool { return jt.Models[i].Name < jt.Models[j].Name })
		out = append(out, jt)
	}
	return out, nil
}

func (s *MemoryStore) Charms(_ context.Context) ([]catalog.Charm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Charm, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.charms[id])
	}
	return out, nil
}

func (s *MemoryStore) Charm(_ context.Context, id string) (catalog.Charm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.charms[strings.TrimSpace(id)]
	if !ok {
		return catalog.Charm{}, catalog.ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) UpsertModel(_ context.Context, m catalog.JewelryModel) error {
	if err := validateModel(m); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[m.ID] = m
	return nil
}

func (s *MemoryStore) UpsertCharm(_ context.Context, c catalog.Charm) error {
	if err := validateCharm(c); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.charms[c.ID]; !ok {
		s.order = append(s.order, c.ID)
	}
	s.charms[c.ID] = c
	return nil
}

func (s *MemoryStore) SetStock(_ context.Context, id string, stock int) (catalog.Charm, error) {
	if stock < 0 {
		return catalog.Charm{}, apperr.Validation("catalog.SetStock", "stock cannot be negative")
	}
	return s.update(id, func(c *catalog.Charm) { c.Stock = stock })
}

func (s *MemoryStore) SetLowStockThreshold(_ context.Context, id string, threshold int) (catalog.Charm, error) {
	if threshold < 0 {
		return catalog.Charm{}, apperr.Validation("catalog.SetLowStockThreshold", "threshold cannot be negative")
	}
	return s.update(id, func(c *catalog.Charm) { c.LowStockThreshold = threshold })
}

func (s *MemoryStore) update(id string, fn func(*catalog.Charm)) (catalog.Charm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.charms[strings.TrimSpace(id)]
	if !ok {
		return catalog.Charm{}, catalog.ErrNotFound
	}
	fn(&c)
	s.charms[c.ID] = c
	return c, nil
}

func (s *MemoryStore) LowStock(_ context.Context) ([]catalog.Charm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []catalog.Charm
	for _, id := range s.order {
		if c := s.charms[id]; c.LowStock() {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Stock < out[j].Stock })
	return out, nil
}

func (s *MemoryStore) DecrementStock(_ context.Context, d catalog.Demand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	short := catalog.ShortfallsOf(d, func(id string) (int, bool) {
		c, ok := s.charms[id]
		return c.Stock, ok
	})
	if len(short) > 0 {
		return &catalog.StockError{Shortfalls: short}
	}
	for _, id := range d.IDs() {
		c := s.charms[id]
		c.Stock -= d[id]
		s.charms[id] = c
	}
	return nil
}

func (s *MemoryStore) RestoreStock(_ context.Context, d catalog.Demand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range d.IDs() {
		c, ok := s.charms[id]
		if !ok {
			continue
		}
		c.Stock += d[id]
		s.charms[id] = c
	}
	return nil
}

func validateModel(m catalog.JewelryModel) error {
	switch {
	case strings.TrimSpace(m.ID) == "":
		return apperr.Validation("catalog.Upsert", "model id is required")
	case !m.TypeID.Valid():
		return apperr.Validation("catalog.Upsert", "model %s: unknown jewelry type %q", m.ID, m.TypeID)
	case m.Price.IsNegative():
		return apperr.Validation("catalog.Upsert", "model %s: price cannot be negative", m.ID)
	}
	return nil
}

func validateCharm(c catalog.Charm) error {
	switch {
	case strings.TrimSpace(c.ID) == "":
		return apperr.Validation("catalog.Upsert", "charm id is required")
	case strings.TrimSpace(c.Name) == "":
		return apperr.Validation("catalog.Upsert", "charm %s: name is required", c.ID)
	case c.Price.IsNegative():
		return apperr.Validation("catalog.Upsert", "charm %s: price cannot be negative", c.ID)
	case c.Stock < 0:
		return apperr.Validation("catalog.Upsert", "charm %s: stock cannot be negative", c.ID)
	}
	return nil
}
