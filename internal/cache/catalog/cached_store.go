package catalog

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"charmstudio/internal/catalog"
	catalogrepo "charmstudio/internal/gateway/repository/catalog"
)

type Store = catalogrepo.Store

type CacheConfig struct {
	TTL        time.Duration
	MaxEntries int
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 30 * time.Second, MaxEntries: 64}
}

type MetricsSnapshot struct {
	TypesHits    uint64
	TypesMisses  uint64
	CharmsHits   uint64
	CharmsMisses uint64
	OriginReads  uint64
	OriginWrites uint64
	Invalidated  uint64
}

type Metrics struct {
	typesHits    atomic.Uint64
	typesMisses  atomic.Uint64
	charmsHits   atomic.Uint64
	charmsMisses atomic.Uint64
	originReads  atomic.Uint64
	originWrites atomic.Uint64
	invalidated  atomic.Uint64
}

func (m *Metrics) snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		TypesHits:    m.typesHits.Load(),
		TypesMisses:  m.typesMisses.Load(),
		CharmsHits:   m.charmsHits.Load(),
		CharmsMisses: m.charmsMisses.Load(),
		OriginReads:  m.originReads.Load(),
		OriginWrites: m.originWrites.Load(),
		Invalidated:  m.invalidated.Load(),
	}
}

const charmsKey = "charms"

// CachedStore serves catalog reads from a TTL bounded LRU. Writes go to the
// origin and drop every cached read. Stock in cached reads is advisory.
type CachedStore struct {
	origin Store

	types   *expirable.LRU[string, []catalog.JewelryType]
	charms  *expirable.LRU[string, []catalog.Charm]
	metrics Metrics
}

func NewCachedStore(origin Store, cfg CacheConfig) *CachedStore {
	def := DefaultCacheConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = def.MaxEntries
	}
	return &CachedStore{
		origin: origin,
		types:  expirable.NewLRU[string, []catalog.JewelryType](cfg.MaxEntries, nil, cfg.TTL),
		charms: expirable.NewLRU[string, []catalog.Charm](1, nil, cfg.TTL),
	}
}

func (s *CachedStore) JewelryTypes(ctx context.Context, seeds []catalog.TypeSeed) ([]catalog.JewelryType, error) {
	key := seedsKey(seeds)
	if v, ok := s.types.Get(key); ok {
		s.metrics.typesHits.Add(1)
		return cloneTypes(v), nil
	}
	s.metrics.typesMisses.Add(1)
	s.metrics.originReads.Add(1)
	v, err := s.origin.JewelryTypes(ctx, seeds)
	if err != nil {
		return nil, err
	}
	s.types.Add(key, cloneTypes(v))
	return v, nil
}

func (s *CachedStore) Charms(ctx context.Context) ([]catalog.Charm, error) {
	if v, ok := s.charms.Get(charmsKey); ok {
		s.metrics.charmsHits.Add(1)
		return append([]catalog.Charm(nil), v...), nil
	}
	s.metrics.charmsMisses.Add(1)
	s.metrics.originReads.Add(1)
	v, err := s.origin.Charms(ctx)
	if err != nil {
		return nil, err
	}
	s.charms.Add(charmsKey, append([]catalog.Charm(nil), v...))
	return v, nil
}

// Charm always reads the origin.
func (s *CachedStore) Charm(ctx context.Context, id string) (catalog.Charm, error) {
	s.metrics.originReads.Add(1)
	return s.origin.Charm(ctx, id)
}

// LowStock always reads the origin.
func (s *CachedStore) LowStock(ctx context.Context) ([]catalog.Charm, error) {
	s.metrics.originReads.Add(1)
	return s.origin.LowStock(ctx)
}

func (s *CachedStore) UpsertModel(ctx context.Context, m catalog.JewelryModel) error {
	s.metrics.originWrites.Add(1)
	if err := s.origin.UpsertModel(ctx, m); err != nil {
		return err
	}
	s.Invalidate()
	return nil
}

func (s *CachedStore) UpsertCharm(ctx context.Context, c catalog.Charm) error {
	s.metrics.originWrites.Add(1)
	if err := s.origin.UpsertCharm(ctx, c); err != nil {
		return err
	}
	s.Invalidate()
	return nil
}

func (s *CachedStore) SetStock(ctx context.Context, id string, stock int) (catalog.Charm, error) {
	s.metrics.originWrites.Add(1)
	c, err := s.origin.SetStock(ctx, id, stock)
	if err != nil {
		return catalog.Charm{}, err
	}
	s.Invalidate()
	return c, nil
}

func (s *CachedStore) SetLowStockThreshold(ctx context.Context, id string, threshold int) (catalog.Charm, error) {
	s.metrics.originWrites.Add(1)
	c, err := s.origin.SetLowStockThreshold(ctx, id, threshold)
	if err != nil {
		return catalog.Charm{}, err
	}
	s.Invalidate()
	return c, nil
}

// Invalidate drops every cached read. Checkout calls it after stock moves.
func (s *CachedStore) Invalidate() {
	s.metrics.invalidated.Add(1)
	s.types.Purge()
	s.charms.Purge()
}

func (s *CachedStore) MetricsSnapshot() MetricsSnapshot {
	return s.metrics.snapshot()
}

func seedsKey(seeds []catalog.TypeSeed) string {
	parts := make([]string, 0, len(seeds))
	for _, s := range seeds {
		parts = append(parts, string(s.ID)+"|"+s.Name)
	}
	return strings.Join(parts, ",")
}

func cloneTypes(in []catalog.JewelryType) []catalog.JewelryType {
	out := make([]catalog.JewelryType, len(in))
	for i, t := range in {
		t.Models = append([]catalog.JewelryModel(nil), t.Models...)
		out[i] = t
	}
	return out
}
