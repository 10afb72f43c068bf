package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"charmstudio/internal/apperr"
	"charmstudio/internal/catalog"
)

func TestJewelryTypesFollowSeeds(t *testing.T) {
	s := NewSeededMemoryStore()
	types, err := s.JewelryTypes(context.Background(), catalog.DefaultSeeds())
	require.NoError(t, err)
	require.Len(t, types, 3)
	assert.Equal(t, catalog.TypeNecklace, types[0].ID)
	assert.Len(t, types[0].Models, 2)
	assert.Equal(t, "Boucles d'oreilles", types[2].Name)

	types, err = s.JewelryTypes(context.Background(), []catalog.TypeSeed{{ID: catalog.TypeBracelet, Name: "B"}})
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, "B", types[0].Name)
}

func TestDecrementStockIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := NewSeededMemoryStore()

	err := s.DecrementStock(ctx, catalog.Demand{"star": 2, "shell": 2})
	var stockErr *catalog.StockError
	require.True(t, errors.As(err, &stockErr))
	require.Len(t, stockErr.Shortfalls, 1)
	assert.Equal(t, catalog.Shortfall{CharmID: "shell", Requested: 2, Available: 1}, stockErr.Shortfalls[0])
	assert.ErrorIs(t, err, catalog.ErrInsufficientStock)

	star, err := s.Charm(ctx, "star")
	require.NoError(t, err)
	assert.Equal(t, 12, star.Stock, "rejected decrement leaves stock untouched")

	require.NoError(t, s.DecrementStock(ctx, catalog.Demand{"star": 2, "shell": 1}))
	star, _ = s.Charm(ctx, "star")
	shell, _ := s.Charm(ctx, "shell")
	assert.Equal(t, 10, star.Stock)
	assert.Equal(t, 0, shell.Stock)

	require.NoError(t, s.RestoreStock(ctx, catalog.Demand{"shell": 1}))
	shell, _ = s.Charm(ctx, "shell")
	assert.Equal(t, 1, shell.Stock)
}

func TestUnknownCharmIsAShortfall(t *testing.T) {
	err := NewSeededMemoryStore().DecrementStock(context.Background(), catalog.Demand{"ghost": 1})
	var stockErr *catalog.StockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 0, stockErr.Shortfalls[0].Available)
}

func TestLowStock(t *testing.T) {
	ctx := context.Background()
	s := NewSeededMemoryStore()
	low, err := s.LowStock(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(low))
	for _, c := range low {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"shell", "clover"}, ids)

	_, err = s.SetLowStockThreshold(ctx, "pearl", 5)
	require.NoError(t, err)
	low, _ = s.LowStock(ctx)
	assert.Len(t, low, 3)
}

func TestSetStockValidation(t *testing.T) {
	ctx := context.Background()
	s := NewSeededMemoryStore()
	_, err := s.SetStock(ctx, "star", -1)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = s.SetStock(ctx, "ghost", 3)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	c, err := s.SetStock(ctx, "star", 40)
	require.NoError(t, err)
	assert.Equal(t, 40, c.Stock)
}

func TestUpsertCharmKeepsOrder(t *testing.T) {
	ctx := context.Background()
	s := NewSeededMemoryStore()
	require.NoError(t, s.UpsertCharm(ctx, catalog.Charm{ID: "star", Name: "Étoile", Price: price("5.90"), Stock: 3}))
	require.NoError(t, s.UpsertCharm(ctx, catalog.Charm{ID: "key", Name: "Key", Price: price("4.10"), Stock: 3}))
	charms, err := s.Charms(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Étoile", charms[0].Name)
	assert.Equal(t, "key", charms[len(charms)-1].ID)

	assert.Error(t, s.UpsertCharm(ctx, catalog.Charm{ID: "bad", Name: "Bad", Price: price("-1")}))
	assert.Error(t, s.UpsertModel(ctx, catalog.JewelryModel{ID: "m", TypeID: "ring"}))
}
