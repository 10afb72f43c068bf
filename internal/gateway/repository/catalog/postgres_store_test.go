package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"charmstudio/internal/catalog"
	"charmstudio/internal/gateway/repository/pgtest"
)

func TestDecrementQueryGuardsStock(t *testing.T) {
	q, args := decrementQuery("star", 2, time.Now())
	assert.True(t, strings.HasPrefix(q, "UPDATE"), q)
	assert.Contains(t, q, ">=", "rows are only touched while stock covers the demand")
	assert.Contains(t, args, "star")
	assert.Contains(t, args, 2)
	assert.Contains(t, args, -2)
}

// seededPostgres returns a Postgres store holding the demo catalog.
func seededPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	ctx := context.Background()
	s := NewPostgresStore(pgtest.Open(t))
	for _, m := range SeedModels() {
		require.NoError(t, s.UpsertModel(ctx, m))
	}
	for _, c := range SeedCharms() {
		require.NoError(t, s.UpsertCharm(ctx, c))
	}
	return s
}

func TestPostgresCatalogRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := seededPostgres(t)

	charms, err := s.Charms(ctx)
	require.NoError(t, err)
	assert.Len(t, charms, len(SeedCharms()))

	star, err := s.Charm(ctx, "star")
	require.NoError(t, err)
	assert.Equal(t, "5.50", star.Price.StringFixed(2))
	assert.Equal(t, 12, star.Stock)

	types, err := s.JewelryTypes(ctx, catalog.DefaultSeeds())
	require.NoError(t, err)
	require.Len(t, types, 3)
	assert.NotEmpty(t, types[0].Models)

	_, err = s.Charm(ctx, "unicorn")
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	updated, err := s.SetStock(ctx, "star", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Stock)
	low, err := s.LowStock(ctx)
	require.NoError(t, err)
	var ids []string
	for _, c := range low {
		ids = append(ids, c.ID)
	}
	assert.Contains(t, ids, "star")
}

func TestPostgresDecrementStockIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := seededPostgres(t)

	err := s.DecrementStock(ctx, catalog.Demand{"star": 2, "shell": 2})
	var stockErr *catalog.StockError
	require.True(t, errors.As(err, &stockErr))
	require.Len(t, stockErr.Shortfalls, 1)
	assert.Equal(t, catalog.Shortfall{CharmID: "shell", Requested: 2, Available: 1}, stockErr.Shortfalls[0])

	star, err := s.Charm(ctx, "star")
	require.NoError(t, err)
	assert.Equal(t, 12, star.Stock, "the rolled back transaction keeps every row")

	require.NoError(t, s.DecrementStock(ctx, catalog.Demand{"star": 2, "shell": 1}))
	require.NoError(t, s.RestoreStock(ctx, catalog.Demand{"shell": 1}))
	shell, err := s.Charm(ctx, "shell")
	require.NoError(t, err)
	assert.Equal(t, 1, shell.Stock)
	star, err = s.Charm(ctx, "star")
	require.NoError(t, err)
	assert.Equal(t, 10, star.Stock)
}
