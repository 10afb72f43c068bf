package catalog

import (
	"context"

	"charmstudio/internal/catalog"
)

// Store is the catalog collaborator. Reads are eventually consistent:
// stock may change between two calls.
type Store interface {
	JewelryTypes(ctx context.Context, seeds []catalog.TypeSeed) ([]catalog.JewelryType, error)
	Charms(ctx context.Context) ([]catalog.Charm, error)
	Charm(ctx context.Context, id string) (catalog.Charm, error)
	UpsertModel(ctx context.Context, m catalog.JewelryModel) error
	UpsertCharm(ctx context.Context, c catalog.Charm) error
	SetStock(ctx context.Context, id string, stock int) (catalog.Charm, error)
	SetLowStockThreshold(ctx context.Context, id string, threshold int) (catalog.Charm, error)
	LowStock(ctx context.Context) ([]catalog.Charm, error)
}

// Inventory decrements stock all-or-nothing. A rejected decrement returns
// *catalog.StockError and changes nothing.
type Inventory interface {
	DecrementStock(ctx context.Context, d catalog.Demand) error
	RestoreStock(ctx context.Context, d catalog.Demand) error
}
