package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"charmstudio/internal/apperr"
	"charmstudio/internal/catalog"
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var charmColumns = []string{"id", "name", "price", "image_url", "category", "stock", "low_stock_threshold"}

var modelColumns = []string{"id", "type_id", "name", "price", "image_url", "editor_image_url"}

func builder() *entsql.DialectBuilder { return entsql.Dialect(dialect.Postgres) }

type PostgresStore struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the catalog tables once per process.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS jewelry_models (
    id TEXT PRIMARY KEY,
    type_id TEXT NOT NULL,
    name TEXT NOT NULL,
    price NUMERIC(12,2) NOT NULL CHECK (price >= 0),
    image_url TEXT NOT NULL DEFAULT '',
    editor_image_url TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_jewelry_models_type ON jewelry_models(type_id);
CREATE TABLE IF NOT EXISTS charms (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    price NUMERIC(12,2) NOT NULL CHECK (price >= 0),
    image_url TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
    low_stock_threshold INTEGER NOT NULL DEFAULT 0 CHECK (low_stock_threshold >= 0),
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
`)
	})
	return s.schemaErr
}

func (s *PostgresStore) JewelryTypes(ctx context.Context, seeds []catalog.TypeSeed) ([]catalog.JewelryType, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	ids := make([]any, 0, len(seeds))
	for _, seed := range seeds {
		ids = append(ids, string(seed.ID))
	}
	b := builder()
	q, args := b.Select(modelColumns...).
		From(b.Table("jewelry_models")).
		Where(entsql.In("type_id", ids...)).
		OrderBy("name", "id").
		Query()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byType := make(map[catalog.TypeID][]catalog.JewelryModel, len(seeds))
	for rows.Next() {
		var m catalog.JewelryModel
		var typeID string
		if err := rows.Scan(&m.ID, &typeID, &m.Name, &m.Price, &m.ImageURL, &m.EditorImageURL); err != nil {
			return nil, err
		}
		m.TypeID = catalog.TypeID(typeID)
		byType[m.TypeID] = append(byType[m.TypeID], m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]catalog.JewelryType, 0, len(seeds))
	for _, seed := range seeds {
		models := byType[seed.ID]
		if models == nil {
			models = []catalog.JewelryModel{}
		}
		out = append(out, catalog.JewelryType{ID: seed.ID, Name: seed.Name, Description: seed.Description, Models: models})
	}
	return out, nil
}

func (s *PostgresStore) Charms(ctx context.Context) ([]catalog.Charm, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	b := builder()
	q, args := b.Select(charmColumns...).From(b.Table("charms")).OrderBy("created_at", "id").Query()
	return queryCharms(ctx, s.db, q, args)
}

func (s *PostgresStore) Charm(ctx context.Context, id string) (catalog.Charm, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return catalog.Charm{}, err
	}
	b := builder()
	q, args := b.Select(charmColumns...).From(b.Table("charms")).Where(entsql.EQ("id", strings.TrimSpace(id))).Query()
	return scanCharm(s.db.QueryRowContext(ctx, q, args...))
}

func (s *PostgresStore) UpsertModel(ctx context.Context, m catalog.JewelryModel) error {
	if err := validateModel(m); err != nil {
		return err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	q, args := builder().Insert("jewelry_models").
		Columns(append(modelColumns, "updated_at")...).
		Values(m.ID, string(m.TypeID), m.Name, m.Price, m.ImageURL, m.EditorImageURL, time.Now()).
		OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()).
		Query()
	_, err := s.db.ExecContext(ctx, q, args...)
	return err
}

func (s *PostgresStore) UpsertCharm(ctx context.Context, c catalog.Charm) error {
	if err := validateCharm(c); err != nil {
		return err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	q, args := builder().Insert("charms").
		Columns(append(charmColumns, "updated_at")...).
		Values(c.ID, c.Name, c.Price, c.ImageURL, c.Category, c.Stock, c.LowStockThreshold, time.Now()).
		OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()).
		Query()
	_, err := s.db.ExecContext(ctx, q, args...)
	return err
}

func (s *PostgresStore) SetStock(ctx context.Context, id string, stock int) (catalog.Charm, error) {
	if stock < 0 {
		return catalog.Charm{}, apperr.Validation("catalog.SetStock", "stock cannot be negative")
	}
	return s.setColumn(ctx, id, "stock", stock)
}

func (s *PostgresStore) SetLowStockThreshold(ctx context.Context, id string, threshold int) (catalog.Charm, error) {
	if threshold < 0 {
		return catalog.Charm{}, apperr.Validation("catalog.SetLowStockThreshold", "threshold cannot be negative")
	}
	return s.setColumn(ctx, id, "low_stock_threshold", threshold)
}

func (s *PostgresStore) setColumn(ctx context.Context, id, column string, value int) (catalog.Charm, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return catalog.Charm{}, err
	}
	q, args := builder().Update("charms").
		Set(column, value).
		Set("updated_at", time.Now()).
		Where(entsql.EQ("id", strings.TrimSpace(id))).
		Returning(charmColumns...).
		Query()
	return scanCharm(s.db.QueryRowContext(ctx, q, args...))
}

func (s *PostgresStore) LowStock(ctx context.Context) ([]catalog.Charm, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	b := builder()
	q, args := b.Select(charmColumns...).
		From(b.Table("charms")).
		Where(entsql.And(
			entsql.GT("low_stock_threshold", 0),
			entsql.ColumnsLTE("stock", "low_stock_threshold"),
		)).
		OrderBy("stock", "id").
		Query()
	return queryCharms(ctx, s.db, q, args)
}

func (s *PostgresStore) DecrementStock(ctx context.Context, d catalog.Demand) error {
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := DecrementStockTx(ctx, tx, d); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) RestoreStock(ctx context.Context, d catalog.Demand) error {
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	return RestoreStockTx(ctx, s.db, d)
}

// DecrementStockTx takes every unit of d inside the caller's transaction.
// Each row is updated only while stock covers the demand; if any row is
// short the shortfalls are read back and the caller must roll back.
func DecrementStockTx(ctx context.Context, q Querier, d catalog.Demand) error {
	var short []string
	for _, id := range d.IDs() {
		query, args := decrementQuery(id, d[id], time.Now())
		res, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			short = append(short, id)
		}
	}
	if len(short) == 0 {
		return nil
	}
	stock, err := stockOf(ctx, q, short)
	if err != nil {
		return err
	}
	shortfalls := make([]catalog.Shortfall, 0, len(short))
	for _, id := range short {
		shortfalls = append(shortfalls, catalog.Shortfall{CharmID: id, Requested: d[id], Available: stock[id]})
	}
	sort.Slice(shortfalls, func(i, j int) bool { return shortfalls[i].CharmID < shortfalls[j].CharmID })
	return &catalog.StockError{Shortfalls: shortfalls}
}

// decrementQuery takes n units of a charm only while its stock covers them.
func decrementQuery(id string, n int, at time.Time) (string, []any) {
	return builder().Update("charms").
		Add("stock", -n).
		Set("updated_at", at).
		Where(entsql.And(entsql.EQ("id", id), entsql.GTE("stock", n))).
		Query()
}

// RestoreStockTx gives units back, for cancelled orders.
func RestoreStockTx(ctx context.Context, q Querier, d catalog.Demand) error {
	for _, id := range d.IDs() {
		query, args := builder().Update("charms").
			Add("stock", d[id]).
			Set("updated_at", time.Now()).
			Where(entsql.EQ("id", id)).
			Query()
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}

func stockOf(ctx context.Context, q Querier, ids []string) (map[string]int, error) {
	vals := make([]any, 0, len(ids))
	for _, id := range ids {
		vals = append(vals, id)
	}
	b := builder()
	query, args := b.Select("id", "stock").From(b.Table("charms")).Where(entsql.In("id", vals...)).Query()
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int, len(ids))
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

func queryCharms(ctx context.Context, q Querier, query string, args []any) ([]catalog.Charm, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []catalog.Charm
	for rows.Next() {
		var c catalog.Charm
		if err := rows.Scan(&c.ID, &c.Name, &c.Price, &c.ImageURL, &c.Category, &c.Stock, &c.LowStockThreshold); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCharm(row *sql.Row) (catalog.Charm, error) {
	var c catalog.Charm
	err := row.Scan(&c.ID, &c.Name, &c.Price, &c.ImageURL, &c.Category, &c.Stock, &c.LowStockThreshold)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Charm{}, catalog.ErrNotFound
	}
	return c, err
}
