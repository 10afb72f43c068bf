package coupon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"charmstudio/internal/pricing"
)

var couponColumns = []string{"code", "kind", "amount", "min_subtotal", "expires_at"}

type PostgresStore struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS coupons (
    code TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    amount NUMERIC(12,2) NOT NULL CHECK (amount > 0),
    min_subtotal NUMERIC(12,2) NOT NULL DEFAULT 0,
    expires_at TIMESTAMP WITH TIME ZONE,
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
`)
	})
	return s.schemaErr
}

func (s *PostgresStore) Coupon(ctx context.Context, code string) (pricing.Coupon, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return pricing.Coupon{}, err
	}
	b := entsql.Dialect(dialect.Postgres)
	q, args := b.Select(couponColumns...).
		From(b.Table("coupons")).
		Where(entsql.EQ("code", pricing.NormalizeCode(code))).
		Query()
	c, err := scanCoupon(s.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return pricing.Coupon{}, ErrNotFound
	}
	return c, err
}

func (s *PostgresStore) Upsert(ctx context.Context, c pricing.Coupon) error {
	c.Code = pricing.NormalizeCode(c.Code)
	if err := validate(c); err != nil {
		return err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	var expires any
	if c.ExpiresAt != nil {
		expires = c.ExpiresAt.UTC()
	}
	q, args := entsql.Dialect(dialect.Postgres).Insert("coupons").
		Columns(append(couponColumns, "updated_at")...).
		Values(c.Code, string(c.Kind), c.Amount, c.MinSubtotal, expires, time.Now()).
		OnConflict(entsql.ConflictColumns("code"), entsql.ResolveWithNewValues()).
		Query()
	_, err := s.db.ExecContext(ctx, q, args...)
	return err
}

func (s *PostgresStore) List(ctx context.Context) ([]pricing.Coupon, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	b := entsql.Dialect(dialect.Postgres)
	q, args := b.Select(couponColumns...).From(b.Table("coupons")).OrderBy("code").Query()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []pricing.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCoupon(row scanner) (pricing.Coupon, error) {
	var c pricing.Coupon
	var kind string
	var expires sql.NullTime
	if err := row.Scan(&c.Code, &kind, &c.Amount, &c.MinSubtotal, &expires); err != nil {
		return pricing.Coupon{}, err
	}
	c.Kind = pricing.DiscountKind(kind)
	if expires.Valid {
		t := expires.Time
		c.ExpiresAt = &t
	}
	return c, nil
}
