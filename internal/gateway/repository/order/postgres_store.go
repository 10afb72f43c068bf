package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"charmstudio/internal/apperr"
	"charmstudio/internal/catalog"
	catalogrepo "charmstudio/internal/gateway/repository/catalog"
	"charmstudio/internal/order"
	"charmstudio/internal/pricing"
)

func builder() *entsql.DialectBuilder { return entsql.Dialect(dialect.Postgres) }

// PostgresStore keeps the full record as JSONB next to the columns it is
// queried by. The charms table must live in the same database.
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
CREATE TABLE IF NOT EXISTS orders (
    id TEXT PRIMARY KEY,
    request_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    status TEXT NOT NULL,
    total_price NUMERIC(12,2) NOT NULL CHECK (total_price >= 0),
    record JSONB NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
    UNIQUE (user_id, request_id)
);
CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status, created_at DESC);
CREATE TABLE IF NOT EXISTS loyalty_accounts (
    user_id TEXT PRIMARY KEY,
    balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
`)
	})
	return s.schemaErr
}

func (s *PostgresStore) Create(ctx context.Context, rec order.Record) (order.Record, bool, error) {
	if err := rec.Validate(); err != nil {
		return order.Record{}, false, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		return order.Record{}, false, err
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return order.Record{}, false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return order.Record{}, false, err
	}
	defer func() { _ = tx.Rollback() }()

	if existing, err := byRequest(ctx, tx, rec.UserID, rec.RequestID); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return order.Record{}, false, err
	}

	if err := catalogrepo.DecrementStockTx(ctx, tx, catalog.Demand(rec.CharmDemand())); err != nil {
		return order.Record{}, false, err
	}
	if rec.PointsUsed > 0 || rec.PointsEarned > 0 {
		balance, err := lockBalance(ctx, tx, rec.UserID)
		if err != nil {
			return order.Record{}, false, err
		}
		if rec.PointsUsed > balance {
			return order.Record{}, false, &apperr.Error{Kind: apperr.KindValidation, Op: "order.Create", Err: pricing.ErrInsufficientPoints}
		}
		if err := setBalance(ctx, tx, rec.UserID, createdBalance(balance, rec)); err != nil {
			return order.Record{}, false, err
		}
	}

	q, args := insertQuery(rec, raw)
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return order.Record{}, false, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return order.Record{}, false, err
	} else if n == 0 {
		// A concurrent request with the same id committed first. Drop our
		// stock and points changes and hand back its record.
		_ = tx.Rollback()
		existing, err := byRequest(ctx, s.db, rec.UserID, rec.RequestID)
		if err != nil {
			return order.Record{}, false, err
		}
		return existing, false, nil
	}
	if err := tx.Commit(); err != nil {
		return order.Record{}, false, err
	}
	return rec, true, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (order.Record, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return order.Record{}, err
	}
	b := builder()
	q, args := b.Select("record").From(b.Table("orders")).Where(entsql.EQ("id", id)).Query()
	return scanRecord(s.db.QueryRowContext(ctx, q, args...))
}

func (s *PostgresStore) FindByRequest(ctx context.Context, userID, requestID string) (order.Record, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return order.Record{}, err
	}
	return byRequest(ctx, s.db, userID, requestID)
}

func (s *PostgresStore) List(ctx context.Context, f ListFilter) ([]order.Record, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	b := builder()
	sel := b.Select("record").From(b.Table("orders"))
	var preds []*entsql.Predicate
	if f.UserID != "" {
		preds = append(preds, entsql.EQ("user_id", f.UserID))
	}
	if f.Status != "" {
		preds = append(preds, entsql.EQ("status", string(f.Status)))
	}
	if len(preds) > 0 {
		sel = sel.Where(entsql.And(preds...))
	}
	q, args := sel.OrderBy(entsql.Desc("created_at"), entsql.Desc("id")).Limit(f.limit()).Query()

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []order.Record
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var rec order.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, to order.Status) (order.Record, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return order.Record{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return order.Record{}, err
	}
	defer func() { _ = tx.Rollback() }()

	b := builder()
	q, args := b.Select("record").From(b.Table("orders")).Where(entsql.EQ("id", id)).ForUpdate().Query()
	rec, err := scanRecord(tx.QueryRowContext(ctx, q, args...))
	if err != nil {
		return order.Record{}, err
	}
	if err := order.CheckAdvance(rec.Status, to); err != nil {
		return order.Record{}, err
	}
	from := rec.Status

	if to == order.StatusCancelled {
		if err := catalogrepo.RestoreStockTx(ctx, tx, catalog.Demand(rec.CharmDemand())); err != nil {
			return order.Record{}, err
		}
	}
	if rec.PointsUsed > 0 || rec.PointsEarned > 0 {
		balance, err := lockBalance(ctx, tx, rec.UserID)
		if err != nil {
			return order.Record{}, err
		}
		if next := movedBalance(balance, rec, to); next != balance {
			if err := setBalance(ctx, tx, rec.UserID, next); err != nil {
				return order.Record{}, err
			}
		}
	}

	rec.Status = to
	rec.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(rec)
	if err != nil {
		return order.Record{}, err
	}
	q, args = advanceQuery(rec, from, raw)
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return order.Record{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return order.Record{}, err
	} else if n == 0 {
		return order.Record{}, ErrStatusChanged
	}
	if err := tx.Commit(); err != nil {
		return order.Record{}, err
	}
	return rec, nil
}

// insertQuery writes rec unless its (user, request id) pair already exists.
func insertQuery(rec order.Record, raw []byte) (string, []any) {
	return builder().Insert("orders").
		Columns("id", "request_id", "user_id", "status", "total_price", "record", "created_at", "updated_at").
		Values(rec.ID, rec.RequestID, rec.UserID, string(rec.Status), rec.TotalPrice, string(raw), rec.CreatedAt, rec.UpdatedAt).
		OnConflict(entsql.ConflictColumns("user_id", "request_id"), entsql.DoNothing()).
		Query()
}

// advanceQuery stores rec, already moved to its new status, only while the
// row still holds status from.
func advanceQuery(rec order.Record, from order.Status, raw []byte) (string, []any) {
	return builder().Update("orders").
		Set("status", string(rec.Status)).
		Set("record", string(raw)).
		Set("updated_at", rec.UpdatedAt).
		Where(entsql.And(entsql.EQ("id", rec.ID), entsql.EQ("status", string(from)))).
		Query()
}

func (s *PostgresStore) PointsBalance(ctx context.Context, userID string) (int, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return 0, err
	}
	b := builder()
	q, args := b.Select("balance").From(b.Table("loyalty_accounts")).Where(entsql.EQ("user_id", userID)).Query()
	var balance int
	err := s.db.QueryRowContext(ctx, q, args...).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return balance, err
}

func (s *PostgresStore) CreditPoints(ctx context.Context, userID string, points int) (int, error) {
	if userID == "" {
		return 0, apperr.Validation("order.CreditPoints", "user id is required")
	}
	if err := s.EnsureSchema(ctx); err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()
	balance, err := lockBalance(ctx, tx, userID)
	if err != nil {
		return 0, err
	}
	next := balance + points
	if next < 0 {
		return 0, &apperr.Error{Kind: apperr.KindValidation, Op: "order.CreditPoints", Err: pricing.ErrInsufficientPoints}
	}
	if err := setBalance(ctx, tx, userID, next); err != nil {
		return 0, err
	}
	return next, tx.Commit()
}

// lockBalance creates the account row when missing and locks it for the
// rest of the transaction.
func lockBalance(ctx context.Context, tx *sql.Tx, userID string) (int, error) {
	q, args := builder().Insert("loyalty_accounts").
		Columns("user_id", "balance").
		Values(userID, 0).
		OnConflict(entsql.ConflictColumns("user_id"), entsql.DoNothing()).
		Query()
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return 0, err
	}
	b := builder()
	q, args = b.Select("balance").From(b.Table("loyalty_accounts")).Where(entsql.EQ("user_id", userID)).ForUpdate().Query()
	var balance int
	if err := tx.QueryRowContext(ctx, q, args...).Scan(&balance); err != nil {
		return 0, err
	}
	return balance, nil
}

func setBalance(ctx context.Context, tx *sql.Tx, userID string, balance int) error {
	q, args := builder().Update("loyalty_accounts").
		Set("balance", balance).
		Set("updated_at", time.Now()).
		Where(entsql.EQ("user_id", userID)).
		Query()
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

func byRequest(ctx context.Context, q catalogrepo.Querier, userID, requestID string) (order.Record, error) {
	b := builder()
	query, args := b.Select("record").
		From(b.Table("orders")).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.EQ("request_id", requestID))).
		Query()
	return scanRecord(q.QueryRowContext(ctx, query, args...))
}

func scanRecord(row *sql.Row) (order.Record, error) {
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return order.Record{}, ErrNotFound
		}
		return order.Record{}, err
	}
	var rec order.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return order.Record{}, fmt.Errorf("decode order record: %w", err)
	}
	return rec, nil
}
