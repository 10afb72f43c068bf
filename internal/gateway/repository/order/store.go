package order

import (
	"context"
	"errors"

	"charmstudio/internal/order"
)

var (
	ErrNotFound = errors.New("order: not found")
	// ErrStatusChanged means another writer moved the order first.
	ErrStatusChanged = errors.New("order: status changed concurrently")
)

// ListFilter narrows List. Zero values match everything.
type ListFilter struct {
	UserID string
	Status order.Status
	Limit  int
}

const defaultListLimit = 100

func (f ListFilter) limit() int {
	if f.Limit <= 0 || f.Limit > defaultListLimit {
		return defaultListLimit
	}
	return f.Limit
}

// Store persists orders and the loyalty balances they move.
//
// Create runs as one unit: it dedupes on (user, request id), decrements the
// stock of every placed charm all-or-nothing, debits the redeemed points
// and inserts the record. Earned points are credited only once the order is
// paid: at once for a free order, on the move to StatusOrdered otherwise. On a duplicate request
// the stored record is returned with created=false and nothing else changes.
// A stock shortfall returns *catalog.StockError and changes nothing.
type Store interface {
	Create(ctx context.Context, rec order.Record) (order.Record, bool, error)
	Get(ctx context.Context, id string) (order.Record, error)
	// FindByRequest returns the order an earlier attempt of the same
	// request created, or ErrNotFound.
	FindByRequest(ctx context.Context, userID, requestID string) (order.Record, error)
	List(ctx context.Context, f ListFilter) ([]order.Record, error)
	// UpdateStatus moves an order along the status machine. Entering a paid
	// status credits the earned points. Cancelling restocks the charms,
	// refunds the used points and takes back earned points already credited,
	// never below a zero balance.
	UpdateStatus(ctx context.Context, id string, to order.Status) (order.Record, error)
	PointsBalance(ctx context.Context, userID string) (int, error)
	CreditPoints(ctx context.Context, userID string, points int) (int, error)
}

// createdBalance is the balance once rec is inserted. Redeemed points are
// debited at once; earned points wait until the order is paid.
func createdBalance(balance int, rec order.Record) int {
	balance -= rec.PointsUsed
	if rec.Status.Paid() {
		balance += rec.PointsEarned
	}
	return balance
}

// movedBalance is the balance once rec moves to status to. Entering a paid
// status credits the earned points. Cancelling refunds the redeemed points
// and takes back earned points that were credited, floored at zero.
func movedBalance(balance int, rec order.Record, to order.Status) int {
	from := rec.Status
	switch {
	case to == order.StatusCancelled:
		balance += rec.PointsUsed
		if from.Paid() {
			balance -= rec.PointsEarned
		}
		if balance < 0 {
			return 0
		}
	case to.Paid() && !from.Paid():
		balance += rec.PointsEarned
	}
	return balance
}
