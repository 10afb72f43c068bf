package checkout

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"charmstudio/internal/apperr"
	"charmstudio/internal/gateway/entity"
	orderrepo "charmstudio/internal/gateway/repository/order"
	"charmstudio/internal/order"
)

// Order returns an order its owner or an admin may read. Other users get
// NotFound so order ids cannot be guessed.
func (s *Service) Order(ctx context.Context, user entity.User, id string) (order.Record, error) {
	const op = "checkout.Order"
	rec, err := s.deps.Orders.Get(ctx, id)
	if err != nil {
		return order.Record{}, persistence(op, err)
	}
	if rec.UserID != user.ID.String() && !user.Admin {
		return order.Record{}, apperr.Wrap(apperr.KindNotFound, op, orderrepo.ErrNotFound)
	}
	return rec, nil
}

func (s *Service) Orders(ctx context.Context, user entity.User, f orderrepo.ListFilter) ([]order.Record, error) {
	if !user.Admin {
		f.UserID = user.ID.String()
	}
	recs, err := s.deps.Orders.List(ctx, f)
	if err != nil {
		return nil, persistence("checkout.Orders", err)
	}
	if recs == nil {
		recs = []order.Record{}
	}
	return recs, nil
}

// AdvanceStatus moves an order along the status machine. Cancelling puts the
// charms back on the shelf.
func (s *Service) AdvanceStatus(ctx context.Context, id string, to order.Status) (order.Record, error) {
	const op = "checkout.AdvanceStatus"
	rec, err := s.deps.Orders.UpdateStatus(ctx, id, to)
	if errors.Is(err, orderrepo.ErrStatusChanged) {
		return order.Record{}, apperr.New(apperr.KindValidation, op, "order status changed concurrently, reload and retry")
	}
	if err != nil {
		return order.Record{}, persistence(op, err)
	}
	if to == order.StatusCancelled {
		s.deps.Invalidate()
	}
	s.log.Info("order status advanced", zap.String("order_id", id), zap.String("status", string(to)))
	return rec, nil
}

// ConfirmPayment captures the card intent of a pending order and moves it to
// StatusOrdered.
func (s *Service) ConfirmPayment(ctx context.Context, user entity.User, id string) (order.Record, error) {
	const op = "checkout.ConfirmPayment"
	rec, err := s.Order(ctx, user, id)
	if err != nil {
		return order.Record{}, err
	}
	if rec.PaymentMethod != order.PaymentCard || rec.Status != order.StatusPending {
		return order.Record{}, apperr.Validation(op, "order %s is not awaiting payment", id)
	}
	if _, err := s.deps.Payments.Confirm(ctx, rec.PaymentRef, rec.TotalPrice); err != nil {
		return order.Record{}, err
	}
	return s.AdvanceStatus(ctx, id, order.StatusOrdered)
}

// PointsBalance is the user's loyalty balance.
func (s *Service) PointsBalance(ctx context.Context, user entity.User) (int, error) {
	n, err := s.deps.Orders.PointsBalance(ctx, user.ID.String())
	return n, persistence("checkout.PointsBalance", err)
}
