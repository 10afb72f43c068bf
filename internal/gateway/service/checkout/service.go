package checkout

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"charmstudio/internal/apperr"
	"charmstudio/internal/catalog"
	"charmstudio/internal/gateway/entity"
	"charmstudio/internal/gateway/payment"
	catalogrepo "charmstudio/internal/gateway/repository/catalog"
	couponrepo "charmstudio/internal/gateway/repository/coupon"
	orderrepo "charmstudio/internal/gateway/repository/order"
	"charmstudio/internal/order"
	"charmstudio/internal/placement"
	"charmstudio/internal/pricing"
)

const (
	ShippingStandard = "standard"
	ShippingExpress  = "express"
)

type Config struct {
	Currency   string
	PointValue decimal.Decimal
	EarnRate   decimal.Decimal
	// Shipping maps a method name to its fee.
	Shipping map[string]decimal.Decimal
}

type Deps struct {
	Catalog  catalogrepo.Store
	Coupons  couponrepo.Store
	Orders   orderrepo.Store
	Payments payment.Intents
	Seeds    []catalog.TypeSeed
	// Invalidate drops cached catalog reads once stock has moved.
	Invalidate func()
	Logger     *zap.Logger
}

// Service prices carts and turns them into orders.
type Service struct {
	deps  Deps
	cfg   Config
	log   *zap.Logger
	now   func() time.Time
	newID func() string
}

func New(deps Deps, cfg Config) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if deps.Seeds == nil {
		deps.Seeds = catalog.DefaultSeeds()
	}
	if deps.Invalidate == nil {
		deps.Invalidate = func() {}
	}
	return &Service{deps: deps, cfg: cfg, log: log, now: time.Now, newID: uuid.NewString}
}

// Request is one checkout attempt of a cart.
type Request struct {
	// RequestID makes retries safe: a repeated id returns the first order.
	RequestID      string
	Items          []placement.CartItem
	CouponCode     string
	PointsToUse    int
	ShippingMethod string
}

// Quote is a priced cart against the live catalog.
type Quote struct {
	Items          []placement.CartItem       `json:"items"`
	Breakdown      pricing.Breakdown          `json:"breakdown"`
	Currency       string                     `json:"currency"`
	ShippingMethod string                     `json:"shipping_method"`
	PointsBalance  int                        `json:"points_balance"`
	Availability   map[string]bool            `json:"availability"`
	Conflicts      []apperr.AffectedPlacement `json:"conflicts,omitempty"`
}

type Result struct {
	Order   order.Record    `json:"order"`
	Created bool            `json:"created"`
	Payment *payment.Intent `json:"payment,omitempty"`
}

// Quote prices the cart without side effects. Stock shortfalls are reported
// in the quote rather than failing it.
func (s *Service) Quote(ctx context.Context, user entity.User, req Request) (Quote, error) {
	return s.quote(ctx, "checkout.Quote", user, req)
}

// Checkout creates the order. It reprices every item from the live catalog,
// refuses carts whose placements stock cannot cover, and hands the record to
// the order store, which decrements stock and moves loyalty points in the
// same unit of work. Card orders get a payment intent; free orders skip it.
// An intent whose order is not stored is cancelled before returning.
func (s *Service) Checkout(ctx context.Context, user entity.User, req Request) (Result, error) {
	const op = "checkout.Checkout"
	req.RequestID = strings.TrimSpace(req.RequestID)
	if req.RequestID == "" {
		return Result{}, apperr.Validation(op, "request id is required")
	}
	if existing, err := s.deps.Orders.FindByRequest(ctx, user.ID.String(), req.RequestID); err == nil {
		return Result{Order: existing}, nil
	} else if !errors.Is(err, orderrepo.ErrNotFound) {
		return Result{}, apperr.Wrap(apperr.KindPersistence, op, err)
	}

	q, err := s.quote(ctx, op, user, req)
	if err != nil {
		return Result{}, err
	}
	if len(q.Conflicts) > 0 {
		return Result{}, &apperr.AvailabilityConflict{Placements: q.Conflicts}
	}

	rec, err := order.Assemble(order.Draft{
		ID:             s.newID(),
		RequestID:      req.RequestID,
		UserID:         user.ID.String(),
		Email:          user.Email,
		Currency:       q.Currency,
		ShippingMethod: q.ShippingMethod,
		Items:          q.Items,
		Breakdown:      q.Breakdown,
		Now:            s.now(),
	})
	if err != nil {
		return Result{}, err
	}

	var intent *payment.Intent
	if rec.PaymentMethod == order.PaymentCard {
		in, err := s.deps.Payments.Create(ctx, rec.ID, rec.TotalPrice, rec.Currency)
		if err != nil {
			return Result{}, err
		}
		rec.PaymentRef = in.Ref
		intent = &in
	}

	stored, created, err := s.deps.Orders.Create(ctx, rec)
	if err != nil {
		s.releaseIntent(ctx, intent)
		var stockErr *catalog.StockError
		if errors.As(err, &stockErr) {
			s.deps.Invalidate()
			return Result{}, &apperr.AvailabilityConflict{Placements: affectedBy(q.Items, stockErr.Shortfalls)}
		}
		return Result{}, persistence(op, err)
	}
	if !created {
		// A concurrent attempt of the same request won; its order keeps its own intent.
		s.releaseIntent(ctx, intent)
		return Result{Order: stored}, nil
	}
	s.deps.Invalidate()
	s.log.Info("order created",
		zap.String("order_id", stored.ID),
		zap.String("user_id", stored.UserID),
		zap.String("total", stored.TotalPrice.StringFixed(pricing.Places)),
		zap.String("payment_method", string(stored.PaymentMethod)),
		zap.Int("points_used", stored.PointsUsed),
		zap.Int("points_earned", stored.PointsEarned),
	)
	return Result{Order: stored, Created: true, Payment: intent}, nil
}

// releaseIntent cancels an intent whose order was never stored. It runs even
// when the request context is already done.
func (s *Service) releaseIntent(ctx context.Context, intent *payment.Intent) {
	if intent == nil {
		return
	}
	if err := s.deps.Payments.Cancel(context.WithoutCancel(ctx), intent.Ref); err != nil {
		s.log.Error("payment intent left open",
			zap.String("order_id", intent.OrderID),
			zap.String("payment_ref", intent.Ref),
			zap.Error(err),
		)
	}
}

func (s *Service) quote(ctx context.Context, op string, user entity.User, req Request) (Quote, error) {
	if user.ID.IsZero() {
		return Quote{}, apperr.New(apperr.KindUnauthorized, op, "a verified user is required")
	}
	if len(req.Items) == 0 {
		return Quote{}, apperr.Validation(op, "cart is empty")
	}
	method := strings.ToLower(strings.TrimSpace(req.ShippingMethod))
	if method == "" {
		method = ShippingStandard
	}
	fee, ok := s.cfg.Shipping[method]
	if !ok {
		return Quote{}, apperr.Validation(op, "unknown shipping method %q", req.ShippingMethod)
	}
	if req.PointsToUse < 0 {
		return Quote{}, apperr.Validation(op, "points to use cannot be negative")
	}

	var (
		types   []catalog.JewelryType
		charms  []catalog.Charm
		coupon  *pricing.Coupon
		balance int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		types, err = s.deps.Catalog.JewelryTypes(gctx, s.deps.Seeds)
		return persistence(op, err)
	})
	g.Go(func() error {
		var err error
		charms, err = s.deps.Catalog.Charms(gctx)
		return persistence(op, err)
	})
	if code := pricing.NormalizeCode(req.CouponCode); code != "" {
		g.Go(func() error {
			c, err := s.deps.Coupons.Coupon(gctx, code)
			if errors.Is(err, couponrepo.ErrNotFound) {
				return apperr.Validation(op, "unknown coupon %s", code)
			}
			if err != nil {
				return persistence(op, err)
			}
			coupon = &c
			return nil
		})
	}
	g.Go(func() error {
		var err error
		balance, err = s.deps.Orders.PointsBalance(gctx, user.ID.String())
		return persistence(op, err)
	})
	if err := g.Wait(); err != nil {
		return Quote{}, err
	}

	snap := catalog.NewSnapshot(types, charms)
	items, err := reprice(op, snap, req.Items)
	if err != nil {
		return Quote{}, err
	}
	availability, conflicts := allocate(snap, items)

	b, err := pricing.OrderTotal(pricing.Quote{
		Items:    items,
		Coupon:   coupon,
		Redeem:   pricing.Redemption{Points: req.PointsToUse, PointValue: s.cfg.PointValue, Balance: balance},
		Shipping: fee,
		EarnRate: s.cfg.EarnRate,
		Now:      s.now(),
	})
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		Items:          items,
		Breakdown:      b,
		Currency:       s.cfg.Currency,
		ShippingMethod: method,
		PointsBalance:  balance,
		Availability:   availability,
		Conflicts:      conflicts,
	}, nil
}

// reprice swaps every model and charm for its live catalog entry. Placement
// ids, positions and clasp flags are kept. A charm missing from the catalog
// keeps its cart data and will fail allocation.
func reprice(op string, snap *catalog.Snapshot, items []placement.CartItem) ([]placement.CartItem, error) {
	out := make([]placement.CartItem, 0, len(items))
	for _, it := range items {
		it = it.Clone()
		m, ok := snap.Model(it.Model.ID)
		if !ok {
			return nil, apperr.Validation(op, "model %q is no longer sold", it.Model.ID)
		}
		it.Model = m
		if jt, ok := snap.Type(m.TypeID); ok {
			it.JewelryType = placement.RefOf(jt)
		}
		for i, pc := range it.PlacedCharms {
			if c, ok := snap.Charm(pc.Charm.ID); ok {
				it.PlacedCharms[i].Charm = c
			}
		}
		out = append(out, it)
	}
	return out, nil
}

// allocate serves stock to placements in cart order, then placement order.
func allocate(snap *catalog.Snapshot, items []placement.CartItem) (map[string]bool, []apperr.AffectedPlacement) {
	ledger := placement.NewLedger(snap)
	availability := make(map[string]bool)
	var conflicts []apperr.AffectedPlacement
	for _, it := range items {
		for _, pc := range it.PlacedCharms {
			ok := ledger.Claim(pc.Charm.ID)
			availability[pc.ID] = ok
			if !ok {
				conflicts = append(conflicts, apperr.AffectedPlacement{CartItemID: it.ID, PlacedCharmID: pc.ID, CharmID: pc.Charm.ID})
			}
		}
	}
	return availability, conflicts
}

// affectedBy maps store shortfalls back to placements. The first Available
// placements of a charm keep their units; the rest are affected.
func affectedBy(items []placement.CartItem, shortfalls []catalog.Shortfall) []apperr.AffectedPlacement {
	remaining := make(map[string]int, len(shortfalls))
	for _, sf := range shortfalls {
		remaining[sf.CharmID] = sf.Available
	}
	var out []apperr.AffectedPlacement
	for _, it := range items {
		for _, pc := range it.PlacedCharms {
			left, short := remaining[pc.Charm.ID]
			if !short {
				continue
			}
			if left > 0 {
				remaining[pc.Charm.ID] = left - 1
				continue
			}
			out = append(out, apperr.AffectedPlacement{CartItemID: it.ID, PlacedCharmID: pc.ID, CharmID: pc.Charm.ID})
		}
	}
	return out
}

// persistence leaves categorized errors alone and marks the rest as storage failures.
func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if apperr.KindOf(err) != apperr.KindUnknown || errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, catalog.ErrNotFound) || errors.Is(err, orderrepo.ErrNotFound) {
		return apperr.Wrap(apperr.KindNotFound, op, err)
	}
	return apperr.Wrap(apperr.KindPersistence, op, err)
}
