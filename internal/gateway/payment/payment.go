// Package payment talks to the card processor. Only the intent lifecycle the
// checkout needs is modelled here.
package payment

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"charmstudio/internal/apperr"
)

var (
	ErrUnknownIntent  = errors.New("payment: unknown intent")
	ErrAmountMismatch = errors.New("payment: amount does not match intent")
	ErrIntentClosed   = errors.New("payment: intent already confirmed or cancelled")
)

// Intent is a pending card charge for one order.
type Intent struct {
	Ref       string          `json:"ref"`
	OrderID   string          `json:"order_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Confirmed bool            `json:"confirmed"`
	Cancelled bool            `json:"cancelled,omitempty"`
}

type Intents interface {
	Create(ctx context.Context, orderID string, amount decimal.Decimal, currency string) (Intent, error)
	// Confirm marks the charge captured. The amount must match the intent.
	Confirm(ctx context.Context, ref string, amount decimal.Decimal) (Intent, error)
	// Cancel voids an unconfirmed intent so it can never be captured.
	// Cancelling twice is not an error.
	Cancel(ctx context.Context, ref string) error
}

// Manual issues local intents and confirms them on request. It stands in for
// a processor in local and test environments.
type Manual struct {
	mu      sync.Mutex
	intents map[string]Intent
}

func NewManual() *Manual {
	return &Manual{intents: make(map[string]Intent)}
}

func (m *Manual) Create(_ context.Context, orderID string, amount decimal.Decimal, currency string) (Intent, error) {
	const op = "payment.Create"
	if strings.TrimSpace(orderID) == "" {
		return Intent{}, apperr.Validation(op, "order id is required")
	}
	if !amount.IsPositive() {
		return Intent{}, apperr.Validation(op, "amount must be positive")
	}
	in := Intent{Ref: "pi_" + strings.ReplaceAll(uuid.NewString(), "-", ""), OrderID: orderID, Amount: amount, Currency: currency}
	m.mu.Lock()
	m.intents[in.Ref] = in
	m.mu.Unlock()
	return in, nil
}

func (m *Manual) Confirm(_ context.Context, ref string, amount decimal.Decimal) (Intent, error) {
	const op = "payment.Confirm"
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.intents[ref]
	if !ok {
		return Intent{}, &apperr.Error{Kind: apperr.KindNotFound, Op: op, Err: ErrUnknownIntent}
	}
	if in.Cancelled {
		return Intent{}, &apperr.Error{Kind: apperr.KindValidation, Op: op, Err: ErrIntentClosed}
	}
	if !in.Amount.Equal(amount) {
		return Intent{}, &apperr.Error{Kind: apperr.KindValidation, Op: op, Err: ErrAmountMismatch}
	}
	in.Confirmed = true
	m.intents[ref] = in
	return in, nil
}

func (m *Manual) Cancel(_ context.Context, ref string) error {
	const op = "payment.Cancel"
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.intents[ref]
	if !ok {
		return &apperr.Error{Kind: apperr.KindNotFound, Op: op, Err: ErrUnknownIntent}
	}
	if in.Confirmed {
		return &apperr.Error{Kind: apperr.KindValidation, Op: op, Err: ErrIntentClosed}
	}
	in.Cancelled = true
	m.intents[ref] = in
	return nil
}

// Open returns the intents that can still be captured.
func (m *Manual) Open() []Intent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Intent
	for _, in := range m.intents {
		if !in.Confirmed && !in.Cancelled {
			out = append(out, in)
		}
	}
	return out
}
