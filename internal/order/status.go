package order

import "charmstudio/internal/apperr"

// Status values are stored verbatim; the storefront is French.
type Status string

const (
	StatusPending   Status = "pending"
	StatusOrdered   Status = "commandée"
	StatusPreparing Status = "en cours de préparation"
	StatusShipped   Status = "expédiée"
	StatusDelivered Status = "livrée"
	StatusCancelled Status = "annulée"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusOrdered, StatusCancelled},
	StatusOrdered:   {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusOrdered, StatusPreparing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanAdvance reports whether from → to is allowed.
func CanAdvance(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckAdvance returns a validation error for a forbidden transition.
func CheckAdvance(from, to Status) error {
	if !to.Valid() {
		return apperr.Validation("order.Advance", "unknown status %q", to)
	}
	if !CanAdvance(from, to) {
		return apperr.Validation("order.Advance", "cannot move an order from %q to %q", from, to)
	}
	return nil
}

// Paid reports whether an order in s has been paid for or needed no payment.
// Loyalty points an order earns sit on the owner's balance only while it is
// in a paid status.
func (s Status) Paid() bool {
	switch s {
	case StatusOrdered, StatusPreparing, StatusShipped, StatusDelivered:
		return true
	}
	return false
}
