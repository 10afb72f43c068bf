// Package apperr is the error taxonomy shared by flows, pricing and checkout.
package apperr

import (
	"errors"
	"fmt"
)

// Kind categorizes failures so transports can map them without string matching.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation is malformed input to a flow or pricing function.
	KindValidation
	// KindGenerationFailed means the text model returned no usable structured output.
	KindGenerationFailed
	// KindImageGenerationFailed means the image model returned no image payload.
	KindImageGenerationFailed
	// KindAvailabilityConflict means stock ran out between placement and checkout.
	KindAvailabilityConflict
	// KindPersistence means the storage collaborator rejected or failed a write.
	KindPersistence
	KindNotFound
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindGenerationFailed:
		return "generation_failed"
	case KindImageGenerationFailed:
		return "image_generation_failed"
	case KindAvailabilityConflict:
		return "availability_conflict"
	case KindPersistence:
		return "persistence_error"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Error is a categorized failure. Op names the operation that failed.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a categorized error.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap categorizes err. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation is shorthand for a KindValidation error with a formatted message.
func Validation(op, format string, args ...any) *Error {
	return New(KindValidation, op, fmt.Sprintf(format, args...))
}

// KindOf returns the kind of the outermost categorized error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var c *AvailabilityConflict
	if errors.As(err, &c) {
		return KindAvailabilityConflict
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// AffectedPlacement identifies one placed charm blocked by a stock shortfall.
type AffectedPlacement struct {
	CartItemID    string `json:"cart_item_id"`
	PlacedCharmID string `json:"placed_charm_id"`
	CharmID       string `json:"charm_id"`
}

// AvailabilityConflict blocks order creation and lists every affected placement.
type AvailabilityConflict struct {
	Placements []AffectedPlacement
}

func (c *AvailabilityConflict) Error() string {
	return fmt.Sprintf("availability conflict: %d placement(s) out of stock", len(c.Placements))
}
