package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Errors returned by the billing and kitchen services.
var (
	ErrEmptyItems           = errors.New("items are required")
	ErrInvalidQuantity      = errors.New("quantity must be > 0")
	ErrInvalidMenuItemID    = errors.New("invalid menu_item_id")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrInvalidDiscountType  = errors.New("invalid discount_type")
	ErrInvalidDiscountValue = errors.New("invalid discount_value")
	ErrTableNotFound        = errors.New("table not found")
	ErrMenuItemNotFound     = errors.New("menu item not found")
	ErrBillNotFound         = errors.New("bill not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrOrderItemNotFound    = errors.New("order item not found")
	ErrBillNotPaid          = errors.New("cannot delete item unless the bill is paid")
)

// StateConflictError reports an operation that is illegal for the entity's
// current status. It always carries the offending entity and its state so
// the caller can tell staff exactly what blocked the action.
type StateConflictError struct {
	Entity string
	ID     uuid.UUID
	Status string
	Reason string
}

func (e *StateConflictError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s %s: %s (status %s)", e.Entity, e.ID, e.Reason, e.Status)
	}
	return fmt.Sprintf("%s %s: operation not allowed in status %s", e.Entity, e.ID, e.Status)
}

// ConsistencyError signals that a recomputed aggregate is impossible. It
// indicates a bug and must fail the transaction instead of patching data.
type ConsistencyError struct {
	Entity string
	ID     uuid.UUID
	Detail string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency violation on %s %s: %s", e.Entity, e.ID, e.Detail)
}
