package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tabletab/api/internal/database"
	"github.com/tabletab/api/internal/enum"
)

// KitchenStore defines the DB methods the kitchen service needs.
// Satisfied by *database.Queries (and its WithTx variant).
type KitchenStore interface {
	GetOrderItemForUpdate(ctx context.Context, id uuid.UUID) (database.OrderItem, error)
	SetOrderItemStatus(ctx context.Context, arg database.SetOrderItemStatusParams) (database.OrderItem, error)
	CountUnfinishedOrderItems(ctx context.Context, orderID uuid.UUID) (int64, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	MarkOrderServed(ctx context.Context, id uuid.UUID) (database.Order, error)
}

// NewKitchenStore creates a KitchenStore from a DBTX (pool or tx).
type NewKitchenStore func(db database.DBTX) KitchenStore

// advanceFrom maps each legal target status to the status the item must
// currently be in. Sending a wrong-state transition is a client error, never
// silently ignored.
var advanceFrom = map[string]string{
	enum.OrderItemStatusPreparing: enum.OrderItemStatusPending,
	enum.OrderItemStatusFinished:  enum.OrderItemStatusPreparing,
}

// KitchenService owns the kitchen-side status advances of order items.
type KitchenService struct {
	pool     TxBeginner
	newStore NewKitchenStore
	notifier ItemNotifier
}

// NewKitchenService creates a new KitchenService. notifier may be nil.
func NewKitchenService(pool TxBeginner, newStore NewKitchenStore, notifier ItemNotifier) *KitchenService {
	return &KitchenService{pool: pool, newStore: newStore, notifier: notifier}
}

// AdvanceItemStatus moves an item forward through the kitchen lifecycle:
// pending → preparing → finished. When the last item of an order reaches
// finished, the order's served flag is set, which is what later permits
// closing the bill.
func (s *KitchenService) AdvanceItemStatus(ctx context.Context, itemID uuid.UUID, target string) (*database.OrderItem, error) {
	from, ok := advanceFrom[target]
	if !ok {
		return nil, ErrInvalidStatus
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	item, err := store.GetOrderItemForUpdate(ctx, itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderItemNotFound
		}
		return nil, fmt.Errorf("get order item: %w", err)
	}
	if item.Status != from {
		return nil, &StateConflictError{
			Entity: "order_item",
			ID:     item.ID,
			Status: item.Status,
			Reason: fmt.Sprintf("cannot move to %s", target),
		}
	}

	order, err := store.GetOrderForUpdate(ctx, item.OrderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	item, err = store.SetOrderItemStatus(ctx, database.SetOrderItemStatusParams{
		ID:         item.ID,
		FromStatus: from,
		ToStatus:   target,
	})
	if err != nil {
		return nil, fmt.Errorf("advance order item: %w", err)
	}

	if target == enum.OrderItemStatusFinished {
		unfinished, err := store.CountUnfinishedOrderItems(ctx, order.ID)
		if err != nil {
			return nil, fmt.Errorf("count unfinished items: %w", err)
		}
		if unfinished == 0 {
			if _, err := store.MarkOrderServed(ctx, order.ID); err != nil {
				return nil, fmt.Errorf("mark order served: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	if s.notifier != nil && item.KitchenSectionID.Valid {
		s.notifier.ItemStatusChanged(uuid.UUID(item.KitchenSectionID.Bytes), item)
	}

	return &item, nil
}
