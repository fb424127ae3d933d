package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tabletab/api/internal/database"
	"github.com/tabletab/api/internal/enum"
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// BillingStore defines the DB methods the billing service needs.
// Satisfied by *database.Queries (and its WithTx variant).
type BillingStore interface {
	GetUser(ctx context.Context, id uuid.UUID) (database.User, error)

	GetTableByNumberForUpdate(ctx context.Context, tableNumber int32) (database.Table, error)
	SetTableStatus(ctx context.Context, arg database.SetTableStatusParams) (database.Table, error)

	CreateBill(ctx context.Context, tableID uuid.UUID) (database.Bill, error)
	GetBillForUpdate(ctx context.Context, id uuid.UUID) (database.Bill, error)
	GetOpenBillByTableForUpdate(ctx context.Context, tableID uuid.UUID) (database.Bill, error)
	UpdateBillTotals(ctx context.Context, arg database.UpdateBillTotalsParams) (database.Bill, error)
	MarkBillPaid(ctx context.Context, id uuid.UUID) (database.Bill, error)
	SoftDeleteBill(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	SumBillOrders(ctx context.Context, billID uuid.UUID) (pgtype.Numeric, error)
	ExistsUnservedOrders(ctx context.Context, billID uuid.UUID) (bool, error)

	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	UpdateOrderTotal(ctx context.Context, arg database.UpdateOrderTotalParams) (database.Order, error)
	UpdateOrderTotalAndStaff(ctx context.Context, arg database.UpdateOrderTotalAndStaffParams) (database.Order, error)
	CancelOrder(ctx context.Context, arg database.CancelOrderParams) (database.Order, error)

	GetMenuItemForOrder(ctx context.Context, id uuid.UUID) (database.GetMenuItemForOrderRow, error)
	GetKitchenSectionByCategory(ctx context.Context, category string) (database.KitchenSection, error)

	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrderItemForUpdate(ctx context.Context, id uuid.UUID) (database.OrderItem, error)
	UpdateOrderItem(ctx context.Context, arg database.UpdateOrderItemParams) (database.OrderItem, error)
	SetOrderItemStatus(ctx context.Context, arg database.SetOrderItemStatusParams) (database.OrderItem, error)
	CancelOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) error
	DeleteOrderItem(ctx context.Context, id uuid.UUID) error
	DeleteOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) error
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	SumOrderItems(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error)
	CountOrderItemsNotPending(ctx context.Context, orderID uuid.UUID) (int64, error)
	CountActiveOrderItems(ctx context.Context, orderID uuid.UUID) (int64, error)
}

// NewBillingStore creates a BillingStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewBillingStore func(db database.DBTX) BillingStore

// ItemNotifier receives kitchen ticket events for display fan-out.
// Notifications happen after commit and are best-effort.
type ItemNotifier interface {
	ItemCreated(sectionID uuid.UUID, item database.OrderItem)
	ItemStatusChanged(sectionID uuid.UUID, item database.OrderItem)
}

// OrderLine is one requested line of an order.
type OrderLine struct {
	MenuItemID string
	Quantity   int32
	Notes      string
}

// PlaceOrderRequest is the validated input for placing an order.
type PlaceOrderRequest struct {
	TableNumber int32
	PlacedBy    uuid.UUID
	Lines       []OrderLine
}

// OrderDetail is an order with its items and the placing staff attached.
type OrderDetail struct {
	Order database.Order
	Staff database.User
	Items []database.OrderItem
}

// CloseBillResult reports the outcome of a close attempt. An unserved order
// is a recoverable business condition, not an error: Closed is false and
// Reason says why, while the bill stays open.
type CloseBillResult struct {
	Closed bool
	Reason string
	Bill   database.Bill
}

// BillingService orchestrates orders, order items, bills and table
// occupancy. Every mutation runs in a single transaction and recomputes the
// affected aggregates from their child rows before committing.
type BillingService struct {
	pool     TxBeginner
	newStore NewBillingStore
	notifier ItemNotifier
}

// NewBillingService creates a new BillingService. notifier may be nil.
func NewBillingService(pool TxBeginner, newStore NewBillingStore, notifier ItemNotifier) *BillingService {
	return &BillingService{pool: pool, newStore: newStore, notifier: notifier}
}

// createdItem pairs an inserted item with its routed section for post-commit
// notification.
type createdItem struct {
	sectionID uuid.UUID
	item      database.OrderItem
}

// PlaceOrder creates an order with its items against the table's running
// bill, occupying the table and opening a bill if this is the first order of
// the sitting. Any unresolvable menu item aborts the whole transaction.
func (s *BillingService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*OrderDetail, error) {
	if err := validateLines(req.Lines); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	table, err := store.GetTableByNumberForUpdate(ctx, req.TableNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("get table: %w", err)
	}

	if table.Status != enum.TableStatusOccupied {
		if _, err := store.SetTableStatus(ctx, database.SetTableStatusParams{
			ID:     table.ID,
			Status: enum.TableStatusOccupied,
		}); err != nil {
			return nil, fmt.Errorf("occupy table: %w", err)
		}
	}

	bill, err := store.GetOpenBillByTableForUpdate(ctx, table.ID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get open bill: %w", err)
		}
		bill, err = store.CreateBill(ctx, table.ID)
		if err != nil {
			return nil, fmt.Errorf("create bill: %w", err)
		}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		BillID:  bill.ID,
		StaffID: req.PlacedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	items, created, err := s.insertLines(ctx, store, order.ID, req.Lines)
	if err != nil {
		return nil, err
	}

	orderTotal := decimal.Zero
	for _, it := range items {
		orderTotal = orderTotal.Add(numericToDecimal(it.LinePrice))
	}

	order, err = store.UpdateOrderTotal(ctx, database.UpdateOrderTotalParams{
		ID:         order.ID,
		TotalPrice: decimalToNumeric(orderTotal),
	})
	if err != nil {
		return nil, fmt.Errorf("update order total: %w", err)
	}

	if _, err := s.recomputeBill(ctx, store, bill); err != nil {
		return nil, err
	}

	staff, err := store.GetUser(ctx, req.PlacedBy)
	if err != nil {
		return nil, fmt.Errorf("get staff: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.notifyCreated(created)

	return &OrderDetail{Order: order, Staff: staff, Items: items}, nil
}

// UpdateOrder replaces all items of an order. Only allowed while every
// existing item is still pending.
func (s *BillingService) UpdateOrder(ctx context.Context, orderID uuid.UUID, lines []OrderLine, staffID uuid.UUID) (*OrderDetail, error) {
	if err := validateLines(lines); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.IsCanceled {
		return nil, &StateConflictError{Entity: "order", ID: order.ID, Status: "CANCELED", Reason: "order is canceled"}
	}

	notPending, err := store.CountOrderItemsNotPending(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("count non-pending items: %w", err)
	}
	if notPending > 0 {
		return nil, &StateConflictError{
			Entity: "order",
			ID:     order.ID,
			Status: enum.OrderItemStatusPreparing,
			Reason: "order has items that are no longer pending",
		}
	}

	bill, err := store.GetBillForUpdate(ctx, order.BillID)
	if err != nil {
		return nil, fmt.Errorf("get bill: %w", err)
	}

	if err := store.DeleteOrderItemsByOrder(ctx, order.ID); err != nil {
		return nil, fmt.Errorf("clear order items: %w", err)
	}

	items, created, err := s.insertLines(ctx, store, order.ID, lines)
	if err != nil {
		return nil, err
	}

	orderTotal := decimal.Zero
	for _, it := range items {
		orderTotal = orderTotal.Add(numericToDecimal(it.LinePrice))
	}

	order, err = store.UpdateOrderTotalAndStaff(ctx, database.UpdateOrderTotalAndStaffParams{
		ID:         order.ID,
		TotalPrice: decimalToNumeric(orderTotal),
		StaffID:    staffID,
	})
	if err != nil {
		return nil, fmt.Errorf("update order total: %w", err)
	}

	if _, err := s.recomputeBill(ctx, store, bill); err != nil {
		return nil, err
	}

	staff, err := store.GetUser(ctx, staffID)
	if err != nil {
		return nil, fmt.Errorf("get staff: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.notifyCreated(created)

	return &OrderDetail{Order: order, Staff: staff, Items: items}, nil
}

// UpdateOrderItem changes one line of an order: menu item, quantity and
// note. Gated on the item still being pending, or preparing with the force
// override for correcting in-flight kitchen tickets.
func (s *BillingService) UpdateOrderItem(ctx context.Context, itemID uuid.UUID, menuItemID string, quantity int32, notes string, force bool) (*OrderDetail, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	menuID, err := uuid.Parse(menuItemID)
	if err != nil {
		return nil, ErrInvalidMenuItemID
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
	if err := gateItemEdit(item, force); err != nil {
		return nil, err
	}

	order, err := store.GetOrderForUpdate(ctx, item.OrderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	bill, err := store.GetBillForUpdate(ctx, order.BillID)
	if err != nil {
		return nil, fmt.Errorf("get bill: %w", err)
	}

	menuItem, err := store.GetMenuItemForOrder(ctx, menuID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMenuItemNotFound
		}
		return nil, fmt.Errorf("get menu item: %w", err)
	}

	linePrice := numericToDecimal(menuItem.Price).Mul(decimal.NewFromInt32(quantity))
	sectionID, err := s.resolveSection(ctx, store, menuItem.Category)
	if err != nil {
		return nil, err
	}

	if _, err := store.UpdateOrderItem(ctx, database.UpdateOrderItemParams{
		ID:               item.ID,
		MenuItemID:       menuID,
		KitchenSectionID: sectionID,
		Quantity:         quantity,
		LinePrice:        decimalToNumeric(linePrice),
		Notes:            textOrNull(notes),
	}); err != nil {
		return nil, fmt.Errorf("update order item: %w", err)
	}

	order, err = s.recomputeOrder(ctx, store, order.ID)
	if err != nil {
		return nil, err
	}
	if _, err := s.recomputeBill(ctx, store, bill); err != nil {
		return nil, err
	}

	items, err := store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	staff, err := store.GetUser(ctx, order.StaffID)
	if err != nil {
		return nil, fmt.Errorf("get staff: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &OrderDetail{Order: order, Staff: staff, Items: items}, nil
}

// CancelOrderItem cancels one line, subject to the same pending/force gate
// as updates. If the order is left with no live items it is canceled as a
// whole. The bill is first adjusted by the fast-path subtraction, then
// recomputed from its orders; the full recomputation always wins.
func (s *BillingService) CancelOrderItem(ctx context.Context, itemID uuid.UUID, force bool) (*database.OrderItem, error) {
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
	if err := gateItemEdit(item, force); err != nil {
		return nil, err
	}

	order, err := store.GetOrderForUpdate(ctx, item.OrderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	bill, err := store.GetBillForUpdate(ctx, order.BillID)
	if err != nil {
		return nil, fmt.Errorf("get bill: %w", err)
	}

	item, err = store.SetOrderItemStatus(ctx, database.SetOrderItemStatusParams{
		ID:         item.ID,
		FromStatus: item.Status,
		ToStatus:   enum.OrderItemStatusCanceled,
	})
	if err != nil {
		return nil, fmt.Errorf("cancel order item: %w", err)
	}

	order, err = s.recomputeOrder(ctx, store, order.ID)
	if err != nil {
		return nil, err
	}

	// Serving is only flagged by the kitchen finishing an item. A
	// cancellation that leaves an order with nothing but finished items
	// does not mark it served; the bill close gate still sees it as
	// unserved until the kitchen advances something on that order.
	active, err := store.CountActiveOrderItems(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("count active items: %w", err)
	}
	if active == 0 {
		prevTotal := numericToDecimal(order.TotalPrice)
		if _, err := store.CancelOrder(ctx, database.CancelOrderParams{ID: order.ID}); err != nil {
			return nil, fmt.Errorf("cancel empty order: %w", err)
		}
		// Fast path: subtract the canceled order's contribution, floored
		// at zero. The authoritative re-sum below overwrites this.
		subtotal := numericToDecimal(bill.Subtotal).Sub(prevTotal)
		if subtotal.IsNegative() {
			subtotal = decimal.Zero
		}
		d := storedDiscount(bill)
		if _, err := store.UpdateBillTotals(ctx, billTotalsParams(bill, subtotal, d)); err != nil {
			return nil, fmt.Errorf("update bill totals: %w", err)
		}
	}

	if _, err := s.recomputeBill(ctx, store, bill); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &item, nil
}

// CancelOrder cancels a whole order with a stored reason. Only possible
// while every item is still pending; anything already handed to the kitchen
// must be force-canceled item by item instead.
func (s *BillingService) CancelOrder(ctx context.Context, orderID uuid.UUID, reason string) (*OrderDetail, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.IsCanceled {
		return nil, &StateConflictError{Entity: "order", ID: order.ID, Status: "CANCELED", Reason: "order already canceled"}
	}

	notPending, err := store.CountOrderItemsNotPending(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("count non-pending items: %w", err)
	}
	if notPending > 0 {
		return nil, &StateConflictError{
			Entity: "order",
			ID:     order.ID,
			Status: enum.OrderItemStatusPreparing,
			Reason: "order has items that are no longer pending",
		}
	}

	bill, err := store.GetBillForUpdate(ctx, order.BillID)
	if err != nil {
		return nil, fmt.Errorf("get bill: %w", err)
	}

	order, err = store.CancelOrder(ctx, database.CancelOrderParams{
		ID:           order.ID,
		CancelReason: textOrNull(reason),
	})
	if err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	if err := store.CancelOrderItemsByOrder(ctx, order.ID); err != nil {
		return nil, fmt.Errorf("cancel order items: %w", err)
	}

	if _, err := s.recomputeBill(ctx, store, bill); err != nil {
		return nil, err
	}

	items, err := store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	staff, err := store.GetUser(ctx, order.StaffID)
	if err != nil {
		return nil, fmt.Errorf("get staff: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &OrderDetail{Order: order, Staff: staff, Items: items}, nil
}

// CloseBill settles the bill: applies the discount, marks it paid and frees
// the table. If any non-canceled order is unserved the close is refused as a
// soft failure, not an error.
func (s *BillingService) CloseBill(ctx context.Context, billID uuid.UUID, d Discount) (*CloseBillResult, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	bill, err := store.GetBillForUpdate(ctx, billID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBillNotFound
		}
		return nil, fmt.Errorf("get bill: %w", err)
	}
	if bill.Status != enum.BillStatusOpen {
		return nil, &StateConflictError{Entity: "bill", ID: bill.ID, Status: bill.Status, Reason: "bill is not open"}
	}

	unserved, err := store.ExistsUnservedOrders(ctx, bill.ID)
	if err != nil {
		return nil, fmt.Errorf("check unserved orders: %w", err)
	}
	if unserved {
		return &CloseBillResult{
			Closed: false,
			Reason: "cannot close bill: some orders have not been fully served",
			Bill:   bill,
		}, nil
	}

	if d.None() {
		d = storedDiscount(bill)
	}

	subtotal, err := s.authoritativeSubtotal(ctx, store, bill)
	if err != nil {
		return nil, err
	}
	bill, err = store.UpdateBillTotals(ctx, billTotalsParams(bill, subtotal, d))
	if err != nil {
		return nil, fmt.Errorf("update bill totals: %w", err)
	}

	bill, err = store.MarkBillPaid(ctx, bill.ID)
	if err != nil {
		return nil, fmt.Errorf("mark bill paid: %w", err)
	}

	if _, err := store.SetTableStatus(ctx, database.SetTableStatusParams{
		ID:     bill.TableID,
		Status: enum.TableStatusFree,
	}); err != nil {
		return nil, fmt.Errorf("free table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CloseBillResult{Closed: true, Bill: bill}, nil
}

// ApplyDiscount stores a discount spec on an open bill and recomputes its
// final price from the authoritative subtotal. Reapplying the same spec is
// idempotent.
func (s *BillingService) ApplyDiscount(ctx context.Context, billID uuid.UUID, d Discount) (*database.Bill, error) {
	if d.Type == enum.DiscountTypeNone {
		return nil, ErrInvalidDiscountType
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	bill, err := store.GetBillForUpdate(ctx, billID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBillNotFound
		}
		return nil, fmt.Errorf("get bill: %w", err)
	}
	if bill.Status != enum.BillStatusOpen {
		return nil, &StateConflictError{Entity: "bill", ID: bill.ID, Status: bill.Status, Reason: "bill is not open"}
	}

	subtotal, err := s.authoritativeSubtotal(ctx, store, bill)
	if err != nil {
		return nil, err
	}
	bill, err = store.UpdateBillTotals(ctx, billTotalsParams(bill, subtotal, d))
	if err != nil {
		return nil, fmt.Errorf("update bill totals: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &bill, nil
}

// RemoveBill soft-deletes a paid bill.
func (s *BillingService) RemoveBill(ctx context.Context, billID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	bill, err := store.GetBillForUpdate(ctx, billID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrBillNotFound
		}
		return fmt.Errorf("get bill: %w", err)
	}
	if bill.Status != enum.BillStatusPaid {
		return &StateConflictError{Entity: "bill", ID: bill.ID, Status: bill.Status, Reason: "only paid bills can be removed"}
	}

	if _, err := store.SoftDeleteBill(ctx, bill.ID); err != nil {
		return fmt.Errorf("soft delete bill: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// DeleteOrderItem hard-removes a line. Only allowed once the owning bill is
// paid; live bills keep their history.
func (s *BillingService) DeleteOrderItem(ctx context.Context, itemID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	item, err := store.GetOrderItemForUpdate(ctx, itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderItemNotFound
		}
		return fmt.Errorf("get order item: %w", err)
	}

	order, err := store.GetOrderForUpdate(ctx, item.OrderID)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	bill, err := store.GetBillForUpdate(ctx, order.BillID)
	if err != nil {
		return fmt.Errorf("get bill: %w", err)
	}
	if bill.Status != enum.BillStatusPaid {
		return ErrBillNotPaid
	}

	if err := store.DeleteOrderItem(ctx, item.ID); err != nil {
		return fmt.Errorf("delete order item: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// --- internals ---

func validateLines(lines []OrderLine) error {
	if len(lines) == 0 {
		return ErrEmptyItems
	}
	for i, line := range lines {
		if line.Quantity <= 0 {
			return fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
		if _, err := uuid.Parse(line.MenuItemID); err != nil {
			return fmt.Errorf("items[%d]: %w", i, ErrInvalidMenuItemID)
		}
	}
	return nil
}

// gateItemEdit enforces the edit/cancel gate: pending always, preparing only
// with force, finished/canceled never.
func gateItemEdit(item database.OrderItem, force bool) error {
	switch item.Status {
	case enum.OrderItemStatusPending:
		return nil
	case enum.OrderItemStatusPreparing:
		if force {
			return nil
		}
	}
	return &StateConflictError{Entity: "order_item", ID: item.ID, Status: item.Status}
}

// insertLines resolves each line against the menu catalog, snapshots the
// line price, routes the kitchen section and inserts the items as pending.
func (s *BillingService) insertLines(ctx context.Context, store BillingStore, orderID uuid.UUID, lines []OrderLine) ([]database.OrderItem, []createdItem, error) {
	items := make([]database.OrderItem, 0, len(lines))
	var created []createdItem

	for i, line := range lines {
		menuID, err := uuid.Parse(line.MenuItemID)
		if err != nil {
			return nil, nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidMenuItemID)
		}

		menuItem, err := store.GetMenuItemForOrder(ctx, menuID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, nil, fmt.Errorf("items[%d]: %w", i, ErrMenuItemNotFound)
			}
			return nil, nil, fmt.Errorf("items[%d]: get menu item: %w", i, err)
		}

		linePrice := numericToDecimal(menuItem.Price).Mul(decimal.NewFromInt32(line.Quantity))

		sectionID, err := s.resolveSection(ctx, store, menuItem.Category)
		if err != nil {
			return nil, nil, err
		}

		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:          orderID,
			MenuItemID:       menuID,
			KitchenSectionID: sectionID,
			Quantity:         line.Quantity,
			LinePrice:        decimalToNumeric(linePrice),
			Notes:            textOrNull(line.Notes),
			Status:           enum.OrderItemStatusPending,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("items[%d]: create order item: %w", i, err)
		}

		items = append(items, item)
		if sectionID.Valid {
			created = append(created, createdItem{sectionID: uuid.UUID(sectionID.Bytes), item: item})
		}
	}

	return items, created, nil
}

// resolveSection maps a menu category to its kitchen section. Unmatched
// categories route to no section, not an error.
func (s *BillingService) resolveSection(ctx context.Context, store BillingStore, category string) (pgtype.UUID, error) {
	section, err := store.GetKitchenSectionByCategory(ctx, category)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pgtype.UUID{}, nil
		}
		return pgtype.UUID{}, fmt.Errorf("resolve kitchen section: %w", err)
	}
	return pgtype.UUID{Bytes: section.ID, Valid: true}, nil
}

// recomputeOrder sets the order total to the live sum of its non-canceled
// items.
func (s *BillingService) recomputeOrder(ctx context.Context, store BillingStore, orderID uuid.UUID) (database.Order, error) {
	sum, err := store.SumOrderItems(ctx, orderID)
	if err != nil {
		return database.Order{}, fmt.Errorf("sum order items: %w", err)
	}
	order, err := store.UpdateOrderTotal(ctx, database.UpdateOrderTotalParams{
		ID:         orderID,
		TotalPrice: sum,
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("update order total: %w", err)
	}
	return order, nil
}

// recomputeBill is the authoritative pass: subtotal re-summed from the
// bill's non-canceled orders, discount reapplied from the stored spec,
// final price clamped at zero.
func (s *BillingService) recomputeBill(ctx context.Context, store BillingStore, bill database.Bill) (database.Bill, error) {
	subtotal, err := s.authoritativeSubtotal(ctx, store, bill)
	if err != nil {
		return database.Bill{}, err
	}
	d := storedDiscount(bill)
	updated, err := store.UpdateBillTotals(ctx, billTotalsParams(bill, subtotal, d))
	if err != nil {
		return database.Bill{}, fmt.Errorf("update bill totals: %w", err)
	}
	return updated, nil
}

func (s *BillingService) authoritativeSubtotal(ctx context.Context, store BillingStore, bill database.Bill) (decimal.Decimal, error) {
	sum, err := store.SumBillOrders(ctx, bill.ID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum bill orders: %w", err)
	}
	subtotal := numericToDecimal(sum)
	if subtotal.IsNegative() {
		return decimal.Zero, &ConsistencyError{Entity: "bill", ID: bill.ID, Detail: "re-summed subtotal is negative"}
	}
	return subtotal, nil
}

// storedDiscount reconstructs the discount spec persisted on the bill row.
func storedDiscount(bill database.Bill) Discount {
	if !bill.DiscountType.Valid {
		return Discount{}
	}
	return Discount{
		Type:  bill.DiscountType.String,
		Value: numericToDecimal(bill.DiscountValue),
	}
}

func billTotalsParams(bill database.Bill, subtotal decimal.Decimal, d Discount) database.UpdateBillTotalsParams {
	params := database.UpdateBillTotalsParams{
		ID:             bill.ID,
		Subtotal:       decimalToNumeric(subtotal),
		DiscountAmount: decimalToNumeric(d.Amount(subtotal)),
		FinalPrice:     decimalToNumeric(d.Final(subtotal)),
	}
	if !d.None() {
		params.DiscountType = pgtype.Text{String: d.Type, Valid: true}
		params.DiscountValue = decimalToNumeric(d.Value)
	}
	return params
}

func (s *BillingService) notifyCreated(created []createdItem) {
	if s.notifier == nil {
		return
	}
	for _, c := range created {
		s.notifier.ItemCreated(c.sectionID, c.item)
	}
}

// --- pgtype helpers ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
