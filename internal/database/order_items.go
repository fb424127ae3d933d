package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderItemColumns = `id, order_id, menu_item_id, kitchen_section_id, quantity, line_price, notes, status, created_at, updated_at`

const createOrderItem = `
INSERT INTO order_items (order_id, menu_item_id, kitchen_section_id, quantity, line_price, notes, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + orderItemColumns

type CreateOrderItemParams struct {
	OrderID          uuid.UUID
	MenuItemID       uuid.UUID
	KitchenSectionID pgtype.UUID
	Quantity         int32
	LinePrice        pgtype.Numeric
	Notes            pgtype.Text
	Status           string
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID, arg.MenuItemID, arg.KitchenSectionID, arg.Quantity, arg.LinePrice, arg.Notes, arg.Status)
	return scanOrderItem(row)
}

const getOrderItem = `
SELECT ` + orderItemColumns + `
FROM order_items
WHERE id = $1
`

func (q *Queries) GetOrderItem(ctx context.Context, id uuid.UUID) (OrderItem, error) {
	row := q.db.QueryRow(ctx, getOrderItem, id)
	return scanOrderItem(row)
}

const getOrderItemForUpdate = `
SELECT ` + orderItemColumns + `
FROM order_items
WHERE id = $1
FOR UPDATE
`

func (q *Queries) GetOrderItemForUpdate(ctx context.Context, id uuid.UUID) (OrderItem, error) {
	row := q.db.QueryRow(ctx, getOrderItemForUpdate, id)
	return scanOrderItem(row)
}

const listOrderItemsByOrder = `
SELECT ` + orderItemColumns + `
FROM order_items
WHERE order_id = $1
ORDER BY created_at
`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	return q.queryOrderItems(ctx, listOrderItemsByOrder, orderID)
}

const listOrderItemsByStatus = `
SELECT ` + orderItemColumns + `
FROM order_items
WHERE status = $1
ORDER BY created_at DESC
`

func (q *Queries) ListOrderItemsByStatus(ctx context.Context, status string) ([]OrderItem, error) {
	return q.queryOrderItems(ctx, listOrderItemsByStatus, status)
}

const listOrderItemsBySectionAndStatus = `
SELECT ` + orderItemColumns + `
FROM order_items
WHERE kitchen_section_id = $1 AND status = $2
ORDER BY created_at
`

type ListOrderItemsBySectionAndStatusParams struct {
	KitchenSectionID uuid.UUID
	Status           string
}

func (q *Queries) ListOrderItemsBySectionAndStatus(ctx context.Context, arg ListOrderItemsBySectionAndStatusParams) ([]OrderItem, error) {
	return q.queryOrderItems(ctx, listOrderItemsBySectionAndStatus, arg.KitchenSectionID, arg.Status)
}

const updateOrderItem = `
UPDATE order_items
SET menu_item_id = $2,
    kitchen_section_id = $3,
    quantity = $4,
    line_price = $5,
    notes = $6,
    updated_at = now()
WHERE id = $1
RETURNING ` + orderItemColumns

type UpdateOrderItemParams struct {
	ID               uuid.UUID
	MenuItemID       uuid.UUID
	KitchenSectionID pgtype.UUID
	Quantity         int32
	LinePrice        pgtype.Numeric
	Notes            pgtype.Text
}

func (q *Queries) UpdateOrderItem(ctx context.Context, arg UpdateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, updateOrderItem,
		arg.ID, arg.MenuItemID, arg.KitchenSectionID, arg.Quantity, arg.LinePrice, arg.Notes)
	return scanOrderItem(row)
}

// SetOrderItemStatus performs a compare-and-set on the item status. No rows
// returned means the item left fromStatus between read and write.
const setOrderItemStatus = `
UPDATE order_items
SET status = $3, updated_at = now()
WHERE id = $1 AND status = $2
RETURNING ` + orderItemColumns

type SetOrderItemStatusParams struct {
	ID         uuid.UUID
	FromStatus string
	ToStatus   string
}

func (q *Queries) SetOrderItemStatus(ctx context.Context, arg SetOrderItemStatusParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, setOrderItemStatus, arg.ID, arg.FromStatus, arg.ToStatus)
	return scanOrderItem(row)
}

const cancelOrderItemsByOrder = `
UPDATE order_items
SET status = 'CANCELED', updated_at = now()
WHERE order_id = $1 AND status NOT IN ('FINISHED', 'CANCELED')
`

func (q *Queries) CancelOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) error {
	_, err := q.db.Exec(ctx, cancelOrderItemsByOrder, orderID)
	return err
}

const deleteOrderItem = `
DELETE FROM order_items
WHERE id = $1
`

func (q *Queries) DeleteOrderItem(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteOrderItem, id)
	return err
}

const deleteOrderItemsByOrder = `
DELETE FROM order_items
WHERE order_id = $1
`

func (q *Queries) DeleteOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteOrderItemsByOrder, orderID)
	return err
}

// SumOrderItems is the authoritative order total: the live sum of line_price
// over the order's non-canceled items.
const sumOrderItems = `
SELECT COALESCE(SUM(line_price), 0)
FROM order_items
WHERE order_id = $1 AND status != 'CANCELED'
`

func (q *Queries) SumOrderItems(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error) {
	row := q.db.QueryRow(ctx, sumOrderItems, orderID)
	var n pgtype.Numeric
	err := row.Scan(&n)
	return n, err
}

const countOrderItemsNotPending = `
SELECT COUNT(*)
FROM order_items
WHERE order_id = $1 AND status != 'PENDING'
`

func (q *Queries) CountOrderItemsNotPending(ctx context.Context, orderID uuid.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, countOrderItemsNotPending, orderID)
	var n int64
	err := row.Scan(&n)
	return n, err
}

const countActiveOrderItems = `
SELECT COUNT(*)
FROM order_items
WHERE order_id = $1 AND status != 'CANCELED'
`

func (q *Queries) CountActiveOrderItems(ctx context.Context, orderID uuid.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, countActiveOrderItems, orderID)
	var n int64
	err := row.Scan(&n)
	return n, err
}

const countUnfinishedOrderItems = `
SELECT COUNT(*)
FROM order_items
WHERE order_id = $1 AND status NOT IN ('FINISHED', 'CANCELED')
`

func (q *Queries) CountUnfinishedOrderItems(ctx context.Context, orderID uuid.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, countUnfinishedOrderItems, orderID)
	var n int64
	err := row.Scan(&n)
	return n, err
}

func (q *Queries) queryOrderItems(ctx context.Context, sql string, args ...interface{}) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		it, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanOrderItem(row rowScanner) (OrderItem, error) {
	var it OrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.KitchenSectionID, &it.Quantity,
		&it.LinePrice, &it.Notes, &it.Status, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}
