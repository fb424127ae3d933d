package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, bill_id, staff_id, total_price, has_been_served, is_canceled, cancel_reason, created_at, updated_at`

const createOrder = `
INSERT INTO orders (bill_id, staff_id, total_price)
VALUES ($1, $2, 0)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	BillID  uuid.UUID
	StaffID uuid.UUID
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder, arg.BillID, arg.StaffID)
	return scanOrder(row)
}

const getOrder = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, getOrder, id)
	return scanOrder(row)
}

// GetOrderForUpdate locks the order row before item-level mutations so its
// total cannot be recomputed from a stale item set by a concurrent request.
const getOrderForUpdate = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
FOR UPDATE
`

func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, getOrderForUpdate, id)
	return scanOrder(row)
}

const listOrdersByBill = `
SELECT ` + orderColumns + `
FROM orders
WHERE bill_id = $1
ORDER BY created_at
`

func (q *Queries) ListOrdersByBill(ctx context.Context, billID uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByBill, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

const listOrdersByBillStatus = `
SELECT o.id, o.bill_id, o.staff_id, o.total_price, o.has_been_served, o.is_canceled, o.cancel_reason, o.created_at, o.updated_at
FROM orders o
JOIN bills b ON b.id = o.bill_id
WHERE b.status = $1 AND b.deleted_at IS NULL
ORDER BY o.created_at DESC
`

func (q *Queries) ListOrdersByBillStatus(ctx context.Context, billStatus string) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByBillStatus, billStatus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

const updateOrderTotal = `
UPDATE orders
SET total_price = $2, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderTotalParams struct {
	ID         uuid.UUID
	TotalPrice pgtype.Numeric
}

func (q *Queries) UpdateOrderTotal(ctx context.Context, arg UpdateOrderTotalParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderTotal, arg.ID, arg.TotalPrice)
	return scanOrder(row)
}

const updateOrderTotalAndStaff = `
UPDATE orders
SET total_price = $2, staff_id = $3, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderTotalAndStaffParams struct {
	ID         uuid.UUID
	TotalPrice pgtype.Numeric
	StaffID    uuid.UUID
}

func (q *Queries) UpdateOrderTotalAndStaff(ctx context.Context, arg UpdateOrderTotalAndStaffParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderTotalAndStaff, arg.ID, arg.TotalPrice, arg.StaffID)
	return scanOrder(row)
}

const markOrderServed = `
UPDATE orders
SET has_been_served = true, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

func (q *Queries) MarkOrderServed(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, markOrderServed, id)
	return scanOrder(row)
}

const cancelOrder = `
UPDATE orders
SET is_canceled = true, cancel_reason = $2, total_price = 0, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type CancelOrderParams struct {
	ID           uuid.UUID
	CancelReason pgtype.Text
}

func (q *Queries) CancelOrder(ctx context.Context, arg CancelOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, cancelOrder, arg.ID, arg.CancelReason)
	return scanOrder(row)
}

func scanOrder(row rowScanner) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.BillID, &o.StaffID, &o.TotalPrice, &o.HasBeenServed,
		&o.IsCanceled, &o.CancelReason, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}
