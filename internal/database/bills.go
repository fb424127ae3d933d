package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createBill = `
INSERT INTO bills (table_id, subtotal, final_price, status)
VALUES ($1, 0, 0, 'OPEN')
RETURNING id, table_id, subtotal, discount_type, discount_value, discount_amount, final_price, status, created_at, updated_at
`

func (q *Queries) CreateBill(ctx context.Context, tableID uuid.UUID) (Bill, error) {
	row := q.db.QueryRow(ctx, createBill, tableID)
	return scanBill(row)
}

const getBill = `
SELECT id, table_id, subtotal, discount_type, discount_value, discount_amount, final_price, status, created_at, updated_at
FROM bills
WHERE id = $1 AND deleted_at IS NULL
`

func (q *Queries) GetBill(ctx context.Context, id uuid.UUID) (Bill, error) {
	row := q.db.QueryRow(ctx, getBill, id)
	return scanBill(row)
}

// GetBillForUpdate locks the bill row for the rest of the transaction.
// Every mutation of a bill's aggregates must go through this lock so two
// concurrent item changes cannot both read a stale subtotal.
const getBillForUpdate = `
SELECT id, table_id, subtotal, discount_type, discount_value, discount_amount, final_price, status, created_at, updated_at
FROM bills
WHERE id = $1 AND deleted_at IS NULL
FOR UPDATE
`

func (q *Queries) GetBillForUpdate(ctx context.Context, id uuid.UUID) (Bill, error) {
	row := q.db.QueryRow(ctx, getBillForUpdate, id)
	return scanBill(row)
}

const getOpenBillByTable = `
SELECT id, table_id, subtotal, discount_type, discount_value, discount_amount, final_price, status, created_at, updated_at
FROM bills
WHERE table_id = $1 AND status = 'OPEN' AND deleted_at IS NULL
`

func (q *Queries) GetOpenBillByTable(ctx context.Context, tableID uuid.UUID) (Bill, error) {
	row := q.db.QueryRow(ctx, getOpenBillByTable, tableID)
	return scanBill(row)
}

const getOpenBillByTableForUpdate = `
SELECT id, table_id, subtotal, discount_type, discount_value, discount_amount, final_price, status, created_at, updated_at
FROM bills
WHERE table_id = $1 AND status = 'OPEN' AND deleted_at IS NULL
FOR UPDATE
`

func (q *Queries) GetOpenBillByTableForUpdate(ctx context.Context, tableID uuid.UUID) (Bill, error) {
	row := q.db.QueryRow(ctx, getOpenBillByTableForUpdate, tableID)
	return scanBill(row)
}

const updateBillTotals = `
UPDATE bills
SET subtotal = $2,
    discount_type = $3,
    discount_value = $4,
    discount_amount = $5,
    final_price = $6,
    updated_at = now()
WHERE id = $1 AND deleted_at IS NULL
RETURNING id, table_id, subtotal, discount_type, discount_value, discount_amount, final_price, status, created_at, updated_at
`

type UpdateBillTotalsParams struct {
	ID             uuid.UUID
	Subtotal       pgtype.Numeric
	DiscountType   pgtype.Text
	DiscountValue  pgtype.Numeric
	DiscountAmount pgtype.Numeric
	FinalPrice     pgtype.Numeric
}

func (q *Queries) UpdateBillTotals(ctx context.Context, arg UpdateBillTotalsParams) (Bill, error) {
	row := q.db.QueryRow(ctx, updateBillTotals,
		arg.ID, arg.Subtotal, arg.DiscountType, arg.DiscountValue, arg.DiscountAmount, arg.FinalPrice)
	return scanBill(row)
}

const markBillPaid = `
UPDATE bills
SET status = 'PAID', updated_at = now()
WHERE id = $1 AND status = 'OPEN' AND deleted_at IS NULL
RETURNING id, table_id, subtotal, discount_type, discount_value, discount_amount, final_price, status, created_at, updated_at
`

func (q *Queries) MarkBillPaid(ctx context.Context, id uuid.UUID) (Bill, error) {
	row := q.db.QueryRow(ctx, markBillPaid, id)
	return scanBill(row)
}

const softDeleteBill = `
UPDATE bills
SET deleted_at = now()
WHERE id = $1 AND status = 'PAID' AND deleted_at IS NULL
RETURNING id
`

// SoftDeleteBill removes a bill from normal reads. Only paid bills qualify.
func (q *Queries) SoftDeleteBill(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, softDeleteBill, id)
	var out uuid.UUID
	err := row.Scan(&out)
	return out, err
}

// SumBillOrders is the authoritative subtotal: the live sum of total_price
// over the bill's non-canceled orders.
const sumBillOrders = `
SELECT COALESCE(SUM(total_price), 0)
FROM orders
WHERE bill_id = $1 AND is_canceled = false
`

func (q *Queries) SumBillOrders(ctx context.Context, billID uuid.UUID) (pgtype.Numeric, error) {
	row := q.db.QueryRow(ctx, sumBillOrders, billID)
	var n pgtype.Numeric
	err := row.Scan(&n)
	return n, err
}

const existsUnservedOrders = `
SELECT EXISTS (
	SELECT 1 FROM orders
	WHERE bill_id = $1 AND is_canceled = false AND has_been_served = false
)
`

func (q *Queries) ExistsUnservedOrders(ctx context.Context, billID uuid.UUID) (bool, error) {
	row := q.db.QueryRow(ctx, existsUnservedOrders, billID)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBill(row rowScanner) (Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.TableID, &b.Subtotal, &b.DiscountType, &b.DiscountValue,
		&b.DiscountAmount, &b.FinalPrice, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}
