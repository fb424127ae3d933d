package database

import (
	"context"

	"github.com/google/uuid"
)

const createTable = `
INSERT INTO tables (table_number, capacity, status)
VALUES ($1, $2, 'FREE')
RETURNING id, table_number, capacity, status, created_at, updated_at
`

type CreateTableParams struct {
	TableNumber int32
	Capacity    int32
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (Table, error) {
	row := q.db.QueryRow(ctx, createTable, arg.TableNumber, arg.Capacity)
	var t Table
	err := row.Scan(&t.ID, &t.TableNumber, &t.Capacity, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

const getTable = `
SELECT id, table_number, capacity, status, created_at, updated_at
FROM tables
WHERE id = $1 AND deleted_at IS NULL
`

func (q *Queries) GetTable(ctx context.Context, id uuid.UUID) (Table, error) {
	row := q.db.QueryRow(ctx, getTable, id)
	var t Table
	err := row.Scan(&t.ID, &t.TableNumber, &t.Capacity, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

const getTableByNumber = `
SELECT id, table_number, capacity, status, created_at, updated_at
FROM tables
WHERE table_number = $1 AND deleted_at IS NULL
`

func (q *Queries) GetTableByNumber(ctx context.Context, tableNumber int32) (Table, error) {
	row := q.db.QueryRow(ctx, getTableByNumber, tableNumber)
	var t Table
	err := row.Scan(&t.ID, &t.TableNumber, &t.Capacity, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// getTableByNumberForUpdate locks the table row so two concurrent first
// orders for the same table cannot both open a bill.
const getTableByNumberForUpdate = `
SELECT id, table_number, capacity, status, created_at, updated_at
FROM tables
WHERE table_number = $1 AND deleted_at IS NULL
FOR UPDATE
`

func (q *Queries) GetTableByNumberForUpdate(ctx context.Context, tableNumber int32) (Table, error) {
	row := q.db.QueryRow(ctx, getTableByNumberForUpdate, tableNumber)
	var t Table
	err := row.Scan(&t.ID, &t.TableNumber, &t.Capacity, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

const listTables = `
SELECT id, table_number, capacity, status, created_at, updated_at
FROM tables
WHERE deleted_at IS NULL
ORDER BY table_number
`

func (q *Queries) ListTables(ctx context.Context) ([]Table, error) {
	rows, err := q.db.Query(ctx, listTables)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.ID, &t.TableNumber, &t.Capacity, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const updateTable = `
UPDATE tables
SET table_number = $2, capacity = $3, updated_at = now()
WHERE id = $1 AND deleted_at IS NULL
RETURNING id, table_number, capacity, status, created_at, updated_at
`

type UpdateTableParams struct {
	ID          uuid.UUID
	TableNumber int32
	Capacity    int32
}

func (q *Queries) UpdateTable(ctx context.Context, arg UpdateTableParams) (Table, error) {
	row := q.db.QueryRow(ctx, updateTable, arg.ID, arg.TableNumber, arg.Capacity)
	var t Table
	err := row.Scan(&t.ID, &t.TableNumber, &t.Capacity, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

const setTableStatus = `
UPDATE tables
SET status = $2, updated_at = now()
WHERE id = $1 AND deleted_at IS NULL
RETURNING id, table_number, capacity, status, created_at, updated_at
`

type SetTableStatusParams struct {
	ID     uuid.UUID
	Status string
}

func (q *Queries) SetTableStatus(ctx context.Context, arg SetTableStatusParams) (Table, error) {
	row := q.db.QueryRow(ctx, setTableStatus, arg.ID, arg.Status)
	var t Table
	err := row.Scan(&t.ID, &t.TableNumber, &t.Capacity, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

const softDeleteTable = `
UPDATE tables
SET deleted_at = now()
WHERE id = $1 AND deleted_at IS NULL
RETURNING id
`

func (q *Queries) SoftDeleteTable(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, softDeleteTable, id)
	var out uuid.UUID
	err := row.Scan(&out)
	return out, err
}
