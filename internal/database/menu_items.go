package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createMenuItem = `
INSERT INTO menu_items (name, category, price, is_active)
VALUES ($1, $2, $3, $4)
RETURNING id, name, category, price, is_active, created_at, updated_at
`

type CreateMenuItemParams struct {
	Name     string
	Category string
	Price    pgtype.Numeric
	IsActive bool
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, createMenuItem, arg.Name, arg.Category, arg.Price, arg.IsActive)
	var m MenuItem
	err := row.Scan(&m.ID, &m.Name, &m.Category, &m.Price, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

const getMenuItem = `
SELECT id, name, category, price, is_active, created_at, updated_at
FROM menu_items
WHERE id = $1 AND deleted_at IS NULL
`

func (q *Queries) GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	row := q.db.QueryRow(ctx, getMenuItem, id)
	var m MenuItem
	err := row.Scan(&m.ID, &m.Name, &m.Category, &m.Price, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// GetMenuItemForOrder resolves the current catalog price and category for an
// order line. Only active, non-retired items can be ordered.
const getMenuItemForOrder = `
SELECT id, price, category
FROM menu_items
WHERE id = $1 AND is_active = true AND deleted_at IS NULL
`

type GetMenuItemForOrderRow struct {
	ID       uuid.UUID
	Price    pgtype.Numeric
	Category string
}

func (q *Queries) GetMenuItemForOrder(ctx context.Context, id uuid.UUID) (GetMenuItemForOrderRow, error) {
	row := q.db.QueryRow(ctx, getMenuItemForOrder, id)
	var m GetMenuItemForOrderRow
	err := row.Scan(&m.ID, &m.Price, &m.Category)
	return m, err
}

const listMenuItems = `
SELECT id, name, category, price, is_active, created_at, updated_at
FROM menu_items
WHERE deleted_at IS NULL
ORDER BY category, name
`

func (q *Queries) ListMenuItems(ctx context.Context) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuItems)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MenuItem
	for rows.Next() {
		var m MenuItem
		if err := rows.Scan(&m.ID, &m.Name, &m.Category, &m.Price, &m.IsActive, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

const updateMenuItem = `
UPDATE menu_items
SET name = $2, category = $3, price = $4, is_active = $5, updated_at = now()
WHERE id = $1 AND deleted_at IS NULL
RETURNING id, name, category, price, is_active, created_at, updated_at
`

type UpdateMenuItemParams struct {
	ID       uuid.UUID
	Name     string
	Category string
	Price    pgtype.Numeric
	IsActive bool
}

func (q *Queries) UpdateMenuItem(ctx context.Context, arg UpdateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, updateMenuItem, arg.ID, arg.Name, arg.Category, arg.Price, arg.IsActive)
	var m MenuItem
	err := row.Scan(&m.ID, &m.Name, &m.Category, &m.Price, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

const softDeleteMenuItem = `
UPDATE menu_items
SET deleted_at = now(), is_active = false
WHERE id = $1 AND deleted_at IS NULL
RETURNING id
`

func (q *Queries) SoftDeleteMenuItem(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, softDeleteMenuItem, id)
	var out uuid.UUID
	err := row.Scan(&out)
	return out, err
}
