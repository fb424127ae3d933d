package database

import (
	"context"

	"github.com/google/uuid"
)

const createKitchenSection = `
INSERT INTO kitchen_sections (name, categories)
VALUES ($1, $2)
RETURNING id, name, categories, created_at
`

type CreateKitchenSectionParams struct {
	Name       string
	Categories []string
}

func (q *Queries) CreateKitchenSection(ctx context.Context, arg CreateKitchenSectionParams) (KitchenSection, error) {
	row := q.db.QueryRow(ctx, createKitchenSection, arg.Name, arg.Categories)
	var s KitchenSection
	err := row.Scan(&s.ID, &s.Name, &s.Categories, &s.CreatedAt)
	return s, err
}

const getKitchenSection = `
SELECT id, name, categories, created_at
FROM kitchen_sections
WHERE id = $1
`

func (q *Queries) GetKitchenSection(ctx context.Context, id uuid.UUID) (KitchenSection, error) {
	row := q.db.QueryRow(ctx, getKitchenSection, id)
	var s KitchenSection
	err := row.Scan(&s.ID, &s.Name, &s.Categories, &s.CreatedAt)
	return s, err
}

// GetKitchenSectionByCategory routes a menu category to the section whose
// categories array contains it. Returns pgx.ErrNoRows for unmatched
// categories; callers treat that as "no section", not an error.
const getKitchenSectionByCategory = `
SELECT id, name, categories, created_at
FROM kitchen_sections
WHERE categories @> to_jsonb($1::text)
ORDER BY name
LIMIT 1
`

func (q *Queries) GetKitchenSectionByCategory(ctx context.Context, category string) (KitchenSection, error) {
	row := q.db.QueryRow(ctx, getKitchenSectionByCategory, category)
	var s KitchenSection
	err := row.Scan(&s.ID, &s.Name, &s.Categories, &s.CreatedAt)
	return s, err
}

const listKitchenSections = `
SELECT id, name, categories, created_at
FROM kitchen_sections
ORDER BY name
`

func (q *Queries) ListKitchenSections(ctx context.Context) ([]KitchenSection, error) {
	rows, err := q.db.Query(ctx, listKitchenSections)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []KitchenSection
	for rows.Next() {
		var s KitchenSection
		if err := rows.Scan(&s.ID, &s.Name, &s.Categories, &s.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}
