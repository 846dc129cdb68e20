package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const createMenuItem = `
INSERT INTO menu_items (name, price, category, group_code, group_name, available)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, name, price, category, group_code, group_name, available, created_at, updated_at
`

type CreateMenuItemParams struct {
	Name      string
	Price     pgtype.Numeric
	Category  string
	GroupCode pgtype.Text
	GroupName pgtype.Text
	Available bool
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, createMenuItem,
		arg.Name, arg.Price, arg.Category, arg.GroupCode, arg.GroupName, arg.Available)
	return scanMenuItem(row)
}

const updateMenuItem = `
UPDATE menu_items
SET name = $2, price = $3, category = $4, group_code = $5, group_name = $6,
    available = $7, updated_at = now()
WHERE id = $1
RETURNING id, name, price, category, group_code, group_name, available, created_at, updated_at
`

type UpdateMenuItemParams struct {
	ID        uuid.UUID
	Name      string
	Price     pgtype.Numeric
	Category  string
	GroupCode pgtype.Text
	GroupName pgtype.Text
	Available bool
}

func (q *Queries) UpdateMenuItem(ctx context.Context, arg UpdateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, updateMenuItem,
		arg.ID, arg.Name, arg.Price, arg.Category, arg.GroupCode, arg.GroupName, arg.Available)
	return scanMenuItem(row)
}

const deleteMenuItem = `
DELETE FROM menu_items WHERE id = $1
`

func (q *Queries) DeleteMenuItem(ctx context.Context, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, deleteMenuItem, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const getMenuItem = `
SELECT id, name, price, category, group_code, group_name, available, created_at, updated_at
FROM menu_items WHERE id = $1
`

func (q *Queries) GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, getMenuItem, id))
}

const listMenuItems = `
SELECT id, name, price, category, group_code, group_name, available, created_at, updated_at
FROM menu_items ORDER BY category, name
`

func (q *Queries) ListMenuItems(ctx context.Context) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuItems)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MenuItem
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

const getMenuPricesByNames = `
SELECT name, price FROM menu_items WHERE name = ANY($1)
`

type GetMenuPricesByNamesRow struct {
	Name  string
	Price pgtype.Numeric
}

func (q *Queries) GetMenuPricesByNames(ctx context.Context, names []string) ([]GetMenuPricesByNamesRow, error) {
	rows, err := q.db.Query(ctx, getMenuPricesByNames, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []GetMenuPricesByNamesRow
	for rows.Next() {
		var r GetMenuPricesByNamesRow
		if err := rows.Scan(&r.Name, &r.Price); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const getMenuRoutingByNames = `
SELECT name, category, group_code FROM menu_items WHERE name = ANY($1)
`

type GetMenuRoutingByNamesRow struct {
	Name      string
	Category  string
	GroupCode pgtype.Text
}

func (q *Queries) GetMenuRoutingByNames(ctx context.Context, names []string) ([]GetMenuRoutingByNamesRow, error) {
	rows, err := q.db.Query(ctx, getMenuRoutingByNames, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []GetMenuRoutingByNamesRow
	for rows.Next() {
		var r GetMenuRoutingByNamesRow
		if err := rows.Scan(&r.Name, &r.Category, &r.GroupCode); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanMenuItem(row pgx.Row) (MenuItem, error) {
	var m MenuItem
	err := row.Scan(&m.ID, &m.Name, &m.Price, &m.Category, &m.GroupCode, &m.GroupName,
		&m.Available, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}
