package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const createTable = `
INSERT INTO tables (name, row_label)
VALUES ($1, $2)
RETURNING id, name, row_label, status, current_order_id, created_at
`

type CreateTableParams struct {
	Name     string
	RowLabel pgtype.Text
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, createTable, arg.Name, arg.RowLabel))
}

const updateTable = `
UPDATE tables SET name = $2, row_label = $3
WHERE id = $1
RETURNING id, name, row_label, status, current_order_id, created_at
`

type UpdateTableParams struct {
	ID       uuid.UUID
	Name     string
	RowLabel pgtype.Text
}

func (q *Queries) UpdateTable(ctx context.Context, arg UpdateTableParams) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, updateTable, arg.ID, arg.Name, arg.RowLabel))
}

const deleteTable = `
DELETE FROM tables WHERE id = $1 AND status = 'available'
`

func (q *Queries) DeleteTable(ctx context.Context, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, deleteTable, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const getTable = `
SELECT id, name, row_label, status, current_order_id, created_at
FROM tables WHERE id = $1
`

func (q *Queries) GetTable(ctx context.Context, id uuid.UUID) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, getTable, id))
}

const getTableForUpdate = `
SELECT id, name, row_label, status, current_order_id, created_at
FROM tables WHERE id = $1
FOR UPDATE
`

func (q *Queries) GetTableForUpdate(ctx context.Context, id uuid.UUID) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, getTableForUpdate, id))
}

const listTables = `
SELECT id, name, row_label, status, current_order_id, created_at
FROM tables ORDER BY row_label, name
`

func (q *Queries) ListTables(ctx context.Context) ([]Table, error) {
	rows, err := q.db.Query(ctx, listTables)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tables []Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

const setTableStatus = `
UPDATE tables SET status = $2, current_order_id = $3
WHERE id = $1
RETURNING id, name, row_label, status, current_order_id, created_at
`

type SetTableStatusParams struct {
	ID             uuid.UUID
	Status         string
	CurrentOrderID pgtype.UUID
}

func (q *Queries) SetTableStatus(ctx context.Context, arg SetTableStatusParams) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, setTableStatus, arg.ID, arg.Status, arg.CurrentOrderID))
}

func scanTable(row pgx.Row) (Table, error) {
	var t Table
	err := row.Scan(&t.ID, &t.Name, &t.RowLabel, &t.Status, &t.CurrentOrderID, &t.CreatedAt)
	return t, err
}
