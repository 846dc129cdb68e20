package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const itemColumns = `id, order_id, name, quantity, note, status, is_custom, price,
created_at, print_queued_at, printed_at`

const createOrderItem = `
INSERT INTO order_items (order_id, name, quantity, note, is_custom, price)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + itemColumns

type CreateOrderItemParams struct {
	OrderID  uuid.UUID
	Name     string
	Quantity int32
	Note     pgtype.Text
	IsCustom bool
	Price    pgtype.Numeric
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID, arg.Name, arg.Quantity, arg.Note, arg.IsCustom, arg.Price))
}

const getOrderItem = `
SELECT ` + itemColumns + ` FROM order_items WHERE id = $1
`

func (q *Queries) GetOrderItem(ctx context.Context, id uuid.UUID) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, getOrderItem, id))
}

const listOrderItems = `
SELECT ` + itemColumns + ` FROM order_items
WHERE order_id = $1
ORDER BY created_at, id
`

func (q *Queries) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItems, orderID)
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

const findMergeableItem = `
SELECT ` + itemColumns + ` FROM order_items
WHERE order_id = $1 AND name = $2 AND note IS NOT DISTINCT FROM $3 AND status = 'pending'
LIMIT 1
FOR UPDATE
`

type FindMergeableItemParams struct {
	OrderID uuid.UUID
	Name    string
	Note    pgtype.Text
}

func (q *Queries) FindMergeableItem(ctx context.Context, arg FindMergeableItemParams) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, findMergeableItem, arg.OrderID, arg.Name, arg.Note))
}

const updateOrderItemQuantity = `
UPDATE order_items SET quantity = $2 WHERE id = $1
RETURNING ` + itemColumns

type UpdateOrderItemQuantityParams struct {
	ID       uuid.UUID
	Quantity int32
}

func (q *Queries) UpdateOrderItemQuantity(ctx context.Context, arg UpdateOrderItemQuantityParams) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, updateOrderItemQuantity, arg.ID, arg.Quantity))
}

const addOrderItemQuantity = `
UPDATE order_items SET quantity = quantity + $2 WHERE id = $1
RETURNING ` + itemColumns

type AddOrderItemQuantityParams struct {
	ID    uuid.UUID
	Delta int32
}

func (q *Queries) AddOrderItemQuantity(ctx context.Context, arg AddOrderItemQuantityParams) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, addOrderItemQuantity, arg.ID, arg.Delta))
}

const updateOrderItemNote = `
UPDATE order_items SET note = $2 WHERE id = $1
RETURNING ` + itemColumns

type UpdateOrderItemNoteParams struct {
	ID   uuid.UUID
	Note pgtype.Text
}

func (q *Queries) UpdateOrderItemNote(ctx context.Context, arg UpdateOrderItemNoteParams) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, updateOrderItemNote, arg.ID, arg.Note))
}

const setOrderItemStatus = `
UPDATE order_items SET status = $2 WHERE id = $1
RETURNING ` + itemColumns

type SetOrderItemStatusParams struct {
	ID     uuid.UUID
	Status string
}

func (q *Queries) SetOrderItemStatus(ctx context.Context, arg SetOrderItemStatusParams) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, setOrderItemStatus, arg.ID, arg.Status))
}

const countUnservedItems = `
SELECT count(*) FROM order_items
WHERE order_id = $1 AND status = 'pending'
`

func (q *Queries) CountUnservedItems(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countUnservedItems, orderID).Scan(&n)
	return n, err
}

const listUnqueuedPendingItems = `
SELECT ` + itemColumns + ` FROM order_items
WHERE order_id = $1 AND status = 'pending' AND print_queued_at IS NULL
ORDER BY created_at, id
FOR UPDATE
`

// ListUnqueuedPendingItems locks the matching rows so the caller can mark
// them queued in the same transaction without double-enqueueing.
func (q *Queries) ListUnqueuedPendingItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listUnqueuedPendingItems, orderID)
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

const markItemsPrintQueued = `
UPDATE order_items SET print_queued_at = now()
WHERE id = ANY($1)
`

func (q *Queries) MarkItemsPrintQueued(ctx context.Context, ids []uuid.UUID) error {
	_, err := q.db.Exec(ctx, markItemsPrintQueued, ids)
	return err
}

const markItemsPrinted = `
UPDATE order_items SET printed_at = now()
WHERE id = ANY($1) AND printed_at IS NULL
`

func (q *Queries) MarkItemsPrinted(ctx context.Context, ids []uuid.UUID) error {
	_, err := q.db.Exec(ctx, markItemsPrinted, ids)
	return err
}

const listKitchenItems = `
SELECT i.id, i.order_id, i.name, i.quantity, i.note, i.status, i.is_custom, i.price,
       i.created_at, i.print_queued_at, i.printed_at,
       o.order_code, t.name, COALESCE(m.category, '')
FROM order_items i
JOIN orders o ON o.id = i.order_id
JOIN tables t ON t.id = o.table_id
LEFT JOIN menu_items m ON m.name = i.name
WHERE o.status = 'pending' AND i.status <> 'cancel'
ORDER BY i.created_at, i.id
`

type ListKitchenItemsRow struct {
	Item      OrderItem
	OrderCode string
	TableName string
	Category  string
}

func (q *Queries) ListKitchenItems(ctx context.Context) ([]ListKitchenItemsRow, error) {
	rows, err := q.db.Query(ctx, listKitchenItems)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ListKitchenItemsRow
	for rows.Next() {
		var r ListKitchenItemsRow
		i := &r.Item
		if err := rows.Scan(&i.ID, &i.OrderID, &i.Name, &i.Quantity, &i.Note, &i.Status,
			&i.IsCustom, &i.Price, &i.CreatedAt, &i.PrintQueuedAt, &i.PrintedAt,
			&r.OrderCode, &r.TableName, &r.Category); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const deleteOrderItem = `
DELETE FROM order_items WHERE id = $1
`

func (q *Queries) DeleteOrderItem(ctx context.Context, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, deleteOrderItem, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const moveOrderItems = `
UPDATE order_items SET order_id = $2 WHERE order_id = $1
`

type MoveOrderItemsParams struct {
	FromOrderID uuid.UUID
	ToOrderID   uuid.UUID
}

func (q *Queries) MoveOrderItems(ctx context.Context, arg MoveOrderItemsParams) error {
	_, err := q.db.Exec(ctx, moveOrderItems, arg.FromOrderID, arg.ToOrderID)
	return err
}

func scanOrderItem(row pgx.Row) (OrderItem, error) {
	var i OrderItem
	err := row.Scan(&i.ID, &i.OrderID, &i.Name, &i.Quantity, &i.Note, &i.Status,
		&i.IsCustom, &i.Price, &i.CreatedAt, &i.PrintQueuedAt, &i.PrintedAt)
	return i, err
}
