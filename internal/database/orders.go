package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, table_id, order_code, status, bill_note, discount, extra_fee, total,
payment_method, amount_received, created_by, created_at, paid_at`

const createOrder = `
INSERT INTO orders (table_id, order_code, created_by)
VALUES ($1, $2, $3)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	TableID   uuid.UUID
	OrderCode string
	CreatedBy pgtype.UUID
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder, arg.TableID, arg.OrderCode, arg.CreatedBy))
}

const getOrder = `
SELECT ` + orderColumns + ` FROM orders WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderForUpdate = `
SELECT ` + orderColumns + ` FROM orders WHERE id = $1
FOR UPDATE
`

// GetOrderForUpdate locks the order row for the duration of the transaction.
// Mutations take this lock first so concurrent edits serialize on the order.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const getPendingOrderByTable = `
SELECT ` + orderColumns + ` FROM orders
WHERE table_id = $1 AND status = 'pending'
`

func (q *Queries) GetPendingOrderByTable(ctx context.Context, tableID uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getPendingOrderByTable, tableID))
}

const listOrders = `
SELECT ` + orderColumns + ` FROM orders
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::timestamptz IS NULL OR created_at >= $2)
  AND ($3::timestamptz IS NULL OR created_at < $3)
ORDER BY created_at DESC
LIMIT $4
`

type ListOrdersParams struct {
	Status pgtype.Text
	From   pgtype.Timestamptz
	To     pgtype.Timestamptz
	Limit  int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.Status, arg.From, arg.To, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const maxOrderCodeSeq = `
SELECT COALESCE(MAX(split_part(order_code, '/', 3)::int), 0)
FROM orders WHERE order_code LIKE $1 || '%'
`

// MaxOrderCodeSeq returns the highest sequence suffix under a code prefix.
// A count would drift once an order is moved to another table and its code
// regenerated there, re-proposing a suffix that still exists.
func (q *Queries) MaxOrderCodeSeq(ctx context.Context, prefix string) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, maxOrderCodeSeq, prefix).Scan(&n)
	return n, err
}

const updateOrderBillNote = `
UPDATE orders SET bill_note = $2 WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderBillNoteParams struct {
	ID       uuid.UUID
	BillNote pgtype.Text
}

func (q *Queries) UpdateOrderBillNote(ctx context.Context, arg UpdateOrderBillNoteParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderBillNote, arg.ID, arg.BillNote))
}

const setOrderTable = `
UPDATE orders SET table_id = $2, order_code = $3 WHERE id = $1
RETURNING ` + orderColumns

type SetOrderTableParams struct {
	ID        uuid.UUID
	TableID   uuid.UUID
	OrderCode string
}

func (q *Queries) SetOrderTable(ctx context.Context, arg SetOrderTableParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, setOrderTable, arg.ID, arg.TableID, arg.OrderCode))
}

const completeOrder = `
UPDATE orders
SET status = 'complete', discount = $2, extra_fee = $3, total = $4,
    payment_method = $5, amount_received = $6, paid_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type CompleteOrderParams struct {
	ID             uuid.UUID
	Discount       pgtype.Numeric
	ExtraFee       pgtype.Numeric
	Total          pgtype.Numeric
	PaymentMethod  pgtype.Text
	AmountReceived pgtype.Numeric
}

func (q *Queries) CompleteOrder(ctx context.Context, arg CompleteOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, completeOrder,
		arg.ID, arg.Discount, arg.ExtraFee, arg.Total, arg.PaymentMethod, arg.AmountReceived))
}

const cancelOrder = `
UPDATE orders SET status = 'cancel' WHERE id = $1
RETURNING ` + orderColumns

func (q *Queries) CancelOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, cancelOrder, id))
}

// --- History ---

const createOrderHistory = `
INSERT INTO order_history (order_id, action, detail, actor_id)
VALUES ($1, $2, $3, $4)
RETURNING id, order_id, action, detail, actor_id, created_at
`

type CreateOrderHistoryParams struct {
	OrderID uuid.UUID
	Action  string
	Detail  pgtype.Text
	ActorID pgtype.UUID
}

func (q *Queries) CreateOrderHistory(ctx context.Context, arg CreateOrderHistoryParams) (OrderHistory, error) {
	var h OrderHistory
	err := q.db.QueryRow(ctx, createOrderHistory, arg.OrderID, arg.Action, arg.Detail, arg.ActorID).
		Scan(&h.ID, &h.OrderID, &h.Action, &h.Detail, &h.ActorID, &h.CreatedAt)
	return h, err
}

const listOrderHistory = `
SELECT id, order_id, action, detail, actor_id, created_at
FROM order_history WHERE order_id = $1
ORDER BY created_at
`

func (q *Queries) ListOrderHistory(ctx context.Context, orderID uuid.UUID) ([]OrderHistory, error) {
	rows, err := q.db.Query(ctx, listOrderHistory, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OrderHistory
	for rows.Next() {
		var h OrderHistory
		if err := rows.Scan(&h.ID, &h.OrderID, &h.Action, &h.Detail, &h.ActorID, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// --- Reports ---

const revenueSummary = `
SELECT count(*), COALESCE(sum(total), 0)
FROM orders
WHERE status = 'complete' AND paid_at >= $1 AND paid_at < $2
`

type RevenueSummaryParams struct {
	From pgtype.Timestamptz
	To   pgtype.Timestamptz
}

type RevenueSummaryRow struct {
	OrderCount int64
	Total      pgtype.Numeric
}

func (q *Queries) RevenueSummary(ctx context.Context, arg RevenueSummaryParams) (RevenueSummaryRow, error) {
	var r RevenueSummaryRow
	err := q.db.QueryRow(ctx, revenueSummary, arg.From, arg.To).Scan(&r.OrderCount, &r.Total)
	return r, err
}

const revenueByDay = `
SELECT date_trunc('day', paid_at)::date, count(*), COALESCE(sum(total), 0)
FROM orders
WHERE status = 'complete' AND paid_at >= $1 AND paid_at < $2
GROUP BY 1 ORDER BY 1
`

type RevenueByDayRow struct {
	Day        pgtype.Date
	OrderCount int64
	Total      pgtype.Numeric
}

func (q *Queries) RevenueByDay(ctx context.Context, arg RevenueSummaryParams) ([]RevenueByDayRow, error) {
	rows, err := q.db.Query(ctx, revenueByDay, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RevenueByDayRow
	for rows.Next() {
		var r RevenueByDayRow
		if err := rows.Scan(&r.Day, &r.OrderCount, &r.Total); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const revenueByPaymentMethod = `
SELECT COALESCE(payment_method, 'UNKNOWN'), count(*), COALESCE(sum(total), 0)
FROM orders
WHERE status = 'complete' AND paid_at >= $1 AND paid_at < $2
GROUP BY 1 ORDER BY 1
`

type RevenueByPaymentMethodRow struct {
	PaymentMethod string
	OrderCount    int64
	Total         pgtype.Numeric
}

func (q *Queries) RevenueByPaymentMethod(ctx context.Context, arg RevenueSummaryParams) ([]RevenueByPaymentMethodRow, error) {
	rows, err := q.db.Query(ctx, revenueByPaymentMethod, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RevenueByPaymentMethodRow
	for rows.Next() {
		var r RevenueByPaymentMethodRow
		if err := rows.Scan(&r.PaymentMethod, &r.OrderCount, &r.Total); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.TableID, &o.OrderCode, &o.Status, &o.BillNote, &o.Discount,
		&o.ExtraFee, &o.Total, &o.PaymentMethod, &o.AmountReceived, &o.CreatedBy,
		&o.CreatedAt, &o.PaidAt)
	return o, err
}
