package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/phovang-pos/api/internal/database"
	"github.com/phovang-pos/api/internal/enum"
	"github.com/shopspring/decimal"
)

const maxOrderCodeRetries = 3

// Errors returned by the order service.
var (
	ErrEmptyItems       = errors.New("items are required")
	ErrOrderNotFound    = errors.New("order not found")
	ErrTableNotFound    = errors.New("table not found")
	ErrItemNotFound     = errors.New("item not found")
	ErrOrderNotPending  = errors.New("order is not pending")
	ErrItemNotPending   = errors.New("item is not pending")
	ErrItemNotCancelled = errors.New("item is not cancelled")
	ErrItemServed       = errors.New("item already served")
	ErrUnservedItems    = errors.New("order still has unserved items")
	ErrTableOccupied    = errors.New("table already has a pending order")
	ErrSameTable        = errors.New("order is already on this table")
	ErrSameOrder        = errors.New("cannot merge an order into itself")
	ErrInvalidPayment   = errors.New("invalid payment_method")
	ErrInsufficientCash = errors.New("amount received is less than total")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed by order mutations.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.Table, error)
	SetTableStatus(ctx context.Context, arg database.SetTableStatusParams) (database.Table, error)

	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetPendingOrderByTable(ctx context.Context, tableID uuid.UUID) (database.Order, error)
	MaxOrderCodeSeq(ctx context.Context, prefix string) (int64, error)
	UpdateOrderBillNote(ctx context.Context, arg database.UpdateOrderBillNoteParams) (database.Order, error)
	SetOrderTable(ctx context.Context, arg database.SetOrderTableParams) (database.Order, error)
	CompleteOrder(ctx context.Context, arg database.CompleteOrderParams) (database.Order, error)
	CancelOrder(ctx context.Context, id uuid.UUID) (database.Order, error)

	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrderItem(ctx context.Context, id uuid.UUID) (database.OrderItem, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	FindMergeableItem(ctx context.Context, arg database.FindMergeableItemParams) (database.OrderItem, error)
	AddOrderItemQuantity(ctx context.Context, arg database.AddOrderItemQuantityParams) (database.OrderItem, error)
	UpdateOrderItemQuantity(ctx context.Context, arg database.UpdateOrderItemQuantityParams) (database.OrderItem, error)
	UpdateOrderItemNote(ctx context.Context, arg database.UpdateOrderItemNoteParams) (database.OrderItem, error)
	SetOrderItemStatus(ctx context.Context, arg database.SetOrderItemStatusParams) (database.OrderItem, error)
	CountUnservedItems(ctx context.Context, orderID uuid.UUID) (int64, error)
	MoveOrderItems(ctx context.Context, arg database.MoveOrderItemsParams) error
	DeleteOrderItem(ctx context.Context, id uuid.UUID) error

	CreateOrderHistory(ctx context.Context, arg database.CreateOrderHistoryParams) (database.OrderHistory, error)
	GetMenuPricesByNames(ctx context.Context, names []string) ([]database.GetMenuPricesByNamesRow, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// OrderService handles order business logic.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore}
}

// Item statuses a stored status may move to. Serving is additionally
// idempotent: serving a served item is a no-op, not an error.
var allowedItemTransitions = map[string]map[string]bool{
	enum.ItemStatusPending: {enum.ItemStatusServed: true, enum.ItemStatusCancel: true},
	enum.ItemStatusCancel:  {enum.ItemStatusPending: true},
	enum.ItemStatusServed:  {},
}

// NewItem is a line requested by a client. Quantities below 1 are clamped
// to 1 rather than rejected.
type NewItem struct {
	Name     string
	Quantity int32
	Note     string
}

// OpenOrderRequest opens (or extends) the order for a table.
type OpenOrderRequest struct {
	TableID   uuid.UUID
	CreatedBy uuid.UUID
	Items     []NewItem
}

// OpenOrderResult is the order the items landed on. Created is false when
// the table already had a pending order and the items were appended to it.
type OpenOrderResult struct {
	Order   database.Order
	Items   []database.OrderItem
	Created bool
}

// OpenOrder adds items to the table's pending order, creating the order
// first if the table has none. Retries on order code / one-pending-order
// unique violations (concurrent creators race on both).
func (s *OrderService) OpenOrder(ctx context.Context, req OpenOrderRequest) (*OpenOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderCodeRetries; attempt++ {
		result, err := s.openOrderTx(ctx, req)
		if err == nil {
			return result, nil
		}
		if isOrderConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// isOrderConflict checks for a unique violation on either the order code or
// the one-pending-order-per-table index (pgconn error code 23505).
func isOrderConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" &&
			(pgErr.ConstraintName == "orders_order_code_key" ||
				pgErr.ConstraintName == "orders_one_pending_per_table")
	}
	return false
}

func (s *OrderService) openOrderTx(ctx context.Context, req OpenOrderRequest) (*OpenOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	table, err := store.GetTableForUpdate(ctx, req.TableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("get table: %w", err)
	}

	actor := uuidOrNull(req.CreatedBy)

	order, err := store.GetPendingOrderByTable(ctx, table.ID)
	switch {
	case err == nil:
		// Table already has an open order; append to it.
		items, err := addItemsToOrder(ctx, store, order.ID, req.Items)
		if err != nil {
			return nil, err
		}
		if err := appendHistory(ctx, store, order.ID, enum.HistoryItemsAdded, itemsDetail(req.Items), actor); err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit tx: %w", err)
		}
		return &OpenOrderResult{Order: order, Items: items, Created: false}, nil

	case errors.Is(err, pgx.ErrNoRows):
		// Fall through to create.
	default:
		return nil, fmt.Errorf("get pending order: %w", err)
	}

	code, err := generateOrderCode(ctx, store, table.Name, time.Now())
	if err != nil {
		return nil, err
	}

	order, err = store.CreateOrder(ctx, database.CreateOrderParams{
		TableID:   table.ID,
		OrderCode: code,
		CreatedBy: actor,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if _, err := store.SetTableStatus(ctx, database.SetTableStatusParams{
		ID:             table.ID,
		Status:         enum.TableStatusOccupied,
		CurrentOrderID: pgtype.UUID{Bytes: order.ID, Valid: true},
	}); err != nil {
		return nil, fmt.Errorf("occupy table: %w", err)
	}

	items, err := addItemsToOrder(ctx, store, order.ID, req.Items)
	if err != nil {
		return nil, err
	}

	if err := appendHistory(ctx, store, order.ID, enum.HistoryOrderCreated, itemsDetail(req.Items), actor); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &OpenOrderResult{Order: order, Items: items, Created: true}, nil
}

// AddItems appends items to a pending order, merging with existing pending
// lines that share name and note.
func (s *OrderService) AddItems(ctx context.Context, orderID, actorID uuid.UUID, reqItems []NewItem) (*database.Order, []database.OrderItem, error) {
	if len(reqItems) == 0 {
		return nil, nil, ErrEmptyItems
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := lockPendingOrder(ctx, store, orderID)
	if err != nil {
		return nil, nil, err
	}

	items, err := addItemsToOrder(ctx, store, order.ID, reqItems)
	if err != nil {
		return nil, nil, err
	}

	if err := appendHistory(ctx, store, order.ID, enum.HistoryItemsAdded, itemsDetail(reqItems), uuidOrNull(actorID)); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit tx: %w", err)
	}
	return &order, items, nil
}

// AddCustomItem adds an off-menu line with a price frozen at entry time.
// Custom items never merge with existing lines.
func (s *OrderService) AddCustomItem(ctx context.Context, orderID, actorID uuid.UUID, name string, quantity int32, note string, price decimal.Decimal) (*database.OrderItem, error) {
	if name == "" {
		return nil, ErrEmptyItems
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := lockPendingOrder(ctx, store, orderID)
	if err != nil {
		return nil, err
	}

	item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
		OrderID:  order.ID,
		Name:     name,
		Quantity: clampQuantity(quantity),
		Note:     textOrNull(note),
		IsCustom: true,
		Price:    decimalToNumeric(price),
	})
	if err != nil {
		return nil, fmt.Errorf("create order item: %w", err)
	}

	detail := fmt.Sprintf("%s x%d @ %s", item.Name, item.Quantity, price.StringFixed(0))
	if err := appendHistory(ctx, store, order.ID, enum.HistoryCustomItemAdded, detail, uuidOrNull(actorID)); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &item, nil
}

// EditQuantity sets the quantity of a pending item, clamping to a minimum
// of 1. Cancelling is the only way to reach zero.
func (s *OrderService) EditQuantity(ctx context.Context, itemID, actorID uuid.UUID, quantity int32) (*database.OrderItem, error) {
	quantity = clampQuantity(quantity)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	item, _, err := lockItemOrder(ctx, store, itemID)
	if err != nil {
		return nil, err
	}
	if item.Status != enum.ItemStatusPending {
		return nil, ErrItemNotPending
	}

	updated, err := store.UpdateOrderItemQuantity(ctx, database.UpdateOrderItemQuantityParams{
		ID:       item.ID,
		Quantity: quantity,
	})
	if err != nil {
		return nil, fmt.Errorf("update quantity: %w", err)
	}

	detail := fmt.Sprintf("%s: %d -> %d", item.Name, item.Quantity, quantity)
	if err := appendHistory(ctx, store, item.OrderID, enum.HistoryQuantityChanged, detail, uuidOrNull(actorID)); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &updated, nil
}

// EditNote replaces the note on a pending item.
func (s *OrderService) EditNote(ctx context.Context, itemID, actorID uuid.UUID, note string) (*database.OrderItem, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	item, _, err := lockItemOrder(ctx, store, itemID)
	if err != nil {
		return nil, err
	}
	if item.Status != enum.ItemStatusPending {
		return nil, ErrItemNotPending
	}

	updated, err := store.UpdateOrderItemNote(ctx, database.UpdateOrderItemNoteParams{
		ID:   item.ID,
		Note: textOrNull(note),
	})
	if err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}

	detail := fmt.Sprintf("%s: %q", item.Name, note)
	if err := appendHistory(ctx, store, item.OrderID, enum.HistoryNoteChanged, detail, uuidOrNull(actorID)); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &updated, nil
}

// ServeItem marks a pending item served. Serving an already-served item is
// a no-op so double taps on the kitchen screen do not error or duplicate
// history.
func (s *OrderService) ServeItem(ctx context.Context, itemID, actorID uuid.UUID) (*database.OrderItem, error) {
	return s.transitionItem(ctx, itemID, actorID, enum.ItemStatusServed, enum.HistoryItemServed)
}

// CancelItem marks a pending item cancelled. The row is kept so the line
// still shows struck through on the bill screen and can be restored.
func (s *OrderService) CancelItem(ctx context.Context, itemID, actorID uuid.UUID) (*database.OrderItem, error) {
	return s.transitionItem(ctx, itemID, actorID, enum.ItemStatusCancel, enum.HistoryItemCancelled)
}

// RestoreItem returns a cancelled item to pending. The original entry time
// is kept, so a long-cancelled item comes back already late on the kitchen
// screen rather than looking fresh.
func (s *OrderService) RestoreItem(ctx context.Context, itemID, actorID uuid.UUID) (*database.OrderItem, error) {
	return s.transitionItem(ctx, itemID, actorID, enum.ItemStatusPending, enum.HistoryItemRestored)
}

func (s *OrderService) transitionItem(ctx context.Context, itemID, actorID uuid.UUID, target, action string) (*database.OrderItem, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	item, _, err := lockItemOrder(ctx, store, itemID)
	if err != nil {
		return nil, err
	}

	if item.Status == target {
		if target == enum.ItemStatusServed {
			return &item, nil
		}
		return nil, transitionError(item.Status, target)
	}
	if !allowedItemTransitions[item.Status][target] {
		return nil, transitionError(item.Status, target)
	}

	updated, err := store.SetOrderItemStatus(ctx, database.SetOrderItemStatusParams{
		ID:     item.ID,
		Status: target,
	})
	if err != nil {
		return nil, fmt.Errorf("set item status: %w", err)
	}

	if err := appendHistory(ctx, store, item.OrderID, action, item.Name, uuidOrNull(actorID)); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &updated, nil
}

func transitionError(from, to string) error {
	switch {
	case to == enum.ItemStatusPending:
		return ErrItemNotCancelled
	case from == enum.ItemStatusServed:
		return ErrItemServed
	default:
		return ErrItemNotPending
	}
}

// MergeOrders folds the source order into the target. Lines matching on
// name and status are combined (quantities summed, distinct notes joined);
// the rest move over unchanged, keeping their entry times. The source is
// cancelled and its table freed. The target keeps its own entry time.
func (s *OrderService) MergeOrders(ctx context.Context, sourceID, targetID, actorID uuid.UUID) (*database.Order, error) {
	if sourceID == targetID {
		return nil, ErrSameOrder
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// Lock in a fixed order so two concurrent merges cannot deadlock.
	first, second := sourceID, targetID
	if strings.Compare(first.String(), second.String()) > 0 {
		first, second = second, first
	}
	orders := make(map[uuid.UUID]database.Order, 2)
	for _, id := range []uuid.UUID{first, second} {
		o, err := store.GetOrderForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrOrderNotFound
			}
			return nil, fmt.Errorf("get order: %w", err)
		}
		if o.Status != enum.OrderStatusPending {
			return nil, ErrOrderNotPending
		}
		orders[id] = o
	}
	source, target := orders[sourceID], orders[targetID]

	targetItems, err := store.ListOrderItems(ctx, target.ID)
	if err != nil {
		return nil, fmt.Errorf("list target items: %w", err)
	}
	byKey := make(map[string]database.OrderItem, len(targetItems))
	for _, it := range targetItems {
		byKey[it.Name+"\x00"+it.Status] = it
	}

	sourceItems, err := store.ListOrderItems(ctx, source.ID)
	if err != nil {
		return nil, fmt.Errorf("list source items: %w", err)
	}

	for _, it := range sourceItems {
		match, ok := byKey[it.Name+"\x00"+it.Status]
		if !ok || it.IsCustom || match.IsCustom {
			continue // moved in bulk below
		}

		merged, err := store.AddOrderItemQuantity(ctx, database.AddOrderItemQuantityParams{
			ID:    match.ID,
			Delta: it.Quantity,
		})
		if err != nil {
			return nil, fmt.Errorf("merge quantity: %w", err)
		}
		if note := joinNotes(match.Note, it.Note); note.String != match.Note.String || note.Valid != match.Note.Valid {
			if merged, err = store.UpdateOrderItemNote(ctx, database.UpdateOrderItemNoteParams{
				ID:   match.ID,
				Note: note,
			}); err != nil {
				return nil, fmt.Errorf("merge note: %w", err)
			}
		}
		byKey[it.Name+"\x00"+it.Status] = merged
		if err := store.DeleteOrderItem(ctx, it.ID); err != nil {
			return nil, fmt.Errorf("delete merged item: %w", err)
		}
	}

	// Merged source rows are gone; whatever remains moves over as-is.
	if err := store.MoveOrderItems(ctx, database.MoveOrderItemsParams{
		FromOrderID: source.ID,
		ToOrderID:   target.ID,
	}); err != nil {
		return nil, fmt.Errorf("move remaining items: %w", err)
	}

	if _, err := store.CancelOrder(ctx, source.ID); err != nil {
		return nil, fmt.Errorf("cancel source order: %w", err)
	}
	if _, err := store.SetTableStatus(ctx, database.SetTableStatusParams{
		ID:     source.TableID,
		Status: enum.TableStatusAvailable,
	}); err != nil {
		return nil, fmt.Errorf("free source table: %w", err)
	}

	actor := uuidOrNull(actorID)
	if err := appendHistory(ctx, store, target.ID, enum.HistoryOrdersMerged, "from "+source.OrderCode, actor); err != nil {
		return nil, err
	}
	if err := appendHistory(ctx, store, source.ID, enum.HistoryOrdersMerged, "into "+target.OrderCode, actor); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &target, nil
}

// MoveOrder relocates a pending order to a free table, regenerating the
// order code for the new table. Both tables flip state in the same
// transaction. Retries on order code collisions.
func (s *OrderService) MoveOrder(ctx context.Context, orderID, toTableID, actorID uuid.UUID) (*database.Order, error) {
	var lastErr error
	for attempt := 0; attempt < maxOrderCodeRetries; attempt++ {
		order, err := s.moveOrderTx(ctx, orderID, toTableID, actorID)
		if err == nil {
			return order, nil
		}
		if isOrderConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (s *OrderService) moveOrderTx(ctx context.Context, orderID, toTableID, actorID uuid.UUID) (*database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := lockPendingOrder(ctx, store, orderID)
	if err != nil {
		return nil, err
	}
	if order.TableID == toTableID {
		return nil, ErrSameTable
	}

	// Lock both tables in a fixed order.
	firstID, secondID := order.TableID, toTableID
	if strings.Compare(firstID.String(), secondID.String()) > 0 {
		firstID, secondID = secondID, firstID
	}
	tables := make(map[uuid.UUID]database.Table, 2)
	for _, id := range []uuid.UUID{firstID, secondID} {
		t, err := store.GetTableForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrTableNotFound
			}
			return nil, fmt.Errorf("get table: %w", err)
		}
		tables[id] = t
	}
	from, dest := tables[order.TableID], tables[toTableID]

	if dest.Status != enum.TableStatusAvailable {
		return nil, ErrTableOccupied
	}

	code, err := generateOrderCode(ctx, store, dest.Name, order.CreatedAt.Time)
	if err != nil {
		return nil, err
	}

	moved, err := store.SetOrderTable(ctx, database.SetOrderTableParams{
		ID:        order.ID,
		TableID:   dest.ID,
		OrderCode: code,
	})
	if err != nil {
		return nil, fmt.Errorf("move order: %w", err)
	}

	if _, err := store.SetTableStatus(ctx, database.SetTableStatusParams{
		ID:     from.ID,
		Status: enum.TableStatusAvailable,
	}); err != nil {
		return nil, fmt.Errorf("free table: %w", err)
	}
	if _, err := store.SetTableStatus(ctx, database.SetTableStatusParams{
		ID:             dest.ID,
		Status:         enum.TableStatusOccupied,
		CurrentOrderID: pgtype.UUID{Bytes: order.ID, Valid: true},
	}); err != nil {
		return nil, fmt.Errorf("occupy table: %w", err)
	}

	detail := fmt.Sprintf("%s -> %s", from.Name, dest.Name)
	if err := appendHistory(ctx, store, order.ID, enum.HistoryOrderMoved, detail, uuidOrNull(actorID)); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &moved, nil
}

// CompleteOrderRequest settles an order.
type CompleteOrderRequest struct {
	OrderID        uuid.UUID
	ActorID        uuid.UUID
	PaymentMethod  string
	Discount       decimal.Decimal
	ExtraFee       decimal.Decimal
	AmountReceived decimal.Decimal
}

// CompleteOrderResult is the settled order with its final bill.
type CompleteOrderResult struct {
	Order  database.Order
	Bill   Bill
	Change decimal.Decimal
}

// CompleteOrder settles a pending order: every non-cancelled item must be
// served, the total is fixed from the current catalog and frozen prices,
// and the table is freed in the same transaction.
func (s *OrderService) CompleteOrder(ctx context.Context, req CompleteOrderRequest) (*CompleteOrderResult, error) {
	switch req.PaymentMethod {
	case enum.PaymentMethodCash, enum.PaymentMethodTransfer:
	default:
		return nil, ErrInvalidPayment
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := lockPendingOrder(ctx, store, req.OrderID)
	if err != nil {
		return nil, err
	}

	unserved, err := store.CountUnservedItems(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("count unserved: %w", err)
	}
	if unserved > 0 {
		return nil, ErrUnservedItems
	}

	items, err := store.ListOrderItems(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	prices, err := menuPrices(ctx, store, items)
	if err != nil {
		return nil, err
	}

	bill := ComposeBill(items, prices, req.Discount, req.ExtraFee)

	change := decimal.Zero
	if req.PaymentMethod == enum.PaymentMethodCash && req.AmountReceived.IsPositive() {
		change = req.AmountReceived.Sub(bill.Total)
		if change.IsNegative() {
			return nil, ErrInsufficientCash
		}
	}

	completed, err := store.CompleteOrder(ctx, database.CompleteOrderParams{
		ID:             order.ID,
		Discount:       decimalToNumeric(req.Discount),
		ExtraFee:       decimalToNumeric(req.ExtraFee),
		Total:          decimalToNumeric(bill.Total),
		PaymentMethod:  textOrNull(req.PaymentMethod),
		AmountReceived: decimalToNumeric(req.AmountReceived),
	})
	if err != nil {
		return nil, fmt.Errorf("complete order: %w", err)
	}

	if _, err := store.SetTableStatus(ctx, database.SetTableStatusParams{
		ID:     order.TableID,
		Status: enum.TableStatusAvailable,
	}); err != nil {
		return nil, fmt.Errorf("free table: %w", err)
	}

	detail := fmt.Sprintf("%s total=%s", req.PaymentMethod, bill.Total.StringFixed(0))
	if err := appendHistory(ctx, store, order.ID, enum.HistoryOrderCompleted, detail, uuidOrNull(req.ActorID)); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &CompleteOrderResult{Order: completed, Bill: bill, Change: change}, nil
}

// UpdateBillNote sets the free-text note printed at the bottom of the bill.
func (s *OrderService) UpdateBillNote(ctx context.Context, orderID, actorID uuid.UUID, note string) (*database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := lockPendingOrder(ctx, store, orderID)
	if err != nil {
		return nil, err
	}

	updated, err := store.UpdateOrderBillNote(ctx, database.UpdateOrderBillNoteParams{
		ID:       order.ID,
		BillNote: textOrNull(note),
	})
	if err != nil {
		return nil, fmt.Errorf("update bill note: %w", err)
	}

	if err := appendHistory(ctx, store, order.ID, enum.HistoryNoteChanged, "bill note", uuidOrNull(actorID)); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &updated, nil
}

// --- Helpers ---

// addItemsToOrder inserts requested lines, merging each into an existing
// pending line with the same name and note when one exists.
func addItemsToOrder(ctx context.Context, store OrderStore, orderID uuid.UUID, reqItems []NewItem) ([]database.OrderItem, error) {
	var items []database.OrderItem
	for i, ri := range reqItems {
		if ri.Name == "" {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrEmptyItems)
		}
		qty := clampQuantity(ri.Quantity)
		note := textOrNull(ri.Note)

		existing, err := store.FindMergeableItem(ctx, database.FindMergeableItemParams{
			OrderID: orderID,
			Name:    ri.Name,
			Note:    note,
		})
		switch {
		case err == nil:
			merged, err := store.AddOrderItemQuantity(ctx, database.AddOrderItemQuantityParams{
				ID:    existing.ID,
				Delta: qty,
			})
			if err != nil {
				return nil, fmt.Errorf("item[%d]: merge: %w", i, err)
			}
			items = append(items, merged)

		case errors.Is(err, pgx.ErrNoRows):
			created, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
				OrderID:  orderID,
				Name:     ri.Name,
				Quantity: qty,
				Note:     note,
			})
			if err != nil {
				return nil, fmt.Errorf("item[%d]: create: %w", i, err)
			}
			items = append(items, created)

		default:
			return nil, fmt.Errorf("item[%d]: find mergeable: %w", i, err)
		}
	}
	return items, nil
}

// lockPendingOrder locks the order row and verifies it is still open.
func lockPendingOrder(ctx context.Context, store OrderStore, orderID uuid.UUID) (database.Order, error) {
	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if order.Status != enum.OrderStatusPending {
		return database.Order{}, ErrOrderNotPending
	}
	return order, nil
}

// lockItemOrder resolves an item, locks its order (orders before items,
// always), and re-reads the item under the lock.
func lockItemOrder(ctx context.Context, store OrderStore, itemID uuid.UUID) (database.OrderItem, database.Order, error) {
	item, err := store.GetOrderItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.OrderItem{}, database.Order{}, ErrItemNotFound
		}
		return database.OrderItem{}, database.Order{}, fmt.Errorf("get item: %w", err)
	}

	order, err := lockPendingOrder(ctx, store, item.OrderID)
	if err != nil {
		return database.OrderItem{}, database.Order{}, err
	}

	item, err = store.GetOrderItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.OrderItem{}, database.Order{}, ErrItemNotFound
		}
		return database.OrderItem{}, database.Order{}, fmt.Errorf("get item: %w", err)
	}
	return item, order, nil
}

func generateOrderCode(ctx context.Context, store OrderStore, tableName string, at time.Time) (string, error) {
	prefix := fmt.Sprintf("%s/%s/", at.Format("02012006"), tableName)
	n, err := store.MaxOrderCodeSeq(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("max order code seq: %w", err)
	}
	return fmt.Sprintf("%s%03d", prefix, n+1), nil
}

func appendHistory(ctx context.Context, store OrderStore, orderID uuid.UUID, action, detail string, actor pgtype.UUID) error {
	if _, err := store.CreateOrderHistory(ctx, database.CreateOrderHistoryParams{
		OrderID: orderID,
		Action:  action,
		Detail:  textOrNull(detail),
		ActorID: actor,
	}); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// menuPrices looks up catalog prices for item names without a frozen price.
func menuPrices(ctx context.Context, store OrderStore, items []database.OrderItem) (map[string]decimal.Decimal, error) {
	seen := make(map[string]bool)
	var names []string
	for _, it := range items {
		if it.Price.Valid || seen[it.Name] {
			continue
		}
		seen[it.Name] = true
		names = append(names, it.Name)
	}
	prices := make(map[string]decimal.Decimal, len(names))
	if len(names) == 0 {
		return prices, nil
	}

	rows, err := store.GetMenuPricesByNames(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("get menu prices: %w", err)
	}
	for _, r := range rows {
		prices[r.Name] = numericToDecimal(r.Price)
	}
	return prices, nil
}

func itemsDetail(items []NewItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%s x%d", it.Name, clampQuantity(it.Quantity)))
	}
	return strings.Join(parts, ", ")
}

func clampQuantity(q int32) int32 {
	if q < 1 {
		return 1
	}
	return q
}

func joinNotes(a, b pgtype.Text) pgtype.Text {
	var parts []string
	for _, t := range []pgtype.Text{a, b} {
		if !t.Valid || t.String == "" {
			continue
		}
		dup := false
		for _, p := range parts {
			if p == t.String {
				dup = true
				break
			}
		}
		if !dup {
			parts = append(parts, t.String)
		}
	}
	if len(parts) == 0 {
		return pgtype.Text{}
	}
	return pgtype.Text{String: strings.Join(parts, "; "), Valid: true}
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func uuidOrNull(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: id, Valid: true}
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(0))
	return n
}
