// Package kitchen turns newly entered order items into kitchen tickets.
package kitchen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/phovang-pos/api/internal/database"
	"github.com/phovang-pos/api/internal/enum"
	"github.com/phovang-pos/api/internal/printing"
)

// Store defines the DB methods the auto printer needs.
// Satisfied by *database.Queries (and its WithTx variant).
type Store interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	ListUnqueuedPendingItems(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	MarkItemsPrintQueued(ctx context.Context, ids []uuid.UUID) error
	CreatePrintJob(ctx context.Context, arg database.CreatePrintJobParams) (database.PrintJob, error)
	CreateOrderHistory(ctx context.Context, arg database.CreateOrderHistoryParams) (database.OrderHistory, error)
	GetMenuRoutingByNames(ctx context.Context, names []string) ([]database.GetMenuRoutingByNamesRow, error)
}

// NewStore creates a Store from a DBTX (pool or tx).
type NewStore func(db database.DBTX) Store

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Publisher hands committed job IDs to the broker.
type Publisher interface {
	PublishJobID(ctx context.Context, id uuid.UUID) error
}

// AutoPrinter watches for order items that have never been queued for
// print and cuts one ticket per printer for them. A single goroutine
// drains the notify channel, so tickets are created and enqueued in the
// order mutations arrive. Items are marked queued in the same transaction
// that creates the job, so a notification that races another cannot queue
// the same item twice.
type AutoPrinter struct {
	pool     TxBeginner
	newStore NewStore
	queue    Publisher
	notify   chan uuid.UUID
}

func NewAutoPrinter(pool TxBeginner, newStore NewStore, queue Publisher) *AutoPrinter {
	return &AutoPrinter{
		pool:     pool,
		newStore: newStore,
		queue:    queue,
		notify:   make(chan uuid.UUID, 64),
	}
}

// Notify schedules a ticket check for the order. Non-blocking: if the
// buffer is full the order is picked up by a later notification or the
// outbox sweeper.
func (a *AutoPrinter) Notify(orderID uuid.UUID) {
	select {
	case a.notify <- orderID:
	default:
		log.Printf("ERROR: auto-print queue full, dropping notify for order %s", orderID)
	}
}

// Run drains notifications until the context is cancelled.
func (a *AutoPrinter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case orderID := <-a.notify:
			if err := a.EnqueueTickets(ctx, orderID); err != nil {
				log.Printf("ERROR: auto-print order %s: %v", orderID, err)
			}
		}
	}
}

// EnqueueTickets creates kitchen ticket jobs for the order's unqueued
// pending items and publishes the job IDs after commit. Publishing best
// effort: a lost publish is recovered by the outbox sweeper.
func (a *AutoPrinter) EnqueueTickets(ctx context.Context, orderID uuid.UUID) error {
	jobIDs, err := a.enqueueTicketsTx(ctx, orderID)
	if err != nil {
		return err
	}

	for _, id := range jobIDs {
		if err := a.queue.PublishJobID(ctx, id); err != nil {
			log.Printf("ERROR: publish print job %s: %v", id, err)
		}
	}
	return nil
}

func (a *AutoPrinter) enqueueTicketsTx(ctx context.Context, orderID uuid.UUID) ([]uuid.UUID, error) {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := a.newStore(tx)

	items, err := store.ListUnqueuedPendingItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list unqueued items: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	order, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.Status != enum.OrderStatusPending {
		return nil, nil
	}

	table, err := store.GetTable(ctx, order.TableID)
	if err != nil {
		return nil, fmt.Errorf("get table: %w", err)
	}

	routes, err := a.routeItems(ctx, store, items)
	if err != nil {
		return nil, err
	}

	var jobIDs []uuid.UUID
	var allIDs []uuid.UUID
	var printers []string
	now := time.Now()

	for _, printer := range []string{enum.PrinterKitchen, enum.PrinterBar} {
		group := routes[printer]
		if len(group) == 0 {
			continue
		}

		payload := printing.TicketPayload{
			OrderCode: order.OrderCode,
			TableName: table.Name,
			QueuedAt:  now,
		}
		for _, it := range group {
			payload.Lines = append(payload.Lines, printing.TicketLine{
				Name:     it.Name,
				Quantity: it.Quantity,
				Note:     it.Note.String,
			})
			payload.ItemIDs = append(payload.ItemIDs, it.ID)
			allIDs = append(allIDs, it.ID)
		}

		body, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal ticket payload: %w", err)
		}

		job, err := store.CreatePrintJob(ctx, database.CreatePrintJobParams{
			OrderID: order.ID,
			Printer: printer,
			Kind:    enum.PrintJobKindKitchenTicket,
			Payload: body,
		})
		if err != nil {
			return nil, fmt.Errorf("create print job: %w", err)
		}
		jobIDs = append(jobIDs, job.ID)
		printers = append(printers, printer)
	}

	if err := store.MarkItemsPrintQueued(ctx, allIDs); err != nil {
		return nil, fmt.Errorf("mark items queued: %w", err)
	}

	if _, err := store.CreateOrderHistory(ctx, database.CreateOrderHistoryParams{
		OrderID: order.ID,
		Action:  enum.HistoryTicketQueued,
		Detail:  pgtype.Text{String: strings.Join(printers, ", "), Valid: true},
	}); err != nil {
		return nil, fmt.Errorf("append history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return jobIDs, nil
}

// routeItems splits items between the bar and kitchen printers. Lines
// whose menu group is "bar" go to the bar; everything else, custom lines
// included, goes to the kitchen.
func (a *AutoPrinter) routeItems(ctx context.Context, store Store, items []database.OrderItem) (map[string][]database.OrderItem, error) {
	seen := make(map[string]bool)
	var names []string
	for _, it := range items {
		if !seen[it.Name] {
			seen[it.Name] = true
			names = append(names, it.Name)
		}
	}

	routing := make(map[string]string, len(names))
	rows, err := store.GetMenuRoutingByNames(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("get menu routing: %w", err)
	}
	for _, r := range rows {
		if r.GroupCode.Valid && r.GroupCode.String == enum.PrinterBar {
			routing[r.Name] = enum.PrinterBar
		} else {
			routing[r.Name] = enum.PrinterKitchen
		}
	}

	out := make(map[string][]database.OrderItem, 2)
	for _, it := range items {
		printer, ok := routing[it.Name]
		if !ok {
			printer = enum.PrinterKitchen
		}
		out[printer] = append(out[printer], it)
	}
	return out, nil
}
