package printing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/phovang-pos/api/internal/database"
	"github.com/phovang-pos/api/internal/enum"
	amqp "github.com/rabbitmq/amqp091-go"
)

// WorkerStore defines the DB methods the outbox worker needs.
// Satisfied by *database.Queries.
type WorkerStore interface {
	GetPrintJob(ctx context.Context, id uuid.UUID) (database.PrintJob, error)
	MarkPrintJobPrinting(ctx context.Context, id uuid.UUID) (database.PrintJob, error)
	MarkPrintJobPrinted(ctx context.Context, id uuid.UUID) (database.PrintJob, error)
	MarkPrintJobFailed(ctx context.Context, arg database.MarkPrintJobFailedParams) (database.PrintJob, error)
	MarkItemsPrinted(ctx context.Context, ids []uuid.UUID) error
	ListStuckPrintJobs(ctx context.Context, olderThan time.Time) ([]database.PrintJob, error)
}

// JobQueue is the broker side of the outbox.
type JobQueue interface {
	PublishJobID(ctx context.Context, id uuid.UUID) error
	Consume() (<-chan amqp.Delivery, error)
}

// Worker drains the print queue and drives jobs through
// queued -> printing -> printed/failed. printed_at on kitchen items is
// written only after the relay confirms delivery, so "attempted" and
// "printed" stay distinguishable.
type Worker struct {
	store     WorkerStore
	queue     JobQueue
	relay     Relay
	maxTries  int
	retryBase time.Duration
}

func NewWorker(store WorkerStore, queue JobQueue, relay Relay, maxTries int, retryBase time.Duration) *Worker {
	return &Worker{
		store:     store,
		queue:     queue,
		relay:     relay,
		maxTries:  maxTries,
		retryBase: retryBase,
	}
}

// Run consumes job IDs until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	deliveries, err := w.queue.Consume()
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("print queue channel closed")
			}
			w.handleDelivery(ctx, d)
		}
	}
}

func (w *Worker) handleDelivery(ctx context.Context, d amqp.Delivery) {
	jobID, err := uuid.Parse(string(d.Body))
	if err != nil {
		log.Printf("ERROR: print worker: bad job id %q: %v", d.Body, err)
		_ = d.Ack(false)
		return
	}

	retry, err := w.process(ctx, jobID)
	if err == nil {
		_ = d.Ack(false)
		return
	}

	if retry {
		log.Printf("print job %s failed, requeueing: %v", jobID, err)
		// Backoff before redelivery; prefetch is 1 so this also paces the queue.
		select {
		case <-time.After(w.retryBase):
		case <-ctx.Done():
		}
		_ = d.Nack(false, true)
		return
	}

	log.Printf("ERROR: print job %s failed permanently: %v", jobID, err)
	_ = d.Ack(false)
}

// process runs one delivery attempt. The bool reports whether the job
// should be redelivered.
func (w *Worker) process(ctx context.Context, jobID uuid.UUID) (bool, error) {
	job, err := w.store.MarkPrintJobPrinting(ctx, jobID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Already printed or failed; stale redelivery.
			return false, nil
		}
		return true, fmt.Errorf("claim job: %w", err)
	}

	req, itemIDs, err := decodeJob(job)
	if err != nil {
		_, markErr := w.store.MarkPrintJobFailed(ctx, database.MarkPrintJobFailedParams{
			ID:        job.ID,
			LastError: pgtype.Text{String: err.Error(), Valid: true},
		})
		if markErr != nil {
			return true, fmt.Errorf("mark failed: %w", markErr)
		}
		return false, err
	}

	if err := w.relay.Print(ctx, req); err != nil {
		if int(job.Attempts) < w.maxTries {
			return true, err
		}
		if _, markErr := w.store.MarkPrintJobFailed(ctx, database.MarkPrintJobFailedParams{
			ID:        job.ID,
			LastError: pgtype.Text{String: err.Error(), Valid: true},
		}); markErr != nil {
			return true, fmt.Errorf("mark failed: %w", markErr)
		}
		return false, err
	}

	if len(itemIDs) > 0 {
		if err := w.store.MarkItemsPrinted(ctx, itemIDs); err != nil {
			log.Printf("ERROR: print job %s: mark items printed: %v", job.ID, err)
		}
	}

	if _, err := w.store.MarkPrintJobPrinted(ctx, job.ID); err != nil {
		return true, fmt.Errorf("mark printed: %w", err)
	}
	return false, nil
}

func decodeJob(job database.PrintJob) (PrintRequest, []uuid.UUID, error) {
	req := PrintRequest{Printer: job.Printer, Kind: job.Kind}
	switch job.Kind {
	case enum.PrintJobKindKitchenTicket:
		var p TicketPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return PrintRequest{}, nil, fmt.Errorf("decode ticket payload: %w", err)
		}
		req.Ticket = &p
		return req, p.ItemIDs, nil
	case enum.PrintJobKindBill:
		var p BillPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return PrintRequest{}, nil, fmt.Errorf("decode bill payload: %w", err)
		}
		req.Bill = &p
		return req, nil, nil
	default:
		return PrintRequest{}, nil, fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

// RunSweeper periodically republishes jobs whose broker message was lost,
// e.g. enqueued while the broker was down.
func (w *Worker) RunSweeper(ctx context.Context, every, stuckAfter time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			jobs, err := w.store.ListStuckPrintJobs(ctx, time.Now().Add(-stuckAfter))
			if err != nil {
				log.Printf("ERROR: print sweeper: %v", err)
				continue
			}
			for _, job := range jobs {
				if err := w.queue.PublishJobID(ctx, job.ID); err != nil {
					log.Printf("ERROR: print sweeper: republish %s: %v", job.ID, err)
					break
				}
			}
		}
	}
}
