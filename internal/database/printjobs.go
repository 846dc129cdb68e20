package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const printJobColumns = `id, order_id, printer, kind, payload, status, attempts, last_error,
created_at, updated_at`

const createPrintJob = `
INSERT INTO print_jobs (order_id, printer, kind, payload)
VALUES ($1, $2, $3, $4)
RETURNING ` + printJobColumns

type CreatePrintJobParams struct {
	OrderID uuid.UUID
	Printer string
	Kind    string
	Payload []byte
}

func (q *Queries) CreatePrintJob(ctx context.Context, arg CreatePrintJobParams) (PrintJob, error) {
	return scanPrintJob(q.db.QueryRow(ctx, createPrintJob, arg.OrderID, arg.Printer, arg.Kind, arg.Payload))
}

const getPrintJob = `
SELECT ` + printJobColumns + ` FROM print_jobs WHERE id = $1
`

func (q *Queries) GetPrintJob(ctx context.Context, id uuid.UUID) (PrintJob, error) {
	return scanPrintJob(q.db.QueryRow(ctx, getPrintJob, id))
}

const listPrintJobs = `
SELECT ` + printJobColumns + ` FROM print_jobs
WHERE ($1::text IS NULL OR status = $1)
ORDER BY created_at DESC
LIMIT $2
`

type ListPrintJobsParams struct {
	Status pgtype.Text
	Limit  int32
}

func (q *Queries) ListPrintJobs(ctx context.Context, arg ListPrintJobsParams) ([]PrintJob, error) {
	rows, err := q.db.Query(ctx, listPrintJobs, arg.Status, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []PrintJob
	for rows.Next() {
		j, err := scanPrintJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

const markPrintJobPrinting = `
UPDATE print_jobs
SET status = 'printing', attempts = attempts + 1, updated_at = now()
WHERE id = $1 AND status IN ('queued', 'printing')
RETURNING ` + printJobColumns

// MarkPrintJobPrinting claims a job for one delivery attempt. Jobs already
// printed or failed are not reclaimed; the caller sees pgx.ErrNoRows.
func (q *Queries) MarkPrintJobPrinting(ctx context.Context, id uuid.UUID) (PrintJob, error) {
	return scanPrintJob(q.db.QueryRow(ctx, markPrintJobPrinting, id))
}

const markPrintJobPrinted = `
UPDATE print_jobs SET status = 'printed', last_error = NULL, updated_at = now()
WHERE id = $1
RETURNING ` + printJobColumns

func (q *Queries) MarkPrintJobPrinted(ctx context.Context, id uuid.UUID) (PrintJob, error) {
	return scanPrintJob(q.db.QueryRow(ctx, markPrintJobPrinted, id))
}

const markPrintJobFailed = `
UPDATE print_jobs SET status = 'failed', last_error = $2, updated_at = now()
WHERE id = $1
RETURNING ` + printJobColumns

type MarkPrintJobFailedParams struct {
	ID        uuid.UUID
	LastError pgtype.Text
}

func (q *Queries) MarkPrintJobFailed(ctx context.Context, arg MarkPrintJobFailedParams) (PrintJob, error) {
	return scanPrintJob(q.db.QueryRow(ctx, markPrintJobFailed, arg.ID, arg.LastError))
}

const requeuePrintJob = `
UPDATE print_jobs SET status = 'queued', updated_at = now()
WHERE id = $1 AND status = 'failed'
RETURNING ` + printJobColumns

func (q *Queries) RequeuePrintJob(ctx context.Context, id uuid.UUID) (PrintJob, error) {
	return scanPrintJob(q.db.QueryRow(ctx, requeuePrintJob, id))
}

const listStuckPrintJobs = `
SELECT ` + printJobColumns + ` FROM print_jobs
WHERE status IN ('queued', 'printing') AND updated_at < $1
ORDER BY created_at
`

// ListStuckPrintJobs returns jobs whose broker message may have been lost,
// e.g. enqueued while the broker was down. A sweeper republishes them.
func (q *Queries) ListStuckPrintJobs(ctx context.Context, olderThan time.Time) ([]PrintJob, error) {
	rows, err := q.db.Query(ctx, listStuckPrintJobs, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []PrintJob
	for rows.Next() {
		j, err := scanPrintJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func scanPrintJob(row pgx.Row) (PrintJob, error) {
	var j PrintJob
	err := row.Scan(&j.ID, &j.OrderID, &j.Printer, &j.Kind, &j.Payload, &j.Status,
		&j.Attempts, &j.LastError, &j.CreatedAt, &j.UpdatedAt)
	return j, err
}
