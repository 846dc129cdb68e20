package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/phovang-pos/api/internal/database"
)

// PrintJobStore defines the database methods needed by print job handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type PrintJobStore interface {
	ListPrintJobs(ctx context.Context, arg database.ListPrintJobsParams) ([]database.PrintJob, error)
	GetPrintJob(ctx context.Context, id uuid.UUID) (database.PrintJob, error)
	RequeuePrintJob(ctx context.Context, id uuid.UUID) (database.PrintJob, error)
}

// PrintJobHandler exposes the print outbox for monitoring and retries.
type PrintJobHandler struct {
	store PrintJobStore
	queue JobPublisher
}

// NewPrintJobHandler creates a new PrintJobHandler.
func NewPrintJobHandler(store PrintJobStore, queue JobPublisher) *PrintJobHandler {
	return &PrintJobHandler{store: store, queue: queue}
}

// RegisterRoutes registers print job endpoints on the given Chi router.
func (h *PrintJobHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/retry", h.Retry)
}

type printJobResponse struct {
	ID        uuid.UUID       `json:"id"`
	OrderID   *string         `json:"order_id"`
	Printer   string          `json:"printer"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Status    string          `json:"status"`
	Attempts  int32           `json:"attempts"`
	LastError *string         `json:"last_error"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func toPrintJobResponse(j database.PrintJob) printJobResponse {
	resp := printJobResponse{
		ID:        j.ID,
		Printer:   j.Printer,
		Kind:      j.Kind,
		Payload:   json.RawMessage(j.Payload),
		Status:    j.Status,
		Attempts:  j.Attempts,
		CreatedAt: j.CreatedAt.Time,
		UpdatedAt: j.UpdatedAt.Time,
	}
	if j.OrderID.Valid {
		s := uuid.UUID(j.OrderID.Bytes).String()
		resp.OrderID = &s
	}
	if j.LastError.Valid {
		resp.LastError = &j.LastError.String
	}
	return resp
}

// List returns recent print jobs, optionally filtered by status.
func (h *PrintJobHandler) List(w http.ResponseWriter, r *http.Request) {
	params := database.ListPrintJobsParams{Limit: defaultListLimit}
	if s := r.URL.Query().Get("status"); s != "" {
		params.Status = pgtype.Text{String: s, Valid: true}
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		params.Limit = int32(n)
	}

	jobs, err := h.store.ListPrintJobs(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list print jobs: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]printJobResponse, len(jobs))
	for i, j := range jobs {
		resp[i] = toPrintJobResponse(j)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single print job with its payload.
func (h *PrintJobHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid job ID"})
		return
	}

	job, err := h.store.GetPrintJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "print job not found"})
			return
		}
		log.Printf("ERROR: get print job: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toPrintJobResponse(job))
}

// Retry requeues a failed job and republishes it. Jobs in any other state
// are left alone: queued and printing jobs are already in flight, printed
// jobs would print twice.
func (h *PrintJobHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid job ID"})
		return
	}

	job, err := h.store.RequeuePrintJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := h.store.GetPrintJob(r.Context(), id); getErr == nil {
				writeJSON(w, http.StatusConflict, map[string]string{"error": "only failed jobs can be retried"})
				return
			}
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "print job not found"})
			return
		}
		log.Printf("ERROR: requeue print job: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if h.queue != nil {
		if err := h.queue.PublishJobID(r.Context(), job.ID); err != nil {
			log.Printf("ERROR: publish retried job %s: %v", job.ID, err)
		}
	}

	writeJSON(w, http.StatusOK, toPrintJobResponse(job))
}
