package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/phovang-pos/api/internal/database"
	"github.com/phovang-pos/api/internal/ws"
)

// TableStore defines the database methods needed by table handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type TableStore interface {
	ListTables(ctx context.Context) ([]database.Table, error)
	GetTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	CreateTable(ctx context.Context, arg database.CreateTableParams) (database.Table, error)
	UpdateTable(ctx context.Context, arg database.UpdateTableParams) (database.Table, error)
	DeleteTable(ctx context.Context, id uuid.UUID) error
}

// TableHandler handles dining table endpoints.
type TableHandler struct {
	store TableStore
	hub   Broadcaster
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(store TableStore, hub Broadcaster) *TableHandler {
	return &TableHandler{store: store, hub: hub}
}

// RegisterRoutes registers table read endpoints on the given Chi router.
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

// RegisterManagerRoutes registers the mutating table endpoints.
func (h *TableHandler) RegisterManagerRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type tableRequest struct {
	Name     string `json:"name"`
	RowLabel string `json:"row_label"`
}

type tableResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	RowLabel       *string   `json:"row_label"`
	Status         string    `json:"status"`
	CurrentOrderID *string   `json:"current_order_id"`
}

func toTableResponse(t database.Table) tableResponse {
	resp := tableResponse{
		ID:     t.ID,
		Name:   t.Name,
		Status: t.Status,
	}
	if t.RowLabel.Valid {
		resp.RowLabel = &t.RowLabel.String
	}
	if t.CurrentOrderID.Valid {
		s := uuid.UUID(t.CurrentOrderID.Bytes).String()
		resp.CurrentOrderID = &s
	}
	return resp
}

// --- Handlers ---

// List returns all tables with their occupancy.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	tables, err := h.store.ListTables(r.Context())
	if err != nil {
		log.Printf("ERROR: list tables: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp[i] = toTableResponse(t)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single table.
func (h *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	table, err := h.store.GetTable(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
			return
		}
		log.Printf("ERROR: get table: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toTableResponse(table))
}

// Create adds a new table.
func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req tableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	rowLabel := pgtype.Text{}
	if req.RowLabel != "" {
		rowLabel = pgtype.Text{String: req.RowLabel, Valid: true}
	}

	table, err := h.store.CreateTable(r.Context(), database.CreateTableParams{
		Name:     req.Name,
		RowLabel: rowLabel,
	})
	if err != nil {
		log.Printf("ERROR: create table: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.broadcastTable(table)
	writeJSON(w, http.StatusCreated, toTableResponse(table))
}

// Update renames or relabels a table.
func (h *TableHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	var req tableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	rowLabel := pgtype.Text{}
	if req.RowLabel != "" {
		rowLabel = pgtype.Text{String: req.RowLabel, Valid: true}
	}

	table, err := h.store.UpdateTable(r.Context(), database.UpdateTableParams{
		ID:       id,
		Name:     req.Name,
		RowLabel: rowLabel,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
			return
		}
		log.Printf("ERROR: update table: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.broadcastTable(table)
	writeJSON(w, http.StatusOK, toTableResponse(table))
}

// Delete removes a table. Occupied tables cannot be deleted.
func (h *TableHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	if err := h.store.DeleteTable(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either missing or occupied; disambiguate for the client.
			if _, getErr := h.store.GetTable(r.Context(), id); getErr == nil {
				writeJSON(w, http.StatusConflict, map[string]string{"error": "table is occupied"})
				return
			}
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
			return
		}
		log.Printf("ERROR: delete table: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TableHandler) broadcastTable(t database.Table) {
	broadcast(h.hub, ws.TopicTables, "table.updated", toTableResponse(t))
}
