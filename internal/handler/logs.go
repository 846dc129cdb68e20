package handler

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phovang-pos/api/internal/database"
)

// ActivityLogStore defines the database methods needed by the audit trail.
// Satisfied by *database.Queries; narrow interface for testability.
type ActivityLogStore interface {
	ListActivityLogs(ctx context.Context, arg database.ListActivityLogsParams) ([]database.ActivityLog, error)
}

// ActivityLogHandler serves the audit trail. Manager only.
type ActivityLogHandler struct {
	store ActivityLogStore
}

// NewActivityLogHandler creates a new ActivityLogHandler.
func NewActivityLogHandler(store ActivityLogStore) *ActivityLogHandler {
	return &ActivityLogHandler{store: store}
}

// RegisterRoutes registers activity log endpoints on the given Chi router.
func (h *ActivityLogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
}

type activityLogResponse struct {
	ID        uuid.UUID `json:"id"`
	ActorID   *string   `json:"actor_id"`
	ActorName *string   `json:"actor_name"`
	Action    string    `json:"action"`
	Detail    *string   `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// List returns recent activity, newest first.
func (h *ActivityLogHandler) List(w http.ResponseWriter, r *http.Request) {
	params := database.ListActivityLogsParams{Limit: defaultListLimit}

	var ok bool
	if params.From, ok = parseTimeParam(r, "from"); !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid from"})
		return
	}
	if params.To, ok = parseTimeParam(r, "to"); !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid to"})
		return
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		params.Limit = int32(n)
	}

	logs, err := h.store.ListActivityLogs(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list activity logs: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]activityLogResponse, len(logs))
	for i, l := range logs {
		resp[i] = activityLogResponse{
			ID:        l.ID,
			Action:    l.Action,
			CreatedAt: l.CreatedAt.Time,
		}
		if l.ActorID.Valid {
			s := uuid.UUID(l.ActorID.Bytes).String()
			resp[i].ActorID = &s
		}
		if l.ActorName.Valid {
			resp[i].ActorName = &l.ActorName.String
		}
		if l.Detail.Valid {
			resp[i].Detail = &l.Detail.String
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
