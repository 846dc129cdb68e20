package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phovang-pos/api/internal/database"
	"github.com/phovang-pos/api/internal/service"
)

// KitchenStore defines the database methods needed by the kitchen screen.
// Satisfied by *database.Queries; narrow interface for testability.
type KitchenStore interface {
	ListKitchenItems(ctx context.Context) ([]database.ListKitchenItemsRow, error)
}

// KitchenHandler serves the live kitchen work queue.
type KitchenHandler struct {
	store      KitchenStore
	thresholds service.Thresholds
	now        func() time.Time
}

// NewKitchenHandler creates a new KitchenHandler.
func NewKitchenHandler(store KitchenStore, thresholds service.Thresholds) *KitchenHandler {
	return &KitchenHandler{store: store, thresholds: thresholds, now: time.Now}
}

// RegisterRoutes registers kitchen endpoints on the given Chi router.
func (h *KitchenHandler) RegisterRoutes(r chi.Router) {
	r.Get("/items", h.ListItems)
}

type kitchenItemResponse struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"order_id"`
	OrderCode string    `json:"order_code"`
	TableName string    `json:"table_name"`
	Name      string    `json:"name"`
	Quantity  int32     `json:"quantity"`
	Note      string    `json:"note,omitempty"`
	Category  string    `json:"category,omitempty"`
	Status    string    `json:"status"`
	IsCustom  bool      `json:"is_custom"`
	CreatedAt time.Time `json:"created_at"`
	Printed   bool      `json:"printed"`
}

// ListItems returns every active line on pending orders with its derived
// status. Optional filters: status (derived value), category. The escalation
// thresholds can be overridden per request with pending_after / late_after
// duration parameters, so the kitchen display can tune its own urgency.
func (h *KitchenHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	th := h.thresholds
	q := r.URL.Query()
	if s := q.Get("pending_after"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid pending_after"})
			return
		}
		th.PendingAfter = d
	}
	if s := q.Get("late_after"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid late_after"})
			return
		}
		th.LateAfter = d
	}
	statusFilter := q.Get("status")
	categoryFilter := q.Get("category")

	rows, err := h.store.ListKitchenItems(r.Context())
	if err != nil {
		log.Printf("ERROR: list kitchen items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	now := h.now()
	resp := make([]kitchenItemResponse, 0, len(rows))
	for _, row := range rows {
		it := row.Item
		derived := service.DeriveItemStatus(it.Status, it.CreatedAt.Time, now, th)
		if statusFilter != "" && derived != statusFilter {
			continue
		}
		if categoryFilter != "" && row.Category != categoryFilter {
			continue
		}
		resp = append(resp, kitchenItemResponse{
			ID:        it.ID,
			OrderID:   it.OrderID,
			OrderCode: row.OrderCode,
			TableName: row.TableName,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Note:      it.Note.String,
			Category:  row.Category,
			Status:    derived,
			IsCustom:  it.IsCustom,
			CreatedAt: it.CreatedAt.Time,
			Printed:   it.PrintedAt.Valid,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
