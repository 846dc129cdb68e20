package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/phovang-pos/api/internal/database"
)

// ReportStore defines the database methods needed by revenue reports.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportStore interface {
	RevenueSummary(ctx context.Context, arg database.RevenueSummaryParams) (database.RevenueSummaryRow, error)
	RevenueByDay(ctx context.Context, arg database.RevenueSummaryParams) ([]database.RevenueByDayRow, error)
	RevenueByPaymentMethod(ctx context.Context, arg database.RevenueSummaryParams) ([]database.RevenueByPaymentMethodRow, error)
}

// ReportHandler serves revenue reports over completed orders. Manager only.
type ReportHandler struct {
	store ReportStore
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(store ReportStore) *ReportHandler {
	return &ReportHandler{store: store}
}

// RegisterRoutes registers report endpoints on the given Chi router.
func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/revenue", h.Revenue)
}

type revenueDayResponse struct {
	Day        string `json:"day"`
	OrderCount int64  `json:"order_count"`
	Total      string `json:"total"`
}

type revenueMethodResponse struct {
	PaymentMethod string `json:"payment_method"`
	OrderCount    int64  `json:"order_count"`
	Total         string `json:"total"`
}

type revenueResponse struct {
	From       time.Time               `json:"from"`
	To         time.Time               `json:"to"`
	OrderCount int64                   `json:"order_count"`
	Total      string                  `json:"total"`
	ByDay      []revenueDayResponse    `json:"by_day"`
	ByMethod   []revenueMethodResponse `json:"by_method"`
}

// Revenue reports settled totals between from and to (defaults: last 30
// days). Ranges are half open, paid_at in [from, to).
func (h *ReportHandler) Revenue(w http.ResponseWriter, r *http.Request) {
	to := time.Now()
	from := to.AddDate(0, 0, -30)

	if s := r.URL.Query().Get("from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid from"})
			return
		}
		from = t
	}
	if s := r.URL.Query().Get("to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid to"})
			return
		}
		to = t
	}
	if !from.Before(to) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "from must be before to"})
		return
	}

	params := database.RevenueSummaryParams{
		From: pgtype.Timestamptz{Time: from, Valid: true},
		To:   pgtype.Timestamptz{Time: to, Valid: true},
	}

	summary, err := h.store.RevenueSummary(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: revenue summary: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	byDay, err := h.store.RevenueByDay(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: revenue by day: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	byMethod, err := h.store.RevenueByPaymentMethod(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: revenue by method: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := revenueResponse{
		From:       from,
		To:         to,
		OrderCount: summary.OrderCount,
		Total:      numericToString(summary.Total),
		ByDay:      make([]revenueDayResponse, len(byDay)),
		ByMethod:   make([]revenueMethodResponse, len(byMethod)),
	}
	for i, d := range byDay {
		resp.ByDay[i] = revenueDayResponse{
			Day:        d.Day.Time.Format("2006-01-02"),
			OrderCount: d.OrderCount,
			Total:      numericToString(d.Total),
		}
	}
	for i, m := range byMethod {
		resp.ByMethod[i] = revenueMethodResponse{
			PaymentMethod: m.PaymentMethod,
			OrderCount:    m.OrderCount,
			Total:         numericToString(m.Total),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
